package normalize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobsignal/engine/internal/jobs"
)

// stubAliases is a fixed alias table for tests.
type stubAliases map[string]string

func (s stubAliases) AliasTarget(_ context.Context, alias string) (string, error) {
	if target, ok := s[alias]; ok {
		return target, nil
	}
	return "", jobs.ErrNotFound
}

func TestCompanyNormalize(t *testing.T) {
	t.Parallel()

	n := NewCompanyNormalizer(stubAliases{})
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "suffix words dropped", raw: "HCL Technologies Pvt Ltd", want: "hcl"},
		{name: "multiple suffixes", raw: "Tata Consultancy Services Ltd.", want: "tata consultancy"},
		{name: "punctuation and padding", raw: "  Google   Inc.  ", want: "google"},
		{name: "plain name untouched", raw: "Zoho", want: "zoho"},
		{name: "blank is unknown", raw: "   ", want: UnknownCompany},
		{name: "empty is unknown", raw: "", want: UnknownCompany},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(context.Background(), tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// All raw spellings of the same employer must converge on one token once
// the alias table maps the short form onto the canonical name.
func TestCompanyNormalizeAliasConvergence(t *testing.T) {
	t.Parallel()

	n := NewCompanyNormalizer(stubAliases{"tcs": "tata consultancy"})

	for _, raw := range []string{"TCS", "Tata Consultancy Services", "Tata Consultancy Services Ltd."} {
		got, err := n.Normalize(context.Background(), raw)
		require.NoError(t, err)
		assert.Equal(t, "tata consultancy", got, "raw=%q", raw)
	}
}
