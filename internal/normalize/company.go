// Package normalize converts raw scraped strings into canonical cluster
// tokens. All three normalizers are deterministic and dictionary-driven,
// biased toward false splits over false merges: treating one real job as
// two is acceptable, silently merging two different jobs is not.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jobsignal/engine/internal/jobs"
)

// UnknownCompany is the sentinel token for blank company names.
const UnknownCompany = "unknown"

// suffixWords appear at the end of company names but carry no identity:
// "Infosys Ltd" and "Infosys Limited" are the same company.
var suffixWords = map[string]struct{}{
	"ltd": {}, "limited": {}, "pvt": {}, "private": {}, "inc": {}, "llc": {},
	"corp": {}, "corporation": {}, "co": {}, "company": {}, "india": {},
	"technologies": {}, "technology": {}, "solutions": {}, "services": {},
	"software": {}, "systems": {}, "global": {}, "consulting": {},
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)

// AliasLookup resolves a normalized spelling to the canonical company
// name, returning jobs.ErrNotFound when no alias row exists.
type AliasLookup interface {
	AliasTarget(ctx context.Context, alias string) (string, error)
}

// CompanyNormalizer canonicalizes raw company names.
type CompanyNormalizer struct {
	aliases AliasLookup
}

// NewCompanyNormalizer builds a CompanyNormalizer backed by the given
// alias lookup.
func NewCompanyNormalizer(aliases AliasLookup) *CompanyNormalizer {
	return &CompanyNormalizer{aliases: aliases}
}

// Normalize converts a raw company name into its canonical token.
//
// The pipeline must run in this exact order: lowercase and trim, strip
// punctuation, drop suffix words, collapse spaces, then alias lookup.
//
//	"HCL Technologies Pvt Ltd" -> "hcl"
//	"Tata Consultancy Services" -> "tata consultancy"
//	"  Google   Inc.  " -> "google"
func (n *CompanyNormalizer) Normalize(ctx context.Context, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return UnknownCompany, nil
	}

	result := strings.ToLower(strings.TrimSpace(raw))
	result = nonAlnum.ReplaceAllString(result, "")

	words := strings.Fields(result)
	kept := words[:0]
	for _, w := range words {
		if _, drop := suffixWords[w]; !drop {
			kept = append(kept, w)
		}
	}
	result = strings.Join(kept, " ")

	canonical, err := n.aliases.AliasTarget(ctx, result)
	switch {
	case err == nil:
		return canonical, nil
	case errors.Is(err, jobs.ErrNotFound):
		return result, nil
	default:
		return "", fmt.Errorf("alias lookup %q: %w", result, err)
	}
}
