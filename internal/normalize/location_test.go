package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "Bangalore", want: "BANGALORE"},
		{raw: "Bengaluru", want: "BANGALORE"},
		{raw: "Bombay", want: "MUMBAI"},
		{raw: "Gurgaon", want: "DELHI_NCR"},
		{raw: "Noida Sector 62", want: "DELHI_NCR"},
		{raw: "Bangalore / Remote", want: "BANGALORE_OR_REMOTE"},
		{raw: "Hybrid - Mumbai (WFH allowed)", want: "MUMBAI_OR_REMOTE"},
		{raw: "Remote - India", want: "REMOTE_INDIA"},
		{raw: "Work from home", want: "REMOTE_INDIA"},
		{raw: "Remote (worldwide)", want: "REMOTE_GLOBAL"},
		{raw: "Visakhapatnam", want: "VISAKHAPATNAM"},
		{raw: "New   Town", want: "NEW_TOWN"},
		{raw: "", want: UnknownLocation},
		{raw: "  ", want: UnknownLocation},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Location(tt.raw))
		})
	}
}
