// Package fingerprint derives the identity key for a logical job.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// separator cannot appear inside a normalized token: company tokens are
// alphanumeric plus spaces, role and location clusters are alphanumeric
// plus underscores.
const separator = "::"

// New returns the SHA-256 hex digest over the three canonical tokens.
// Skills, salary, description, posting date and source URL are claims
// about a job, not identity, and are deliberately excluded.
func New(companyToken, roleToken, locationToken string) string {
	sum := sha256.Sum256([]byte(companyToken + separator + roleToken + separator + locationToken))
	return hex.EncodeToString(sum[:])
}
