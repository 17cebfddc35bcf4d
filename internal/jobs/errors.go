package jobs

import "errors"

// ErrNotFound is returned by store lookups when no row matches.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a uniqueness
// constraint (fingerprint, normalized name, alias, source URL). Callers
// that race on create are expected to fall back to a lookup.
var ErrDuplicate = errors.New("duplicate row")
