// Package ids generates identifiers for comments, suggestions and versions.
//
// Identifiers are ULIDs: lexicographically sortable by creation time, which
// keeps version histories and listings stable when they round-trip through
// storage that orders by id.
package ids

import "github.com/oklog/ulid/v2"

// New returns a new monotonic ULID string. Safe for concurrent use.
func New() string {
	return ulid.Make().String()
}
