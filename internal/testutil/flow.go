package testutil

import (
	"fmt"
	"sync/atomic"
)

// SequentialIDs generates predictable identifiers shaped like UUIDs:
// 00000000-0000-0000-0000-000000000001, ...002 and so on.
//
// The same test run with a fresh generator produces byte-identical IDs,
// which keeps golden output stable.
type SequentialIDs struct {
	n atomic.Int64
}

// NewSequentialIDs creates a generator whose first ID ends in 1.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

// Next returns the next identifier.
func (g *SequentialIDs) Next() string {
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", g.n.Add(1))
}
