// Package hashing provides the string hashes used for socket names, message
// ids and URL paths, and an optional reverse table that maps 64-bit hashes back
// to the strings they were computed from for diagnostics.
package hashing

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/twmb/murmur3"
)

// DefaultReverseSize bounds the reverse table when no size is given.
const DefaultReverseSize = 4096

// String32 hashes s for socket name lookup.
func String32(s string) uint32 {
	return murmur3.Sum32([]byte(s))
}

// String64 hashes s for message ids, paths and fragments.
func String64(s string) uint64 {
	return murmur3.Sum64([]byte(s))
}

// ReverseTable remembers the strings behind recently computed 64-bit hashes.
// A nil *ReverseTable is valid and remembers nothing, which is how release
// builds run with reversal disabled.
type ReverseTable struct {
	entries *lru.Cache[uint64, string]
}

// NewReverseTable returns a table holding at most size strings.
func NewReverseTable(size int) (*ReverseTable, error) {
	if size <= 0 {
		size = DefaultReverseSize
	}
	cache, err := lru.New[uint64, string](size)
	if err != nil {
		return nil, fmt.Errorf("create reverse hash table: %w", err)
	}
	return &ReverseTable{entries: cache}, nil
}

// Hash64 hashes s and records it for reversal.
func (t *ReverseTable) Hash64(s string) uint64 {
	h := String64(s)
	if t != nil {
		t.entries.Add(h, s)
	}
	return h
}

// Reverse64 returns the string recorded for h.
func (t *ReverseTable) Reverse64(h uint64) (string, bool) {
	if t == nil {
		return "", false
	}
	return t.entries.Get(h)
}

// ReverseSafe64 always returns something printable: the recorded string or a
// placeholder carrying the raw hash.
func (t *ReverseTable) ReverseSafe64(h uint64) string {
	if s, ok := t.Reverse64(h); ok {
		return s
	}
	return fmt.Sprintf("<unknown:%d>", h)
}

// Len is the number of recorded strings.
func (t *ReverseTable) Len() int {
	if t == nil {
		return 0
	}
	return t.entries.Len()
}
