// Package handle implements the generational handles that reference sockets.
//
// A Handle pairs a registry slot with the version that was current when the
// socket in that slot was created. Slots are recycled; versions are not, so a
// handle kept past DeleteSocket stops resolving instead of silently reaching
// whichever socket reuses the slot.
package handle

import (
	"fmt"
	"sync/atomic"
)

// Handle is an opaque, versioned socket reference. The zero value is invalid.
type Handle struct {
	slot    uint32
	version uint32
}

// Encode packs a slot index and a version into a Handle.
func Encode(slot, version uint32) Handle {
	return Handle{slot: slot, version: version}
}

// Decode returns the slot index and version carried by h.
func Decode(h Handle) (slot, version uint32) {
	return h.slot, h.version
}

// Slot returns the registry slot index.
func (h Handle) Slot() uint32 { return h.slot }

// Version returns the generation stamped at socket creation.
func (h Handle) Version() uint32 { return h.version }

// IsZero reports whether h was never issued. Version 0 is reserved.
func (h Handle) IsZero() bool { return h.version == 0 }

// Uint64 returns h as a single integer (version in the high word) for
// transport through metadata or logs.
func (h Handle) Uint64() uint64 {
	return uint64(h.version)<<32 | uint64(h.slot)
}

// FromUint64 is the inverse of Handle.Uint64.
func FromUint64(v uint64) Handle {
	return Handle{slot: uint32(v), version: uint32(v >> 32)}
}

func (h Handle) String() string {
	if h.IsZero() {
		return "socket(invalid)"
	}
	return fmt.Sprintf("socket(%d:%d)", h.slot, h.version)
}

var versionCounter atomic.Uint32

// NextVersion returns the next value of the process-wide version counter. It
// is shared by every slot of every registry and never returns 0, including
// after the counter wraps.
func NextVersion() uint32 {
	for {
		if v := versionCounter.Add(1); v != 0 {
			return v
		}
	}
}
