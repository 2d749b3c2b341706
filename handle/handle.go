// Package handle defines the opaque tokens handed to native callers.
//
// A Handle is a machine word. Zero is the null handle. The remaining space
// is split into two disjoint ranges so a handle can be routed to its owner
// without a lookup:
//
//	0                     null
//	1 .. 1<<62-1          scoped (per-thread frame stack)
//	1<<62 .. 1<<63-1      persistent (process-wide reference table)
//	1<<63 ..              never issued
//
// Inside both ranges the low 32 bits hold slot index + 1 and the next 30
// bits hold the slot generation. A slot's generation changes every time the
// slot is reused, so a stale handle never resolves to a newer occupant.
package handle

import "fmt"

// Handle is an opaque reference to a managed object.
type Handle uint64

// Null is the reserved handle that resolves to "no object".
const Null Handle = 0

const (
	indexBits = 32
	genBits   = 30

	indexMask = 1<<indexBits - 1

	persistentBit = 1 << 62
	invalidBit    = 1 << 63

	// MaxGeneration is the largest generation a slot can carry.
	MaxGeneration = 1<<genBits - 1

	// MaxIndex is the largest slot index that can be encoded.
	MaxIndex = indexMask - 1
)

// Kind is the range a handle falls in.
type Kind uint8

const (
	KindNull Kind = iota
	KindScoped
	KindPersistent
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScoped:
		return "scoped"
	case KindPersistent:
		return "persistent"
	default:
		return "invalid"
	}
}

// Scoped encodes a scoped handle. It panics if index is out of range.
func Scoped(index int, gen uint32) Handle {
	return encode(index, gen)
}

// Persistent encodes a persistent handle. It panics if index is out of range.
func Persistent(index int, gen uint32) Handle {
	return encode(index, gen) | persistentBit
}

func encode(index int, gen uint32) Handle {
	if index < 0 || index > MaxIndex {
		panic(fmt.Sprintf("handle: slot index %d out of range", index))
	}
	return Handle(uint64(index)+1) | Handle(uint64(gen&MaxGeneration)<<indexBits)
}

// Kind returns the range h belongs to.
func (h Handle) Kind() Kind {
	switch {
	case h == Null:
		return KindNull
	case h&invalidBit != 0, h&indexMask == 0:
		return KindInvalid
	case h&persistentBit != 0:
		return KindPersistent
	default:
		return KindScoped
	}
}

// IsNull reports whether h is the null handle.
func (h Handle) IsNull() bool { return h == Null }

// Index returns the slot index. Only meaningful for scoped and persistent handles.
func (h Handle) Index() int {
	return int(uint64(h)&indexMask) - 1
}

// Generation returns the slot generation.
func (h Handle) Generation() uint32 {
	return uint32(uint64(h)>>indexBits) & MaxGeneration
}

func (h Handle) String() string {
	switch k := h.Kind(); k {
	case KindNull:
		return "null"
	case KindInvalid:
		return fmt.Sprintf("invalid(%#x)", uint64(h))
	default:
		return fmt.Sprintf("%s(%d@%d)", k, h.Index(), h.Generation())
	}
}

// NextGeneration returns the generation following gen, wrapping inside the
// encodable range.
func NextGeneration(gen uint32) uint32 {
	return (gen + 1) & MaxGeneration
}
