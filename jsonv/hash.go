package jsonv

import (
	"github.com/cespare/xxhash/v2"
)

// Hash returns the xxHash64 of the canonical text of v.
//
// Equal values with the same number representation hash equally. An
// integer and a float of equal value hash equally whenever they dump to
// the same text (1 and 1.0 both dump as "1").
func (v *Value) Hash() uint64 {
	return xxhash.Sum64(AppendDump(make([]byte, 0, 64), v))
}

// HashString returns the xxHash64 of a canonical text, for callers that
// already hold Dump output.
func HashString(canonical string) uint64 {
	return xxhash.Sum64String(canonical)
}
