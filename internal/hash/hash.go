// Package hash provides order-independent structural hashing over decoded
// record field trees (the map/slice/scalar shapes produced by encoding/json).
package hash

import (
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Type tags keep values of different kinds from colliding on equal byte
// representations (e.g. the string "1" vs the number 1).
const (
	tagNil    = "\x00n"
	tagBool   = "\x00b"
	tagNumber = "\x00f"
	tagString = "\x00s"
	tagMap    = "\x00m"
	tagSlice  = "\x00l"
)

// Sum returns a structural hash of v in which mappings and sequences hash
// equal regardless of enumeration order: two trees that differ only in the
// ordering of map keys or sibling collection elements produce the same sum.
func Sum(v any) uint64 {
	return sum(v, false)
}

// Ordered is Sum with order-sensitive sequences. Mappings still hash
// independently of key order. Used for fields that are a chronological
// narrative rather than a set, such as bill actions.
func Ordered(v any) uint64 {
	return sum(v, true)
}

func sum(v any, ordered bool) uint64 {
	switch val := v.(type) {
	case nil:
		return xxhash.Sum64String(tagNil)
	case bool:
		if val {
			return xxhash.Sum64String(tagBool + "1")
		}
		return xxhash.Sum64String(tagBool + "0")
	case float64:
		return xxhash.Sum64String(tagNumber + strconv.FormatFloat(val, 'g', -1, 64))
	case int:
		return xxhash.Sum64String(tagNumber + strconv.FormatFloat(float64(val), 'g', -1, 64))
	case int64:
		return xxhash.Sum64String(tagNumber + strconv.FormatFloat(float64(val), 'g', -1, 64))
	case string:
		return xxhash.Sum64String(tagString + val)
	case map[string]any:
		// Commutative combine over key/value pairs: enumeration order of the
		// map never influences the result.
		var acc uint64
		for k, mv := range val {
			acc += mix(xxhash.Sum64String(tagString+k), sum(mv, ordered))
		}
		return mix(xxhash.Sum64String(tagMap), acc)
	case []any:
		if ordered {
			d := xxhash.New()
			d.WriteString(tagSlice) //nolint:errcheck
			for _, e := range val {
				var buf [8]byte
				putUint64(buf[:], sum(e, ordered))
				d.Write(buf[:]) //nolint:errcheck
			}
			return d.Sum64()
		}
		// Multiset combine: element hashes are summed, so sibling order is
		// irrelevant but multiplicity still matters.
		var acc uint64
		for _, e := range val {
			acc += sum(e, ordered)
		}
		return mix(xxhash.Sum64String(tagSlice), acc)
	default:
		// Shapes outside the JSON model should never reach the hasher; fold
		// them to a fixed sentinel rather than panicking mid-batch.
		return math.MaxUint64
	}
}

// mix combines two 64-bit hashes non-commutatively.
func mix(a, b uint64) uint64 {
	var buf [16]byte
	putUint64(buf[:8], a)
	putUint64(buf[8:], b)
	return xxhash.Sum64(buf[:])
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
