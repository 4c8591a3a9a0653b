// Package util - Operand buffer helpers.
package util

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/nvr-ai/go-npubench/workload"
	"github.com/x448/float16"
)

// FillRandom overwrites buf with uniformly distributed values valid for the precision.
//
//   - INT8: each byte is a signed value in [-128, 127].
//   - INT4: each byte holds two signed nibbles in [-8, 7], low nibble first.
//   - FP16: each little-endian half is a value in [-1, 1].
//
// Arguments:
//   - p: The operand precision.
//   - buf: The buffer to fill.
//   - rng: The random source.
func FillRandom(p workload.Precision, buf []byte, rng *rand.Rand) {
	switch p {
	case workload.PrecisionFP16:
		for i := 0; i+1 < len(buf); i += 2 {
			h := float16.Fromfloat32(rng.Float32()*2 - 1)
			binary.LittleEndian.PutUint16(buf[i:], h.Bits())
		}
	case workload.PrecisionINT4:
		for i := range buf {
			lo := int8(rng.IntN(16) - 8)
			hi := int8(rng.IntN(16) - 8)
			buf[i] = PackNibbles(lo, hi)
		}
	default:
		for i := range buf {
			buf[i] = byte(int8(rng.IntN(256) - 128))
		}
	}
}

// PackNibbles stores two signed 4-bit values in one byte, lo in the low nibble.
func PackNibbles(lo, hi int8) byte {
	return byte(lo)&0x0f | byte(hi)<<4
}

// UnpackNibbles is the inverse of PackNibbles.
func UnpackNibbles(b byte) (lo, hi int8) {
	lo = int8(b<<4) >> 4
	hi = int8(b) >> 4
	return lo, hi
}
