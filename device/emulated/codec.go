package emulated

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-npubench/util"
	"github.com/nvr-ai/go-npubench/workload"
	"github.com/x448/float16"
)

// Largest float32 values that convert to the integer type without overflow.
const (
	maxInt32F = float32(2147483520)
	minInt32F = float32(math.MinInt32)
	maxInt16F = float32(math.MaxInt16)
	minInt16F = float32(math.MinInt16)
)

// decode expands packed operand bytes into dst.
func decode(p workload.Precision, src []byte, dst []float32) {
	switch p {
	case workload.PrecisionFP16:
		for i := range dst {
			dst[i] = float16.Frombits(binary.LittleEndian.Uint16(src[2*i:])).Float32()
		}
	case workload.PrecisionINT4:
		for i := 0; i < len(dst); i += 2 {
			lo, hi := util.UnpackNibbles(src[i/2])
			dst[i] = float32(lo)
			if i+1 < len(dst) {
				dst[i+1] = float32(hi)
			}
		}
	default:
		for i := range dst {
			dst[i] = float32(int8(src[i]))
		}
	}
}

// encode stores the accumulator values in the precision's output type, rounding and
// saturating integer outputs.
func encode(p workload.Precision, src []float32, dst []byte) {
	switch p {
	case workload.PrecisionFP16:
		for i, v := range src {
			binary.LittleEndian.PutUint32(dst[4*i:], math32.Float32bits(v))
		}
	case workload.PrecisionINT4:
		for i, v := range src {
			binary.LittleEndian.PutUint16(dst[2*i:], uint16(int16(saturate(v, minInt16F, maxInt16F))))
		}
	default:
		for i, v := range src {
			binary.LittleEndian.PutUint32(dst[4*i:], uint32(int32(saturate(v, minInt32F, maxInt32F))))
		}
	}
}

func saturate(v, lo, hi float32) float32 {
	if math32.IsNaN(v) {
		return 0
	}
	return math32.Max(lo, math32.Min(hi, math32.Floor(v+0.5)))
}

// DecodeOutput reads a C buffer written by Run back into float32 values.
func DecodeOutput(p workload.Precision, src []byte, n int) []float32 {
	out := make([]float32, n)
	switch p {
	case workload.PrecisionFP16:
		for i := range out {
			out[i] = math32.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
		}
	case workload.PrecisionINT4:
		for i := range out {
			out[i] = float32(int16(binary.LittleEndian.Uint16(src[2*i:])))
		}
	default:
		for i := range out {
			out[i] = float32(int32(binary.LittleEndian.Uint32(src[4*i:])))
		}
	}
	return out
}
