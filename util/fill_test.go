package util

import (
	"encoding/binary"
	"math/rand/v2"
	"testing"

	"github.com/nvr-ai/go-npubench/workload"
	"github.com/stretchr/testify/assert"
	"github.com/x448/float16"
)

func TestNibbles(t *testing.T) {
	for lo := int8(-8); lo <= 7; lo++ {
		for hi := int8(-8); hi <= 7; hi++ {
			gotLo, gotHi := UnpackNibbles(PackNibbles(lo, hi))
			assert.Equal(t, lo, gotLo)
			assert.Equal(t, hi, gotHi)
		}
	}
}

func TestFillRandomFP16(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	buf := make([]byte, 2048)
	FillRandom(workload.PrecisionFP16, buf, rng)

	for i := 0; i < len(buf); i += 2 {
		v := float16.Frombits(binary.LittleEndian.Uint16(buf[i:])).Float32()
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestFillRandomINT8(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	buf := make([]byte, 4096)
	FillRandom(workload.PrecisionINT8, buf, rng)

	var negative, positive int
	for _, b := range buf {
		if int8(b) < 0 {
			negative++
		} else {
			positive++
		}
	}
	assert.Greater(t, negative, 0)
	assert.Greater(t, positive, 0)
}

func TestFillRandomINT4(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	buf := make([]byte, 1024)
	FillRandom(workload.PrecisionINT4, buf, rng)

	seen := map[int8]bool{}
	for _, b := range buf {
		lo, hi := UnpackNibbles(b)
		seen[lo], seen[hi] = true, true
	}
	assert.Len(t, seen, 16)
}
