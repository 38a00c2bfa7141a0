package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSamples(t *testing.T) {
	tests := []struct {
		name    string
		cue     Cue
		samples int
	}{
		{"success", CueSuccess, 160 * 8},
		{"failure", CueFailure, 300 * 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pcm := Samples(tt.cue, 8000)
			assert.Len(t, pcm, tt.samples*2)

			// A sine at 0.25 amplitude sits near 0.25/sqrt(2) of full scale
			level := rms(pcm)
			assert.InDelta(t, 0.25/1.4142*32767, level, 600)
		})
	}
}

func TestSamplesFadeIn(t *testing.T) {
	pcm := Samples(CueSuccess, 8000)
	assert.Equal(t, byte(0), pcm[0])
	assert.Equal(t, byte(0), pcm[1])
}

func TestRMS(t *testing.T) {
	assert.Zero(t, rms(nil))
	assert.Zero(t, rms([]byte{1}))
	assert.Equal(t, 1000.0, rms([]byte{0xe8, 0x03, 0x18, 0xfc}))
}

// rms returns the root mean square level of 16-bit PCM data
func rms(data []byte) float64 {
	numSamples := len(data) / 2
	if numSamples == 0 {
		return 0
	}

	var sumSquares float64
	for i := 0; i < numSamples; i++ {
		sample := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
		sumSquares += float64(sample) * float64(sample)
	}
	return math.Sqrt(sumSquares / float64(numSamples))
}
