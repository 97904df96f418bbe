package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Clip is mono signed 16-bit PCM.
type Clip struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the clip length.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Seconds returns the clip length in seconds.
func (c Clip) Seconds() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// SamplesFor converts a duration to a sample count at rate, rounding to nearest.
func SamplesFor(d time.Duration, rate int) int {
	if d <= 0 || rate <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * float64(rate)))
}

// SamplesForSeconds converts seconds to a sample count at rate.
func SamplesForSeconds(seconds float64, rate int) int {
	if seconds <= 0 || rate <= 0 {
		return 0
	}
	return int(math.Round(seconds * float64(rate)))
}

// Silence returns a zeroed clip of duration d.
func Silence(rate int, d time.Duration) Clip {
	return Clip{Samples: make([]int16, SamplesFor(d, rate)), SampleRate: rate}
}

// FromPCM16LE decodes interleaved little-endian 16-bit PCM, averaging
// channels down to mono.
func FromPCM16LE(data []byte, rate, channels int) (Clip, error) {
	if rate <= 0 {
		return Clip{}, fmt.Errorf("pcm: invalid sample rate %d", rate)
	}
	if channels <= 0 {
		channels = 1
	}
	frameBytes := 2 * channels
	if len(data)%frameBytes != 0 {
		data = data[:len(data)-len(data)%frameBytes]
	}
	frames := len(data) / frameBytes
	samples := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for ch := 0; ch < channels; ch++ {
			off := i*frameBytes + ch*2
			sum += int(int16(binary.LittleEndian.Uint16(data[off:])))
		}
		samples[i] = int16(sum / channels)
	}
	return Clip{Samples: samples, SampleRate: rate}, nil
}

// PCM16LE encodes the clip as little-endian 16-bit PCM.
func (c Clip) PCM16LE() []byte {
	out := make([]byte, len(c.Samples)*2)
	for i, s := range c.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Clone returns a deep copy.
func (c Clip) Clone() Clip {
	samples := make([]int16, len(c.Samples))
	copy(samples, c.Samples)
	return Clip{Samples: samples, SampleRate: c.SampleRate}
}

// FitLength returns a copy trimmed or zero-padded to exactly n samples.
func (c Clip) FitLength(n int) Clip {
	if n < 0 {
		n = 0
	}
	samples := make([]int16, n)
	copy(samples, c.Samples)
	return Clip{Samples: samples, SampleRate: c.SampleRate}
}

func clamp16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(math.Round(v))
	}
}
