package audio

import (
	"fmt"
	"math"
	"time"

	"dubline/internal/services"
)

// Levels are amplitudes normalized to full scale (1.0).
type Levels struct {
	Peak float64
	RMS  float64
	// WindowRMS is the loudest RMS over any analysis window.
	WindowRMS float64
}

// Measure computes peak, overall RMS and loudest-window RMS.
func Measure(c Clip, window time.Duration) Levels {
	if len(c.Samples) == 0 {
		return Levels{}
	}
	size := SamplesFor(window, c.SampleRate)
	if size <= 0 || size > len(c.Samples) {
		size = len(c.Samples)
	}
	var (
		peak      float64
		total     float64
		windowSum float64
		best      float64
	)
	for i, s := range c.Samples {
		v := float64(s) / 32768
		sq := v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
		total += sq
		windowSum += sq
		if i >= size {
			old := float64(c.Samples[i-size]) / 32768
			windowSum -= old * old
		}
		if i >= size-1 && windowSum > best {
			best = windowSum
		}
	}
	if best < 0 {
		best = 0
	}
	return Levels{
		Peak:      peak,
		RMS:       math.Sqrt(total / float64(len(c.Samples))),
		WindowRMS: math.Sqrt(best / float64(size)),
	}
}

// Thresholds define the minimum levels for audio to count as speech.
type Thresholds struct {
	Peak   float64
	RMS    float64
	Window time.Duration
}

// Verify returns an ErrAudioQuality error when the clip is empty or its peak
// or loudest-window RMS falls below the thresholds.
func Verify(c Clip, th Thresholds) (Levels, error) {
	if len(c.Samples) == 0 || c.SampleRate <= 0 {
		return Levels{}, services.Wrap(services.ErrAudioQuality, "audio", "verify", "no audio samples", nil)
	}
	levels := Measure(c, th.Window)
	if levels.Peak < th.Peak || levels.WindowRMS < th.RMS {
		return levels, services.Wrap(services.ErrAudioQuality, "audio", "verify",
			fmt.Sprintf("near-silent output (peak=%.4f rms=%.4f thresholds peak=%.4f rms=%.4f)",
				levels.Peak, levels.WindowRMS, th.Peak, th.RMS), nil)
	}
	return levels, nil
}
