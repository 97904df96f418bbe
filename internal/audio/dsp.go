package audio

import (
	"math"
	"time"
)

// Smoothstep returns 3t^2 - 2t^3 for t clamped to [0,1].
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// FadeEdges returns a copy with a smoothstep fade-in and fade-out of length
// fade applied. Fades are shortened to half the clip when it is too short.
func FadeEdges(c Clip, fade time.Duration) Clip {
	out := c.Clone()
	n := SamplesFor(fade, c.SampleRate)
	if half := len(out.Samples) / 2; n > half {
		n = half
	}
	if n <= 0 {
		return out
	}
	last := len(out.Samples) - 1
	for i := 0; i < n; i++ {
		gain := Smoothstep(float64(i) / float64(n))
		out.Samples[i] = clamp16(float64(out.Samples[i]) * gain)
		out.Samples[last-i] = clamp16(float64(out.Samples[last-i]) * gain)
	}
	return out
}

// FadeOutTail applies a smoothstep fade-out over the last fade of the clip.
func FadeOutTail(c Clip, fade time.Duration) Clip {
	out := c.Clone()
	n := SamplesFor(fade, c.SampleRate)
	if n > len(out.Samples) {
		n = len(out.Samples)
	}
	last := len(out.Samples) - 1
	for i := 0; i < n; i++ {
		gain := Smoothstep(float64(i) / float64(n))
		out.Samples[last-i] = clamp16(float64(out.Samples[last-i]) * gain)
	}
	return out
}

// Resample converts the clip to rate using linear interpolation.
func Resample(c Clip, rate int) Clip {
	if rate <= 0 || c.SampleRate <= 0 || rate == c.SampleRate || len(c.Samples) == 0 {
		out := c.Clone()
		if rate > 0 {
			out.SampleRate = rate
		}
		return out
	}
	n := int(math.Round(float64(len(c.Samples)) * float64(rate) / float64(c.SampleRate)))
	out := make([]int16, n)
	step := float64(c.SampleRate) / float64(rate)
	last := len(c.Samples) - 1
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = c.Samples[last]
			continue
		}
		frac := pos - float64(idx)
		a := float64(c.Samples[idx])
		b := float64(c.Samples[idx+1])
		out[i] = clamp16(a + (b-a)*frac)
	}
	return Clip{Samples: out, SampleRate: rate}
}

// Sine generates a sine tone; amplitude is relative to full scale.
func Sine(rate int, freq, amplitude float64, d time.Duration) Clip {
	n := SamplesFor(d, rate)
	samples := make([]int16, n)
	for i := range samples {
		v := amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
		samples[i] = clamp16(v * math.MaxInt16)
	}
	return Clip{Samples: samples, SampleRate: rate}
}
