package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"dubline/internal/fileutil"
)

const bitDepth = 16

// ReadWAV decodes a PCM WAV file into a mono clip.
func ReadWAV(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Clip{}, fmt.Errorf("decode wav %s: not a valid wav file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("decode wav %s: %w", path, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.SampleRate <= 0 {
		return Clip{}, fmt.Errorf("decode wav %s: missing format", path)
	}
	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	depth := int(dec.BitDepth)
	frames := len(buf.Data) / channels
	samples := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for ch := 0; ch < channels; ch++ {
			sum += to16(buf.Data[i*channels+ch], depth)
		}
		samples[i] = int16(sum / channels)
	}
	return Clip{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

func to16(v, depth int) int {
	switch {
	case depth == 8:
		return (v - 128) << 8
	case depth > 16:
		return v >> (depth - 16)
	default:
		return v
	}
}

// WriteWAV atomically writes the clip as a mono 16-bit WAV file.
func WriteWAV(path string, c Clip) error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("write wav %s: invalid sample rate %d", path, c.SampleRate)
	}
	return fileutil.WriteAtomic(path, 0o644, func(f *os.File) error {
		enc := wav.NewEncoder(f, c.SampleRate, bitDepth, 1, 1)
		data := make([]int, len(c.Samples))
		for i, s := range c.Samples {
			data[i] = int(s)
		}
		buf := &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: 1, SampleRate: c.SampleRate},
			Data:           data,
			SourceBitDepth: bitDepth,
		}
		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("encode wav: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("finalize wav: %w", err)
		}
		return nil
	})
}
