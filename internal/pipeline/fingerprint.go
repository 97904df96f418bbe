package pipeline

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"slices"

	"dubline/internal/chunker"
	"dubline/internal/config"
	"dubline/internal/transcript"
)

// Fingerprint identifies the inputs a checkpoint was built from: the
// normalized segments, the chunking bounds, and the settings that shape
// translated text and voice.
func Fingerprint(segments []transcript.Segment, opts chunker.Options, cfg *config.Config) string {
	h := sha256.New()
	writeInt(h, int64(len(segments)))
	for _, seg := range segments {
		writeFloat(h, seg.Start)
		writeFloat(h, seg.End)
		writeString(h, seg.Text)
	}
	writeInt(h, int64(opts.MaxDuration))
	writeInt(h, int64(opts.MinDuration))
	writeInt(h, int64(opts.Lookback))
	writeInt(h, int64(opts.MaxChars))
	if cfg != nil {
		writeString(h, cfg.Synthesis.Provider)
		writeString(h, cfg.Synthesis.Voice)
		writeTranslation(h, cfg.Translation)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Disabled translation passes text through, so its style settings are ignored.
func writeTranslation(h hash.Hash, t config.Translation) {
	writeBool(h, t.Enabled)
	if !t.Enabled {
		return
	}
	writeString(h, t.Model)
	writeString(h, t.SourceLanguage)
	writeString(h, t.TargetLanguage)
	writeString(h, t.Tone)
	writeString(h, t.Formality)
	terms := make([]string, 0, len(t.Glossary))
	for term := range t.Glossary {
		terms = append(terms, term)
	}
	slices.Sort(terms)
	writeInt(h, int64(len(terms)))
	for _, term := range terms {
		writeString(h, term)
		writeString(h, t.Glossary[term])
	}
}

func writeInt(h hash.Hash, v int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	h.Write(buf[:])
}

func writeFloat(h hash.Hash, v float64) {
	writeInt(h, int64(math.Float64bits(v)))
}

func writeString(h hash.Hash, s string) {
	writeInt(h, int64(len(s)))
	h.Write([]byte(s))
}

func writeBool(h hash.Hash, v bool) {
	if v {
		writeInt(h, 1)
		return
	}
	writeInt(h, 0)
}
