package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dubline/internal/services"
	"dubline/internal/textutil"
)

// Segment is a single timestamped transcript unit, times in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Duration returns End-Start.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Format identifies a transcript encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatSRT  Format = "srt"
)

// FormatFromPath infers the transcript format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".srt":
		return FormatSRT, nil
	default:
		return "", services.Wrap(services.ErrValidation, "transcript", "detect format",
			fmt.Sprintf("unsupported transcript extension %q", filepath.Ext(path)), nil)
	}
}

// Load reads and parses the transcript at path. Segments are returned in
// file order with text normalized; ordering is not checked here.
func Load(path string) ([]Segment, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return Parse(data, format)
}

// Parse decodes transcript bytes in the given format.
func Parse(data []byte, format Format) ([]Segment, error) {
	var (
		segments []Segment
		err      error
	)
	switch format {
	case FormatJSON:
		segments, err = parseJSON(data)
	case FormatSRT:
		segments, err = parseSRT(data)
	default:
		return nil, services.Wrap(services.ErrValidation, "transcript", "parse",
			fmt.Sprintf("unsupported format %q", format), nil)
	}
	if err != nil {
		return nil, err
	}
	for i := range segments {
		segments[i].Text = textutil.NormalizeText(segments[i].Text)
	}
	return segments, nil
}

// timeValue accepts either a JSON number or a timestamp string.
type timeValue float64

func (t *timeValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		seconds, err := ParseTimestamp(s)
		if err != nil {
			return err
		}
		*t = timeValue(seconds)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid time value %s", string(data))
	}
	*t = timeValue(f)
	return nil
}

type jsonSegment struct {
	Start *timeValue `json:"start"`
	End   *timeValue `json:"end"`
	Text  string     `json:"text"`
}

func parseJSON(data []byte) ([]Segment, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, services.Wrap(services.ErrValidation, "transcript", "parse json", "empty transcript", nil)
	}
	var records []jsonSegment
	if trimmed[0] == '{' {
		var wrapper struct {
			Segments []jsonSegment `json:"segments"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, services.Wrap(services.ErrValidation, "transcript", "parse json", "decode", err)
		}
		records = wrapper.Segments
	} else if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, services.Wrap(services.ErrValidation, "transcript", "parse json", "decode", err)
	}

	segments := make([]Segment, 0, len(records))
	for i, rec := range records {
		if rec.Start == nil || rec.End == nil {
			return nil, services.Wrap(services.ErrValidation, "transcript", "parse json",
				fmt.Sprintf("segment %d missing start or end", i), nil)
		}
		segments = append(segments, Segment{Start: float64(*rec.Start), End: float64(*rec.End), Text: rec.Text})
	}
	return segments, nil
}

func parseSRT(data []byte) ([]Segment, error) {
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	content = strings.TrimPrefix(content, "\ufeff")
	blocks := strings.Split(strings.TrimSpace(content), "\n\n")

	var segments []Segment
	for n, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		timingIdx := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timingIdx = i
				break
			}
		}
		if timingIdx < 0 || timingIdx > 1 {
			return nil, services.Wrap(services.ErrValidation, "transcript", "parse srt",
				fmt.Sprintf("cue %d has no timing line", n+1), nil)
		}
		parts := strings.SplitN(lines[timingIdx], "-->", 2)
		start, err := ParseTimestamp(parts[0])
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "transcript", "parse srt",
				fmt.Sprintf("cue %d start", n+1), err)
		}
		endField := strings.Fields(parts[1])
		if len(endField) == 0 {
			return nil, services.Wrap(services.ErrValidation, "transcript", "parse srt",
				fmt.Sprintf("cue %d missing end", n+1), nil)
		}
		end, err := ParseTimestamp(endField[0])
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "transcript", "parse srt",
				fmt.Sprintf("cue %d end", n+1), err)
		}
		segments = append(segments, Segment{
			Start: start,
			End:   end,
			Text:  strings.Join(lines[timingIdx+1:], " "),
		})
	}
	return segments, nil
}
