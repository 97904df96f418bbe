package logs

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"dubline/internal/logging"
)

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Filter selects log records. The zero value matches every line.
type Filter struct {
	// RunID matches records whose run_id starts with it.
	RunID string
	// MinLevel is one of debug, info, warn or error.
	MinLevel string
}

func (f Filter) empty() bool { return f.RunID == "" && f.MinLevel == "" }

// Match reports whether line is a record f selects. Lines that are not JSON
// only pass an empty filter.
func (f Filter) Match(line string) bool {
	if f.empty() {
		return true
	}
	var rec struct {
		Level string `json:"level"`
		RunID string `json:"run_id"`
	}
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return false
	}
	if f.RunID != "" && !strings.HasPrefix(rec.RunID, f.RunID) {
		return false
	}
	if f.MinLevel != "" {
		want, ok := levelRank[strings.ToLower(f.MinLevel)]
		if ok && levelRank[strings.ToLower(rec.Level)] < want {
			return false
		}
	}
	return true
}

// Render formats a JSON record the way the console logger does:
//
//	15:04:05.000 WARN  pipeline: chunk degraded chunk_index=3
//
// Lines that are not JSON are returned unchanged.
func Render(line string) string {
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return line
	}
	var b strings.Builder
	if ts, ok := rec["ts"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ts = parsed.Local().Format("15:04:05.000")
		}
		b.WriteString(ts)
		b.WriteByte(' ')
	}
	level, _ := rec["level"].(string)
	fmt.Fprintf(&b, "%-5s ", strings.ToUpper(level))
	if component, ok := rec[logging.FieldComponent].(string); ok && component != "" {
		b.WriteString(component)
		b.WriteString(": ")
	}
	msg, _ := rec["msg"].(string)
	b.WriteString(msg)

	keys := make([]string, 0, len(rec))
	for k := range rec {
		switch k {
		case "ts", "level", "msg", logging.FieldComponent:
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, renderValue(rec[k]))
	}
	return b.String()
}

func renderValue(v any) string {
	switch val := v.(type) {
	case string:
		if val == "" || strings.ContainsAny(val, " =\"") {
			return fmt.Sprintf("%q", val)
		}
		return val
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		out, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(out)
	}
}
