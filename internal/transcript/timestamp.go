package transcript

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxTimestamp is the latest accepted time in seconds (24h).
const MaxTimestamp = 24 * 60 * 60

// ParseTimestamp accepts raw seconds ("12.5") or clock strings
// ("HH:MM:SS.mmm", "HH:MM:SS,mmm", "MM:SS.mmm").
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	if !strings.Contains(value, ":") {
		seconds, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
		if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		if seconds > MaxTimestamp {
			return 0, fmt.Errorf("timestamp %q beyond 24h", value)
		}
		return seconds, nil
	}

	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	var hours, minutes int
	var err error
	if len(parts) == 3 {
		if hours, err = strconv.Atoi(parts[0]); err != nil || hours < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		if hours > 24 {
			return 0, fmt.Errorf("timestamp %q beyond 24h", value)
		}
		parts = parts[1:]
	}
	if minutes, err = strconv.Atoi(parts[0]); err != nil || minutes < 0 || minutes >= 60 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	secText := strings.ReplaceAll(parts[1], ",", ".")
	seconds, err := strconv.ParseFloat(secText, 64)
	if err != nil || seconds < 0 || seconds >= 60 || strings.HasPrefix(secText, "+") {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	total := float64(hours*3600+minutes*60) + seconds
	if total > MaxTimestamp {
		return 0, fmt.Errorf("timestamp %q beyond 24h", value)
	}
	return total, nil
}

// FormatTimestamp renders seconds as HH:MM:SS.mmm.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(math.Round(seconds * 1000))
	hours := totalMillis / 3_600_000
	totalMillis -= hours * 3_600_000
	minutes := totalMillis / 60_000
	totalMillis -= minutes * 60_000
	secs := totalMillis / 1000
	millis := totalMillis - secs*1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, millis)
}

// FormatRange renders a start/end pair as "HH:MM:SS.mmm-HH:MM:SS.mmm".
func FormatRange(start, end float64) string {
	return FormatTimestamp(start) + "-" + FormatTimestamp(end)
}
