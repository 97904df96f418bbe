package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes name with args and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command through os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// CheckFFmpegFilters verifies that the ffmpeg binary at command ships every
// filter in filters, so a stripped-down build fails here rather than mid-run.
func CheckFFmpegFilters(ctx context.Context, command string, run Runner, filters ...string) Status {
	status := Status{Name: "FFmpeg filters", Command: strings.TrimSpace(command)}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	if run == nil {
		run = ExecRunner
	}
	out, err := run(ctx, status.Command, "-hide_banner", "-filters")
	if err != nil {
		status.Detail = fmt.Sprintf("list filters: %v", err)
		return status
	}
	available := parseFilterList(out)
	var missing []string
	for _, name := range filters {
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		status.Detail = "missing filters: " + strings.Join(missing, ", ")
		return status
	}
	status.Available = true
	return status
}

// parseFilterList reads `ffmpeg -filters` output. Filter rows carry a flag
// column followed by the filter name and its pad signature (e.g. "A->A").
func parseFilterList(out []byte) map[string]struct{} {
	names := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || !strings.Contains(fields[2], "->") {
			continue
		}
		names[fields[1]] = struct{}{}
	}
	return names
}
