package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external binary the dubbing pipeline shells out to.
type Requirement struct {
	Name     string
	Command  string
	Optional bool
}

// Status reports whether a requirement resolved to an executable.
type Status struct {
	Name     string
	Command  string
	Optional bool
	// Path is the resolved executable when Available.
	Path      string
	Available bool
	Detail    string
}

// CheckBinaries resolves each requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = resolve(req)
	}
	return results
}

func resolve(req Requirement) Status {
	st := Status{
		Name:     req.Name,
		Command:  strings.TrimSpace(req.Command),
		Optional: req.Optional,
	}
	if st.Command == "" {
		st.Detail = "command not configured"
		return st
	}
	path, err := exec.LookPath(st.Command)
	if err != nil {
		st.Detail = fmt.Sprintf("binary %q not found", st.Command)
		return st
	}
	st.Path = path
	st.Available = true
	return st
}
