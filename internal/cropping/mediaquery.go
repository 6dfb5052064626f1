package cropping

import (
	"fmt"
	"strings"
)

// Breakpoint bounds a viewport range in CSS pixels. Zero means unbounded.
type Breakpoint struct {
	From int `json:"from" yaml:"from"`
	To   int `json:"to" yaml:"to"`
}

// MediaQuery builds the media query of a size from its breakpoint names.
// Unknown breakpoints and breakpoints without bounds are skipped.
func MediaQuery(breakpoints map[string]Breakpoint, names []string) string {
	var queries []string
	for _, name := range names {
		bp, ok := breakpoints[name]
		if !ok {
			continue
		}
		var constraints []string
		if bp.From > 0 {
			constraints = append(constraints, fmt.Sprintf("(min-width: %dpx)", bp.From))
		}
		if bp.To > 0 {
			constraints = append(constraints, fmt.Sprintf("(max-width: %dpx)", bp.To))
		}
		if len(constraints) == 0 {
			continue
		}
		queries = append(queries, strings.Join(constraints, " and "))
	}
	return strings.Join(queries, ", ")
}
