// Package plan computes what the pipeline will do: which managed firmware
// packages get pruned and which ones the detector still has to install.
package plan

import (
	"fmt"
	"sort"
	"strings"
)

// Plan holds the deduplicated, sorted package sets for one run.
type Plan struct {
	Needed    []string
	Installed []string
	Remove    []string
	Missing   []string
}

// Compute builds the plan from the detector's needed set and the package
// manager's installed set. Inputs may contain duplicates in any order.
func Compute(needed, installed []string) Plan {
	n := Dedupe(needed)
	i := Dedupe(installed)
	return Plan{
		Needed:    n,
		Installed: i,
		Remove:    Difference(i, n),
		Missing:   Difference(n, i),
	}
}

// Empty reports whether the run has nothing to do.
func (p Plan) Empty() bool {
	return len(p.Remove) == 0 && len(p.Missing) == 0
}

// Render returns the human-readable plan report.
func (p Plan) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Firmware required by detected hardware (%d):\n", len(p.Needed))
	writeList(&b, p.Needed)
	fmt.Fprintf(&b, "Managed firmware currently installed (%d):\n", len(p.Installed))
	writeList(&b, p.Installed)
	fmt.Fprintf(&b, "To remove (%d):\n", len(p.Remove))
	writeList(&b, p.Remove)
	fmt.Fprintf(&b, "To install (%d):\n", len(p.Missing))
	writeList(&b, p.Missing)

	return b.String()
}

func writeList(b *strings.Builder, names []string) {
	if len(names) == 0 {
		b.WriteString("  (none)\n")
		return
	}
	for _, name := range names {
		fmt.Fprintf(b, "  %s\n", name)
	}
}

// Dedupe returns a sorted copy of names with duplicates and empty strings
// removed.
func Dedupe(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Difference returns the elements of a that are not in b, sorted.
func Difference(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, name := range b {
		inB[name] = true
	}
	var out []string
	for _, name := range Dedupe(a) {
		if !inB[name] {
			out = append(out, name)
		}
	}
	return out
}
