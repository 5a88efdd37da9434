package packagemanager

import (
	"fmt"
	"regexp"
	"sort"
)

// Default managed firmware families. A package is managed, and therefore
// subject to pruning and reinstallation, when its name matches one of
// these patterns. Anything else is never touched.
var defaultFamilyPatterns = []string{
	`^linux-firmware(-[a-z0-9]+)*$`,
	`^wifi-firmware(-[a-z0-9]+)*$`,
	`^sof-firmware$`,
	`^bluez-firmware$`,
	`^(amd|intel)-ucode$`,
}

// Families whose removal can take down the connection the operator is
// using. Pruning these while in an SSH session gets an extra gate.
var networkSensitivePattern = regexp.MustCompile(`^(wifi-firmware|linux-firmware)`)

// FamilySet is the compiled set of managed firmware family patterns.
type FamilySet struct {
	patterns []*regexp.Regexp
}

// NewFamilySet compiles the default family patterns plus any extras from
// the config file.
func NewFamilySet(extra ...string) (*FamilySet, error) {
	fs := &FamilySet{}
	for _, p := range append(append([]string{}, defaultFamilyPatterns...), extra...) {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid firmware family pattern %q: %w", p, err)
		}
		fs.patterns = append(fs.patterns, re)
	}
	return fs, nil
}

// Matches reports whether the package name belongs to a managed family.
func (fs *FamilySet) Matches(name string) bool {
	for _, re := range fs.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// FilterSorted returns the managed subset of names, deduplicated and sorted.
func (fs *FamilySet) FilterSorted(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range names {
		if name == "" || seen[name] || !fs.Matches(name) {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// AnyNetworkSensitive reports whether any of the names belongs to a family
// that can carry the firmware behind the active network link.
func (fs *FamilySet) AnyNetworkSensitive(names []string) bool {
	for _, name := range names {
		if networkSensitivePattern.MatchString(name) {
			return true
		}
	}
	return false
}
