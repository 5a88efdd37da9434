// Package detector drives fwget, the hardware firmware detector. fwget's
// output format is not under our control; dry-run parsing is deliberately
// tolerant and only trusts tokens that match a managed firmware family.
package detector

import (
	"bufio"
	"context"
	"fmt"
	"sort"
	"strings"

	cm "github.com/pgsdf/pg-manage-firmware/firmware/commandmanager"
	"github.com/pgsdf/pg-manage-firmware/firmware/packagemanager"
	"github.com/pgsdf/pg-manage-firmware/logger"
)

type FwgetDetector struct {
	CommandManager cm.CommandManager
	Command        string
	Families       *packagemanager.FamilySet
}

func (d *FwgetDetector) command() string {
	if d.Command != "" {
		return d.Command
	}
	return "fwget"
}

// DryRun asks fwget what firmware the detected hardware needs, without
// installing anything. It returns the managed package names found in the
// output, deduplicated and sorted.
func (d *FwgetDetector) DryRun(ctx context.Context) ([]string, error) {
	output, err := d.CommandManager.Run(ctx, cm.CommandConfig{
		Command: d.command(),
		Args:    []string{"-n"},
	})
	if err != nil {
		return nil, fmt.Errorf("fwget dry run failed: %w (stderr: %s)", err, strings.TrimSpace(output.STDERR))
	}

	needed := d.parseDryRun(output.STDOUT)
	logger.Log.Debugf("fwget dry run names %d needed firmware packages", len(needed))
	return needed, nil
}

// Apply runs fwget for real, letting it install whatever the detected
// hardware needs.
func (d *FwgetDetector) Apply(ctx context.Context) error {
	output, err := d.CommandManager.Run(ctx, cm.CommandConfig{
		Command: d.command(),
		Sudo:    true,
	})
	if err != nil {
		return fmt.Errorf("fwget apply failed: %w (stderr: %s)", err, strings.TrimSpace(output.STDERR))
	}
	return nil
}

// parseDryRun extracts managed package names from dry-run output. Every
// whitespace-separated token on every line is considered, so banner and
// diagnostic lines fall out naturally.
func (d *FwgetDetector) parseDryRun(output string) []string {
	seen := make(map[string]bool)
	var needed []string

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		for _, token := range strings.Fields(scanner.Text()) {
			token = strings.Trim(token, `"'.,:;`)
			if token == "" || seen[token] || !d.Families.Matches(token) {
				continue
			}
			seen[token] = true
			needed = append(needed, token)
		}
	}

	sort.Strings(needed)
	return needed
}
