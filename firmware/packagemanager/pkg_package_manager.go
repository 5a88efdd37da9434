package packagemanager

import (
	"context"
	"fmt"
	"strings"

	cm "github.com/pgsdf/pg-manage-firmware/firmware/commandmanager"
	"github.com/pgsdf/pg-manage-firmware/logger"
)

// PkgManager drives the system package manager `pkg` for the managed
// firmware families. The query output format is one package name per line,
// optionally followed by whitespace-separated version columns.
type PkgManager struct {
	CommandManager cm.CommandManager
	Command        string
	Families       *FamilySet
}

func (pm *PkgManager) command() string {
	if pm.Command != "" {
		return pm.Command
	}
	return "pkg"
}

// ListManaged returns the installed packages belonging to a managed
// firmware family, deduplicated and sorted.
func (pm *PkgManager) ListManaged(ctx context.Context) ([]string, error) {
	output, err := pm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: pm.command(),
		Args:    []string{"query", "--installed"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query installed packages: %w", err)
	}

	lines := strings.Split(output.STDOUT, "\n")
	var names []string
	for _, line := range lines {
		parts := strings.Fields(line)
		if len(parts) > 0 {
			names = append(names, parts[0])
		}
	}

	managed := pm.Families.FilterSorted(names)
	logger.Log.Debugf("pkg reports %d installed packages, %d managed", len(names), len(managed))
	return managed, nil
}

// Remove uninstalls a single package.
func (pm *PkgManager) Remove(ctx context.Context, pkg string) error {
	_, err := pm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: pm.command(),
		Args:    []string{"remove", "-y", pkg},
		Sudo:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", pkg, err)
	}
	return nil
}

// Install installs the given packages in one transaction.
func (pm *PkgManager) Install(ctx context.Context, pkgs []string) error {
	if len(pkgs) == 0 {
		return nil
	}
	_, err := pm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: pm.command(),
		Args:    append([]string{"install", "-y"}, pkgs...),
		Sudo:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to install %s: %w", strings.Join(pkgs, " "), err)
	}
	return nil
}

// Check runs the package manager's integrity check over the given packages.
func (pm *PkgManager) Check(ctx context.Context, pkgs []string) error {
	if len(pkgs) == 0 {
		return nil
	}
	output, err := pm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: pm.command(),
		Args:    append([]string{"check"}, pkgs...),
	})
	if err != nil {
		return fmt.Errorf("pkg check failed: %w (stderr: %s)", err, strings.TrimSpace(output.STDERR))
	}
	return nil
}
