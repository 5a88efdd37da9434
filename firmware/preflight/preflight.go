// Package preflight checks the preconditions the pipeline refuses to run
// without: root privileges, both external tools resolvable, and awareness
// of the operator's SSH session.
package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	multierror "github.com/hashicorp/go-multierror"

	cm "github.com/pgsdf/pg-manage-firmware/firmware/commandmanager"
	"github.com/pgsdf/pg-manage-firmware/logger"
)

// Overridable in tests.
var geteuid = os.Geteuid

// Checker validates the environment before any external tool runs.
type Checker struct {
	CommandManager cm.CommandManager
	Hostname       string
	PkgCommand     string
	FwgetCommand   string

	// AllowSudo relaxes the root requirement when a sudo password was
	// provided for privilege elevation.
	AllowSudo bool
}

// Check runs every precondition and returns all failures at once.
func (c *Checker) Check(ctx context.Context) error {
	var result *multierror.Error

	if err := c.requireRoot(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	for _, tool := range []string{c.PkgCommand, c.FwgetCommand} {
		if err := c.requireTool(ctx, tool); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

func (c *Checker) requireRoot(ctx context.Context) error {
	if c.AllowSudo {
		return nil
	}

	if c.isLocal() {
		if geteuid() != 0 {
			return fmt.Errorf("this tool must run as root (or provide a sudo password with --sudo-password)")
		}
		return nil
	}

	result, err := c.CommandManager.Run(ctx, cm.CommandConfig{Command: "id", Args: []string{"-u"}})
	if err != nil {
		return fmt.Errorf("cannot determine remote user on %s: %w", c.Hostname, err)
	}
	if strings.TrimSpace(result.STDOUT) != "0" {
		return fmt.Errorf("remote user on %s is not root (or provide a sudo password with --sudo-password)", c.Hostname)
	}
	return nil
}

func (c *Checker) requireTool(ctx context.Context, name string) error {
	path, err := c.CommandManager.LookPath(ctx, name)
	if err != nil {
		return fmt.Errorf("required tool %s is not available: %w", name, err)
	}
	logger.Log.Debugf("Found %s at %s", name, path)
	return nil
}

func (c *Checker) isLocal() bool {
	return c.Hostname == "" || c.Hostname == "localhost" || c.Hostname == "127.0.0.1"
}

// InSSHSession reports whether this process was started from an SSH
// session. Pruning network firmware in that situation can sever the
// connection mid-run, so the caller adds an extra confirmation gate.
func InSSHSession() bool {
	return os.Getenv("SSH_CONNECTION") != "" || os.Getenv("SSH_TTY") != ""
}
