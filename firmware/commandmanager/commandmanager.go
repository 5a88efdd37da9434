package commandmanager

import (
	"context"
	"time"
)

// CommandConfig describes a single external command invocation.
type CommandConfig struct {
	Command string
	Args    []string
	Env     []string
	Sudo    bool
}

// CommandResult encapsulates the results from a command execution.
type CommandResult struct {
	Command   string
	STDOUT    string
	STDERR    string
	ExitCode  int
	Duration  time.Duration
	Timestamp time.Time
}

// CommandManager executes commands either on the local system or on a
// remote host over SSH, depending on how it was configured.
type CommandManager interface {
	// Run dispatches to the local or remote path based on the target host.
	Run(ctx context.Context, config CommandConfig) (CommandResult, error)

	// RunLocal executes a command on the local system.
	RunLocal(ctx context.Context, config CommandConfig) (CommandResult, error)

	// RunRemote executes a command on the target host via SSH.
	RunRemote(ctx context.Context, config CommandConfig) (CommandResult, error)

	// LookPath reports the resolved path of an executable on the target
	// host, or an error when the tool is not available there.
	LookPath(ctx context.Context, name string) (string, error)
}
