package commandmanager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/pgsdf/pg-manage-firmware/common"
	"github.com/pgsdf/pg-manage-firmware/firmware/sshmanager"
	"github.com/pgsdf/pg-manage-firmware/logger"
)

// SSHDialer dials and establishes an SSH connection.
type SSHDialer interface {
	Dial(network, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error)
}

// RealSSHClient is the production SSHDialer.
type RealSSHClient struct{}

func (c *RealSSHClient) Dial(network, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	config.Timeout = timeout
	return ssh.Dial(network, addr, config)
}

// UnixCommandManager runs commands on a Unix host. Commands targeting
// localhost run via exec; anything else goes over SSH.
type UnixCommandManager struct {
	Hostname  string
	SSHClient SSHDialer
	common.Credentials
}

func (u *UnixCommandManager) Run(ctx context.Context, config CommandConfig) (CommandResult, error) {
	if u.isLocal() {
		logger.Log.Debugf("Running local command: %s %s", config.Command, strings.Join(config.Args, " "))
		return u.RunLocal(ctx, config)
	}

	logger.Log.Debugf("Running remote command on %s: %s %s", u.Hostname, config.Command, strings.Join(config.Args, " "))
	return u.RunRemote(ctx, config)
}

func (u *UnixCommandManager) RunLocal(ctx context.Context, config CommandConfig) (CommandResult, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, config.Command, config.Args...)
	if config.Sudo && u.SudoPassword != "" {
		cmdArgs := append([]string{"sudo", "-S", config.Command}, config.Args...)
		cmd = exec.CommandContext(ctx, cmdArgs[0], cmdArgs[1:]...)
		cmd.Stdin = strings.NewReader(u.SudoPassword + "\n")
	}
	if len(config.Env) > 0 {
		cmd.Env = append(os.Environ(), config.Env...)
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := CommandResult{
		Command:   config.Command,
		STDOUT:    stdout.String(),
		STDERR:    stderr.String(),
		ExitCode:  getExitCode(err),
		Duration:  time.Since(start),
		Timestamp: start,
	}

	if sudoErr := checkSudoErrors(result); sudoErr != nil {
		return result, sudoErr
	}

	return result, err
}

func (u *UnixCommandManager) RunRemote(ctx context.Context, config CommandConfig) (CommandResult, error) {
	if u.SSHClient == nil {
		return CommandResult{}, errors.New("SSH client is not initialized")
	}

	sshConfig, err := u.getSSHConfig()
	if err != nil {
		return CommandResult{}, err
	}

	dialTimeout := 15 * time.Minute
	if deadline, ok := ctx.Deadline(); ok {
		dialTimeout = time.Until(deadline)
	}

	client, err := u.SSHClient.Dial("tcp", u.Hostname+":22", sshConfig, dialTimeout)
	if err != nil {
		return CommandResult{}, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return CommandResult{}, err
	}
	defer session.Close()

	cmdStr := config.Command
	if len(config.Args) > 0 {
		cmdStr += " " + strings.Join(config.Args, " ")
	}
	for i := len(config.Env) - 1; i >= 0; i-- {
		cmdStr = config.Env[i] + " " + cmdStr
	}
	if config.Sudo && u.SudoPassword != "" {
		cmdStr = "sudo -S " + cmdStr
		session.Stdin = strings.NewReader(u.SudoPassword + "\n")
	}

	start := time.Now()

	var stdout, stderr strings.Builder
	session.Stdout = &stdout
	session.Stderr = &stderr

	outputCh := make(chan error, 1)
	go func() {
		outputCh <- session.Run(cmdStr)
	}()

	select {
	case runErr := <-outputCh:
		result := CommandResult{
			Command:   cmdStr,
			STDOUT:    stdout.String(),
			STDERR:    stderr.String(),
			ExitCode:  getSSHExitCode(runErr),
			Duration:  time.Since(start),
			Timestamp: start,
		}
		if runErr != nil {
			logger.Log.Errorf("Command over SSH failed: %s: %v", cmdStr, runErr)
		}
		if sudoErr := checkSudoErrors(result); sudoErr != nil {
			return result, sudoErr
		}
		return result, runErr

	case <-ctx.Done():
		logger.Log.Errorf("Command over SSH timed out: %s", cmdStr)
		return CommandResult{}, ctx.Err()
	}
}

// LookPath resolves an executable on the target host. Remotely this runs
// through the login shell so the builtin `command -v` is available.
func (u *UnixCommandManager) LookPath(ctx context.Context, name string) (string, error) {
	if u.isLocal() {
		return exec.LookPath(name)
	}

	result, err := u.RunRemote(ctx, CommandConfig{Command: "command", Args: []string{"-v", name}})
	if err != nil {
		return "", fmt.Errorf("%s not found on %s: %w", name, u.Hostname, err)
	}
	path := strings.TrimSpace(result.STDOUT)
	if path == "" {
		return "", fmt.Errorf("%s not found on %s", name, u.Hostname)
	}
	return path, nil
}

func (u *UnixCommandManager) getSSHConfig() (*ssh.ClientConfig, error) {
	var authMethod ssh.AuthMethod

	if u.Password != "" {
		logger.Log.Debugf("Using password authentication for %s", u.Hostname)
		authMethod = ssh.Password(u.Password)
	} else {
		logger.Log.Debugf("Using public key authentication for %s", u.Hostname)
		var keyManager sshmanager.KeyManager
		if u.KeyPassphrase != "" {
			keyManager = sshmanager.FileKeyManager{}
		} else {
			keyManager = sshmanager.AgentKeyManager{}
		}

		keys, err := keyManager.ReadPrivateKeys(u.KeyPassphrase)
		if err != nil {
			return nil, err
		}

		authMethod = ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
			return keys, nil
		})
	}

	return &ssh.ClientConfig{
		User:            u.User,
		Auth:            []ssh.AuthMethod{authMethod},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}, nil
}

func (u *UnixCommandManager) isLocal() bool {
	return u.Hostname == "" || u.Hostname == "localhost" || u.Hostname == "127.0.0.1"
}

func checkSudoErrors(result CommandResult) error {
	if strings.Contains(result.STDERR, "incorrect password") {
		return errors.New("sudo: incorrect password provided")
	}
	if strings.Contains(result.STDERR, "is not in the sudoers file") {
		return errors.New("sudo: user is not in the sudoers file")
	}
	return nil
}

func getExitCode(err error) int {
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			status := exitError.Sys().(syscall.WaitStatus)
			return status.ExitStatus()
		}
	}
	return 0
}

func getSSHExitCode(err error) int {
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitStatus()
		}
	}
	return 0
}
