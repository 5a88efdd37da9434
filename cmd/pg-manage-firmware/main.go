// pg-manage-firmware prunes installed firmware packages that the detected
// hardware does not need and reinstalls the required set, by sequencing the
// system package manager (pkg) and the firmware detector (fwget).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	multierror "github.com/hashicorp/go-multierror"
	"gopkg.in/ini.v1"

	"github.com/pgsdf/pg-manage-firmware/common"
	"github.com/pgsdf/pg-manage-firmware/firmware/backup"
	"github.com/pgsdf/pg-manage-firmware/firmware/commandmanager"
	"github.com/pgsdf/pg-manage-firmware/firmware/detector"
	"github.com/pgsdf/pg-manage-firmware/firmware/packagemanager"
	"github.com/pgsdf/pg-manage-firmware/firmware/plan"
	"github.com/pgsdf/pg-manage-firmware/firmware/preflight"
	"github.com/pgsdf/pg-manage-firmware/firmware/prompt"
	"github.com/pgsdf/pg-manage-firmware/logger"
)

const (
	defaultConfigPath = "/etc/pg-manage-firmware.ini"
	runTimeout        = 30 * time.Minute
)

type flags struct {
	BackupDir          string
	ConfigPath         string
	DryRun             bool
	Hostname           string
	KeyPassPrompt      bool
	LogFileName        string
	PasswordPrompt     bool
	SudoPasswordPrompt bool
	Username           string
	Verbose            bool
	Yes                bool
}

type config struct {
	PkgCommand    string
	FwgetCommand  string
	BackupDir     string
	ExtraFamilies []string
}

func parseFlags() *flags {
	f := &flags{}
	flag.BoolVar(&f.DryRun, "dry-run", false, "Report what would be done without changing anything")
	flag.BoolVar(&f.Verbose, "verbose", false, "Enable debug log level")
	flag.BoolVar(&f.Verbose, "v", false, "Enable debug log level (shorthand)")
	flag.BoolVar(&f.Yes, "yes", false, "Skip the confirmation prompt")
	flag.BoolVar(&f.KeyPassPrompt, "keypass", false, "Prompt for the SSH key passphrase")
	flag.BoolVar(&f.PasswordPrompt, "password", false, "Prompt for an SSH password")
	flag.BoolVar(&f.SudoPasswordPrompt, "sudo-password", false, "Prompt for a sudo password")
	flag.StringVar(&f.BackupDir, "backup-dir", "", "Directory for the pre-removal package list backup")
	flag.StringVar(&f.ConfigPath, "config", "", "Path to the INI config file")
	flag.StringVar(&f.Hostname, "hostname", "localhost", "Host to manage (remote hosts via SSH)")
	flag.StringVar(&f.LogFileName, "log", "pg-manage-firmware.log", "Log file name")
	flag.StringVar(&f.Username, "username", "", "Username for the SSH connection")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Prunes firmware packages not required by detected hardware and")
		fmt.Fprintln(flag.CommandLine.Output(), "reinstalls the required set (pkg + fwget).")
		fmt.Fprintln(flag.CommandLine.Output(), "")
		flag.PrintDefaults()
		fmt.Fprintln(flag.CommandLine.Output(), "\nExamples:")
		fmt.Fprintln(flag.CommandLine.Output(), "  pg-manage-firmware --dry-run        # report only")
		fmt.Fprintln(flag.CommandLine.Output(), "  pg-manage-firmware -v               # prune and reinstall, verbose")
		fmt.Fprintln(flag.CommandLine.Output(), "  pg-manage-firmware --hostname nas --username admin --sudo-password")
	}

	flag.Parse()
	return f
}

func readConfig(path string) (config, error) {
	cfg := config{
		PkgCommand:   "pkg",
		FwgetCommand: "fwget",
		BackupDir:    "/var/backups",
	}
	if path == "" {
		return cfg, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return cfg, err
	}

	tools := file.Section("tools")
	if v := tools.Key("pkg").String(); v != "" {
		cfg.PkgCommand = v
	}
	if v := tools.Key("fwget").String(); v != "" {
		cfg.FwgetCommand = v
	}
	if v := file.Section("backup").Key("dir").String(); v != "" {
		cfg.BackupDir = v
	}
	for _, key := range file.Section("families").Keys() {
		cfg.ExtraFamilies = append(cfg.ExtraFamilies, key.String())
	}

	return cfg, nil
}

// configPath resolves which config file to load: an explicit --config must
// exist, the default path is optional.
func configPath(f *flags) string {
	if f.ConfigPath != "" {
		return f.ConfigPath
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

func readCredentials(f *flags) (common.Credentials, error) {
	creds := common.Credentials{User: f.Username}

	if f.PasswordPrompt {
		password, err := prompt.ReadSecret("password")
		if err != nil {
			return creds, err
		}
		creds.Password = password
	}
	if f.KeyPassPrompt {
		keyPass, err := prompt.ReadSecret("key passphrase")
		if err != nil {
			return creds, err
		}
		creds.KeyPassphrase = keyPass
	}
	if f.SudoPasswordPrompt {
		sudoPassword, err := prompt.ReadSecret("sudo password")
		if err != nil {
			return creds, err
		}
		creds.SudoPassword = sudoPassword
	}

	return creds, nil
}

// pipeline bundles the pieces of one run plus the seams the destructive
// sequence depends on (prompt I/O, clock, terminal and session detection).
type pipeline struct {
	flags        *flags
	config       config
	families     *packagemanager.FamilySet
	pkgManager   *packagemanager.PkgManager
	fwget        *detector.FwgetDetector
	prompter     *prompt.Prompter
	out          io.Writer
	now          func() time.Time
	interactive  func() bool
	inSSHSession func() bool
}

// confirmPlan gates the destructive steps. A false return with nil error
// means the user aborted. The SSH network-firmware warning is emitted even
// under --yes; --yes only skips the interactive questions.
func (p *pipeline) confirmPlan(pl plan.Plan) (bool, error) {
	sshRisk := p.inSSHSession() && p.families.AnyNetworkSensitive(pl.Remove)
	if sshRisk {
		fmt.Fprintln(p.out, "WARNING: you appear to be connected over SSH and the plan removes")
		fmt.Fprintln(p.out, "network firmware. If the reinstall step fails you may lose this")
		fmt.Fprintln(p.out, "connection and any remote way back in.")
		logger.Log.Warn("Removing network firmware from inside an SSH session")
	}

	if p.flags.Yes {
		return true, nil
	}
	if !p.interactive() {
		return false, fmt.Errorf("stdin is not a terminal; rerun with --yes to skip confirmation")
	}

	if sshRisk {
		ok, err := p.prompter.ConfirmTyped("Continue anyway?", "YES")
		if err != nil || !ok {
			return false, err
		}
	}

	question := fmt.Sprintf("Remove %d and install %d firmware package(s)?", len(pl.Remove), len(pl.Missing))
	return p.prompter.Confirm(question)
}

// executePlan runs everything after plan computation: dry-run short
// circuit, confirmation, backup, removal, reinstall, verification,
// summary. Returns the process exit code.
func (p *pipeline) executePlan(ctx context.Context, pl plan.Plan) int {
	if p.flags.DryRun {
		fmt.Fprintln(p.out, "Dry run; no changes made.")
		return 0
	}

	ok, err := p.confirmPlan(pl)
	if err != nil {
		logger.Log.Errorf("Confirmation failed: %v", err)
		return 1
	}
	if !ok {
		fmt.Fprintln(p.out, "Aborted.")
		return 0
	}

	backupPath, err := backup.Write(p.config.BackupDir, p.flags.Hostname, pl.Installed, p.now())
	if err != nil {
		logger.Log.Errorf("Backup failed, refusing to continue: %v", err)
		return 1
	}
	logger.Log.Infof("Backup of installed firmware list written to %s", backupPath)

	var errs *multierror.Error
	removed := 0
	for _, pkg := range pl.Remove {
		logger.Log.Infof("Removing %s", pkg)
		if err := p.pkgManager.Remove(ctx, pkg); err != nil {
			logger.Log.Errorf("Remove failed: %v", err)
			errs = multierror.Append(errs, err)
			continue
		}
		removed++
	}

	logger.Log.Infof("Reinstalling hardware firmware via %s", p.config.FwgetCommand)
	if err := p.fwget.Apply(ctx); err != nil {
		logger.Log.Errorf("Reinstall failed: %v", err)
		logger.Log.Errorf("Try running '%s' manually, or restore from %s", p.config.FwgetCommand, backupPath)
		errs = multierror.Append(errs, err)
	}

	errs = multierror.Append(errs, verify(ctx, p.pkgManager, p.config, pl.Needed))

	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "Removed %d of %d package(s); %d needed by hardware.\n", removed, len(pl.Remove), len(pl.Needed))
	fmt.Fprintf(p.out, "Backup: %s\n", backupPath)
	fmt.Fprintf(p.out, "Log: %s\n", p.flags.LogFileName)

	if errs.ErrorOrNil() != nil {
		fmt.Fprintln(p.out, "Completed with errors; see the log for details.")
		return 1
	}
	fmt.Fprintln(p.out, "Done.")
	return 0
}

func run(f *flags) int {
	closer, err := logger.Configure(f.LogFileName, f.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open log file: %v\n", err)
		return 1
	}
	defer closer.Close()

	cfg, err := readConfig(configPath(f))
	if err != nil {
		logger.Log.Errorf("Failed to read config: %v", err)
		return 1
	}
	if f.BackupDir != "" {
		cfg.BackupDir = f.BackupDir
	}

	creds, err := readCredentials(f)
	if err != nil {
		logger.Log.Errorf("Failed to read credentials: %v", err)
		return 1
	}

	cmdManager := &commandmanager.UnixCommandManager{
		Hostname:    f.Hostname,
		SSHClient:   &commandmanager.RealSSHClient{},
		Credentials: creds,
	}

	families, err := packagemanager.NewFamilySet(cfg.ExtraFamilies...)
	if err != nil {
		logger.Log.Errorf("Bad firmware family configuration: %v", err)
		return 1
	}

	pkgManager := &packagemanager.PkgManager{
		CommandManager: cmdManager,
		Command:        cfg.PkgCommand,
		Families:       families,
	}
	fwget := &detector.FwgetDetector{
		CommandManager: cmdManager,
		Command:        cfg.FwgetCommand,
		Families:       families,
	}
	checker := &preflight.Checker{
		CommandManager: cmdManager,
		Hostname:       f.Hostname,
		PkgCommand:     cfg.PkgCommand,
		FwgetCommand:   cfg.FwgetCommand,
		AllowSudo:      creds.SudoPassword != "",
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if err := checker.Check(ctx); err != nil {
		logger.Log.Errorf("Preflight failed: %v", err)
		return 1
	}

	needed, err := fwget.DryRun(ctx)
	if err != nil {
		logger.Log.Errorf("Hardware detection failed: %v", err)
		logger.Log.Errorf("Try running '%s -n' manually to diagnose", cfg.FwgetCommand)
		return 1
	}

	installed, err := pkgManager.ListManaged(ctx)
	if err != nil {
		logger.Log.Errorf("Package query failed: %v", err)
		logger.Log.Errorf("Try running '%s query --installed' manually to diagnose", cfg.PkgCommand)
		return 1
	}

	pl := plan.Compute(needed, installed)
	fmt.Print(pl.Render())

	if pl.Empty() {
		fmt.Println("Nothing to do; installed firmware already matches the hardware.")
		return 0
	}

	p := &pipeline{
		flags:        f,
		config:       cfg,
		families:     families,
		pkgManager:   pkgManager,
		fwget:        fwget,
		prompter:     prompt.NewPrompter(os.Stdin, os.Stdout),
		out:          os.Stdout,
		now:          time.Now,
		interactive:  prompt.IsInteractive,
		inSSHSession: preflight.InSSHSession,
	}
	return p.executePlan(ctx, pl)
}

// verify re-queries the package manager and confirms every needed package
// made it back in, then runs the integrity check.
func verify(ctx context.Context, pkgManager *packagemanager.PkgManager, cfg config, needed []string) error {
	var errs *multierror.Error

	installed, err := pkgManager.ListManaged(ctx)
	if err != nil {
		return fmt.Errorf("verification query failed: %w", err)
	}

	if missing := plan.Difference(needed, installed); len(missing) > 0 {
		logger.Log.Errorf("Still missing after reinstall: %s", strings.Join(missing, " "))
		logger.Log.Errorf("Install manually with: %s install -y %s", cfg.PkgCommand, strings.Join(missing, " "))
		errs = multierror.Append(errs, fmt.Errorf("%d needed package(s) missing after reinstall", len(missing)))
	}

	if err := pkgManager.Check(ctx, installed); err != nil {
		logger.Log.Errorf("Integrity check failed: %v", err)
		logger.Log.Errorf("Inspect manually with: %s check %s", cfg.PkgCommand, strings.Join(installed, " "))
		errs = multierror.Append(errs, err)
	}

	return errs.ErrorOrNil()
}

func main() {
	os.Exit(run(parseFlags()))
}
