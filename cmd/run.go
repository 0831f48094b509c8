package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mysql-physical-backup/internal/backup"
	"mysql-physical-backup/internal/display"
	backuperrors "mysql-physical-backup/internal/errors"
	"mysql-physical-backup/internal/logging"
)

// runBackup is the main execution function for the CLI
func runBackup(cmd *cobra.Command, args []string) error {
	if err := validateFlags(); err != nil {
		return err
	}

	config, err := buildConfig(cmd)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if config.Server.Password == "" {
		password, err := promptPassword(config.Server.Username)
		if err != nil {
			return err
		}
		config.Server.Password = password
	}

	logger, err := newLogger(config)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	orchestrator, err := backup.NewOrchestrator(config.BackupConfig(), logger)
	if err != nil {
		return reportError(err)
	}

	startTime := time.Now()
	manifest, err := orchestrator.Run(context.Background())
	if err != nil {
		return reportError(err)
	}

	display.NewSummary(os.Stdout, config.NoColor || config.Quiet).Render(manifest, time.Since(startTime))

	if config.ManifestOut != "" {
		data, err := manifest.ToYAML()
		if err != nil {
			return fmt.Errorf("failed to serialize manifest: %w", err)
		}
		if err := os.WriteFile(config.ManifestOut, data, 0600); err != nil {
			return fmt.Errorf("failed to write manifest to %s: %w", config.ManifestOut, err)
		}
		logger.WithField("path", config.ManifestOut).Info("Manifest written")
	}

	return nil
}

func newLogger(config *runConfig) (*logging.Logger, error) {
	logLevel := logging.LogLevelNormal
	if config.Quiet {
		logLevel = logging.LogLevelQuiet
	} else if config.Verbose {
		logLevel = logging.LogLevelVerbose
	}

	return logging.NewLogger(logging.Config{
		Level:   logLevel,
		Format:  config.LogFormat,
		LogFile: config.LogFile,
	})
}

// promptPassword reads the database password from the terminal when it was
// not supplied by flag, config file, or environment.
func promptPassword(username string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no password provided and stdin is not a terminal")
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", username)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// reportError prints a readable failure report before surfacing the error to
// cobra. Backup errors carry the step and database that failed.
func reportError(err error) error {
	if backupErr, ok := backuperrors.As(err); ok {
		fmt.Fprintf(os.Stderr, "Error: %s\n", backupErr.Message)
		if backupErr.Step != "" {
			fmt.Fprintf(os.Stderr, "  step:     %s\n", backupErr.Step)
		}
		if backupErr.Database != "" {
			fmt.Fprintf(os.Stderr, "  database: %s\n", backupErr.Database)
		}
		if backupErr.Table != "" {
			fmt.Fprintf(os.Stderr, "  table:    %s\n", backupErr.Table)
		}
	}
	return err
}
