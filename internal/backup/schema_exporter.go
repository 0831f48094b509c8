package backup

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"mysql-physical-backup/internal/database"
	backuperrors "mysql-physical-backup/internal/errors"
	"mysql-physical-backup/internal/logging"
)

// dumpBinary is the external utility used for schema-only DDL capture
const dumpBinary = "mariadb-dump"

// CommandRunner runs an external command and returns its stdout and stderr.
// Production runs the real binary; tests substitute a fake.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// SchemaExporter captures schema-only DDL per database via the external dump
// utility, while that database's lock is still held. Running under the lock
// guarantees the captured DDL corresponds exactly to the table set frozen by
// the flush.
type SchemaExporter struct {
	cfg    database.ServerConfig
	runner CommandRunner
	logger *logging.Logger
}

// NewSchemaExporter creates a schema exporter authenticated with the
// configured credentials
func NewSchemaExporter(cfg database.ServerConfig, logger *logging.Logger) *SchemaExporter {
	return &SchemaExporter{
		cfg:    cfg,
		runner: execRunner{},
		logger: logger,
	}
}

// Export runs the dump utility with schema-only output for the database and
// returns the captured DDL text. The database must be locked; a database that
// was skipped at flush time (no exportable tables) yields empty schema text.
func (e *SchemaExporter) Export(ctx context.Context, db *Database) (string, error) {
	if db.Tables.Empty() {
		e.logger.WithField("database", db.Name).Info("No exportable tables, skipping schema export")
		return "", nil
	}
	if !db.Locked() {
		return "", backuperrors.NewSchemaExportError(db.Name, "",
			fmt.Errorf("tables of database %s are not locked", db.Name))
	}

	args := []string{
		"-u", e.cfg.Username,
		"-p" + e.cfg.Password,
		"-h", e.cfg.Host,
		"-P", strconv.Itoa(e.cfg.Port),
		"--no-data",
		db.Name,
	}

	startTime := time.Now()
	stdout, stderr, err := e.runner.Run(ctx, dumpBinary, args...)
	if err != nil {
		exportErr := backuperrors.NewSchemaExportError(db.Name, string(stderr), err)
		e.logger.LogSchemaExport(db.Name, 0, time.Since(startTime), exportErr)
		return "", exportErr
	}

	schema := string(stdout)
	e.logger.LogSchemaExport(db.Name, len(schema), time.Since(startTime), nil)
	return schema, nil
}
