package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"mysql-physical-backup/internal/database"
	backuperrors "mysql-physical-backup/internal/errors"
	"mysql-physical-backup/internal/logging"
)

// identifierPattern matches unquoted MySQL identifiers. Table names come back
// from the catalog query, but they are interpolated into the flush statement,
// so anything outside this set is rejected rather than escaped.
var identifierPattern = regexp.MustCompile(`^[0-9a-zA-Z$_]+$`)

// Synchronizer issues the combined flush-and-lock operation per database and
// forces that database's files to durable storage afterwards.
type Synchronizer struct {
	registry *database.Registry
	logger   *logging.Logger
}

// NewSynchronizer creates a consistency synchronizer using the run's registry
func NewSynchronizer(registry *database.Registry, logger *logging.Logger) *Synchronizer {
	return &Synchronizer{
		registry: registry,
		logger:   logger,
	}
}

// FlushForExport issues FLUSH TABLES ... FOR EXPORT naming every InnoDB and
// MyISAM table of the database. On success the statement has taken a read lock
// on those tables, flushed them, and forbidden structural changes until
// unlocked; the database's lock flag is set accordingly.
//
// A database with no exportable tables is skipped: the statement requires at
// least one table name, and with nothing to export there is nothing to lock.
func (s *Synchronizer) FlushForExport(ctx context.Context, db *Database) error {
	if db.Tables.Empty() {
		s.logger.WithField("database", db.Name).Info("No exportable tables, skipping flush")
		return nil
	}

	stmt, err := flushStatement(db.Tables.All())
	if err != nil {
		return backuperrors.NewLockAcquisitionError(db.Name, err)
	}

	conn, err := s.registry.Connection(ctx, db.Name)
	if err != nil {
		return err
	}

	startTime := time.Now()
	_, execErr := conn.ExecContext(ctx, stmt)
	s.logger.LogSQLExecution(stmt, db.Name, time.Since(startTime), execErr)
	if execErr != nil {
		return backuperrors.NewLockAcquisitionError(db.Name, execErr)
	}

	db.locked = true
	return nil
}

// flushStatement builds the combined flush-and-lock statement from validated,
// quoted table names.
func flushStatement(tables []string) (string, error) {
	quoted := make([]string, 0, len(tables))
	for _, table := range tables {
		if !identifierPattern.MatchString(table) {
			return "", fmt.Errorf("table name %q is not a valid identifier", table)
		}
		quoted = append(quoted, "`"+table+"`")
	}
	return fmt.Sprintf("FLUSH TABLES %s FOR EXPORT", strings.Join(quoted, ", ")), nil
}

// SyncToDisk forces every regular file in the database's directory to durable
// storage. Run after the lock is held, so no further writes land, and before
// validation and snapshot, so the snapshot observes only storage-durable bytes.
func (s *Synchronizer) SyncToDisk(db *Database) error {
	startTime := time.Now()

	entries, err := os.ReadDir(db.Directory)
	if err != nil {
		syncErr := backuperrors.NewDirectoryListError(db.Name, db.Directory, err)
		s.logger.LogFileSync(db.Name, 0, time.Since(startTime), syncErr)
		return syncErr
	}

	synced := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(db.Directory, entry.Name())
		if err := syncFile(path); err != nil {
			syncErr := backuperrors.NewFileSyncError(db.Name, path, err)
			s.logger.LogFileSync(db.Name, synced, time.Since(startTime), syncErr)
			return syncErr
		}
		synced++
	}

	s.logger.LogFileSync(db.Name, synced, time.Since(startTime), nil)
	return nil
}

func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
