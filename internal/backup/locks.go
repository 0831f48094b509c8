package backup

import (
	"context"
	"fmt"
	"time"

	"mysql-physical-backup/internal/database"
	"mysql-physical-backup/internal/logging"
)

// LockManager tracks per-database lock state and guarantees unlock, both at
// the normal end of the pipeline and unconditionally at teardown.
type LockManager struct {
	registry *database.Registry
	logger   *logging.Logger
}

// NewLockManager creates a lock manager using the run's registry
func NewLockManager(registry *database.Registry, logger *logging.Logger) *LockManager {
	return &LockManager{
		registry: registry,
		logger:   logger,
	}
}

// Unlock releases the table locks of one database and clears its lock flag.
// Idempotent: a database that is not locked is a no-op.
func (m *LockManager) Unlock(ctx context.Context, db *Database) error {
	if !db.locked {
		return nil
	}

	conn, err := m.registry.Connection(ctx, db.Name)
	if err != nil {
		return err
	}

	stmt := "UNLOCK TABLES"
	startTime := time.Now()
	_, execErr := conn.ExecContext(ctx, stmt)
	m.logger.LogSQLExecution(stmt, db.Name, time.Since(startTime), execErr)
	if execErr != nil {
		return fmt.Errorf("failed to unlock tables of database %s: %w", db.Name, execErr)
	}

	db.locked = false
	return nil
}

// ForceUnlockAll unlocks every database still flagged locked. Used at
// teardown, where failures are logged and the scan continues: one stuck
// database must not keep the others locked.
func (m *LockManager) ForceUnlockAll(ctx context.Context, databases []*Database) {
	for _, db := range databases {
		if !db.locked {
			continue
		}
		m.logger.WithField("database", db.Name).Warn("Database still locked at teardown, force unlocking")
		if err := m.Unlock(ctx, db); err != nil {
			// The server releases session locks itself once the connection
			// closes; losing this race only delays that.
			m.logger.WithFields(map[string]interface{}{
				"database": db.Name,
				"error":    err.Error(),
			}).Error("Force unlock failed")
		}
	}
}
