package database

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	backuperrors "mysql-physical-backup/internal/errors"
	"mysql-physical-backup/internal/logging"
)

// sessionWaitTimeout is applied to every session right after connecting. The lock
// window plus schema export plus the blocking snapshot call can run far longer
// than the server's default idle timeout, and a dropped connection mid-lock
// silently releases the lock.
const sessionWaitTimeout = 4 * time.Hour

// Opener opens a database handle for a DSN. Production uses sql.Open with the
// MySQL driver; tests substitute sqlmock-backed handles.
type Opener func(dsn string) (*sql.DB, error)

func defaultOpener(dsn string) (*sql.DB, error) {
	return sql.Open("mysql", dsn)
}

// Registry lazily creates and caches one live connection per configured database.
// A Registry belongs to a single backup run and must not be shared across runs.
type Registry struct {
	cfg        ServerConfig
	configured map[string]struct{}
	handles    map[string]*sql.DB
	open       Opener
	logger     *logging.Logger
}

// NewRegistry creates a registry for the configured set of databases
func NewRegistry(cfg ServerConfig, databases []string, logger *logging.Logger) *Registry {
	return NewRegistryWithOpener(cfg, databases, defaultOpener, logger)
}

// NewRegistryWithOpener creates a registry with a custom handle opener
func NewRegistryWithOpener(cfg ServerConfig, databases []string, open Opener, logger *logging.Logger) *Registry {
	configured := make(map[string]struct{}, len(databases))
	for _, name := range databases {
		configured[name] = struct{}{}
	}
	return &Registry{
		cfg:        cfg,
		configured: configured,
		handles:    make(map[string]*sql.DB, len(databases)),
		open:       open,
		logger:     logger,
	}
}

// Connection returns the cached handle for the named database, validating its
// liveness, or lazily opens a new one when none exists yet.
func (r *Registry) Connection(ctx context.Context, name string) (*sql.DB, error) {
	if db, ok := r.handles[name]; ok {
		pingCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			return nil, backuperrors.NewConnectionClosedError(name, err)
		}
		return db, nil
	}

	if _, ok := r.configured[name]; !ok {
		return nil, backuperrors.NewUnknownDatabaseError(name)
	}

	db, err := r.connect(ctx, name)
	if err != nil {
		return nil, err
	}
	r.handles[name] = db
	return db, nil
}

func (r *Registry) connect(ctx context.Context, name string) (*sql.DB, error) {
	startTime := time.Now()

	db, err := r.open(r.cfg.DSN(name))
	if err != nil {
		r.logger.LogDatabaseConnection(r.cfg.Host, name, false, time.Since(startTime), err)
		return nil, backuperrors.NewConnectionClosedError(name, err)
	}

	// The FOR EXPORT lock is session-scoped. A pool handing statements to a
	// second session would run them outside the lock, so pin the pool to one
	// connection and never expire it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	pingCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		r.logger.LogDatabaseConnection(r.cfg.Host, name, false, time.Since(startTime), err)
		return nil, backuperrors.NewConnectionClosedError(name, err)
	}

	seconds := int(sessionWaitTimeout / time.Second)
	stmt := "SET SESSION wait_timeout = ?"
	if _, err := db.ExecContext(ctx, stmt, seconds); err != nil {
		db.Close()
		r.logger.LogSQLExecution(stmt, name, time.Since(startTime), err)
		return nil, backuperrors.NewConnectionClosedError(name, err)
	}

	r.logger.LogDatabaseConnection(r.cfg.Host, name, true, time.Since(startTime), nil)
	return db, nil
}

// ServerConfig returns the connection parameters the registry was built with
func (r *Registry) ServerConfig() ServerConfig {
	return r.cfg
}

// Connected reports whether a handle has been opened for the named database
func (r *Registry) Connected(name string) bool {
	_, ok := r.handles[name]
	return ok
}

// CloseAll closes every cached handle. Close errors are logged, not surfaced:
// at teardown there is nothing left for the caller to do about them.
func (r *Registry) CloseAll() {
	for name, db := range r.handles {
		if err := db.Close(); err != nil {
			r.logger.WithFields(map[string]interface{}{
				"database": name,
				"error":    err.Error(),
			}).Warn("Failed to close database connection")
		}
		delete(r.handles, name)
	}
}
