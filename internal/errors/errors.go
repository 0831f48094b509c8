package errors

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrorType represents the different failure categories of a backup run
type ErrorType string

const (
	// ErrorTypeConfiguration represents an invalid or empty backup configuration
	ErrorTypeConfiguration ErrorType = "CONFIGURATION_ERROR"
	// ErrorTypeUnknownDatabase represents a request for a database outside the configured set
	ErrorTypeUnknownDatabase ErrorType = "UNKNOWN_DATABASE"
	// ErrorTypeConnectionClosed represents a cached connection that is no longer usable
	ErrorTypeConnectionClosed ErrorType = "CONNECTION_CLOSED"
	// ErrorTypeLockAcquisition represents a FLUSH TABLES ... FOR EXPORT failure
	ErrorTypeLockAcquisition ErrorType = "LOCK_ACQUISITION_ERROR"
	// ErrorTypeFileSync represents a failure forcing database files to durable storage
	ErrorTypeFileSync ErrorType = "FILE_SYNC_ERROR"
	// ErrorTypeExportFileNotFound represents a missing restore-critical physical file
	ErrorTypeExportFileNotFound ErrorType = "EXPORT_FILE_NOT_FOUND"
	// ErrorTypeSchemaExport represents a dump utility failure
	ErrorTypeSchemaExport ErrorType = "SCHEMA_EXPORT_ERROR"
	// ErrorTypeSnapshotTrigger represents a non-success response from the snapshot service
	ErrorTypeSnapshotTrigger ErrorType = "SNAPSHOT_TRIGGER_ERROR"
	// ErrorTypeUnknown represents an unclassified error
	ErrorTypeUnknown ErrorType = "UNKNOWN_ERROR"
)

// BackupError is the discriminated error surfaced by every step of a backup run.
// It carries the failing step, the affected database and table where applicable,
// so the calling job framework can report precisely without string matching.
type BackupError struct {
	Type     ErrorType
	Step     string
	Database string
	Table    string
	Message  string
	Cause    error
	Context  map[string]interface{}
}

// Error implements the error interface
func (e *BackupError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Step != "" {
		msg = fmt.Sprintf("%s [step %q]", msg, e.Step)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (caused by: %v)", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error
func (e *BackupError) Unwrap() error {
	return e.Cause
}

// WithStep records the pipeline step the error surfaced from
func (e *BackupError) WithStep(step string) *BackupError {
	e.Step = step
	return e
}

// WithContext adds context information to the error
func (e *BackupError) WithContext(key string, value interface{}) *BackupError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a BackupError of the given type
func New(errorType ErrorType, message string, cause error) *BackupError {
	e := &BackupError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
	// MySQL server errors carry a numeric code worth keeping for reports
	var mysqlErr *mysql.MySQLError
	if errors.As(cause, &mysqlErr) {
		e.Context["mysql_error_code"] = mysqlErr.Number
	}
	return e
}

// NewConfigurationError reports an unusable backup configuration
func NewConfigurationError(message string) *BackupError {
	return New(ErrorTypeConfiguration, message, nil)
}

// NewUnknownDatabaseError reports a database name outside the configured set
func NewUnknownDatabaseError(database string) *BackupError {
	e := New(ErrorTypeUnknownDatabase, fmt.Sprintf("database %s is not configured", database), nil)
	e.Database = database
	return e
}

// NewConnectionClosedError reports a cached connection that failed its liveness check
func NewConnectionClosedError(database string, cause error) *BackupError {
	e := New(ErrorTypeConnectionClosed, fmt.Sprintf("connection to database %s is no longer usable", database), cause)
	e.Database = database
	return e
}

// NewLockAcquisitionError reports a failed flush-for-export statement
func NewLockAcquisitionError(database string, cause error) *BackupError {
	e := New(ErrorTypeLockAcquisition, fmt.Sprintf("failed to flush and lock tables of database %s", database), cause)
	e.Database = database
	return e
}

// NewFileSyncError reports a failure syncing a database file to durable storage
func NewFileSyncError(database, path string, cause error) *BackupError {
	e := New(ErrorTypeFileSync, fmt.Sprintf("failed to sync %s to disk", path), cause)
	e.Database = database
	return e.WithContext("path", path)
}

// NewDirectoryListError reports a failure reading a database directory
func NewDirectoryListError(database, path string, cause error) *BackupError {
	e := New(ErrorTypeFileSync, fmt.Sprintf("failed to list directory %s", path), cause)
	e.Database = database
	return e.WithContext("path", path)
}

// NewExportFileNotFoundError reports a missing restore-critical file for a table
func NewExportFileNotFoundError(database, table, file string) *BackupError {
	e := New(ErrorTypeExportFileNotFound,
		fmt.Sprintf("%s for table %s not found in database %s", file, table, database), nil)
	e.Database = database
	e.Table = table
	return e.WithContext("file", file)
}

// NewSchemaExportError reports a dump utility failure, keeping its diagnostic output
func NewSchemaExportError(database, diagnostic string, cause error) *BackupError {
	e := New(ErrorTypeSchemaExport, fmt.Sprintf("schema export failed for database %s", database), cause)
	e.Database = database
	if diagnostic != "" {
		e.WithContext("diagnostic", diagnostic)
	}
	return e
}

// NewSnapshotTriggerError reports a non-success response from the snapshot service
func NewSnapshotTriggerError(message string, cause error) *BackupError {
	return New(ErrorTypeSnapshotTrigger, message, cause)
}

// TypeOf returns the error type of an error, ErrorTypeUnknown for foreign errors
func TypeOf(err error) ErrorType {
	var backupErr *BackupError
	if errors.As(err, &backupErr) {
		return backupErr.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err is a BackupError of the given type
func IsType(err error, errorType ErrorType) bool {
	return TypeOf(err) == errorType
}

// As extracts a BackupError from an error chain
func As(err error) (*BackupError, bool) {
	var backupErr *BackupError
	ok := errors.As(err, &backupErr)
	return backupErr, ok
}
