package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet suppresses all output except critical errors
	LogLevelQuiet LogLevel = "quiet"
	// LogLevelNormal shows standard operational messages
	LogLevelNormal LogLevel = "normal"
	// LogLevelVerbose shows detailed operational information
	LogLevelVerbose LogLevel = "verbose"
	// LogLevelDebug shows all debug information
	LogLevelDebug LogLevel = "debug"
)

// Logger provides structured logging for backup runs
type Logger struct {
	logger *logrus.Logger
	level  LogLevel
	runID  string
}

// Config holds logger configuration
type Config struct {
	Level      LogLevel
	Output     io.Writer
	Format     string // "text" or "json"
	ShowCaller bool
	LogFile    string
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	logger := logrus.New()

	if config.Output != nil {
		logger.SetOutput(config.Output)
	} else {
		logger.SetOutput(os.Stdout)
	}

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			DisableColors:   false,
		})
	}

	switch config.Level {
	case LogLevelQuiet:
		logger.SetLevel(logrus.ErrorLevel)
	case LogLevelNormal:
		logger.SetLevel(logrus.InfoLevel)
	case LogLevelVerbose:
		logger.SetLevel(logrus.DebugLevel)
	case LogLevelDebug:
		logger.SetLevel(logrus.TraceLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if config.ShowCaller {
		logger.SetReportCaller(true)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				filename := filepath.Base(f.File)
				return fmt.Sprintf("%s()", f.Function), fmt.Sprintf("%s:%d", filename, f.Line)
			},
		})
	}

	if config.LogFile != "" {
		file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.LogFile, err)
		}

		if config.Output == nil {
			logger.SetOutput(io.MultiWriter(os.Stdout, file))
		} else {
			logger.SetOutput(io.MultiWriter(config.Output, file))
		}
	}

	return &Logger{
		logger: logger,
		level:  config.Level,
		runID:  uuid.NewString(),
	}, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() *Logger {
	config := Config{
		Level:  LogLevelNormal,
		Output: os.Stdout,
		Format: "text",
	}

	logger, _ := NewLogger(config)
	return logger
}

// RunID returns the identifier attached to every entry of this run
func (l *Logger) RunID() string {
	return l.runID
}

// WithFields returns a log entry with additional fields plus the run ID
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.logger.WithField("run_id", l.runID).WithFields(fields)
}

// WithField returns a log entry with a single additional field plus the run ID
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.logger.WithField("run_id", l.runID).WithField(key, value)
}

// Backup operation logging methods

// LogDatabaseConnection logs database connection attempts
func (l *Logger) LogDatabaseConnection(host string, database string, success bool, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"operation": "database_connection",
		"host":      host,
		"database":  database,
		"duration":  duration.String(),
		"success":   success,
	}

	if success {
		l.WithFields(fields).Info("Database connection established")
	} else {
		if err != nil {
			fields["error"] = err.Error()
		}
		l.WithFields(fields).Error("Database connection failed")
	}
}

// LogSQLExecution logs SQL statement execution
func (l *Logger) LogSQLExecution(sql string, database string, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"operation": "sql_execution",
		"database":  database,
		"duration":  duration.String(),
	}

	// Mask credentials and truncate before the statement hits the log
	fields["sql"] = SanitizeSQL(sql)
	if len(sql) > 500 {
		fields["sql_length"] = len(sql)
	}

	if err != nil {
		fields["error"] = err.Error()
		l.WithFields(fields).Error("SQL execution failed")
	} else if l.level == LogLevelVerbose || l.level == LogLevelDebug {
		l.WithFields(fields).Debug("SQL executed successfully")
	}
}

// LogSchemaExport logs schema dump invocations
func (l *Logger) LogSchemaExport(database string, size int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"operation":   "schema_export",
		"database":    database,
		"schema_size": size,
		"duration":    duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.WithFields(fields).Error("Schema export failed")
	} else {
		l.WithFields(fields).Info("Schema export completed")
	}
}

// LogFileSync logs durable-sync passes over a database directory
func (l *Logger) LogFileSync(database string, fileCount int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"operation":  "file_sync",
		"database":   database,
		"file_count": fileCount,
		"duration":   duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.WithFields(fields).Error("File sync failed")
	} else {
		l.WithFields(fields).Info("Files synced to durable storage")
	}
}

// LogSnapshotTrigger logs the snapshot service call
func (l *Logger) LogSnapshotTrigger(endpoint string, status int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"operation": "snapshot_trigger",
		"endpoint":  endpoint,
		"status":    status,
		"duration":  duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.WithFields(fields).Error("Snapshot trigger failed")
	} else {
		l.WithFields(fields).Info("Snapshot triggered")
	}
}

// Standard logging methods

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.WithFields(nil).Info(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.WithFields(nil).Infof(format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.WithFields(nil).Debug(msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.WithFields(nil).Debugf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.WithFields(nil).Warn(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.WithFields(nil).Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.WithFields(nil).Error(msg)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.WithFields(nil).Errorf(format, args...)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	switch level {
	case LogLevelQuiet:
		l.logger.SetLevel(logrus.ErrorLevel)
	case LogLevelNormal:
		l.logger.SetLevel(logrus.InfoLevel)
	case LogLevelVerbose:
		l.logger.SetLevel(logrus.DebugLevel)
	case LogLevelDebug:
		l.logger.SetLevel(logrus.TraceLevel)
	}
}

// LogStepStart logs the start of a pipeline step and returns a function to log completion
func (l *Logger) LogStepStart(step string, fields map[string]interface{}) func(error) {
	startTime := time.Now()

	logFields := map[string]interface{}{
		"step":   step,
		"status": "started",
	}
	for k, v := range fields {
		logFields[k] = v
	}

	l.WithFields(logFields).Info("Step started")

	return func(err error) {
		duration := time.Since(startTime)
		logFields["status"] = "completed"
		logFields["duration"] = duration.String()

		if err != nil {
			logFields["error"] = err.Error()
			logFields["success"] = false
			l.WithFields(logFields).Error("Step failed")
		} else {
			logFields["success"] = true
			l.WithFields(logFields).Info("Step completed")
		}
	}
}

// SanitizeSQL sanitizes SQL for logging by masking password values
func SanitizeSQL(sql string) string {
	for _, marker := range []string{"password=", "PASSWORD="} {
		if !strings.Contains(sql, marker) {
			continue
		}
		parts := strings.Split(sql, marker)
		passwordPart := parts[1]
		var endIndex int
		if len(passwordPart) > 0 && (passwordPart[0] == '\'' || passwordPart[0] == '"') {
			quote := passwordPart[0]
			endIndex = strings.Index(passwordPart[1:], string(quote))
			if endIndex != -1 {
				endIndex += 2 // include both quotes
			} else {
				endIndex = len(passwordPart)
			}
		} else {
			endIndex = strings.Index(passwordPart, " ")
			if endIndex == -1 {
				endIndex = len(passwordPart)
			}
		}
		sql = parts[0] + marker + "***" + passwordPart[endIndex:]
	}

	if len(sql) > 500 {
		return sql[:500] + "... [truncated]"
	}

	return sql
}
