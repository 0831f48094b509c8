package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	backuperrors "mysql-physical-backup/internal/errors"
	"mysql-physical-backup/internal/logging"
)

func testLogger() *logging.Logger {
	logger, _ := logging.NewLogger(logging.Config{
		Level:  logging.LogLevelQuiet,
		Output: io.Discard,
	})
	return logger
}

func testServerConfig() ServerConfig {
	return ServerConfig{
		Host:     "localhost",
		Port:     3306,
		Username: "backup",
		Password: "secret",
		Timeout:  5 * time.Second,
	}
}

// mockOpener returns the prepared sqlmock handle for whichever database the
// DSN names.
func mockOpener(t *testing.T, handles map[string]*sql.DB) Opener {
	t.Helper()
	return func(dsn string) (*sql.DB, error) {
		for name, db := range handles {
			if strings.Contains(dsn, "/"+name+"?") {
				return db, nil
			}
		}
		return nil, fmt.Errorf("unexpected DSN %q", dsn)
	}
}

func expectConnect(mock sqlmock.Sqlmock) {
	mock.ExpectPing()
	mock.ExpectExec(regexp.QuoteMeta("SET SESSION wait_timeout = ?")).
		WithArgs(14400).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestConnectionUnknownDatabase(t *testing.T) {
	registry := NewRegistry(testServerConfig(), []string{"shop"}, testLogger())

	_, err := registry.Connection(context.Background(), "ghost")
	if err == nil {
		t.Fatal("Expected error for unconfigured database")
	}
	if !backuperrors.IsType(err, backuperrors.ErrorTypeUnknownDatabase) {
		t.Errorf("Expected UNKNOWN_DATABASE, got %v", err)
	}
}

func TestConnectionOpensAndRaisesSessionTimeout(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	expectConnect(mock)

	registry := NewRegistryWithOpener(testServerConfig(), []string{"shop"},
		mockOpener(t, map[string]*sql.DB{"shop": db}), testLogger())

	got, err := registry.Connection(context.Background(), "shop")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != db {
		t.Error("Expected the opened handle to be returned")
	}
	if !registry.Connected("shop") {
		t.Error("Expected the handle to be cached")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestConnectionReusesCachedHandle(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	expectConnect(mock)
	mock.ExpectPing() // liveness check on reuse

	registry := NewRegistryWithOpener(testServerConfig(), []string{"shop"},
		mockOpener(t, map[string]*sql.DB{"shop": db}), testLogger())

	ctx := context.Background()
	first, err := registry.Connection(ctx, "shop")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := registry.Connection(ctx, "shop")
	if err != nil {
		t.Fatalf("Unexpected error on reuse: %v", err)
	}
	if first != second {
		t.Error("Expected the cached handle to be reused")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestConnectionClosedOnDeadHandle(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	expectConnect(mock)
	mock.ExpectPing().WillReturnError(fmt.Errorf("server has gone away"))

	registry := NewRegistryWithOpener(testServerConfig(), []string{"shop"},
		mockOpener(t, map[string]*sql.DB{"shop": db}), testLogger())

	ctx := context.Background()
	if _, err := registry.Connection(ctx, "shop"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	_, err = registry.Connection(ctx, "shop")
	if err == nil {
		t.Fatal("Expected error for dead cached handle")
	}
	if !backuperrors.IsType(err, backuperrors.ErrorTypeConnectionClosed) {
		t.Errorf("Expected CONNECTION_CLOSED, got %v", err)
	}
}

func TestConnectionSessionTimeoutFailureClosesHandle(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	mock.ExpectPing()
	mock.ExpectExec(regexp.QuoteMeta("SET SESSION wait_timeout = ?")).
		WithArgs(14400).
		WillReturnError(fmt.Errorf("access denied"))
	mock.ExpectClose()

	registry := NewRegistryWithOpener(testServerConfig(), []string{"shop"},
		mockOpener(t, map[string]*sql.DB{"shop": db}), testLogger())

	_, err = registry.Connection(context.Background(), "shop")
	if err == nil {
		t.Fatal("Expected error when session timeout cannot be raised")
	}
	if registry.Connected("shop") {
		t.Error("Expected no handle to be cached after a failed connect")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestCloseAll(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	expectConnect(mock)
	mock.ExpectClose()

	registry := NewRegistryWithOpener(testServerConfig(), []string{"shop"},
		mockOpener(t, map[string]*sql.DB{"shop": db}), testLogger())

	if _, err := registry.Connection(context.Background(), "shop"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	registry.CloseAll()
	if registry.Connected("shop") {
		t.Error("Expected handle to be dropped after CloseAll")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}
