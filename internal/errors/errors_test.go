package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestBackupErrorMessage(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := New(ErrorTypeLockAcquisition, "failed to lock", cause)

	msg := err.Error()
	if !strings.Contains(msg, string(ErrorTypeLockAcquisition)) {
		t.Errorf("Expected message to contain error type, got %q", msg)
	}
	if !strings.Contains(msg, "connection refused") {
		t.Errorf("Expected message to contain cause, got %q", msg)
	}
}

func TestBackupErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := NewLockAcquisitionError("shop", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause")
	}
}

func TestWithStep(t *testing.T) {
	err := NewSnapshotTriggerError("status 500", nil).WithStep("Create Snapshot")

	if err.Step != "Create Snapshot" {
		t.Errorf("Expected step to be recorded, got %q", err.Step)
	}
	if !strings.Contains(err.Error(), "Create Snapshot") {
		t.Errorf("Expected message to name the step, got %q", err.Error())
	}
}

func TestWithContext(t *testing.T) {
	err := NewSchemaExportError("shop", "table corrupted", fmt.Errorf("exit status 2"))

	if err.Context["diagnostic"] != "table corrupted" {
		t.Errorf("Expected diagnostic context, got %v", err.Context["diagnostic"])
	}
	if err.Database != "shop" {
		t.Errorf("Expected database to be shop, got %q", err.Database)
	}
}

func TestConstructorTypes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"configuration", NewConfigurationError("no databases"), ErrorTypeConfiguration},
		{"unknown database", NewUnknownDatabaseError("ghost"), ErrorTypeUnknownDatabase},
		{"connection closed", NewConnectionClosedError("shop", nil), ErrorTypeConnectionClosed},
		{"lock acquisition", NewLockAcquisitionError("shop", nil), ErrorTypeLockAcquisition},
		{"file sync", NewFileSyncError("shop", "/var/lib/mysql/shop", nil), ErrorTypeFileSync},
		{"export file", NewExportFileNotFoundError("shop", "orders", "orders.ibd"), ErrorTypeExportFileNotFound},
		{"schema export", NewSchemaExportError("shop", "", nil), ErrorTypeSchemaExport},
		{"snapshot trigger", NewSnapshotTriggerError("status 500", nil), ErrorTypeSnapshotTrigger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeOf(tt.err); got != tt.want {
				t.Errorf("Expected type %s, got %s", tt.want, got)
			}
			if !IsType(tt.err, tt.want) {
				t.Errorf("Expected IsType to be true for %s", tt.want)
			}
		})
	}
}

func TestExportFileNotFoundNamesTable(t *testing.T) {
	err := NewExportFileNotFoundError("shop", "orders", "orders.ibd")

	if err.Table != "orders" {
		t.Errorf("Expected table orders, got %q", err.Table)
	}
	if !strings.Contains(err.Error(), "orders") {
		t.Errorf("Expected message to name the table, got %q", err.Error())
	}
	if err.Context["file"] != "orders.ibd" {
		t.Errorf("Expected file context, got %v", err.Context["file"])
	}
}

func TestTypeOfForeignError(t *testing.T) {
	if got := TypeOf(fmt.Errorf("plain")); got != ErrorTypeUnknown {
		t.Errorf("Expected unknown type for foreign error, got %s", got)
	}
}

func TestAsThroughWrapping(t *testing.T) {
	inner := NewLockAcquisitionError("shop", nil)
	wrapped := fmt.Errorf("step failed: %w", inner)

	backupErr, ok := As(wrapped)
	if !ok {
		t.Fatal("Expected to extract BackupError from wrapped error")
	}
	if backupErr.Type != ErrorTypeLockAcquisition {
		t.Errorf("Expected lock acquisition type, got %s", backupErr.Type)
	}
}
