package backup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	backuperrors "mysql-physical-backup/internal/errors"
)

func TestTriggerSuccess(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	trigger := NewSnapshotTrigger(server.URL, 5*time.Second, testLogger())
	if err := trigger.Trigger(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected exactly one snapshot request, got %d", calls.Load())
	}
}

func TestTriggerAcceptsAnySuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	trigger := NewSnapshotTrigger(server.URL, 5*time.Second, testLogger())
	if err := trigger.Trigger(context.Background()); err != nil {
		t.Fatalf("Unexpected error for 202 response: %v", err)
	}
}

func TestTriggerNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("volume busy"))
	}))
	defer server.Close()

	trigger := NewSnapshotTrigger(server.URL, 5*time.Second, testLogger())
	err := trigger.Trigger(context.Background())
	if err == nil {
		t.Fatal("Expected error for 500 response")
	}

	backupErr, ok := backuperrors.As(err)
	if !ok || backupErr.Type != backuperrors.ErrorTypeSnapshotTrigger {
		t.Fatalf("Expected SNAPSHOT_TRIGGER_ERROR, got %v", err)
	}
	if status, _ := backupErr.Context["status"].(int); status != http.StatusInternalServerError {
		t.Errorf("Expected status 500 in error context, got %v", backupErr.Context["status"])
	}
	if body, _ := backupErr.Context["body"].(string); body != "volume busy" {
		t.Errorf("Expected response body in error context, got %q", body)
	}
}

func TestTriggerUnreachableService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	trigger := NewSnapshotTrigger(server.URL, time.Second, testLogger())
	err := trigger.Trigger(context.Background())
	if err == nil {
		t.Fatal("Expected error for unreachable service")
	}
	if !backuperrors.IsType(err, backuperrors.ErrorTypeSnapshotTrigger) {
		t.Errorf("Expected SNAPSHOT_TRIGGER_ERROR, got %v", err)
	}
}
