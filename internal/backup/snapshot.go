package backup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	backuperrors "mysql-physical-backup/internal/errors"
	"mysql-physical-backup/internal/logging"
)

// SnapshotTrigger issues one blocking request to the external snapshot
// service. The call must happen while every database is locked, flushed,
// synced, validated and exported, and before any unlock. It is the single
// serialization point the whole pipeline exists to reach.
type SnapshotTrigger struct {
	endpoint string
	client   *http.Client
	logger   *logging.Logger
}

// NewSnapshotTrigger creates a trigger for the configured endpoint. A zero
// timeout means the call blocks until the service responds; the job framework
// owns any outer deadline.
func NewSnapshotTrigger(endpoint string, timeout time.Duration, logger *logging.Logger) *SnapshotTrigger {
	return &SnapshotTrigger{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Trigger requests the snapshot. Any non-2xx response is fatal to the run: no
// usable snapshot was taken, and retry policy belongs to the job framework.
func (t *SnapshotTrigger) Trigger(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, nil)
	if err != nil {
		return backuperrors.NewSnapshotTriggerError("failed to build snapshot request", err)
	}

	startTime := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		triggerErr := backuperrors.NewSnapshotTriggerError("snapshot request failed", err)
		t.logger.LogSnapshotTrigger(t.endpoint, 0, time.Since(startTime), triggerErr)
		return triggerErr
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		triggerErr := backuperrors.NewSnapshotTriggerError(
			fmt.Sprintf("snapshot service returned status %d", resp.StatusCode), nil).
			WithContext("status", resp.StatusCode).
			WithContext("body", string(body))
		t.logger.LogSnapshotTrigger(t.endpoint, resp.StatusCode, time.Since(startTime), triggerErr)
		return triggerErr
	}

	t.logger.LogSnapshotTrigger(t.endpoint, resp.StatusCode, time.Since(startTime), nil)
	return nil
}
