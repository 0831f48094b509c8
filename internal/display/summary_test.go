package display

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"mysql-physical-backup/internal/backup"
)

func sampleManifest() *backup.Manifest {
	return &backup.Manifest{
		RunID:     "run-7",
		CreatedAt: time.Now().UTC(),
		Databases: map[string]backup.DatabaseManifest{
			"shop": {
				InnoDBTables: []string{"orders", "users"},
				MyISAMTables: []string{"logs"},
				Schema:       "CREATE TABLE ...",
			},
			"crm": {
				InnoDBTables: []string{"contacts"},
			},
		},
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	summary := NewSummary(&buf, true)
	summary.Render(sampleManifest(), 1500*time.Millisecond)

	out := buf.String()
	for _, want := range []string{
		"Physical Backup Complete",
		"run-7",
		"1.5s",
		"shop",
		"crm",
		"InnoDB tables: 2",
		"MyISAM tables: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q:\n%s", want, out)
		}
	}

	// databases render in sorted order
	if strings.Index(out, "crm") > strings.Index(out, "shop") {
		t.Error("Expected databases to be listed alphabetically")
	}
}

func TestRenderNoColorForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	summary := NewSummary(&buf, false)
	summary.Render(sampleManifest(), time.Second)

	if strings.Contains(buf.String(), "\x1b[") {
		t.Error("Expected no ANSI escapes when output is not a terminal")
	}
}

func TestRenderNilManifest(t *testing.T) {
	var buf bytes.Buffer
	NewSummary(&buf, true).Render(nil, time.Second)

	if buf.Len() != 0 {
		t.Errorf("Expected no output for nil manifest, got %q", buf.String())
	}
}
