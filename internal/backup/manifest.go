package backup

import (
	"time"
)

// MetadataCollector aggregates catalog and schema results into a manifest.
// Pure in-memory composition: no I/O, no failure mode of its own.
type MetadataCollector struct{}

// NewMetadataCollector creates a metadata collector
func NewMetadataCollector() *MetadataCollector {
	return &MetadataCollector{}
}

// Collect builds the read-only backup manifest from the per-database table
// lists and schema texts. Slices are copied so the manifest stays stable even
// if the pipeline state is reused.
func (c *MetadataCollector) Collect(runID string, databases []*Database, schemas map[string]string) *Manifest {
	manifest := &Manifest{
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Databases: make(map[string]DatabaseManifest, len(databases)),
	}

	for _, db := range databases {
		manifest.Databases[db.Name] = DatabaseManifest{
			InnoDBTables: append([]string(nil), db.Tables.InnoDB...),
			MyISAMTables: append([]string(nil), db.Tables.MyISAM...),
			Schema:       schemas[db.Name],
		}
	}

	return manifest
}
