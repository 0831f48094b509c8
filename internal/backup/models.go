package backup

import (
	"time"

	"gopkg.in/yaml.v3"

	"mysql-physical-backup/internal/catalog"
)

// Database is the per-database state tracked across the pipeline. The lock flag
// is mutated only by the Synchronizer (on a successful flush-for-export) and
// the LockManager (on unlock); every other step only reads it.
type Database struct {
	Name      string
	Directory string
	Tables    catalog.TableSet

	locked bool
}

// Locked reports whether the database's tables are currently read-locked
func (d *Database) Locked() bool {
	return d.locked
}

// DatabaseManifest holds the backup metadata of a single database
type DatabaseManifest struct {
	InnoDBTables []string `yaml:"innodb_tables" json:"innodb_tables"`
	MyISAMTables []string `yaml:"myisam_tables" json:"myisam_tables"`
	Schema       string   `yaml:"schema" json:"schema"`
}

// Manifest is the read-only aggregate produced after all pipeline steps
// succeed. It has no consumer inside this module; the caller hands it to the
// job framework for persistence.
type Manifest struct {
	RunID     string                      `yaml:"run_id" json:"run_id"`
	CreatedAt time.Time                   `yaml:"created_at" json:"created_at"`
	Databases map[string]DatabaseManifest `yaml:"databases" json:"databases"`
}

// ToYAML serializes the manifest for handoff to external tooling
func (m *Manifest) ToYAML() ([]byte, error) {
	return yaml.Marshal(m)
}
