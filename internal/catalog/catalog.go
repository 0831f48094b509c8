package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"mysql-physical-backup/internal/logging"
)

// Storage engines that require physical files to be exported for restore.
// Tables on any other engine are excluded from the physical backup.
const (
	EngineInnoDB = "InnoDB"
	EngineMyISAM = "MyISAM"
)

// TableSet holds the classified tables of one database, sorted by name.
// The ordering is load-bearing: the flush statement and the file-existence
// checks are built from these lists and must be deterministic.
type TableSet struct {
	InnoDB []string
	MyISAM []string
}

// All returns the InnoDB tables followed by the MyISAM tables
func (s TableSet) All() []string {
	all := make([]string, 0, len(s.InnoDB)+len(s.MyISAM))
	all = append(all, s.InnoDB...)
	all = append(all, s.MyISAM...)
	return all
}

// Empty reports whether the database has no exportable tables
func (s TableSet) Empty() bool {
	return len(s.InnoDB) == 0 && len(s.MyISAM) == 0
}

// Catalog queries databases for their tables and storage engines
type Catalog struct {
	queryTimeout time.Duration
	logger       *logging.Logger
}

// NewCatalog creates a new table catalog
func NewCatalog(logger *logging.Logger) *Catalog {
	return &Catalog{
		queryTimeout: 30 * time.Second,
		logger:       logger,
	}
}

// NewCatalogWithTimeout creates a table catalog with a custom query timeout
func NewCatalogWithTimeout(timeout time.Duration, logger *logging.Logger) *Catalog {
	return &Catalog{
		queryTimeout: timeout,
		logger:       logger,
	}
}

// Tables fetches and classifies the tables of the named schema, excluding views
func (c *Catalog) Tables(ctx context.Context, db *sql.DB, schemaName string) (TableSet, error) {
	var set TableSet

	if db == nil {
		return set, fmt.Errorf("database connection is nil")
	}
	if schemaName == "" {
		return set, fmt.Errorf("schema name cannot be empty")
	}

	query := `
		SELECT TABLE_NAME, ENGINE
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE != 'VIEW'
		ORDER BY TABLE_NAME
	`

	queryCtx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	rows, err := db.QueryContext(queryCtx, query, schemaName)
	if err != nil {
		return set, fmt.Errorf("failed to query tables of %s: %w", schemaName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var tableName string
		var engine sql.NullString
		if err := rows.Scan(&tableName, &engine); err != nil {
			return TableSet{}, fmt.Errorf("failed to scan table row: %w", err)
		}

		switch engine.String {
		case EngineInnoDB:
			set.InnoDB = append(set.InnoDB, tableName)
		case EngineMyISAM:
			set.MyISAM = append(set.MyISAM, tableName)
		}
	}

	if err := rows.Err(); err != nil {
		return TableSet{}, fmt.Errorf("error iterating table rows: %w", err)
	}

	// The query orders by name already; sort again so the guarantee does not
	// rest on the server alone.
	sort.Strings(set.InnoDB)
	sort.Strings(set.MyISAM)

	c.logger.WithFields(map[string]interface{}{
		"database":      schemaName,
		"innodb_tables": len(set.InnoDB),
		"myisam_tables": len(set.MyISAM),
	}).Debug("Catalogued database tables")

	return set, nil
}
