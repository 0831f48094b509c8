package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"mysql-physical-backup/internal/catalog"
	"mysql-physical-backup/internal/database"
	backuperrors "mysql-physical-backup/internal/errors"
	"mysql-physical-backup/internal/logging"
)

// DefaultBasePath is where MySQL keeps one directory per database
const DefaultBasePath = "/var/lib/mysql"

// Config holds everything a backup run needs
type Config struct {
	Databases       []string              `mapstructure:"databases" yaml:"databases"`
	Server          database.ServerConfig `mapstructure:"server" yaml:"server"`
	BasePath        string                `mapstructure:"base_path" yaml:"base_path"`
	SnapshotURL     string                `mapstructure:"snapshot_url" yaml:"snapshot_url"`
	SnapshotTimeout time.Duration         `mapstructure:"snapshot_timeout" yaml:"snapshot_timeout"`
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	if c.BasePath == "" {
		c.BasePath = DefaultBasePath
	}
}

// Validate checks the run configuration before any connection is opened
func (c *Config) Validate() error {
	if len(c.Databases) == 0 {
		return backuperrors.NewConfigurationError("at least one database is required")
	}
	seen := make(map[string]struct{}, len(c.Databases))
	for _, name := range c.Databases {
		if name == "" {
			return backuperrors.NewConfigurationError("database name cannot be empty")
		}
		if _, dup := seen[name]; dup {
			return backuperrors.NewConfigurationError(fmt.Sprintf("database %s is configured twice", name))
		}
		seen[name] = struct{}{}
	}
	if c.SnapshotURL == "" {
		return backuperrors.NewConfigurationError("snapshot trigger URL is required")
	}
	if err := c.Server.Validate(); err != nil {
		return backuperrors.NewConfigurationError(err.Error())
	}
	return nil
}

// Orchestrator runs the physical backup pipeline: catalog all databases, lock
// and flush all, sync to disk all, validate all, export schemas all, build the
// manifest, trigger one snapshot, unlock all. Step-major looping is deliberate
// and must be preserved: it bounds the skew between lock-acquisition times
// across databases sharing the single snapshot.
//
// An Orchestrator owns mutable per-database state and is not safe for
// concurrent use; callers must serialize runs per instance.
type Orchestrator struct {
	cfg       Config
	registry  *database.Registry
	catalog   *catalog.Catalog
	sync      *Synchronizer
	validator *FileValidator
	exporter  *SchemaExporter
	trigger   *SnapshotTrigger
	locks     *LockManager
	collector *MetadataCollector
	logger    *logging.Logger

	databases []*Database
	schemas   map[string]string
	manifest  *Manifest
}

type step struct {
	name string
	fn   func(context.Context) error
}

// NewOrchestrator creates an orchestrator for the configured databases. It
// fails with a configuration error before opening any connection. Defaults are
// applied before the registry is built so the connection layer sees them too.
func NewOrchestrator(cfg Config, logger *logging.Logger) (*Orchestrator, error) {
	cfg.SetDefaults()
	return NewOrchestratorWithRegistry(cfg, database.NewRegistry(cfg.Server, cfg.Databases, logger), logger)
}

// NewOrchestratorWithRegistry creates an orchestrator on an existing registry.
// Tests use this to inject sqlmock-backed connections.
func NewOrchestratorWithRegistry(cfg Config, registry *database.Registry, logger *logging.Logger) (*Orchestrator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	databases := make([]*Database, 0, len(cfg.Databases))
	for _, name := range cfg.Databases {
		databases = append(databases, &Database{
			Name:      name,
			Directory: filepath.Join(cfg.BasePath, name),
		})
	}

	return &Orchestrator{
		cfg:       cfg,
		registry:  registry,
		catalog:   catalog.NewCatalog(logger),
		sync:      NewSynchronizer(registry, logger),
		validator: NewFileValidator(logger),
		exporter:  NewSchemaExporter(cfg.Server, logger),
		trigger:   NewSnapshotTrigger(cfg.SnapshotURL, cfg.SnapshotTimeout, logger),
		locks:     NewLockManager(registry, logger),
		collector: NewMetadataCollector(),
		logger:    logger,
		databases: databases,
		schemas:   make(map[string]string, len(cfg.Databases)),
	}, nil
}

func (o *Orchestrator) steps() []step {
	return []step{
		{StepFetchTableInfo, o.fetchTableInfo},
		{StepFlushTables, o.flushTables},
		{StepSyncToDisk, o.syncToDisk},
		{StepValidateFiles, o.validateFiles},
		{StepExportSchemas, o.exportSchemas},
		{StepCollectMeta, o.collectMetadata},
		{StepCreateSnapshot, o.createSnapshot},
		{StepUnlockTables, o.unlockTables},
	}
}

// Run executes the pipeline and returns the backup manifest. Teardown runs on
// every exit path: whatever happened, every database still flagged locked is
// force-unlocked and every connection is closed before the error surfaces.
func (o *Orchestrator) Run(ctx context.Context) (*Manifest, error) {
	o.logger.WithFields(map[string]interface{}{
		"job":       JobName,
		"databases": o.cfg.Databases,
	}).Info("Starting physical backup")

	defer o.teardown(ctx)

	for _, st := range o.steps() {
		done := o.logger.LogStepStart(st.name, nil)
		err := st.fn(ctx)
		done(err)
		if err != nil {
			return nil, withStep(err, st.name)
		}
	}

	o.logger.Info("Physical backup completed")
	return o.manifest, nil
}

// teardown is the unconditional cleanup guarantee the whole design depends
// on. It uses a context detached from the run's cancellation so an aborted
// run still gets its locks released.
func (o *Orchestrator) teardown(ctx context.Context) {
	cleanupCtx := context.WithoutCancel(ctx)
	o.locks.ForceUnlockAll(cleanupCtx, o.databases)
	o.registry.CloseAll()
}

func (o *Orchestrator) fetchTableInfo(ctx context.Context) error {
	for _, db := range o.databases {
		conn, err := o.registry.Connection(ctx, db.Name)
		if err != nil {
			return err
		}
		tables, err := o.catalog.Tables(ctx, conn, db.Name)
		if err != nil {
			return err
		}
		db.Tables = tables
	}
	return nil
}

func (o *Orchestrator) flushTables(ctx context.Context) error {
	for _, db := range o.databases {
		if err := o.sync.FlushForExport(ctx, db); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) syncToDisk(context.Context) error {
	for _, db := range o.databases {
		if err := o.sync.SyncToDisk(db); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) validateFiles(context.Context) error {
	for _, db := range o.databases {
		if err := o.validator.Validate(db); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) exportSchemas(ctx context.Context) error {
	for _, db := range o.databases {
		schema, err := o.exporter.Export(ctx, db)
		if err != nil {
			return err
		}
		o.schemas[db.Name] = schema
	}
	return nil
}

func (o *Orchestrator) collectMetadata(context.Context) error {
	o.manifest = o.collector.Collect(o.runID(), o.databases, o.schemas)
	return nil
}

func (o *Orchestrator) createSnapshot(ctx context.Context) error {
	return o.trigger.Trigger(ctx)
}

func (o *Orchestrator) unlockTables(ctx context.Context) error {
	for _, db := range o.databases {
		if err := o.locks.Unlock(ctx, db); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runID() string {
	if o.logger != nil && o.logger.RunID() != "" {
		return o.logger.RunID()
	}
	return uuid.NewString()
}

// withStep attaches the failing step name to the surfaced error
func withStep(err error, stepName string) error {
	if backupErr, ok := backuperrors.As(err); ok {
		return backupErr.WithStep(stepName)
	}
	return fmt.Errorf("step %q: %w", stepName, err)
}
