package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mysql-physical-backup/internal/backup"
	"mysql-physical-backup/internal/database"
)

var cfgFile string

// CLI flag variables
var (
	// Database server flags
	databases  []string
	dbHost     string
	dbPort     int
	dbUser     string
	dbPassword string
	dbBasePath string

	// Snapshot flags
	snapshotURL     string
	snapshotTimeout time.Duration

	// Operation flags
	verbose     bool
	quiet       bool
	timeout     time.Duration
	logFile     string
	logFormat   string
	manifestOut string
	noColor     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mysql-physical-backup",
	Short: "Crash-consistent physical backups of live MySQL/MariaDB databases",
	Long: `mysql-physical-backup produces a crash-consistent physical backup of one or
more live databases co-located on a host. It locks and flushes every exportable
table, forces the database files to durable storage, validates the physical
files needed for restore, captures schema-only DDL while locked, triggers an
external block-storage snapshot, and releases the locks regardless of outcome.

Examples:
  # Back up two databases and trigger the snapshot service
  mysql-physical-backup --databases=shop,crm --db-user=backup \
                        --snapshot-url=http://snapshots.internal/trigger

  # Use a configuration file and write the manifest for the job runner
  mysql-physical-backup --config=backup.yaml --manifest-out=manifest.yaml

  # Verbose run against a non-default data directory
  mysql-physical-backup --databases=shop --db-user=backup \
                        --db-base-path=/srv/mysql \
                        --snapshot-url=http://snapshots.internal/trigger -v`,
	RunE: runBackup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mysql-physical-backup.yaml)")

	// Database server flags
	rootCmd.Flags().StringSliceVar(&databases, "databases", nil, "databases to back up (comma separated)")
	rootCmd.Flags().StringVar(&dbHost, "db-host", "localhost", "database host")
	rootCmd.Flags().IntVar(&dbPort, "db-port", 3306, "database port")
	rootCmd.Flags().StringVar(&dbUser, "db-user", "", "database username")
	rootCmd.Flags().StringVar(&dbPassword, "db-password", "", "database password (prompted when omitted)")
	rootCmd.Flags().StringVar(&dbBasePath, "db-base-path", backup.DefaultBasePath, "base path holding one directory per database")

	// Snapshot flags
	rootCmd.Flags().StringVar(&snapshotURL, "snapshot-url", "", "snapshot service trigger endpoint")
	rootCmd.Flags().DurationVar(&snapshotTimeout, "snapshot-timeout", 0, "snapshot request timeout (0 = wait indefinitely)")

	// Operation flags
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "database operation timeout")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "write logs to file in addition to stdout")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.Flags().StringVar(&manifestOut, "manifest-out", "", "write the backup manifest to this YAML file")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "disable color output")

	// Bind flags to viper
	viper.BindPFlag("databases", rootCmd.Flags().Lookup("databases"))
	viper.BindPFlag("server.host", rootCmd.Flags().Lookup("db-host"))
	viper.BindPFlag("server.port", rootCmd.Flags().Lookup("db-port"))
	viper.BindPFlag("server.username", rootCmd.Flags().Lookup("db-user"))
	viper.BindPFlag("server.password", rootCmd.Flags().Lookup("db-password"))
	viper.BindPFlag("server.timeout", rootCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("base_path", rootCmd.Flags().Lookup("db-base-path"))
	viper.BindPFlag("snapshot_url", rootCmd.Flags().Lookup("snapshot-url"))
	viper.BindPFlag("snapshot_timeout", rootCmd.Flags().Lookup("snapshot-timeout"))
	viper.BindPFlag("verbose", rootCmd.Flags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.Flags().Lookup("quiet"))
	viper.BindPFlag("log_file", rootCmd.Flags().Lookup("log-file"))
	viper.BindPFlag("log_format", rootCmd.Flags().Lookup("log-format"))
	viper.BindPFlag("manifest_out", rootCmd.Flags().Lookup("manifest-out"))
}

// validateFlags validates CLI flags and their combinations
func validateFlags() error {
	if verbose && quiet {
		return fmt.Errorf("--verbose and --quiet flags are mutually exclusive")
	}

	if cfgFile == "" {
		missingFlags := []string{}

		if len(databases) == 0 {
			missingFlags = append(missingFlags, "--databases")
		}
		if dbUser == "" {
			missingFlags = append(missingFlags, "--db-user")
		}
		if snapshotURL == "" {
			missingFlags = append(missingFlags, "--snapshot-url")
		}

		if len(missingFlags) > 0 {
			return fmt.Errorf("required flags missing: %v\nUse --config flag to specify a configuration file, or provide all required parameters", missingFlags)
		}
	}

	if timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}

	return nil
}

// buildConfig builds the run configuration from CLI flags and config file
func buildConfig(cmd *cobra.Command) (*runConfig, error) {
	config := &runConfig{}

	// Load from viper (combines config file and CLI flags)
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Explicit flag overrides take precedence over config file values
	if len(databases) > 0 {
		config.Databases = databases
	}
	if cmd.Flags().Changed("db-host") {
		config.Server.Host = dbHost
	}
	if cmd.Flags().Changed("db-port") {
		config.Server.Port = dbPort
	}
	if dbUser != "" {
		config.Server.Username = dbUser
	}
	if dbPassword != "" {
		config.Server.Password = dbPassword
	}
	if cmd.Flags().Changed("db-base-path") {
		config.BasePath = dbBasePath
	}
	if snapshotURL != "" {
		config.SnapshotURL = snapshotURL
	}
	if cmd.Flags().Changed("snapshot-timeout") {
		config.SnapshotTimeout = snapshotTimeout
	}
	if cmd.Flags().Changed("timeout") {
		config.Server.Timeout = timeout
	}
	if cmd.Flags().Changed("verbose") {
		config.Verbose = verbose
	}
	if cmd.Flags().Changed("quiet") {
		config.Quiet = quiet
	}
	if logFile != "" {
		config.LogFile = logFile
	}
	if cmd.Flags().Changed("log-format") {
		config.LogFormat = logFormat
	}
	if manifestOut != "" {
		config.ManifestOut = manifestOut
	}
	config.NoColor = noColor

	config.SetDefaults()

	return config, nil
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".mysql-physical-backup")
	}

	viper.SetEnvPrefix("MYSQL_PHYSICAL_BACKUP")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// runConfig is the full CLI configuration: the core backup config plus the
// presentation and logging settings that stay outside the orchestrator.
type runConfig struct {
	Databases       []string              `mapstructure:"databases"`
	Server          database.ServerConfig `mapstructure:"server"`
	BasePath        string                `mapstructure:"base_path"`
	SnapshotURL     string                `mapstructure:"snapshot_url"`
	SnapshotTimeout time.Duration         `mapstructure:"snapshot_timeout"`
	Verbose         bool                  `mapstructure:"verbose"`
	Quiet           bool                  `mapstructure:"quiet"`
	LogFile         string                `mapstructure:"log_file"`
	LogFormat       string                `mapstructure:"log_format"`
	ManifestOut     string                `mapstructure:"manifest_out"`
	NoColor         bool                  `mapstructure:"no_color"`
}

// SetDefaults sets default values for the configuration
func (c *runConfig) SetDefaults() {
	c.Server.SetDefaults()
	if c.BasePath == "" {
		c.BasePath = backup.DefaultBasePath
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// BackupConfig extracts the orchestrator configuration
func (c *runConfig) BackupConfig() backup.Config {
	return backup.Config{
		Databases:       c.Databases,
		Server:          c.Server,
		BasePath:        c.BasePath,
		SnapshotURL:     c.SnapshotURL,
		SnapshotTimeout: c.SnapshotTimeout,
	}
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mysql-physical-backup version %s\n", version)
			fmt.Printf("Built: %s\n", buildTime)
			fmt.Printf("Commit: %s\n", gitCommit)
			fmt.Printf("Go version: %s\n", goVersion)
		},
	}
}

// createConfigCommand creates the config subcommand for generating sample config
func createConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Generate a sample configuration file",
		Long: `Generate a sample configuration file that can be used with the --config flag.

Examples:
  mysql-physical-backup config > backup.yaml`,
		Run: func(cmd *cobra.Command, args []string) {
			sampleConfig := `# mysql-physical-backup configuration file

# Databases to back up. All must live on the same server.
databases:
  - shop
  - crm

# Database server connection
server:
  host: localhost         # Database hostname or IP
  port: 3306              # Database port
  username: backup        # Database username
  password: ""            # Database password (use env var for security)
  timeout: 30s            # Per-statement timeout for short operations

# Base path holding one directory per database
base_path: /var/lib/mysql

# Snapshot service
snapshot_url: http://snapshots.internal/trigger
snapshot_timeout: 0s      # 0 = wait indefinitely for the snapshot service

# Operation settings
verbose: false            # Enable verbose output
quiet: false              # Suppress non-error output
log_file: ""              # Optional log file path (empty = stdout only)
log_format: text          # Log format (text, json)
manifest_out: ""          # Optional YAML manifest output path

# Security recommendations:
# 1. Store the password in an environment variable:
#    export MYSQL_PHYSICAL_BACKUP_SERVER_PASSWORD=your_password
# 2. Set restrictive file permissions: chmod 600 backup.yaml
# 3. Use a dedicated database user with RELOAD and SELECT privileges
`
			fmt.Print(sampleConfig)
		},
	}
}

func init() {
	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createConfigCommand())
}
