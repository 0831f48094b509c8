package database

import (
	"errors"
	"fmt"
	"time"
)

// ServerConfig holds the connection parameters shared by every database on the host
type ServerConfig struct {
	Host     string        `mapstructure:"host" yaml:"host"`
	Port     int           `mapstructure:"port" yaml:"port"`
	Username string        `mapstructure:"username" yaml:"username"`
	Password string        `mapstructure:"password" yaml:"password"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Validate checks if the server configuration has all required parameters
func (sc *ServerConfig) Validate() error {
	var errs []error

	if sc.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}

	if sc.Port <= 0 || sc.Port > 65535 {
		errs = append(errs, errors.New("port must be between 1 and 65535"))
	}

	if sc.Username == "" {
		errs = append(errs, errors.New("username is required"))
	}

	if sc.Timeout <= 0 {
		sc.Timeout = 30 * time.Second
	}

	if len(errs) > 0 {
		return fmt.Errorf("server configuration validation failed: %v", errs)
	}

	return nil
}

// SetDefaults sets default values for the configuration
func (sc *ServerConfig) SetDefaults() {
	if sc.Host == "" {
		sc.Host = "localhost"
	}
	if sc.Port == 0 {
		sc.Port = 3306
	}
	if sc.Timeout == 0 {
		sc.Timeout = 30 * time.Second
	}
}

// DSN returns the Data Source Name for a connection to the named database
func (sc *ServerConfig) DSN(database string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?timeout=%s&parseTime=true",
		sc.Username, sc.Password, sc.Host, sc.Port, database, sc.Timeout)
}
