package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerConfigValidate(t *testing.T) {
	config := ServerConfig{
		Host:     "localhost",
		Port:     3306,
		Username: "backup",
		Password: "secret",
		Timeout:  30 * time.Second,
	}

	assert.NoError(t, config.Validate())
}

func TestServerConfigValidateMissingHost(t *testing.T) {
	config := ServerConfig{
		Port:     3306,
		Username: "backup",
	}

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host is required")
}

func TestServerConfigValidateBadPort(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		config := ServerConfig{
			Host:     "localhost",
			Port:     port,
			Username: "backup",
		}
		assert.Error(t, config.Validate(), "port %d should be rejected", port)
	}
}

func TestServerConfigValidateMissingUsername(t *testing.T) {
	config := ServerConfig{
		Host: "localhost",
		Port: 3306,
	}

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username is required")
}

func TestServerConfigValidateDefaultsTimeout(t *testing.T) {
	config := ServerConfig{
		Host:     "localhost",
		Port:     3306,
		Username: "backup",
	}

	require.NoError(t, config.Validate())
	assert.Equal(t, 30*time.Second, config.Timeout)
}

func TestServerConfigSetDefaults(t *testing.T) {
	config := ServerConfig{Username: "backup"}
	config.SetDefaults()

	assert.Equal(t, "localhost", config.Host)
	assert.Equal(t, 3306, config.Port)
	assert.Equal(t, 30*time.Second, config.Timeout)
}

func TestDSN(t *testing.T) {
	config := ServerConfig{
		Host:     "db.internal",
		Port:     3307,
		Username: "backup",
		Password: "secret",
		Timeout:  10 * time.Second,
	}

	dsn := config.DSN("shop")
	assert.Contains(t, dsn, "backup:secret@tcp(db.internal:3307)/shop")
	assert.Contains(t, dsn, "parseTime=true")
}
