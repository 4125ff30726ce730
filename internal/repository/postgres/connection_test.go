package postgres

import (
	"testing"
	"time"

	"github.com/cassiomorais/edi-gateway/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:             "db",
		Port:             5432,
		User:             "edi",
		Password:         "secret",
		Database:         "edi",
		MaxConnections:   20,
		MinConnections:   2,
		ConnMaxLifetime:  time.Hour,
		SSLMode:          "disable",
		ApplicationName:  "edi-api",
		StatementTimeout: 5 * time.Second,
		IdleInTxTimeout:  time.Minute,
	}

	pc, err := poolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(20), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
	params := pc.ConnConfig.RuntimeParams
	assert.Equal(t, "UTC", params["timezone"])
	assert.Equal(t, "edi-api", params["application_name"])
	assert.Equal(t, "5000", params["statement_timeout"])
	assert.Equal(t, "60000", params["idle_in_transaction_session_timeout"])
}

func TestPoolConfig_OmitsUnsetTimeouts(t *testing.T) {
	pc, err := poolConfig(&config.DatabaseConfig{Host: "db", Port: 5432, User: "edi", Password: "x", Database: "edi", SSLMode: "disable", MaxConnections: 1})
	require.NoError(t, err)

	assert.NotContains(t, pc.ConnConfig.RuntimeParams, "statement_timeout")
	assert.NotContains(t, pc.ConnConfig.RuntimeParams, "idle_in_transaction_session_timeout")
}
