package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 3200, cfg.APIPort)
	assert.Equal(t, "*", cfg.CORSOrigin)
	assert.Equal(t, 120, cfg.DecisionRateLimit)
	assert.Equal(t, 30*time.Second, cfg.PublishResetTimeout)
	assert.Equal(t, "Cancelled by admin", cfg.CancelRemark)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.KafkaEnabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("API_PORT", "8080")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("REBATE_CANCEL_REMARK", "Rejected by risk")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "Rejected by risk", cfg.CancelRemark)
}

func TestConfig_Validate(t *testing.T) {
	base := Config{
		APIPort:                 3200,
		SessionTTL:              time.Hour,
		SessionSweepInterval:    time.Minute,
		RebateEventsTopic:       "t",
		DecisionRateLimit:       60,
		PublishFailureThreshold: 5,
		PublishResetTimeout:     30 * time.Second,
	}

	t.Run("valid", func(t *testing.T) {
		cfg := base
		assert.NoError(t, cfg.Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := base
		cfg.APIPort = 70000
		assert.ErrorContains(t, cfg.Validate(), "API_PORT")
	})

	t.Run("zero ttl", func(t *testing.T) {
		cfg := base
		cfg.SessionTTL = 0
		assert.ErrorContains(t, cfg.Validate(), "SESSION_TTL")
	})

	t.Run("zero rate limit", func(t *testing.T) {
		cfg := base
		cfg.DecisionRateLimit = 0
		assert.ErrorContains(t, cfg.Validate(), "DECISION_RATE_LIMIT")
	})

	t.Run("kafka without topic", func(t *testing.T) {
		cfg := base
		cfg.KafkaEnabled = true
		cfg.RebateEventsTopic = " "
		assert.ErrorContains(t, cfg.Validate(), "REBATE_EVENTS_TOPIC")
	})
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{PGUser: "u", PGPassword: "p", PGHost: "db", PGPort: 5432, PGDatabase: "bo"}
	assert.Equal(t, "postgres://u:p@db:5432/bo?sslmode=disable", cfg.DSN())

	cfg.DatabaseURL = "postgres://override"
	assert.Equal(t, "postgres://override", cfg.DSN())
}
