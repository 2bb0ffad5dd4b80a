package infra

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL   string `env:"DATABASE_URL"`
	PGHost        string `env:"PGHOST" envDefault:"localhost"`
	PGPort        int    `env:"PGPORT" envDefault:"5435"`
	PGUser        string `env:"PGUSER" envDefault:"backoffice"`
	PGPassword    string `env:"PGPASSWORD" envDefault:"backoffice"`
	PGDatabase    string `env:"PGDATABASE" envDefault:"backoffice"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"false"`

	// Server
	APIPort    int    `env:"API_PORT" envDefault:"3200"`
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"*"`

	// Kafka
	KafkaBrokers      string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled      bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	RebateEventsTopic string `env:"REBATE_EVENTS_TOPIC" envDefault:"backoffice.rebate.decisions"`
	AuditGroupID      string `env:"AUDIT_GROUP_ID" envDefault:"backoffice-decision-audit"`

	// Guards
	DecisionRateLimit       int           `env:"DECISION_RATE_LIMIT" envDefault:"120"`
	PublishFailureThreshold int           `env:"PUBLISH_FAILURE_THRESHOLD" envDefault:"5"`
	PublishResetTimeout     time.Duration `env:"PUBLISH_RESET_TIMEOUT" envDefault:"30s"`

	// Rebate sessions
	CancelRemark         string        `env:"REBATE_CANCEL_REMARK" envDefault:"Cancelled by admin"`
	SessionTTL           time.Duration `env:"SESSION_TTL" envDefault:"2h"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT %d is out of range", c.APIPort)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.SessionSweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be positive, got %s", c.SessionSweepInterval)
	}
	if c.DecisionRateLimit <= 0 {
		return fmt.Errorf("DECISION_RATE_LIMIT must be positive, got %d", c.DecisionRateLimit)
	}
	if c.PublishFailureThreshold <= 0 || c.PublishResetTimeout <= 0 {
		return fmt.Errorf("PUBLISH_FAILURE_THRESHOLD and PUBLISH_RESET_TIMEOUT must be positive")
	}
	if c.KafkaEnabled && strings.TrimSpace(c.RebateEventsTopic) == "" {
		return fmt.Errorf("REBATE_EVENTS_TOPIC is required when KAFKA_ENABLED=true")
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
