package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iamasit07/colorguess/backend/internal/domain"
)

type Config struct {
	// Game rules
	PlayersNumber      int               `env:"PLAYERS_NUMBER" envDefault:"2"`
	ColorChoicesNumber int               `env:"COLOR_CHOICES_NUMBER" envDefault:"3"`
	ChoicesCardNumber  int               `env:"CHOICES_CARD_NUMBER" envDefault:"5"`
	TurnPolicy         domain.TurnPolicy `env:"TURN_POLICY" envDefault:"continue"`

	// Ephemeral state
	GameStateTTL  time.Duration `env:"GAME_STATE_TTL" envDefault:"24h"`
	LockTTL       time.Duration `env:"LOCK_TTL" envDefault:"5s"`
	LockWait      time.Duration `env:"LOCK_WAIT" envDefault:"2s"`
	RedisURL      string        `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`

	// Database Config
	DatabaseURL          string `env:"DATABASE_URL"`
	DBMaxOpenConns       int    `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns       int    `env:"DB_MAX_IDLE_CONNS" envDefault:"25"`
	DBConnMaxLifetimeMin int    `env:"DB_CONN_MAX_LIFETIME_MINUTES" envDefault:"5"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// LoadConfig reads the process environment. Callers load any .env file first.
func LoadConfig() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.PlayersNumber < 1 {
		return fmt.Errorf("PLAYERS_NUMBER must be positive, got %d", c.PlayersNumber)
	}
	if c.ColorChoicesNumber < 1 {
		return fmt.Errorf("COLOR_CHOICES_NUMBER must be positive, got %d", c.ColorChoicesNumber)
	}
	if c.ChoicesCardNumber < 1 {
		return fmt.Errorf("CHOICES_CARD_NUMBER must be positive, got %d", c.ChoicesCardNumber)
	}
	if !c.TurnPolicy.Valid() {
		return fmt.Errorf("unknown TURN_POLICY %q (want %q, %q or %q)", c.TurnPolicy, domain.TurnPolicyContinue, domain.TurnPolicyReset, domain.TurnPolicyRotate)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive, got %s", c.LockTTL)
	}
	return nil
}
