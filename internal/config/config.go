package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ServiceURL string `env:"MUC_SERVICE_URL,required"`
	BotJID     string `env:"MUC_BOT_JID,required"`
	BotSecret  string `env:"MUC_BOT_SECRET,required"`
	BotNick    string `env:"MUC_BOT_NICK" envDefault:"roombot"`
	MUCDomain  string `env:"MUC_DOMAIN,required"`
	SitePrefix string `env:"SITE_PREFIX" envDefault:"care"`

	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`

	One2OnePoolSize    int `env:"ONE2ONE_POOL_SIZE" envDefault:"5"`
	GroupPoolSize      int `env:"GROUP_POOL_SIZE" envDefault:"2"`
	LobbyPoolSize      int `env:"LOBBY_POOL_SIZE" envDefault:"1"`
	WaitingPoolSize    int `env:"WAITING_POOL_SIZE" envDefault:"1"`
	InvitationPoolSize int `env:"INVITATION_POOL_SIZE" envDefault:"2"`

	HistoryMaxStanzas      int  `env:"HISTORY_MAX_STANZAS" envDefault:"0"`
	IntakeSurveyRequired   bool `env:"INTAKE_SURVEY_REQUIRED" envDefault:"false"`
	ReconnectDelaySeconds  int  `env:"RECONNECT_DELAY_SECONDS" envDefault:"5"`
	PollTimeoutMillis      int  `env:"POLL_TIMEOUT_MILLIS" envDefault:"200"`
	CleanupIntervalSeconds int  `env:"CLEANUP_INTERVAL_SECONDS" envDefault:"300"`
	RoomTimeoutSeconds     int  `env:"ROOM_TIMEOUT_SECONDS" envDefault:"1800"`
	TokenTTLSeconds        int  `env:"TOKEN_TTL_SECONDS" envDefault:"86400"`

	HealthPort int    `env:"HEALTH_PORT" envDefault:"8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySeconds) * time.Second
}

func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMillis) * time.Millisecond
}

func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}

func (c *Config) RoomTimeout() time.Duration {
	return time.Duration(c.RoomTimeoutSeconds) * time.Second
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLSeconds) * time.Second
}

func (c *Config) HealthAddr() string {
	return fmt.Sprintf(":%d", c.HealthPort)
}

// PoolSize returns the configured target pool size for a room kind string.
func (c *Config) PoolSize(kind string) int {
	switch kind {
	case "one2one":
		return c.One2OnePoolSize
	case "group":
		return c.GroupPoolSize
	case "lobby":
		return c.LobbyPoolSize
	case "waiting":
		return c.WaitingPoolSize
	}
	return 0
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
