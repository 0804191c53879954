// Package config defines the top-level configuration for the pools daemon
// and provides validation helpers.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SOCCERSM_* environment
// variables.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Custody  CustodyConfig  `toml:"custody"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Oracle   OracleConfig   `toml:"oracle"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// EngineConfig holds the pool engine's economic and lifecycle parameters.
type EngineConfig struct {
	CreateFeeBps     int `toml:"create_fee_bps"`
	JoinFeeBps       int `toml:"join_fee_bps"`
	PollCreateFeeBps int `toml:"poll_create_fee_bps"`
	PollJoinFeeBps   int `toml:"poll_join_fee_bps"`

	JoinPeriod        duration `toml:"join_period"`
	MinMaturityPeriod duration `toml:"min_maturity_period"`
	MaxMaturityPeriod duration `toml:"max_maturity_period"`

	MaxEventsPerPool      int `toml:"max_events_per_pool"`
	MaxOptionsPerPool     int `toml:"max_options_per_pool"`
	MaxPlayersPerPool     int `toml:"max_players_per_pool"`
	MaxPollPlayersPerPool int `toml:"max_poll_players_per_pool"`

	// MinStake is a base-10 integer in the token's smallest unit.
	MinStake string `toml:"min_stake"`

	MaxStaleRetries      int      `toml:"max_stale_retries"`
	StaleExtensionPeriod duration `toml:"stale_extension_period"`

	// Owner may set manual results and administer topics.
	Owner string `toml:"owner"`
	// FeeRecipient receives every protocol fee.
	FeeRecipient string `toml:"fee_recipient"`
}

// CustodyConfig selects and parameterizes the stake custody backend.
type CustodyConfig struct {
	// Backend is "bank" (in-process ledger) or "erc20" (on-chain token).
	Backend string `toml:"backend"`

	RPCURL       string `toml:"rpc_url"`
	TokenAddress string `toml:"token_address"`
	ChainID      int64  `toml:"chain_id"`
	GasLimit     int64  `toml:"gas_limit"`

	// Either a raw hex key or an encrypted key file plus password.
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Leave Addr empty to run
// without Redis (no cache, no cross-replica bus, in-process locks only).
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// OracleConfig selects the outcome data provider.
type OracleConfig struct {
	// Provider is "memory" or "redis".
	Provider string `toml:"provider"`
	// Reporters are addresses allowed to provide outcome data.
	Reporters []string `toml:"reporters"`
}

// ArchiveConfig holds the history offload parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// AdminToken authenticates owner endpoints (manual results, topics).
	AdminToken string `toml:"admin_token"`
	// RateLimit is requests per minute per client; 0 disables limiting.
	RateLimit int `toml:"rate_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder accepts strings like
// "5m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the production default values.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			CreateFeeBps:          50,
			JoinFeeBps:            30,
			PollCreateFeeBps:      50,
			PollJoinFeeBps:        30,
			JoinPeriod:            duration{10_000 * time.Second},
			MinMaturityPeriod:     duration{time.Hour},
			MaxMaturityPeriod:     duration{12 * 7 * 24 * time.Hour},
			MaxEventsPerPool:      10,
			MaxOptionsPerPool:     100,
			MaxPlayersPerPool:     100,
			MaxPollPlayersPerPool: 100_000,
			MinStake:              "100000000000000000000",
			MaxStaleRetries:       3,
			StaleExtensionPeriod:  duration{time.Hour},
		},
		Custody: CustodyConfig{
			Backend:  "bank",
			ChainID:  137,
			GasLimit: 120_000,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "soccersm-pools",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Oracle: OracleConfig{
			Provider: "memory",
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
		},
		Notify: NotifyConfig{
			Events: []string{"pool_resolved", "pool_stale", "manual_resolution"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"standalone": true,
	"server":     true,
	"archive":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: standalone, server, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine.
	for _, r := range []struct {
		name string
		bps  int
	}{
		{"create_fee_bps", c.Engine.CreateFeeBps},
		{"join_fee_bps", c.Engine.JoinFeeBps},
		{"poll_create_fee_bps", c.Engine.PollCreateFeeBps},
		{"poll_join_fee_bps", c.Engine.PollJoinFeeBps},
	} {
		if r.bps < 0 || r.bps >= 10_000 {
			errs = append(errs, fmt.Sprintf("engine: %s must be in [0, 10000), got %d", r.name, r.bps))
		}
	}
	if _, ok := new(big.Int).SetString(c.Engine.MinStake, 10); !ok || c.Engine.MinStake == "" {
		errs = append(errs, fmt.Sprintf("engine: min_stake %q is not a base-10 integer", c.Engine.MinStake))
	}
	if c.Engine.Owner != "" && !common.IsHexAddress(c.Engine.Owner) {
		errs = append(errs, fmt.Sprintf("engine: owner %q is not a hex address", c.Engine.Owner))
	}
	if c.Engine.FeeRecipient == "" {
		errs = append(errs, "engine: fee_recipient must be set")
	} else if !common.IsHexAddress(c.Engine.FeeRecipient) {
		errs = append(errs, fmt.Sprintf("engine: fee_recipient %q is not a hex address", c.Engine.FeeRecipient))
	}

	// Custody.
	switch c.Custody.Backend {
	case "bank":
	case "erc20":
		if c.Custody.RPCURL == "" {
			errs = append(errs, "custody: rpc_url is required for the erc20 backend")
		}
		if !common.IsHexAddress(c.Custody.TokenAddress) {
			errs = append(errs, fmt.Sprintf("custody: token_address %q is not a hex address", c.Custody.TokenAddress))
		}
		if c.Custody.PrivateKey == "" && c.Custody.EncryptedKeyPath == "" {
			errs = append(errs, "custody: either private_key or encrypted_key_path must be set for the erc20 backend")
		}
		if c.Custody.EncryptedKeyPath != "" && c.Custody.KeyPassword == "" {
			errs = append(errs, "custody: key_password is required when encrypted_key_path is set")
		}
	default:
		errs = append(errs, fmt.Sprintf("custody: unknown backend %q (valid: bank, erc20)", c.Custody.Backend))
	}

	// Oracle.
	switch c.Oracle.Provider {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Sprintf("oracle: unknown provider %q (valid: memory, redis)", c.Oracle.Provider))
	}
	for _, r := range c.Oracle.Reporters {
		if !common.IsHexAddress(r) {
			errs = append(errs, fmt.Sprintf("oracle: reporter %q is not a hex address", r))
		}
	}
	if c.Oracle.Provider == "redis" && c.Redis.Addr == "" {
		errs = append(errs, "oracle: the redis provider requires redis.addr")
	}

	// Server.
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port %d out of range", c.Server.Port))
	}

	// Archive.
	if c.Archive.Enabled {
		if c.Archive.RetentionDays <= 0 {
			errs = append(errs, "archive: retention_days must be positive")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "archive: s3.bucket is required when archiving is enabled")
		}
	}

	// Notify: a chat id without a token (or vice versa) is a misconfig.
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
