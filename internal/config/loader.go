package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SOCCERSM_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SOCCERSM_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setInt(&cfg.Engine.CreateFeeBps, "SOCCERSM_ENGINE_CREATE_FEE_BPS")
	setInt(&cfg.Engine.JoinFeeBps, "SOCCERSM_ENGINE_JOIN_FEE_BPS")
	setInt(&cfg.Engine.PollCreateFeeBps, "SOCCERSM_ENGINE_POLL_CREATE_FEE_BPS")
	setInt(&cfg.Engine.PollJoinFeeBps, "SOCCERSM_ENGINE_POLL_JOIN_FEE_BPS")
	setDuration(&cfg.Engine.JoinPeriod, "SOCCERSM_ENGINE_JOIN_PERIOD")
	setDuration(&cfg.Engine.MinMaturityPeriod, "SOCCERSM_ENGINE_MIN_MATURITY_PERIOD")
	setDuration(&cfg.Engine.MaxMaturityPeriod, "SOCCERSM_ENGINE_MAX_MATURITY_PERIOD")
	setInt(&cfg.Engine.MaxEventsPerPool, "SOCCERSM_ENGINE_MAX_EVENTS_PER_POOL")
	setInt(&cfg.Engine.MaxOptionsPerPool, "SOCCERSM_ENGINE_MAX_OPTIONS_PER_POOL")
	setInt(&cfg.Engine.MaxPlayersPerPool, "SOCCERSM_ENGINE_MAX_PLAYERS_PER_POOL")
	setInt(&cfg.Engine.MaxPollPlayersPerPool, "SOCCERSM_ENGINE_MAX_POLL_PLAYERS_PER_POOL")
	setStr(&cfg.Engine.MinStake, "SOCCERSM_ENGINE_MIN_STAKE")
	setInt(&cfg.Engine.MaxStaleRetries, "SOCCERSM_ENGINE_MAX_STALE_RETRIES")
	setDuration(&cfg.Engine.StaleExtensionPeriod, "SOCCERSM_ENGINE_STALE_EXTENSION_PERIOD")
	setStr(&cfg.Engine.Owner, "SOCCERSM_ENGINE_OWNER")
	setStr(&cfg.Engine.FeeRecipient, "SOCCERSM_ENGINE_FEE_RECIPIENT")

	// ── Custody ──
	setStr(&cfg.Custody.Backend, "SOCCERSM_CUSTODY_BACKEND")
	setStr(&cfg.Custody.RPCURL, "SOCCERSM_CUSTODY_RPC_URL")
	setStr(&cfg.Custody.TokenAddress, "SOCCERSM_CUSTODY_TOKEN_ADDRESS")
	setInt64(&cfg.Custody.ChainID, "SOCCERSM_CUSTODY_CHAIN_ID")
	setInt64(&cfg.Custody.GasLimit, "SOCCERSM_CUSTODY_GAS_LIMIT")
	setStr(&cfg.Custody.PrivateKey, "SOCCERSM_CUSTODY_PRIVATE_KEY")
	setStr(&cfg.Custody.EncryptedKeyPath, "SOCCERSM_CUSTODY_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Custody.KeyPassword, "SOCCERSM_CUSTODY_KEY_PASSWORD")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SOCCERSM_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SOCCERSM_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SOCCERSM_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SOCCERSM_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SOCCERSM_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SOCCERSM_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SOCCERSM_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SOCCERSM_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SOCCERSM_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SOCCERSM_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SOCCERSM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SOCCERSM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SOCCERSM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SOCCERSM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SOCCERSM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SOCCERSM_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SOCCERSM_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SOCCERSM_S3_REGION")
	setStr(&cfg.S3.Bucket, "SOCCERSM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SOCCERSM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SOCCERSM_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SOCCERSM_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SOCCERSM_S3_FORCE_PATH_STYLE")

	// ── Oracle ──
	setStr(&cfg.Oracle.Provider, "SOCCERSM_ORACLE_PROVIDER")
	setStringSlice(&cfg.Oracle.Reporters, "SOCCERSM_ORACLE_REPORTERS")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "SOCCERSM_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "SOCCERSM_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "SOCCERSM_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SOCCERSM_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SOCCERSM_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SOCCERSM_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AdminToken, "SOCCERSM_SERVER_ADMIN_TOKEN")
	setInt(&cfg.Server.RateLimit, "SOCCERSM_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SOCCERSM_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SOCCERSM_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SOCCERSM_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SOCCERSM_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SOCCERSM_MODE")
	setStr(&cfg.LogLevel, "SOCCERSM_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
