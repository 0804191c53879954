package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feeRecipient = "0x00000000000000000000000000000000000000fe"

func validConfig() Config {
	cfg := Defaults()
	cfg.Engine.FeeRecipient = feeRecipient
	return cfg
}

func TestDefaultsValidateWithRecipient(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "turbo"
	cfg.LogLevel = "loud"
	cfg.Engine.CreateFeeBps = 10_000
	cfg.Engine.MinStake = "a lot"
	cfg.Engine.FeeRecipient = "not-an-address"
	cfg.Custody.Backend = "cash"
	cfg.Oracle.Provider = "carrier-pigeon"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"mode", "log_level", "create_fee_bps", "min_stake",
		"fee_recipient", "backend", "provider",
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestValidateERC20Backend(t *testing.T) {
	cfg := validConfig()
	cfg.Custody.Backend = "erc20"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "rpc_url")
	assert.ErrorContains(t, err, "token_address")
	assert.ErrorContains(t, err, "private_key")

	cfg.Custody.RPCURL = "https://polygon-rpc.example"
	cfg.Custody.TokenAddress = "0x00000000000000000000000000000000000000ee"
	cfg.Custody.PrivateKey = "deadbeef"
	require.NoError(t, cfg.Validate())
}

func TestValidateTelegramPairing(t *testing.T) {
	cfg := validConfig()
	cfg.Notify.TelegramToken = "token-only"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "telegram")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	raw := `
mode = "standalone"
log_level = "debug"

[engine]
join_period = "2h"
min_stake = "5000"
fee_recipient = "` + feeRecipient + `"

[server]
port = 9999
`
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "standalone", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Hour, cfg.Engine.JoinPeriod.Duration)
	assert.Equal(t, "5000", cfg.Engine.MinStake)
	assert.Equal(t, 9999, cfg.Server.Port)
	// Untouched fields keep their defaults.
	assert.Equal(t, 50, cfg.Engine.CreateFeeBps)
	assert.Equal(t, "bank", cfg.Custody.Backend)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SOCCERSM_MODE", "archive")
	t.Setenv("SOCCERSM_ENGINE_MAX_STALE_RETRIES", "7")
	t.Setenv("SOCCERSM_ENGINE_STALE_EXTENSION_PERIOD", "90m")
	t.Setenv("SOCCERSM_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("SOCCERSM_ORACLE_REPORTERS", "0x0000000000000000000000000000000000000002, 0x0000000000000000000000000000000000000003")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "archive", cfg.Mode)
	assert.Equal(t, 7, cfg.Engine.MaxStaleRetries)
	assert.Equal(t, 90*time.Minute, cfg.Engine.StaleExtensionPeriod.Duration)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Len(t, cfg.Oracle.Reporters, 2)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "hunter2"
	cfg.Redis.Password = "hunter2"
	cfg.S3.SecretKey = "hunter2"
	cfg.Custody.PrivateKey = "deadbeef"
	cfg.Server.AdminToken = "hunter2"
	cfg.Notify.TelegramToken = "hunter2"
	cfg.Notify.TelegramChatID = "12345"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Custody.PrivateKey)
	assert.Equal(t, "***", red.Server.AdminToken)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	// Non-secret fields survive.
	assert.Equal(t, "12345", red.Notify.TelegramChatID)
	// The original is untouched.
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
}
