package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/Hurisoft/soccersm-pools/internal/blob/s3"
	"github.com/Hurisoft/soccersm-pools/internal/cache/redis"
	"github.com/Hurisoft/soccersm-pools/internal/config"
	"github.com/Hurisoft/soccersm-pools/internal/crypto"
	"github.com/Hurisoft/soccersm-pools/internal/custody"
	"github.com/Hurisoft/soccersm-pools/internal/domain"
	"github.com/Hurisoft/soccersm-pools/internal/engine"
	"github.com/Hurisoft/soccersm-pools/internal/notify"
	"github.com/Hurisoft/soccersm-pools/internal/oracle"
	"github.com/Hurisoft/soccersm-pools/internal/store/memory"
	"github.com/Hurisoft/soccersm-pools/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	PoolStore        domain.PoolStore
	ParticipantStore domain.ParticipantStore
	TopicStore       domain.TopicStore
	WithdrawalStore  domain.WithdrawalStore
	AuditStore       domain.AuditStore

	// Caches
	PoolCache   domain.PoolCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Custody and oracle
	Custody  domain.CustodyToken
	Provider DataProviderAdmin

	// Notifications
	Notifier *notify.Notifier
}

// DataProviderAdmin is a DataProvider that also manages its reporter set.
// Both oracle provider implementations satisfy it.
type DataProviderAdmin interface {
	domain.DataProvider
	AddReporter(ctx context.Context, caller, reporter domain.Address) error
}

// needsPostgres returns true for modes that require a database connection.
// Standalone mode runs entirely on in-memory stores.
func needsPostgres(mode string) bool {
	switch mode {
	case "server", "archive":
		return true
	default:
		return false
	}
}

// needsRedis returns true for modes that use the cache, lock, and bus fabric.
func needsRedis(mode string) bool {
	return mode == "server"
}

// needsS3 returns true for modes that require object storage.
func needsS3(mode string) bool {
	return mode == "archive"
}

// EngineParams converts the validated configuration into engine parameters.
func EngineParams(cfg *config.Config) (engine.Params, error) {
	minStake, ok := new(big.Int).SetString(cfg.Engine.MinStake, 10)
	if !ok {
		return engine.Params{}, fmt.Errorf("wire: min_stake %q is not a base-10 integer", cfg.Engine.MinStake)
	}

	params := engine.Params{
		CreateFeeBps:          uint32(cfg.Engine.CreateFeeBps),
		JoinFeeBps:            uint32(cfg.Engine.JoinFeeBps),
		PollCreateFeeBps:      uint32(cfg.Engine.PollCreateFeeBps),
		PollJoinFeeBps:        uint32(cfg.Engine.PollJoinFeeBps),
		JoinPeriod:            cfg.Engine.JoinPeriod.Duration,
		MinMaturityPeriod:     cfg.Engine.MinMaturityPeriod.Duration,
		MaxMaturityPeriod:     cfg.Engine.MaxMaturityPeriod.Duration,
		MaxEventsPerPool:      cfg.Engine.MaxEventsPerPool,
		MaxOptionsPerPool:     cfg.Engine.MaxOptionsPerPool,
		MaxPlayersPerPool:     cfg.Engine.MaxPlayersPerPool,
		MaxPollPlayersPerPool: cfg.Engine.MaxPollPlayersPerPool,
		MinStake:              minStake,
		MaxStaleRetries:       uint32(cfg.Engine.MaxStaleRetries),
		StaleExtensionPeriod:  cfg.Engine.StaleExtensionPeriod.Duration,
		FeeRecipient:          common.HexToAddress(cfg.Engine.FeeRecipient),
	}
	if cfg.Engine.Owner != "" {
		params.Owner = common.HexToAddress(cfg.Engine.Owner)
	}
	return params, nil
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Stores: PostgreSQL for persistent modes, memory for standalone ---
	if needsPostgres(cfg.Mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		// Run migrations if enabled.
		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.PoolStore = postgres.NewPoolStore(pool)
		deps.ParticipantStore = postgres.NewParticipantStore(pool)
		deps.TopicStore = postgres.NewTopicStore(pool)
		deps.WithdrawalStore = postgres.NewWithdrawalStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
	} else {
		deps.PoolStore = memory.NewPoolStore()
		deps.ParticipantStore = memory.NewParticipantStore()
		deps.TopicStore = memory.NewTopicStore()
		deps.WithdrawalStore = memory.NewWithdrawalStore()
		deps.AuditStore = memory.NewAuditStore()
	}

	// --- Redis cache, locks, and signal bus ---
	var redisClient *redis.Client
	if needsRedis(cfg.Mode) {
		var err error
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PoolCache = redis.NewPoolCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- S3 blob storage ---
	if needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			deps.PoolStore,
			deps.WithdrawalStore,
			deps.AuditStore,
		)
	}

	// --- Custody backend ---
	switch cfg.Custody.Backend {
	case "erc20":
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Custody.PrivateKey,
			EncryptedKeyPath: cfg.Custody.EncryptedKeyPath,
			KeyPassword:      cfg.Custody.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: custody key: %w", err)
		}
		token, err := custody.NewERC20(ctx, custody.ERC20Config{
			RPCURL:        cfg.Custody.RPCURL,
			TokenAddress:  cfg.Custody.TokenAddress,
			PrivateKeyHex: keyHex,
			ChainID:       cfg.Custody.ChainID,
			GasLimit:      uint64(cfg.Custody.GasLimit),
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: custody erc20: %w", err)
		}
		deps.Custody = token
	default:
		deps.Custody = custody.NewBank()
	}

	// --- Oracle data provider ---
	owner := common.HexToAddress(cfg.Engine.Owner)
	switch cfg.Oracle.Provider {
	case "redis":
		if redisClient == nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: oracle: redis provider requires redis (mode %q)", cfg.Mode)
		}
		deps.Provider = oracle.NewRedisProvider(redisClient.Underlying(), owner, logger)
	default:
		deps.Provider = oracle.NewMemoryProvider(owner, logger)
	}
	for _, r := range cfg.Oracle.Reporters {
		if err := deps.Provider.AddReporter(ctx, owner, common.HexToAddress(r)); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: oracle reporter %s: %w", r, err)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
