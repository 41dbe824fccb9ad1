package infrastructure

import (
	"context"
	"fmt"
	"time"

	pgxpool "github.com/jackc/pgx/v5/pgxpool"
	go_redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"staffsync/internal/config"
	"staffsync/internal/domain/idempotency"
	"staffsync/internal/infrastructure/kafka"
	"staffsync/internal/infrastructure/memory"
	"staffsync/internal/infrastructure/postgres"
	"staffsync/internal/infrastructure/redis"
)

const (
	connectAttempts = 5
	connectDelay    = 2 * time.Second
)

// Factory lazily opens the shared connections of one process and closes them together.
type Factory struct {
	cfg      *config.Config
	log      *zap.Logger
	pgPool   *pgxpool.Pool
	redisCli *go_redis.Client
	producer *kafka.Producer
}

func NewFactory(cfg *config.Config, log *zap.Logger) *Factory {
	return &Factory{
		cfg: cfg,
		log: log,
	}
}

func (f *Factory) Postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if f.pgPool != nil {
		return f.pgPool, nil
	}

	var pool *pgxpool.Pool
	var err error

	for i := 1; i <= connectAttempts; i++ {
		pool, err = postgres.NewClient(ctx, postgres.Config{
			Host:     f.cfg.Postgres.Host,
			Port:     f.cfg.Postgres.Port,
			User:     f.cfg.Postgres.User,
			Password: f.cfg.Postgres.Password,
			DBName:   f.cfg.Postgres.DBName,
			SSLMode:  f.cfg.Postgres.SSLMode,
			MaxConns: f.cfg.Postgres.MaxConns,
		})
		if err == nil {
			break
		}
		f.log.Warn("postgres not reachable, retrying",
			zap.Int("attempt", i),
			zap.Int("max_attempts", connectAttempts),
			zap.Duration("delay", connectDelay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectDelay):
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to init postgres after retries: %w", err)
	}

	f.pgPool = pool
	return pool, nil
}

func (f *Factory) Redis(ctx context.Context) (*go_redis.Client, error) {
	if f.redisCli != nil {
		return f.redisCli, nil
	}

	client, err := redis.NewClient(ctx, redis.Config{
		Addr:     f.cfg.Redis.Addr,
		Password: f.cfg.Redis.Password,
		DB:       f.cfg.Redis.DB,
		PoolSize: f.cfg.Redis.PoolSize,

		DialTimeout: f.cfg.Redis.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}

	f.redisCli = client
	return client, nil
}

// IdempotencyStore returns the backend named by idempotency.backend.
// The memory backend does not survive a restart and is not shared between replicas.
func (f *Factory) IdempotencyStore(ctx context.Context) (idempotency.Store, error) {
	switch f.cfg.Idempotency.Backend {
	case "memory":
		f.log.Warn("idempotency keys are kept in process memory")
		return memory.NewIdempotencyStore(), nil
	case "redis":
		client, err := f.Redis(ctx)
		if err != nil {
			return nil, err
		}
		return redis.NewIdempotencyStore(client), nil
	case "postgres":
		pool, err := f.Postgres(ctx)
		if err != nil {
			return nil, err
		}
		return postgres.NewIdempotencyRepository(pool), nil
	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", f.cfg.Idempotency.Backend)
	}
}

// KafkaProducer returns nil when kafka is disabled.
func (f *Factory) KafkaProducer() *kafka.Producer {
	if !f.cfg.Kafka.Enabled {
		return nil
	}
	if f.producer == nil {
		f.producer = kafka.NewProducer(kafka.Config{
			Brokers: f.cfg.Kafka.Brokers,
			Topic:   f.cfg.Kafka.Topic,
		})
	}
	return f.producer
}

func (f *Factory) Close() {
	if f.producer != nil {
		if err := f.producer.Close(); err != nil {
			f.log.Error("failed to close kafka producer", zap.Error(err))
		}
	}
	if f.pgPool != nil {
		f.pgPool.Close()
	}
	if f.redisCli != nil {
		_ = f.redisCli.Close()
	}
}
