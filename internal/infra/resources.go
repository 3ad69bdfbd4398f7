package infra

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/congo-pay/payments_engine/internal/config"
)

// Resources holds the optional external dependencies. A field is nil when
// the matching setting is empty.
type Resources struct {
	DB    *pgxpool.Pool
	Cache *redis.Client
	Kafka *kafka.Writer
}

// Open connects every dependency configured in cfg. On failure anything
// already opened is closed again.
func Open(ctx context.Context, cfg config.Config) (*Resources, error) {
	res := &Resources{}
	var err error

	if cfg.DatabaseURL != "" {
		if res.DB, err = NewPostgresPool(ctx, cfg.DatabaseURL); err != nil {
			return nil, errors.Join(err, res.Close())
		}
	}
	if cfg.RedisURL != "" {
		if res.Cache, err = NewRedisClient(ctx, cfg.RedisURL); err != nil {
			return nil, errors.Join(err, res.Close())
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		if res.Kafka, err = NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic); err != nil {
			return nil, errors.Join(err, res.Close())
		}
	}
	return res, nil
}

// Close releases all opened dependencies. Kafka is closed first so pending
// messages flush.
func (r *Resources) Close() error {
	var errs []error
	if r.Kafka != nil {
		errs = append(errs, r.Kafka.Close())
	}
	if r.Cache != nil {
		errs = append(errs, r.Cache.Close())
	}
	if r.DB != nil {
		r.DB.Close()
	}
	return errors.Join(errs...)
}
