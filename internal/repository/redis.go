package repository

import (
	"context"
	"errors"
	"fmt"

	"prokat/internal/config"
	"prokat/internal/models"

	"github.com/redis/go-redis/v9"
)

// ErrTooManyRetries is returned when an Update cycle keeps losing the
// optimistic concurrency race.
var ErrTooManyRetries = errors.New("too many retries on concurrent modification")

type RedisRecordStore struct {
	client *redis.Client
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	client := redis.NewClient(options)

	return client
}

func NewRedisRecordStore(client *redis.Client) *RedisRecordStore {
	return &RedisRecordStore{client: client}
}

func (r *RedisRecordStore) Get(ctx context.Context, key string) ([]byte, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record from redis: %w", err)
	}
	return val, nil
}

func (r *RedisRecordStore) Set(ctx context.Context, key string, data []byte) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set record in redis: %w", err)
	}
	return nil
}

// Update implements the read-modify-write cycle with optimistic locking:
// WATCH the key, run fn on the current document, write inside MULTI/EXEC.
// When another writer touches the key between WATCH and EXEC the
// transaction fails and the cycle re-reads and retries.
func (r *RedisRecordStore) Update(ctx context.Context, key string, fn func(old []byte) ([]byte, error)) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	txf := func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			old = nil
		} else if err != nil {
			return fmt.Errorf("failed to get record from redis: %w", err)
		}

		updated, err := fn(old)
		if err != nil {
			return &fnAbort{err: err}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	for i := 0; i < models.UpdateMaxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return ErrTooManyRetries
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
