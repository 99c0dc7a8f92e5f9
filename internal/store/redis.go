package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"countdown/internal/clock"
	"countdown/internal/model"
)

const (
	redisKeyPrefix = "countdown:"
	redisIndexKey  = "countdowns"
	redisMaxRetry  = 5
)

// RedisOptions configures a RedisStore connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key; useful for tests sharing a server.
	Prefix string
}

// RedisStore keeps one JSON document per countdown under
// "<prefix>countdown:<id>" plus a set of ids for listing.
type RedisStore struct {
	client *redis.Client
	clock  clock.Clock
	loc    *time.Location
	prefix string
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, opts RedisOptions, c clock.Clock) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client, clock: c, loc: c.Now().Location(), prefix: opts.Prefix}, nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + redisKeyPrefix + id
}

func (s *RedisStore) indexKey() string {
	return s.prefix + redisIndexKey
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Countdown, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get countdown: %w", err)
	}
	c, err := decode(data, s.loc)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *RedisStore) List(ctx context.Context) ([]model.Countdown, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list countdowns: %w", err)
	}
	out := make([]model.Countdown, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list countdowns: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a document; deleted concurrently.
			continue
		}
		c, err := decode([]byte(raw), s.loc)
		if err != nil {
			return nil, fmt.Errorf("list countdowns %s: %w", ids[i], err)
		}
		out = append(out, c)
	}
	sortByCreation(out)
	return out, nil
}

func (s *RedisStore) Create(ctx context.Context, c model.Countdown) (model.Countdown, error) {
	created, err := prepareCreate(c, s.clock.Now())
	if err != nil {
		return model.Countdown{}, err
	}
	data, err := encode(created, s.loc)
	if err != nil {
		return model.Countdown{}, err
	}
	if created, err = decode(data, s.loc); err != nil {
		return model.Countdown{}, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(created.ID), data, 0)
		pipe.SAdd(ctx, s.indexKey(), created.ID)
		return nil
	})
	if err != nil {
		return model.Countdown{}, fmt.Errorf("insert countdown: %w", err)
	}
	return created, nil
}

// Update applies patch with optimistic locking on the record key, retrying
// a few times if another writer touches the record in between.
func (s *RedisStore) Update(ctx context.Context, id string, patch Patch) (*model.Countdown, error) {
	key := s.key(id)
	var result *model.Countdown

	txf := func(tx *redis.Tx) error {
		result = nil
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		current, err := decode(data, s.loc)
		if err != nil {
			return err
		}

		updated := patch.Apply(current)
		updated.UpdatedAt = s.clock.Now()
		if err := Validate(updated); err != nil {
			return err
		}
		encoded, err := encode(updated, s.loc)
		if err != nil {
			return err
		}
		if updated, err = decode(encoded, s.loc); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = &updated
		return nil
	}

	for i := 0; i < redisMaxRetry; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrInvalid) {
				return nil, err
			}
			return nil, fmt.Errorf("update countdown: %w", err)
		}
		return result, nil
	}
	return nil, fmt.Errorf("update countdown %s: too much contention", id)
}

func (s *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.key(id))
		pipe.SRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete countdown: %w", err)
	}
	return del.Val() > 0, nil
}
