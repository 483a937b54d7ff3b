package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const casAttempts = 16

// Redis adalah implementasi Store di atas go-redis.
// Update pakai WATCH + TxPipelined supaya RMW tetap atomik
// walau service jalan lebih dari satu instance.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis { return &Redis{rdb: rdb} }

func (s *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, wrap(err)
	}
	return b, nil
}

func (s *Redis) Set(ctx context.Context, key string, val []byte) error {
	return wrap(s.rdb.Set(ctx, key, val, 0).Err())
}

func (s *Redis) SetIfAbsent(ctx context.Context, key string, val []byte) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, val, 0).Result()
	if err != nil {
		return false, wrap(err)
	}
	return ok, nil
}

func (s *Redis) Update(ctx context.Context, key string, fn UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if errors.Is(err, redis.Nil) {
			cur = nil
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for i := 0; i < casAttempts; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // ada penulis lain, ulang baca-tulis
		}
		return wrap(err)
	}
	return ErrConflict
}

func (s *Redis) Delete(ctx context.Context, key string) error {
	return wrap(s.rdb.Del(ctx, key).Err())
}

func (s *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, wrap(err)
	}
	return out, nil
}

func (s *Redis) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return 0, wrap(err)
	}
	return len(keys), nil
}

func (s *Redis) PushBack(ctx context.Context, key, val string) error {
	return wrap(s.rdb.RPush(ctx, key, val).Err())
}

func (s *Redis) PushFront(ctx context.Context, key, val string) error {
	return wrap(s.rdb.LPush(ctx, key, val).Err())
}

func (s *Redis) PopFront(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.LPop(ctx, key).Result()
	if err != nil {
		return "", wrap(err)
	}
	return v, nil
}

func (s *Redis) QueueItems(ctx context.Context, key string) ([]string, error) {
	vals, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, wrap(err)
	}
	return vals, nil
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
