package attachments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// BlobStore keeps attachment bytes. Session blobs expire on their own; voucher
// blobs are persistent.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
	Transfer(ctx context.Context, from, to string, ttl time.Duration) error
	DeleteMatching(ctx context.Context, pattern string) error
}

// RedisBlobs is a BlobStore on go-redis.
type RedisBlobs struct {
	client redis.UniversalClient
}

// NewRedisBlobs wraps a redis client.
func NewRedisBlobs(client redis.UniversalClient) *RedisBlobs {
	return &RedisBlobs{client: client}
}

func (b *RedisBlobs) Put(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: store blob: %w", shared.ErrTransient, err)
	}
	return nil
}

func (b *RedisBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: blob %s", shared.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read blob: %w", shared.ErrTransient, err)
	}
	return data, nil
}

func (b *RedisBlobs) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: delete blobs: %w", shared.ErrTransient, err)
	}
	return nil
}

// Transfer renames a blob in one MULTI/EXEC. A zero ttl makes the target
// persistent, otherwise the target expires after ttl.
func (b *RedisBlobs) Transfer(ctx context.Context, from, to string, ttl time.Duration) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Rename(ctx, from, to)
		if ttl > 0 {
			pipe.Expire(ctx, to, ttl)
		} else {
			pipe.Persist(ctx, to)
		}
		return nil
	})
	if err != nil {
		if isNoSuchKey(err) {
			return fmt.Errorf("%w: blob %s expired", shared.ErrNotFound, from)
		}
		return fmt.Errorf("%w: transfer blob: %w", shared.ErrTransient, err)
	}
	return nil
}

func (b *RedisBlobs) DeleteMatching(ctx context.Context, pattern string) error {
	iter := b.client.Scan(ctx, 0, pattern, 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := b.Delete(ctx, batch...); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: scan blobs: %w", shared.ErrTransient, err)
	}
	return b.Delete(ctx, batch...)
}

func isNoSuchKey(err error) bool {
	var rerr redis.Error
	return errors.As(err, &rerr) && rerr.Error() == "ERR no such key"
}
