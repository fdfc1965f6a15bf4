package task

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"EnvioScout/internal/config"
	xerrors "EnvioScout/internal/errors"
	storeredis "EnvioScout/internal/storage/redis"
)

// DefaultRedisQueueKey 是未配置时使用的 list 键，配置中的 prefix 即完整键名。
const DefaultRedisQueueKey = "envioscout:chat:jobs"

const redisBlockWait = 5 * time.Second

// RedisQueue 使用 Redis list (LPUSH/BRPOP) 实现任务队列。
type RedisQueue struct {
	client goredis.UniversalClient
	key    string
	wait   time.Duration
}

// NewRedisQueue 连接 Redis 并返回队列。
func NewRedisQueue(ctx context.Context, cfg config.RedisConfig) (*RedisQueue, error) {
	client, err := storeredis.Connect(ctx, cfg)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeQueueFailure, err, "初始化 Redis 队列失败")
	}
	return NewRedisQueueWithClient(client, cfg.Prefix), nil
}

// NewRedisQueueWithClient 使用已有客户端创建队列。
func NewRedisQueueWithClient(client goredis.UniversalClient, key string) *RedisQueue {
	if key == "" {
		key = DefaultRedisQueueKey
	}
	return &RedisQueue{client: client, key: key, wait: redisBlockWait}
}

// Publish 将任务 ID 推入 list 头部。
func (q *RedisQueue) Publish(ctx context.Context, jobID string) error {
	if err := q.client.LPush(ctx, q.key, jobID).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeQueueFailure, err, "Redis 发布任务失败")
	}
	return nil
}

// Consume 通过 BRPOP 取任务，处理失败时放回队尾。
func (q *RedisQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	errCh := make(chan error, workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			for ctx.Err() == nil {
				values, err := q.client.BRPop(ctx, q.wait, q.key).Result()
				if err != nil {
					if errors.Is(err, goredis.Nil) {
						continue
					}
					if ctx.Err() != nil {
						return
					}
					errCh <- xerrors.Wrap(xerrors.CodeQueueFailure, err, "Redis 取任务失败")
					return
				}
				if len(values) != 2 {
					continue
				}
				jobID := values[1]
				if err := handler(ctx, jobID); err != nil && ctx.Err() == nil {
					_ = q.client.RPush(ctx, q.key, jobID).Err()
				}
			}
		}()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Close 关闭底层连接。
func (q *RedisQueue) Close() error {
	if q == nil || q.client == nil {
		return nil
	}
	return q.client.Close()
}

var _ Queue = (*RedisQueue)(nil)
