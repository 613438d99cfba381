package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/allanpk716/creditor_letters/internal/logger"
)

// RedisOptions Redis 连接参数
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient 创建 Redis 客户端
func NewRedisClient(opts RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})
}

// RedisCache 在 Redis 中缓存模板的读取结果；Redis 不可用时直接读取下层模板源
type RedisCache struct {
	client *redis.Client
	next   TemplateSource
	ttl    time.Duration
	prefix string
	logger logger.Logger
}

// NewRedisCache 创建读穿缓存
func NewRedisCache(client *redis.Client, next TemplateSource, ttl time.Duration, prefix string, log logger.Logger) *RedisCache {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &RedisCache{
		client: client,
		next:   next,
		ttl:    ttl,
		prefix: prefix,
		logger: log,
	}
}

// Load 先查缓存，未命中时读取下层并写回缓存
func (c *RedisCache) Load(ctx context.Context, name string) ([]byte, error) {
	key := c.key(name)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		c.logger.Debug("模板缓存命中", map[string]interface{}{"template": name})
		return data, nil
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("读取模板缓存失败", map[string]interface{}{
			"template": name,
			"error":    err.Error(),
		})
	}

	data, err = c.next.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("写入模板缓存失败", map[string]interface{}{
			"template": name,
			"error":    err.Error(),
		})
	}
	return data, nil
}

// Invalidate 删除模板缓存
func (c *RedisCache) Invalidate(ctx context.Context, name string) error {
	if err := c.client.Del(ctx, c.key(name)).Err(); err != nil {
		return fmt.Errorf("删除模板缓存失败: %w", err)
	}
	return nil
}

func (c *RedisCache) key(name string) string {
	return c.prefix + name
}
