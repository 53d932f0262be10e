package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss means the cache has no entry; the chain moves on silently.
var ErrCacheMiss = errors.New("translation cache miss")

const translationKeyPrefix = "maai:translation:"

// RedisTranslationCache keeps finished translations so repeated phrases
// (greetings, common advice) skip the upstream calls.
type RedisTranslationCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTranslationCache(client *redis.Client, ttl time.Duration) *RedisTranslationCache {
	return &RedisTranslationCache{client: client, ttl: ttl}
}

func (c *RedisTranslationCache) Name() string { return "redis-cache" }

func translationKey(text, sourceCode, targetCode string) string {
	sum := sha256.Sum256([]byte(text))
	return translationKeyPrefix + sourceCode + ":" + targetCode + ":" + hex.EncodeToString(sum[:])
}

// Translate implements TranslationStrategy.
func (c *RedisTranslationCache) Translate(ctx context.Context, text, sourceCode, targetCode string) (string, error) {
	val, err := c.client.Get(ctx, translationKey(text, sourceCode, targetCode)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return val, nil
}

// Store saves a translation under the cache TTL.
func (c *RedisTranslationCache) Store(ctx context.Context, text, sourceCode, targetCode, translated string) error {
	return c.client.Set(ctx, translationKey(text, sourceCode, targetCode), translated, c.ttl).Err()
}

func (c *RedisTranslationCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
