// Package cache implementa o cache compartilhado da frota sobre Redis.
// Todos os servidores enxergam as mesmas chaves; o cache carrega apenas
// estado reconstituível (QR, códigos de pareamento, lookups quentes).
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"wafleet/pkg/logger"
)

// ErrCacheMiss indica ausência da chave no cache
var ErrCacheMiss = errors.New("cache miss")

// Cache é o acesso tipado ao Redis compartilhado da frota
type Cache struct {
	client *redis.Client
	log    logger.Logger
}

// New conecta ao Redis e valida a conexão com um ping
func New(ctx context.Context, addr, password string, db int, log logger.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Cache{client: client, log: log.WithComponent("cache")}, nil
}

// Get retorna o valor da chave ou ErrCacheMiss
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

// Set grava a chave com o TTL informado; ttl zero significa sem expiração
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Delete remove as chaves informadas
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Close encerra a conexão com o Redis
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping verifica a saúde da conexão
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
