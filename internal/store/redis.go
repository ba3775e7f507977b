package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis keeps session values as plain string keys with the session TTL and
// publishes "<session>:<key>" on a channel after each write.
type Redis struct {
	client  *redis.Client
	prefix  string
	channel string
	ttl     time.Duration
	logger  *zap.Logger
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Channel  string
	TTL      time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return NewRedisWithClient(client, cfg, logger), nil
}

func NewRedisWithClient(client *redis.Client, cfg RedisConfig, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "pos:session:"
	}
	channel := cfg.Channel
	if channel == "" {
		channel = "pos:session-changes"
	}
	return &Redis{client: client, prefix: prefix, channel: channel, ttl: cfg.TTL, logger: logger}
}

func (r *Redis) redisKey(key Key) string {
	return r.prefix + key.String()
}

func (r *Redis) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key Key, value []byte) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.redisKey(key), value, r.ttl)
		pipe.Publish(ctx, r.channel, key.String())
		return nil
	})
	return err
}

func (r *Redis) Delete(ctx context.Context, key Key) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.redisKey(key))
		pipe.Publish(ctx, r.channel, key.String())
		return nil
	})
	return err
}

// Listen subscribes to the change channel until ctx is done.
func (r *Redis) Listen(ctx context.Context, fn func(Change)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info("session store: subscribed", zap.String("channel", r.channel))

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("redis subscription closed")
			}
			key, ok := ParseKey(strings.TrimSpace(msg.Payload))
			if !ok {
				r.logger.Warn("session store: malformed notification", zap.String("payload", msg.Payload))
				continue
			}
			fn(Change{Key: key})
		}
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
