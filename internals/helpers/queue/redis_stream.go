package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds all configuration for the stream queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	Consumer string
	// Block is how long one XREADGROUP waits for new entries.
	Block time.Duration
	// MaxLen trims the stream approximately; 0 keeps everything.
	MaxLen int64
}

// streamClient is the part of *redis.Client the queue uses.
type streamClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	Close() error
}

const bodyField = "body"

// RedisStream is a Queue on top of a Redis Stream and one consumer group.
type RedisStream struct {
	client streamClient
	cfg    RedisConfig
}

// NewRedisStream connects and pings the server.
func NewRedisStream(cfg RedisConfig) (*RedisStream, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return newRedisStream(rdb, cfg), nil
}

func newRedisStream(c streamClient, cfg RedisConfig) *RedisStream {
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	return &RedisStream{client: c, cfg: cfg}
}

// Enqueue adds the body to the stream using XADD.
func (q *RedisStream) Enqueue(ctx context.Context, body []byte) (string, error) {
	args := &redis.XAddArgs{
		Stream: q.cfg.Stream,
		Values: map[string]interface{}{bodyField: string(body)},
	}
	if q.cfg.MaxLen > 0 {
		args.MaxLen = q.cfg.MaxLen
		args.Approx = true
	}
	id, err := q.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to XADD to stream %s: %w", q.cfg.Stream, err)
	}
	return id, nil
}

func (q *RedisStream) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.cfg.Stream, q.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s: %w", q.cfg.Group, err)
	}
	return nil
}

// Consume first drains entries delivered to this consumer but never acked
// (a crash between read and ack), then follows new entries.
func (q *RedisStream) Consume(ctx context.Context, h Handler) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	start := "0"
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.cfg.Group,
			Consumer: q.cfg.Consumer,
			Streams:  []string{q.cfg.Stream, start},
			Count:    16,
			Block:    q.cfg.Block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			start = ">"
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[QUEUE] XREADGROUP %s: %v", q.cfg.Stream, err)
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		n := 0
		for _, s := range streams {
			for _, m := range s.Messages {
				n++
				q.handle(ctx, h, m)
			}
		}
		if start == "0" && n == 0 {
			start = ">"
		}
	}
}

func (q *RedisStream) handle(ctx context.Context, h Handler, m redis.XMessage) {
	body, _ := m.Values[bodyField].(string)
	if err := h(ctx, Message{ID: m.ID, Body: []byte(body)}); err != nil {
		log.Printf("[QUEUE] message %s: %v", m.ID, err)
	}
	if err := q.client.XAck(ctx, q.cfg.Stream, q.cfg.Group, m.ID).Err(); err != nil {
		log.Printf("[QUEUE] failed to acknowledge message %s: %v", m.ID, err)
	}
}

func (q *RedisStream) Close() error {
	return q.client.Close()
}
