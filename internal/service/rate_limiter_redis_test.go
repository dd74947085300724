package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockRedisEvaler struct {
	lastCtx    context.Context
	lastScript string
	lastKeys   []string
	lastArgs   []interface{}
	result     int64
	err        error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastCtx = ctx
	m.lastScript = script
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	cmd.SetVal(m.result)
	return cmd
}

func TestRedisRequestLimiterAllow(t *testing.T) {
	t.Run("nil receiver fail-open", func(t *testing.T) {
		var l *redisRequestLimiter
		if !l.Allow(context.Background(), "user@example.com") {
			t.Fatalf("expected fail-open for nil limiter")
		}
	})

	t.Run("empty key rejected", func(t *testing.T) {
		l := &redisRequestLimiter{
			client: &mockRedisEvaler{result: 1},
			window: time.Minute,
			max:    3,
			prefix: "reset:rl:",
		}
		if l.Allow(context.Background(), "   ") {
			t.Fatalf("expected empty key to be rejected")
		}
	})

	t.Run("allow when count within max", func(t *testing.T) {
		mock := &mockRedisEvaler{result: 2}
		l := &redisRequestLimiter{
			client: mock,
			window: 2 * time.Minute,
			max:    3,
			prefix: "reset:rl:",
		}
		if !l.Allow(context.Background(), " User@Example.com ") {
			t.Fatalf("expected allow when count <= max")
		}
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "reset:rl:user@example.com" {
			t.Fatalf("unexpected key normalization, got %+v", mock.lastKeys)
		}
		if len(mock.lastArgs) != 1 || mock.lastArgs[0] != 120 {
			t.Fatalf("expected TTL seconds=120, got %+v", mock.lastArgs)
		}
		if mock.lastScript != redisRequestAllowScript {
			t.Fatalf("expected script to match")
		}
	})

	t.Run("deny when count exceeds max", func(t *testing.T) {
		l := &redisRequestLimiter{
			client: &mockRedisEvaler{result: 4},
			window: time.Minute,
			max:    3,
			prefix: "reset:rl:",
		}
		if l.Allow(context.Background(), "user@example.com") {
			t.Fatalf("expected deny when count > max")
		}
	})

	t.Run("redis error fail-open and logged", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		l := &redisRequestLimiter{
			client: &mockRedisEvaler{err: errors.New("redis down")},
			logger: zap.New(core),
			window: time.Minute,
			max:    3,
			prefix: "reset:rl:",
		}
		if !l.Allow(context.Background(), "user@example.com") {
			t.Fatalf("expected fail-open on redis errors")
		}
		if logs.FilterMessage("rate limiter unavailable, allowing request").Len() != 1 {
			t.Fatalf("expected a warn entry for the redis failure, got %+v", logs.All())
		}
	})

	t.Run("caller context is propagated", func(t *testing.T) {
		type ctxKey struct{}
		mock := &mockRedisEvaler{result: 1}
		l := &redisRequestLimiter{client: mock, window: time.Minute, max: 3, prefix: "reset:rl:"}
		ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")
		if !l.Allow(ctx, "user@example.com") {
			t.Fatalf("expected allow")
		}
		if mock.lastCtx == nil || mock.lastCtx.Value(ctxKey{}) != "req-1" {
			t.Fatalf("expected Eval to run under the caller context")
		}
		if _, ok := mock.lastCtx.Deadline(); !ok {
			t.Fatalf("expected a deadline on the redis call")
		}
	})
}

func TestNewRedisRequestLimiterDefaults(t *testing.T) {
	if l := NewRedisRequestLimiter(nil, nil, "", time.Minute, 3); l != nil {
		t.Fatalf("expected nil limiter without client")
	}

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	l, ok := NewRedisRequestLimiter(client, nil, "", 0, 0).(*redisRequestLimiter)
	if !ok {
		t.Fatalf("expected *redisRequestLimiter")
	}
	if l.prefix != "auth:rl:" || l.window != time.Minute || l.max != 1 || l.logger == nil {
		t.Fatalf("unexpected defaults: %+v", l)
	}
}
