package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimited se devuelve al emisor cuando una alerta de emoción excede el límite.
var ErrRateLimited = errors.New("rate limited")

// EmotionLimiter limita la frecuencia de alertas de emoción por paciente. El
// cliente de reconocimiento emite una lectura cada pocos segundos; SOS y el
// resto de los tipos nunca se limitan.
type EmotionLimiter interface {
	Allow(key string) bool
}

type memoryEmotionLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
	swept  time.Time
}

// NewMemoryEmotionLimiter crea un rate limiter de ventana deslizante en memoria.
func NewMemoryEmotionLimiter(window time.Duration, max int) EmotionLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &memoryEmotionLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
	}
}

func (l *memoryEmotionLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	cutoff := now.Add(-l.window)
	if now.Sub(l.swept) >= l.window {
		l.sweep(cutoff)
		l.swept = now
	}
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

// sweep descarta las claves cuyo último hit quedó fuera de la ventana.
func (l *memoryEmotionLimiter) sweep(cutoff time.Time) {
	for key, entries := range l.hits {
		if len(entries) == 0 || !entries[len(entries)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}

const redisEmotionAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisEmotionLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

// NewRedisEmotionLimiter comparte el límite entre instancias del relay.
func NewRedisEmotionLimiter(client *redis.Client, window time.Duration, max int) EmotionLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisEmotionLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "relay:emotion:rl:",
	}
}

func (l *redisEmotionLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	normalizedKey := strings.TrimSpace(key)
	if normalizedKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}
	count, err := l.client.Eval(ctx, redisEmotionAllowScript, []string{l.prefix + normalizedKey}, seconds).Int()
	if err != nil {
		return true
	}
	return count <= l.max
}
