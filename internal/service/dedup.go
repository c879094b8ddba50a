package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"care-relay/internal/domain"
)

// DedupPolicy decide si un recordatorio vencido merece una alerta en este tick.
// Settle recibe el conjunto vencido completo al final de cada tick.
type DedupPolicy interface {
	ShouldAlert(ctx context.Context, r domain.Reminder) (bool, error)
	Settle(ctx context.Context, due []domain.Reminder)
}

type noDedup struct{}

// NewNoDedup alerta en cada tick mientras el recordatorio siga sin tomarse.
func NewNoDedup() DedupPolicy { return noDedup{} }

func (noDedup) ShouldAlert(context.Context, domain.Reminder) (bool, error) { return true, nil }

func (noDedup) Settle(context.Context, []domain.Reminder) {}

// memoryDedup alerta una vez por recordatorio mientras siga vencido. Cuando sale
// del conjunto vencido (se tomó) se olvida.
type memoryDedup struct {
	mu      sync.Mutex
	alerted map[string]struct{}
}

func NewMemoryDedup() DedupPolicy {
	return &memoryDedup{alerted: make(map[string]struct{})}
}

func (d *memoryDedup) ShouldAlert(_ context.Context, r domain.Reminder) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.alerted[r.ID]; ok {
		return false, nil
	}
	d.alerted[r.ID] = struct{}{}
	return true, nil
}

func (d *memoryDedup) Settle(_ context.Context, due []domain.Reminder) {
	still := make(map[string]struct{}, len(due))
	for _, r := range due {
		still[r.ID] = struct{}{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for id := range d.alerted {
		if _, ok := still[id]; !ok {
			delete(d.alerted, id)
		}
	}
}

type redisSetNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// redisDedup permite una alerta por recordatorio por ventana, compartida entre
// instancias del relay.
type redisDedup struct {
	client redisSetNXer
	window time.Duration
	prefix string
}

func NewRedisDedup(client *redis.Client, window time.Duration) DedupPolicy {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &redisDedup{
		client: client,
		window: window,
		prefix: "relay:reminder:alerted:",
	}
}

func (d *redisDedup) ShouldAlert(ctx context.Context, r domain.Reminder) (bool, error) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return true, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	ok, err := d.client.SetNX(ctx, d.prefix+id, time.Now().UTC().Unix(), d.window).Result()
	if err != nil {
		return true, err
	}
	return ok, nil
}

func (d *redisDedup) Settle(context.Context, []domain.Reminder) {}
