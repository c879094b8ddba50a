package client

import (
	"sync"

	"care-relay/internal/domain"
)

// DefaultBufferSize es la cantidad de notificaciones que conserva un cuidador.
const DefaultBufferSize = 100

// NotificationBuffer guarda las últimas notificaciones, la más reciente primero.
type NotificationBuffer struct {
	mu    sync.RWMutex
	size  int
	items []domain.Notification
}

func NewNotificationBuffer(size int) *NotificationBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &NotificationBuffer{size: size, items: make([]domain.Notification, 0, size)}
}

// Add antepone n y descarta la más antigua si se excede la capacidad.
func (b *NotificationBuffer) Add(n domain.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, domain.Notification{})
	copy(b.items[1:], b.items)
	b.items[0] = n
	if len(b.items) > b.size {
		b.items = b.items[:b.size]
	}
}

// List devuelve una copia en orden de más reciente a más antigua.
func (b *NotificationBuffer) List() []domain.Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.Notification, len(b.items))
	copy(out, b.items)
	return out
}

func (b *NotificationBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}
