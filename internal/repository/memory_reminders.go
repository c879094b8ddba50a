package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"care-relay/internal/domain"
)

// MemoryReminderRepository guarda recordatorios en memoria. Sirve para demos
// sin Postgres y para pruebas del escáner.
type MemoryReminderRepository struct {
	mu    sync.RWMutex
	items map[string]domain.Reminder
}

func NewMemoryReminderRepository(reminders ...domain.Reminder) *MemoryReminderRepository {
	repo := &MemoryReminderRepository{items: make(map[string]domain.Reminder)}
	for _, r := range reminders {
		repo.items[r.ID] = r
	}
	return repo
}

// Put inserta o reemplaza un recordatorio.
func (m *MemoryReminderRepository) Put(r domain.Reminder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[r.ID] = r
}

// MarkTaken confirma la toma. No existe la transición inversa.
func (m *MemoryReminderRepository) MarkTaken(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return ErrReminderNotFound
	}
	r.Taken = true
	m.items[id] = r
	return nil
}

func (m *MemoryReminderRepository) FindDueUnacknowledged(ctx context.Context, now time.Time) ([]domain.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []domain.Reminder
	for _, r := range m.items {
		if r.IsDue(now) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].ScheduledTime.Equal(due[j].ScheduledTime) {
			return due[i].ID < due[j].ID
		}
		return due[i].ScheduledTime.Before(due[j].ScheduledTime)
	})
	return due, nil
}

func (m *MemoryReminderRepository) GetByID(_ context.Context, id string) (domain.Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.items[id]
	if !ok {
		return domain.Reminder{}, ErrReminderNotFound
	}
	return r, nil
}
