package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"care-relay/internal/domain"
	"care-relay/internal/repository"
)

// fakeTransport acumula lo recibido en un canal para que las pruebas esperen.
type fakeTransport struct {
	received chan domain.Notification
	block    chan struct{}
	sendErr  error

	mu     sync.Mutex
	closed bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{received: make(chan domain.Notification, 32)}
}

func (f *fakeTransport) Send(ctx context.Context, n domain.Notification) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.received <- n
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) next(timeout time.Duration) (domain.Notification, bool) {
	select {
	case n := <-f.received:
		return n, true
	case <-time.After(timeout):
		return domain.Notification{}, false
	}
}

func (f *fakeTransport) expectNone(wait time.Duration) bool {
	select {
	case <-f.received:
		return false
	case <-time.After(wait):
		return true
	}
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []domain.Notification
}

func (p *recordingPublisher) Publish(_ context.Context, n domain.Notification) PublishResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, n)
	return PublishResult{Enqueued: 1}
}

func (p *recordingPublisher) all() []domain.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Notification, len(p.published))
	copy(out, p.published)
	return out
}

// flakyStore falla en las llamadas marcadas y delega el resto.
type flakyStore struct {
	mu     sync.Mutex
	calls  int
	failOn map[int]bool
	block  bool
	inner  *repository.MemoryReminderRepository
}

func (s *flakyStore) FindDueUnacknowledged(ctx context.Context, now time.Time) ([]domain.Reminder, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	if s.block {
		time.Sleep(time.Second)
		return nil, nil
	}
	if s.failOn[call] {
		return nil, errors.New("connection refused")
	}
	return s.inner.FindDueUnacknowledged(ctx, now)
}

func (s *flakyStore) GetByID(context.Context, string) (domain.Reminder, error) {
	return domain.Reminder{}, errors.New("not implemented")
}

type fakeCaregiverRepo struct {
	links map[string]string
	err   error
}

func (f fakeCaregiverRepo) IsLinked(_ context.Context, email, patientID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.links[email] == patientID, nil
}

func ptrFloat(v float64) *float64 { return &v }

func mustRaw(kind domain.RawEventKind, v any) domain.RawEvent {
	raw, err := domain.NewRawEvent(kind, v)
	if err != nil {
		panic(err)
	}
	return raw
}
