package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"care-relay/internal/domain"
	"care-relay/internal/metrics"
)

// DeliveryMode decide la audiencia de cada publicación.
type DeliveryMode string

const (
	// DeliveryBroadcast entrega a toda sesión de cuidador conectada.
	DeliveryBroadcast DeliveryMode = "broadcast"
	// DeliveryGroup entrega solo a las sesiones unidas al grupo del paciente.
	DeliveryGroup DeliveryMode = "group"
)

// Transport es el extremo de salida de una sesión (websocket, SSE, pruebas).
type Transport interface {
	Send(ctx context.Context, n domain.Notification) error
	Close() error
}

// Session es una conexión viva registrada en el Hub.
type Session struct {
	ID          string
	Identity    domain.Identity
	ConnectedAt time.Time

	transport Transport
	queue     chan domain.Notification
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	groups map[string]struct{}
}

// Done se cierra cuando la sesión deja de recibir notificaciones.
func (s *Session) Done() <-chan struct{} { return s.done }

// InGroup reporta si la sesión se unió al grupo del paciente.
func (s *Session) InGroup(patientID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.groups[patientID]
	return ok
}

// Groups devuelve los grupos de la sesión ordenados.
func (s *Session) Groups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.groups))
	for g := range s.groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Info devuelve una vista serializable de la sesión.
func (s *Session) Info() domain.SessionInfo {
	return domain.SessionInfo{
		ID:          s.ID,
		Identity:    s.Identity,
		Groups:      s.Groups(),
		ConnectedAt: s.ConnectedAt,
	}
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// HubOptions configura la política de entrega.
type HubOptions struct {
	Mode            DeliveryMode
	QueueSize       int
	DeliveryTimeout time.Duration
	WriteTimeout    time.Duration
}

func (o HubOptions) withDefaults() HubOptions {
	if o.Mode == "" {
		o.Mode = DeliveryBroadcast
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.DeliveryTimeout <= 0 {
		o.DeliveryTimeout = 250 * time.Millisecond
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	return o
}

// PublishResult resume una publicación.
type PublishResult struct {
	Enqueued int
	Dropped  int
}

// Hub es el registro de sesiones y el fan-out. Todo acceso al registro pasa
// por mu; Publish trabaja sobre una instantánea tomada con el lock de lectura.
type Hub struct {
	logger  *zap.Logger
	metrics *metrics.Relay
	opts    HubOptions

	mu       sync.RWMutex
	sessions map[string]*Session
	groups   map[string]map[string]*Session
	closing  bool
	wg       sync.WaitGroup
}

func NewHub(logger *zap.Logger, opts HubOptions, m *metrics.Relay) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:   logger,
		metrics:  m,
		opts:     opts.withDefaults(),
		sessions: make(map[string]*Session),
		groups:   make(map[string]map[string]*Session),
	}
}

// Mode devuelve la política de audiencia configurada.
func (h *Hub) Mode() DeliveryMode { return h.opts.Mode }

// Register crea la sesión, la agrega al registro y arranca su escritor. Después
// de Close devuelve una sesión ya cerrada que no recibe nada.
func (h *Hub) Register(identity domain.Identity, transport Transport) *Session {
	s := &Session{
		ID:          uuid.NewString(),
		Identity:    identity,
		ConnectedAt: time.Now().UTC(),
		transport:   transport,
		queue:       make(chan domain.Notification, h.opts.QueueSize),
		done:        make(chan struct{}),
		groups:      make(map[string]struct{}),
	}

	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		s.closeOnce.Do(func() {
			close(s.done)
			_ = transport.Close()
		})
		h.logger.Debug("session refused, hub closed", zap.String("session_id", s.ID))
		return s
	}
	h.sessions[s.ID] = s
	h.wg.Add(1)
	h.mu.Unlock()

	h.metrics.SessionOpened()
	go h.writeLoop(s)

	h.logger.Info("session connected",
		zap.String("session_id", s.ID),
		zap.String("subject", identity.Subject),
		zap.String("role", string(identity.Role)),
	)
	return s
}

// Join agrega la sesión al grupo del paciente. Devuelve false si ya era miembro
// o si la sesión ya no está registrada.
func (h *Hub) Join(s *Session, patientID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s.ID]; !ok {
		return false
	}
	members, ok := h.groups[patientID]
	if !ok {
		members = make(map[string]*Session)
		h.groups[patientID] = members
	}
	if _, ok := members[s.ID]; ok {
		return false
	}
	members[s.ID] = s

	s.mu.Lock()
	s.groups[patientID] = struct{}{}
	s.mu.Unlock()
	return true
}

// Unregister saca la sesión del registro y de todos sus grupos, y cierra su
// transporte. Es idempotente.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	_, registered := h.sessions[s.ID]
	if registered {
		delete(h.sessions, s.ID)
		s.mu.Lock()
		for g := range s.groups {
			if members, ok := h.groups[g]; ok {
				delete(members, s.ID)
				if len(members) == 0 {
					delete(h.groups, g)
				}
			}
		}
		s.groups = make(map[string]struct{})
		s.mu.Unlock()
	}
	h.mu.Unlock()

	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.transport.Close(); err != nil {
			h.logger.Debug("transport close failed", zap.String("session_id", s.ID), zap.Error(err))
		}
	})

	if registered {
		h.metrics.SessionClosed()
		h.logger.Info("session disconnected", zap.String("session_id", s.ID))
	}
}

// Count devuelve la cantidad de sesiones registradas.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Sessions devuelve una instantánea de las sesiones vivas.
func (h *Hub) Sessions() []domain.SessionInfo {
	h.mu.RLock()
	list := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		list = append(list, s)
	}
	h.mu.RUnlock()

	out := make([]domain.SessionInfo, 0, len(list))
	for _, s := range list {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}

// Publish encola n en cada sesión de la audiencia. No espera la escritura en
// los transportes. Las colas llenas comparten un único plazo DeliveryTimeout
// por publicación, así que varias sesiones trabadas no suman esperas.
func (h *Hub) Publish(ctx context.Context, n domain.Notification) PublishResult {
	audience := h.audience(n)
	var res PublishResult
	var pending []*Session
	for _, s := range audience {
		ok, err := tryEnqueue(s, n)
		switch {
		case err != nil:
			h.drop(&res, s, n, err)
		case ok:
			res.Enqueued++
		default:
			pending = append(pending, s)
		}
	}
	if len(pending) == 0 {
		return res
	}

	timer := time.NewTimer(h.opts.DeliveryTimeout)
	defer timer.Stop()
	expired := false
	for _, s := range pending {
		if expired {
			h.drop(&res, s, n, domain.ErrDeliveryTimeout)
			continue
		}
		err := h.enqueue(ctx, s, n, timer.C)
		if errors.Is(err, domain.ErrDeliveryTimeout) {
			expired = true
		}
		if err != nil {
			h.drop(&res, s, n, err)
			continue
		}
		res.Enqueued++
	}
	return res
}

func (h *Hub) drop(res *PublishResult, s *Session, n domain.Notification, err error) {
	res.Dropped++
	reason := "closed"
	if errors.Is(err, domain.ErrDeliveryTimeout) {
		reason = "timeout"
	}
	h.metrics.Dropped(reason)
	h.logger.Warn("delivery dropped",
		zap.Error(&domain.TransportError{SessionID: s.ID, Err: err}),
		zap.String("notification_id", n.ID),
		zap.String("kind", string(n.Kind)),
	)
}

// Close desconecta todas las sesiones y espera a que terminen sus escritores.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closing = true
	all := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		all = append(all, s)
	}
	h.mu.Unlock()

	for _, s := range all {
		h.Unregister(s)
	}
	h.wg.Wait()
}

func (h *Hub) audience(n domain.Notification) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var pool map[string]*Session
	switch h.opts.Mode {
	case DeliveryGroup:
		pool = h.groups[n.PatientID]
	default:
		pool = h.sessions
	}

	out := make([]*Session, 0, len(pool))
	for _, s := range pool {
		if s.Identity.ReceivesAlerts() {
			out = append(out, s)
		}
	}
	return out
}

// tryEnqueue encola sin esperar. Devuelve false si la cola está llena.
func tryEnqueue(s *Session, n domain.Notification) (bool, error) {
	if s.closed() {
		return false, domain.ErrSessionClosed
	}
	select {
	case s.queue <- n:
		return true, nil
	default:
		return false, nil
	}
}

// enqueue espera lugar en la cola hasta que venza el plazo compartido deadline.
func (h *Hub) enqueue(ctx context.Context, s *Session, n domain.Notification, deadline <-chan time.Time) error {
	select {
	case s.queue <- n:
		return nil
	case <-s.done:
		return domain.ErrSessionClosed
	case <-deadline:
		return domain.ErrDeliveryTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) writeLoop(s *Session) {
	defer h.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case n := <-s.queue:
			if s.closed() {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), h.opts.WriteTimeout)
			err := s.transport.Send(ctx, n)
			cancel()
			if err != nil {
				h.metrics.Dropped("transport")
				h.logger.Warn("transport write failed, closing session",
					zap.Error(&domain.TransportError{SessionID: s.ID, Err: err}),
					zap.String("notification_id", n.ID),
				)
				h.Unregister(s)
				return
			}
		}
	}
}
