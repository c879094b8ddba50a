package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"care-relay/internal/domain"
	"care-relay/internal/metrics"
)

// Gateway es la puerta de entrada de las sesiones: conexión, grupos e ingesta
// de eventos crudos hacia el normalizador y el fan-out.
type Gateway struct {
	logger     *zap.Logger
	hub        *Hub
	normalizer *Normalizer
	authorizer JoinAuthorizer
	limiter    EmotionLimiter
	metrics    *metrics.Relay
}

func NewGateway(logger *zap.Logger, hub *Hub, normalizer *Normalizer, authorizer JoinAuthorizer, m *metrics.Relay) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if authorizer == nil {
		authorizer = NewOpenAuthorizer()
	}
	return &Gateway{
		logger:     logger,
		hub:        hub,
		normalizer: normalizer,
		authorizer: authorizer,
		metrics:    m,
	}
}

// SetEmotionLimiter activa el límite de alertas de emoción por paciente. nil lo desactiva.
func (g *Gateway) SetEmotionLimiter(l EmotionLimiter) {
	g.limiter = l
}

// Connect registra una sesión nueva. No valida la identidad: eso ya ocurrió
// (o no) en el Authenticator.
func (g *Gateway) Connect(identity domain.Identity, transport Transport) *Session {
	return g.hub.Register(identity, transport)
}

// JoinGroup une la sesión al grupo del paciente. Repetir el join no es error.
func (g *Gateway) JoinGroup(ctx context.Context, s *Session, patientID string) error {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return &domain.ValidationError{Field: "patientId", Reason: "is required"}
	}
	if s.closed() {
		return domain.ErrSessionClosed
	}
	if err := g.authorizer.AuthorizeJoin(ctx, s.Identity, patientID); err != nil {
		g.logger.Warn("join rejected",
			zap.String("session_id", s.ID),
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		if errors.Is(err, ErrJoinForbidden) {
			return err
		}
		return errors.Join(ErrJoinForbidden, err)
	}
	if g.hub.Join(s, patientID) {
		g.logger.Info("session joined patient group",
			zap.String("session_id", s.ID),
			zap.String("patient_id", patientID),
		)
	}
	return nil
}

// Disconnect cancela toda entrega futura a la sesión.
func (g *Gateway) Disconnect(s *Session) {
	g.hub.Unregister(s)
}

// Ingest normaliza el evento de la sesión y lo encola para el fan-out. Un
// evento inválido devuelve *domain.ValidationError solo a quien lo envió.
func (g *Gateway) Ingest(ctx context.Context, s *Session, raw domain.RawEvent) (domain.Notification, error) {
	if s.closed() {
		return domain.Notification{}, domain.ErrSessionClosed
	}
	return g.ingest(ctx, raw, zap.String("session_id", s.ID))
}

// IngestFrom ingesta un evento que llegó sin sesión viva (por ejemplo, POST /alerts).
func (g *Gateway) IngestFrom(ctx context.Context, identity domain.Identity, raw domain.RawEvent) (domain.Notification, error) {
	return g.ingest(ctx, raw, zap.String("subject", identity.Subject))
}

func (g *Gateway) ingest(ctx context.Context, raw domain.RawEvent, source zap.Field) (domain.Notification, error) {
	n, err := g.normalizer.Normalize(raw)
	if err != nil {
		g.metrics.Rejected(rejectedLabel(raw.Kind))
		g.logger.Warn("raw event rejected", source, zap.String("event", string(raw.Kind)), zap.Error(err))
		return domain.Notification{}, err
	}
	if n.Kind == domain.KindEmotion && g.limiter != nil && !g.limiter.Allow(n.PatientID) {
		g.metrics.Dropped("rate_limited")
		g.logger.Debug("emotion alert throttled", source, zap.String("patient_id", n.PatientID))
		return domain.Notification{}, ErrRateLimited
	}

	res := g.hub.Publish(ctx, n)
	g.metrics.Published(string(n.Kind), "live")
	g.logger.Debug("notification published",
		source,
		zap.String("notification_id", n.ID),
		zap.String("kind", string(n.Kind)),
		zap.String("patient_id", n.PatientID),
		zap.Int("enqueued", res.Enqueued),
		zap.Int("dropped", res.Dropped),
	)
	return n, nil
}

// rejectedLabel acota la etiqueta de métricas al conjunto cerrado de eventos.
func rejectedLabel(kind domain.RawEventKind) string {
	if kind.NotificationKind() == "" {
		return "unknown"
	}
	return string(kind)
}
