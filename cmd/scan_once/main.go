package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"care-relay/internal/config"
	"care-relay/internal/db"
	"care-relay/internal/domain"
	"care-relay/internal/repository"
	"care-relay/internal/service"
)

// dryRunPublisher imprime lo que el escáner difundiría, sin sockets.
type dryRunPublisher struct {
	enc *json.Encoder
}

func (p dryRunPublisher) Publish(_ context.Context, n domain.Notification) service.PublishResult {
	if err := p.enc.Encode(map[string]any{"event": domain.EventCaregiverNotification, "data": n}); err != nil {
		log.Printf("encode notification: %v", err)
	}
	return service.PublishResult{}
}

func main() {
	reminderID := flag.String("reminder", "", "inspecciona un solo recordatorio por id")
	flag.Parse()

	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("db pool: %v", err)
	}
	defer pool.Close()

	if err := db.Ping(ctx, pool); err != nil {
		log.Fatalf("db ping: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	reminders := repository.NewPgReminderRepository(pool)

	if *reminderID != "" {
		inspect(ctx, reminders, dryRunPublisher{enc: enc}, *reminderID)
		return
	}

	scanner := service.NewScanner(
		logger,
		reminders,
		service.NewNormalizer(),
		dryRunPublisher{enc: enc},
		service.NewNoDedup(),
		nil,
		service.ScannerOptions{Interval: cfg.ScanInterval, Timeout: cfg.ScanTimeout},
	)

	published, err := scanner.RunOnce(ctx)
	if err != nil {
		log.Fatalf("scan: %v", err)
	}
	fmt.Fprintf(os.Stderr, "%d recordatorios vencidos sin confirmar\n", len(published))
}

// inspect muestra la notificación que generaría un recordatorio si ya venció.
func inspect(ctx context.Context, reminders repository.ReminderRepository, pub dryRunPublisher, id string) {
	r, err := reminders.GetByID(ctx, id)
	if errors.Is(err, repository.ErrReminderNotFound) {
		log.Fatalf("recordatorio %s no existe", id)
	}
	if err != nil {
		log.Fatalf("get reminder: %v", err)
	}
	if !r.IsDue(time.Now().UTC()) {
		fmt.Fprintf(os.Stderr, "recordatorio %s no vencido o ya tomado\n", id)
		return
	}
	n, err := service.NewNormalizer().NormalizeReminder(r)
	if err != nil {
		log.Fatalf("normalize: %v", err)
	}
	pub.Publish(ctx, n)
}
