package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"care-relay/internal/config"
	"care-relay/internal/db"
	apihttp "care-relay/internal/http"
	"care-relay/internal/logging"
	"care-relay/internal/metrics"
	"care-relay/internal/repository"
	"care-relay/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "care-relay")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := db.Ping(ctx, pool); err != nil {
		logger.Warn("db ping failed, scanner will retry every tick", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	reminderRepo := repository.NewPgReminderRepository(pool)
	caregiverRepo := repository.NewPgCaregiverRepository(pool)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	relayMetrics := metrics.New(registry)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		}
		cancel()
	}

	var authenticator service.Authenticator
	switch cfg.AuthMode {
	case config.AuthModeJWT:
		authenticator = service.NewJWTAuthenticator(service.NewJWTService(cfg.JWTSecret, 0))
	default:
		authenticator = service.NewOpaqueAuthenticator()
		logger.Warn("opaque authentication enabled: any token is accepted")
	}

	var authorizer service.JoinAuthorizer
	switch cfg.JoinAuth {
	case config.JoinAuthLinked:
		authorizer = service.NewLinkedCaregiverAuthorizer(caregiverRepo)
	default:
		authorizer = service.NewOpenAuthorizer()
	}

	var dedup service.DedupPolicy
	switch cfg.DedupPolicy {
	case config.DedupMemory:
		dedup = service.NewMemoryDedup()
	case config.DedupRedis:
		dedup = service.NewRedisDedup(redisClient, cfg.DedupWindow)
	default:
		dedup = service.NewNoDedup()
	}

	hub := service.NewHub(logger, service.HubOptions{
		Mode:            service.DeliveryMode(cfg.DeliveryMode),
		QueueSize:       cfg.SessionQueue,
		DeliveryTimeout: cfg.DeliveryTimeout,
		WriteTimeout:    cfg.WriteTimeout,
	}, relayMetrics)
	normalizer := service.NewNormalizer()
	gateway := service.NewGateway(logger, hub, normalizer, authorizer, relayMetrics)
	if cfg.EmotionLimit > 0 {
		if redisClient != nil {
			gateway.SetEmotionLimiter(service.NewRedisEmotionLimiter(redisClient, cfg.EmotionWindow, cfg.EmotionLimit))
		} else {
			gateway.SetEmotionLimiter(service.NewMemoryEmotionLimiter(cfg.EmotionWindow, cfg.EmotionLimit))
		}
	}

	scanner := service.NewScanner(logger, reminderRepo, normalizer, hub, dedup, relayMetrics, service.ScannerOptions{
		Interval: cfg.ScanInterval,
		Timeout:  cfg.ScanTimeout,
	})
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		_ = scanner.Start(ctx)
	}()

	router := apihttp.NewRouter(
		logger,
		cfg.ClientOrigin,
		authenticator,
		apihttp.NewWSHandler(logger, gateway, cfg.ClientOrigin, cfg.WriteTimeout),
		apihttp.NewSSEHandler(logger, gateway),
		apihttp.NewAlertsHandler(logger, gateway),
		apihttp.NewStatusHandler(hub),
		apihttp.NewPatientsHandler(logger, userRepo),
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		// los streams SSE terminan con la señal para que Shutdown no los espere
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("starting server",
			zap.String("port", cfg.HTTPPort),
			zap.String("delivery_mode", cfg.DeliveryMode),
			zap.String("dedup_policy", cfg.DedupPolicy),
			zap.String("auth_mode", cfg.AuthMode),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	<-scanDone
	hub.Close()
}
