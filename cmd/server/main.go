package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"message_dispatch/internal/auth"
	"message_dispatch/internal/cache"
	"message_dispatch/internal/config"
	"message_dispatch/internal/handlers"
	"message_dispatch/internal/kafka"
	"message_dispatch/internal/metrics"
	"message_dispatch/internal/repository"
	"message_dispatch/internal/sender"
	"message_dispatch/internal/service"
	"message_dispatch/internal/storage"

	"github.com/go-chi/chi/v5"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------- config ----------
	cfg := config.Load()

	// ---------- metrics ----------
	metrics.Register()

	// ---------- db ----------
	pool, err := repository.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal("db:", err)
	}
	defer pool.Close()

	// ---------- repositories ----------
	outboxRepo := repository.NewOutboxRepository(pool, cfg.OutboxMaxRetries)
	messageRepo := repository.NewMessageRepository(pool, outboxRepo)

	// ---------- cache ----------
	redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer redisCache.Close()
	cache.StartRedisSizeCollector(ctx, redisCache.RawClient(), 30*time.Second, nil)

	// ---------- sender strategies ----------
	selector := sender.NewSelector(
		sender.NewTelegramSender(cfg.TelegramAPIURL, cfg.TelegramToken, cfg.SendTimeout, nil),
		sender.NewSlackSender(cfg.SlackAPIURL, cfg.SlackToken, cfg.SendTimeout),
		sender.NewWhatsAppSender(cfg.WhatsAppAPIURL, cfg.WhatsAppToken, cfg.SendTimeout),
		sender.NewDiscordSender(cfg.DiscordAPIURL, cfg.DiscordToken, cfg.SendTimeout),
	)

	// ---------- file storage ----------
	files := storage.NewHTTPFileStorage(cfg.FileStorageURL, cfg.SendTimeout)

	// ---------- service ----------
	svc := service.NewMessageService(messageRepo, redisCache, files, selector, cfg.KafkaTopic, cfg.CacheTTL, nil)

	// ---------- kafka producer + outbox sender ----------
	producer, err := kafka.NewSyncProducer(cfg.KafkaBrokers)
	if err != nil {
		log.Fatal("kafka producer:", err)
	}
	defer producer.Close()

	outboxSender := service.NewOutboxSender(
		outboxRepo,
		producer,
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
		cfg.OutboxRetentionDays,
		cfg.OutboxMaxRetries,
		nil,
	)
	outboxSender.Start(ctx)

	metrics.StartDBCollectors(ctx, pool, 10*time.Second, nil)

	// ---------- handlers ----------
	h := handlers.NewMessageHandler(svc)

	// ---------- router ----------
	r := chi.NewRouter()
	r.Use(metrics.HTTPMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		handlers.RegisterMessageRoutes(r, h)
	})

	// ---------- start server ----------
	addr := ":" + cfg.HTTPPort
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		log.Println("server starting on", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("server shutdown:", err)
	}
}
