package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"message_dispatch/internal/kafka"
	"message_dispatch/internal/metrics"
	"message_dispatch/internal/models"
	"message_dispatch/internal/repository"
)

// OutboxSender drains the transactional outbox into Kafka in the
// background. Publish retries live here, bounded by the repository's retry
// budget; delivery of the underlying message is never retried.
type OutboxSender struct {
	repo          *repository.OutboxRepository
	producer      *kafka.Producer
	pollInterval  time.Duration
	batchSize     int
	retentionDays int
	maxRetries    int
	logger        *log.Logger

	cleanupEvery time.Duration
}

func NewOutboxSender(
	repo *repository.OutboxRepository,
	producer *kafka.Producer,
	pollInterval time.Duration,
	batchSize int,
	retentionDays int,
	maxRetries int,
	logger *log.Logger,
) *OutboxSender {
	if maxRetries <= 0 {
		maxRetries = 10
	}
	if logger == nil {
		logger = log.Default()
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if retentionDays < 0 {
		retentionDays = 0
	}

	return &OutboxSender{
		repo:          repo,
		producer:      producer,
		pollInterval:  pollInterval,
		batchSize:     batchSize,
		retentionDays: retentionDays,
		maxRetries:    maxRetries,
		logger:        logger,
		// cleanup runs much less often than the flush loop
		cleanupEvery: 1 * time.Hour,
	}
}

// Start launches the background flush loop.
func (s *OutboxSender) Start(ctx context.Context) {
	go func() {
		s.logger.Println("outbox sender started")
		defer s.logger.Println("outbox sender stopped")

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		cleanupTicker := time.NewTicker(s.cleanupEvery)
		defer cleanupTicker.Stop()

		s.flushOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.flushOnce(ctx)
			case <-cleanupTicker.C:
				s.cleanupOnce(ctx)
			}
		}
	}()
}

func (s *OutboxSender) flushOnce(ctx context.Context) {
	evs, err := s.repo.GetPending(ctx, s.batchSize)
	if err != nil {
		s.logger.Printf("outbox get pending failed: %v", err)
		return
	}
	if len(evs) == 0 {
		return
	}

	for _, ev := range evs {
		if err := s.publishOne(ev); err != nil {
			// repo flips the status to failed once the budget is exhausted
			if err2 := s.repo.MarkFailed(ctx, ev.EventID, err.Error()); err2 != nil {
				s.logger.Printf("outbox mark failed error: %v", err2)
			}
			if ev.RetryCount+1 >= s.maxRetries {
				metrics.IncOutboxFailed()
			}
			continue
		}
		if err := s.repo.MarkSent(ctx, ev.EventID); err != nil {
			s.logger.Printf("outbox mark sent failed: %v", err)
		}
	}
}

func (s *OutboxSender) publishOne(ev *models.OutboxEvent) error {
	if ev == nil {
		return fmt.Errorf("outbox event is nil")
	}
	if ev.Topic == "" {
		return fmt.Errorf("outbox topic is empty")
	}
	if len(ev.Payload) == 0 {
		return fmt.Errorf("outbox payload is empty")
	}

	metrics.ObserveOutboxLagSeconds(time.Since(ev.CreatedAt).Seconds())

	start := time.Now()

	// Kafka key is the owning user, so one user's events stay in order
	key, err := extractOwnerID(ev.Payload)
	if err != nil {
		metrics.IncKafkaError("producer", "prepare")
		metrics.ObserveOutboxProcessing(time.Since(start))
		return fmt.Errorf("extract owner_id: %w", err)
	}

	if err := s.producer.SendRaw(ev.Topic, key, ev.Payload); err != nil {
		metrics.IncKafkaError("producer", "send")
		metrics.IncOutboxRetry()
		metrics.ObserveOutboxProcessing(time.Since(start))
		return fmt.Errorf("kafka send failed: %w", err)
	}

	metrics.IncKafkaSent()
	metrics.IncOutboxSent()
	metrics.ObserveOutboxProcessing(time.Since(start))

	return nil
}

func (s *OutboxSender) cleanupOnce(ctx context.Context) {
	if s.retentionDays <= 0 {
		return
	}
	n, err := s.repo.CleanupOld(ctx, s.retentionDays)
	if err != nil {
		s.logger.Printf("outbox cleanup failed: %v", err)
		return
	}
	if n > 0 {
		s.logger.Printf("outbox cleanup: deleted %d events", n)
	}
}

func extractOwnerID(payload []byte) (string, error) {
	var x struct {
		OwnerID string `json:"owner_id"`
	}
	if err := json.Unmarshal(payload, &x); err != nil {
		return "", err
	}
	if x.OwnerID == "" {
		return "", fmt.Errorf("owner_id is empty in payload")
	}
	return x.OwnerID, nil
}
