package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"message_dispatch/internal/cache"
	"message_dispatch/internal/kafka"
	"message_dispatch/internal/metrics"
	"message_dispatch/internal/models"
	"message_dispatch/internal/sender"
	"message_dispatch/internal/storage"
)

var (
	ErrInvalidInput = errors.New("invalid input")

	// ErrProcessing is the generic signal for infrastructure failures. The
	// cause is logged server-side and never leaks to the caller.
	ErrProcessing = errors.New("message processing failed")
)

const (
	maxContentLength = 5000

	defaultLimit = 20
	maxLimit     = 100
)

// MessageStore is the persistent store collaborator the service needs.
type MessageStore interface {
	CreateWithEvent(ctx context.Context, msg *models.Message, topic string, eventPayload func(*models.Message) ([]byte, error)) error
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Message, int, error)
	StatsByPlatform(ctx context.Context, ownerID string) ([]models.PlatformStats, error)
}

type MessageService struct {
	store    MessageStore
	cache    cache.Cache
	files    storage.FileStorage
	selector *sender.Selector

	eventTopic string
	cacheTTL   time.Duration
	logger     *log.Logger
}

func NewMessageService(
	store MessageStore,
	c cache.Cache,
	files storage.FileStorage,
	selector *sender.Selector,
	eventTopic string,
	cacheTTL time.Duration,
	logger *log.Logger,
) *MessageService {
	if logger == nil {
		logger = log.Default()
	}
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}

	return &MessageService{
		store:      store,
		cache:      c,
		files:      files,
		selector:   selector,
		eventTopic: eventTopic,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

type DispatchRequest struct {
	OwnerID    string
	Platform   string
	Recipients []string
	Content    string
	File       *storage.File
}

// Dispatch delivers one outbound message and persists the outcome. The
// record is written whether delivery succeeded or not; it is never written
// when a precondition (validation, file upload, unknown platform) fails.
// After the record commits, every cached page for the owner is invalidated.
func (s *MessageService) Dispatch(ctx context.Context, req DispatchRequest) (*models.Message, error) {
	if err := validateDispatchRequest(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	// 1) file upload is a precondition: a failure here aborts the whole
	// dispatch before any send attempt
	fileURL := ""
	if req.File != nil {
		u, err := s.files.Upload(ctx, req.File)
		if err != nil {
			s.logger.Printf("dispatch: file upload failed for user %s: %v", req.OwnerID, err)
			return nil, fmt.Errorf("%w: file upload", ErrProcessing)
		}
		fileURL = u
	}

	// 2) resolve strategy
	snd, err := s.selector.Resolve(req.Platform)
	if err != nil {
		return nil, err
	}

	// 3) fan-out policy: single send, native bulk, or concurrent fallback
	start := time.Now()

	var res sender.Result
	switch {
	case len(req.Recipients) == 1:
		res = snd.SendOne(ctx, req.Recipients[0], req.Content, fileURL)
	default:
		if bulk, ok := snd.(sender.BulkSender); ok {
			res = bulk.SendMany(ctx, req.Recipients, req.Content, fileURL)
		} else {
			res = fanOut(ctx, snd, req.Recipients, req.Content, fileURL)
		}
	}

	metrics.ObserveDispatchDuration(req.Platform, time.Since(start))
	metrics.ObserveRecipientsCount(len(req.Recipients))

	// 4) persist the attempted outcome, success or not
	msg := &models.Message{
		OwnerID:    req.OwnerID,
		Recipients: req.Recipients,
		Platform:   req.Platform,
		Content:    req.Content,
		Sent:       res.Success,
	}
	if fileURL != "" {
		msg.FileURL = &fileURL
	}
	if res.Message != "" {
		m := res.Message
		msg.ResultMessage = &m
	}

	err = s.store.CreateWithEvent(ctx, msg, s.eventTopic, func(m *models.Message) ([]byte, error) {
		return json.Marshal(kafka.NewDispatchEvent(m))
	})
	if err != nil {
		s.logger.Printf("dispatch: persist failed for user %s: %v", req.OwnerID, err)
		return nil, fmt.Errorf("%w: persist message", ErrProcessing)
	}

	metrics.IncMessageDispatched(req.Platform, res.Success)

	// 5) best-effort invalidation after the record commits: staleness is
	// preferable to failing a completed send
	if _, err := s.cache.DelByPattern(ctx, cache.UserMessagesPattern(req.OwnerID)); err != nil {
		s.logger.Printf("dispatch: cache invalidation failed for user %s: %v", req.OwnerID, err)
	}

	return msg, nil
}

// fanOut issues one concurrent SendOne per recipient and joins on all of
// them; a slow or failed recipient does not cancel the others. Overall
// success is the AND over individual outcomes.
func fanOut(ctx context.Context, snd sender.Sender, recipients []string, content, fileURL string) sender.Result {
	results := make([]sender.Result, len(recipients))

	var wg sync.WaitGroup
	for i, rcpt := range recipients {
		wg.Add(1)
		go func(i int, rcpt string) {
			defer wg.Done()
			results[i] = snd.SendOne(ctx, rcpt, content, fileURL)
		}(i, rcpt)
	}
	wg.Wait()

	delivered := 0
	firstFailure := ""
	for _, r := range results {
		if r.Success {
			delivered++
		} else if firstFailure == "" {
			firstFailure = r.Message
		}
	}

	if delivered == len(recipients) {
		return sender.Result{
			Success: true,
			Message: fmt.Sprintf("%d/%d delivered", delivered, len(recipients)),
		}
	}
	return sender.Result{
		Message: fmt.Sprintf("%d/%d delivered; first failure: %s", delivered, len(recipients), firstFailure),
	}
}

// ListMessages serves one page of the owner's history cache-aside: cache
// read first, store on miss, repopulate with the fixed TTL. FromCache in
// the response records the provenance.
func (s *MessageService) ListMessages(ctx context.Context, ownerID string, limit, offset int) (*models.MessageListResponse, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	key := cache.MessagePageKey(ownerID, limit, offset)

	// 1) cache lookup; a corrupt entry counts as a miss
	if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var page models.MessagePage
		if err := json.Unmarshal(b, &page); err == nil {
			metrics.IncRedisHit()
			return buildListResponse(page, limit, offset, true), nil
		}
		s.logger.Printf("list: corrupt cache entry %s, falling through", key)
	}

	// 2) store
	items, total, err := s.store.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		s.logger.Printf("list: store query failed for user %s: %v", ownerID, err)
		return nil, fmt.Errorf("%w: list messages", ErrProcessing)
	}

	page := models.MessagePage{Items: items, Total: total}

	// 3) repopulate; empty pages are never cached and a write failure never
	// fails the read
	if len(items) > 0 {
		if b, err := json.Marshal(page); err == nil {
			if err := s.cache.Set(ctx, key, b, s.cacheTTL); err != nil {
				s.logger.Printf("list: cache write failed for %s: %v", key, err)
			}
		}
	}

	metrics.IncRedisMiss()
	return buildListResponse(page, limit, offset, false), nil
}

// Stats returns the owner's per-platform sent/failed aggregate.
func (s *MessageService) Stats(ctx context.Context, ownerID string) ([]models.PlatformStats, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}

	stats, err := s.store.StatsByPlatform(ctx, ownerID)
	if err != nil {
		s.logger.Printf("stats: store query failed for user %s: %v", ownerID, err)
		return nil, fmt.Errorf("%w: message stats", ErrProcessing)
	}
	return stats, nil
}

func buildListResponse(page models.MessagePage, limit, offset int, fromCache bool) *models.MessageListResponse {
	items := page.Items
	if items == nil {
		items = []models.Message{}
	}
	return &models.MessageListResponse{
		Items:     items,
		FromCache: fromCache,
		Pagination: models.Pagination{
			Total:       page.Total,
			Limit:       limit,
			Offset:      offset,
			HasNext:     offset+limit < page.Total,
			HasPrevious: offset > 0,
		},
	}
}

func validateDispatchRequest(req *DispatchRequest) error {
	if req == nil {
		return errors.New("request is nil")
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		return errors.New("owner is required")
	}
	if !models.IsSupportedPlatform(req.Platform) {
		return fmt.Errorf("platform must be one of %s", strings.Join(models.SupportedPlatforms, "|"))
	}
	if len(req.Recipients) == 0 {
		return errors.New("recipients must not be empty")
	}
	for _, rcpt := range req.Recipients {
		if strings.TrimSpace(rcpt) == "" {
			return errors.New("recipient must not be blank")
		}
	}
	n := utf8.RuneCountInString(req.Content)
	if n == 0 {
		return errors.New("content is required")
	}
	if n > maxContentLength {
		return fmt.Errorf("content exceeds %d characters", maxContentLength)
	}
	return nil
}
