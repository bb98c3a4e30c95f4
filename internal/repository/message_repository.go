package repository

import (
	"context"
	"fmt"

	"message_dispatch/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db     *pgxpool.Pool
	outbox *OutboxRepository
	sb     sq.StatementBuilderType
}

func NewMessageRepository(db *pgxpool.Pool, outbox *OutboxRepository) *MessageRepository {
	return &MessageRepository{
		db:     db,
		outbox: outbox,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// CreateTx inserts one message record inside the given transaction and fills
// in its id and creation timestamp.
func (r *MessageRepository) CreateTx(ctx context.Context, tx pgx.Tx, msg *models.Message) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}
	if msg.OwnerID == "" {
		return fmt.Errorf("owner_id is empty")
	}
	if len(msg.Recipients) == 0 {
		return fmt.Errorf("recipients is empty")
	}
	if !models.IsSupportedPlatform(msg.Platform) {
		return fmt.Errorf("invalid platform: %s", msg.Platform)
	}

	query := r.sb.
		Insert("messages").
		Columns("owner_id", "recipients", "platform", "content", "file_url", "sent", "result_message").
		Values(msg.OwnerID, msg.Recipients, msg.Platform, msg.Content, msg.FileURL, msg.Sent, msg.ResultMessage).
		Suffix("RETURNING id, created_at")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert message sql: %w", err)
	}

	var id int64
	if err := tx.QueryRow(ctx, sqlStr, args...).Scan(&id, &msg.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	msg.ID = int(id)
	return nil
}

// CreateWithEvent persists the message and an outbox event atomically. The
// payload callback runs after the insert so it can see the assigned id.
func (r *MessageRepository) CreateWithEvent(
	ctx context.Context,
	msg *models.Message,
	topic string,
	eventPayload func(*models.Message) ([]byte, error),
) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.CreateTx(ctx, tx, msg); err != nil {
		return err
	}

	if topic != "" && eventPayload != nil {
		payload, err := eventPayload(msg)
		if err != nil {
			return fmt.Errorf("build event payload: %w", err)
		}
		ev := &models.OutboxEvent{
			Topic:   topic,
			Payload: payload,
		}
		if err := r.outbox.CreateEventTx(ctx, tx, ev); err != nil {
			return fmt.Errorf("create outbox event tx: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// ListByOwner returns one page of the owner's messages, newest first, plus
// the total row count for that owner.
func (r *MessageRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Message, int, error) {
	if ownerID == "" {
		return nil, 0, fmt.Errorf("owner_id is empty")
	}

	filter := sq.Eq{"owner_id": ownerID}

	// 1) count
	countQuery := r.sb.
		Select("COUNT(*)").
		From("messages").
		Where(filter)

	countSQL, countArgs, err := countQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count messages sql: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	// 2) data
	dataQuery := r.sb.
		Select("id", "owner_id", "recipients", "platform", "content", "file_url", "sent", "result_message", "created_at").
		From("messages").
		Where(filter).
		OrderBy("created_at DESC", "id DESC")

	if limit > 0 {
		dataQuery = dataQuery.Limit(uint64(limit))
	}
	if offset > 0 {
		dataQuery = dataQuery.Offset(uint64(offset))
	}

	dataSQL, dataArgs, err := dataQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build select messages sql: %w", err)
	}

	rows, err := r.db.Query(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	result := make([]models.Message, 0)

	for rows.Next() {
		var (
			m       models.Message
			id      int64
			fileURL pgtype.Text
			resMsg  pgtype.Text
		)

		if err := rows.Scan(
			&id,
			&m.OwnerID,
			&m.Recipients,
			&m.Platform,
			&m.Content,
			&fileURL,
			&m.Sent,
			&resMsg,
			&m.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan message row: %w", err)
		}

		m.ID = int(id)
		if fileURL.Valid {
			s := fileURL.String
			m.FileURL = &s
		}
		if resMsg.Valid {
			s := resMsg.String
			m.ResultMessage = &s
		}

		result = append(result, m)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate message rows: %w", err)
	}

	return result, int(total), nil
}

// StatsByPlatform aggregates the owner's messages into per-platform
// sent/failed counts.
func (r *MessageRepository) StatsByPlatform(ctx context.Context, ownerID string) ([]models.PlatformStats, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner_id is empty")
	}

	query := r.sb.
		Select("platform", "sent", "COUNT(*)").
		From("messages").
		Where(sq.Eq{"owner_id": ownerID}).
		GroupBy("platform", "sent").
		OrderBy("platform")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stats sql: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	byPlatform := make(map[string]*models.PlatformStats)
	order := make([]string, 0, len(models.SupportedPlatforms))

	for rows.Next() {
		var (
			platform string
			sent     bool
			cnt      int64
		)
		if err := rows.Scan(&platform, &sent, &cnt); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}

		st, ok := byPlatform[platform]
		if !ok {
			st = &models.PlatformStats{Platform: platform}
			byPlatform[platform] = st
			order = append(order, platform)
		}
		if sent {
			st.Sent = int(cnt)
		} else {
			st.Failed = int(cnt)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats rows: %w", err)
	}

	result := make([]models.PlatformStats, 0, len(order))
	for _, p := range order {
		result = append(result, *byPlatform[p])
	}
	return result, nil
}
