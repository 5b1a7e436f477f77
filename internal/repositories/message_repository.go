package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"guild-chat-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// CreateMessageParams is one row to persist. AliasID is always recorded;
// SenderType decides how the row is rendered.
type CreateMessageParams struct {
	ChannelID  int64
	AliasID    string
	SenderType models.SenderType
	Text       string
	FileURL    *string
	ReplyToID  *int64
}

// MessageRepository defines interactions for channel messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, params CreateMessageParams) (models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	ListChannelMessages(ctx context.Context, channelID int64, limit int) ([]models.HistoryMessage, error)
	EditMessage(ctx context.Context, messageID int64, newText string) error
	SoftDeleteMessage(ctx context.Context, messageID int64) error
}

const messageColumns = `id, channel_id, alias_id, sender_type, message_text, file_url, reply_to_id, is_edited, is_deleted, sent_at`

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message and returns the persisted row.
func (r *MessageRepo) CreateMessage(ctx context.Context, params CreateMessageParams) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (channel_id, alias_id, sender_type, message_text, file_url, reply_to_id)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+messageColumns,
		params.ChannelID, params.AliasID, params.SenderType, params.Text, params.FileURL, params.ReplyToID).
		StructScan(&msg)
	return msg, err
}

// GetMessage retrieves a single message, soft-deleted rows included so
// ownership checks still resolve.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListChannelMessages returns the channel's most recent messages with the
// author's display data joined in, reordered oldest-first for rendering.
// Soft-deleted rows never appear.
func (r *MessageRepo) ListChannelMessages(ctx context.Context, channelID int64, limit int) ([]models.HistoryMessage, error) {
	// The limit must clip from the newest end, so fetch descending and
	// flip afterwards.
	query := `SELECT m.id, m.channel_id, m.alias_id, m.sender_type, m.message_text, m.file_url, m.reply_to_id,
            m.is_edited, m.is_deleted, m.sent_at,
            a.user_id AS owner_id, p.username, p.avatar_url
        FROM messages m
        INNER JOIN aliases a ON a.alias_id = m.alias_id
        LEFT JOIN profiles p ON p.user_id = a.user_id
        WHERE m.channel_id=$1 AND m.is_deleted = FALSE
        ORDER BY m.sent_at DESC, m.id DESC
        LIMIT $2`
	var msgs []models.HistoryMessage
	if err := r.db.SelectContext(ctx, &msgs, query, channelID, limit); err != nil {
		return nil, err
	}
	return oldestFirst(msgs), nil
}

func oldestFirst(msgs []models.HistoryMessage) []models.HistoryMessage {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs
}

// EditMessage replaces the text and flags the row as edited.
func (r *MessageRepo) EditMessage(ctx context.Context, messageID int64, newText string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET message_text=$2, is_edited=TRUE WHERE id=$1`, messageID, newText)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// SoftDeleteMessage hides the row from all history reads. Messages are
// never physically removed by end users.
func (r *MessageRepo) SoftDeleteMessage(ctx context.Context, messageID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_deleted=TRUE WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}
