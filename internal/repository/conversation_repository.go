package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/boardinghub/boardinghub-api/internal/models"
)

// ConversationRepository manages persistence for direct-message threads.
type ConversationRepository struct {
	db *sqlx.DB
}

// NewConversationRepository constructs a ConversationRepository.
func NewConversationRepository(db *sqlx.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// FindByPair returns the conversation for two users. The pair is canonicalized
// before lookup, so argument order does not matter.
func (r *ConversationRepository) FindByPair(ctx context.Context, a, b string) (*models.Conversation, error) {
	low, high := models.CanonicalPair(a, b)
	const query = `SELECT id, user_low_id, user_high_id, created_at, updated_at FROM conversations WHERE user_low_id = $1 AND user_high_id = $2 LIMIT 1`
	var conv models.Conversation
	if err := r.db.GetContext(ctx, &conv, query, low, high); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return &conv, nil
}

// FindByID fetches a conversation by identifier.
func (r *ConversationRepository) FindByID(ctx context.Context, id string) (*models.Conversation, error) {
	const query = `SELECT id, user_low_id, user_high_id, created_at, updated_at FROM conversations WHERE id = $1 LIMIT 1`
	var conv models.Conversation
	if err := r.db.GetContext(ctx, &conv, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find conversation by id: %w", err)
	}
	return &conv, nil
}

// Create inserts a conversation with its participants in canonical order.
func (r *ConversationRepository) Create(ctx context.Context, a, b string) (*models.Conversation, error) {
	low, high := models.CanonicalPair(a, b)
	now := time.Now().UTC()
	conv := models.Conversation{
		ID:         uuid.NewString(),
		UserLowID:  low,
		UserHighID: high,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	const query = `INSERT INTO conversations (id, user_low_id, user_high_id, created_at, updated_at) VALUES (:id, :user_low_id, :user_high_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, &conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &conv, nil
}

// Touch bumps the conversation's updated_at so it sorts to the top of
// listings.
func (r *ConversationRepository) Touch(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE conversations SET updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// ListForUser returns the user's conversations with counterpart identity, the
// latest message and the count of unread messages from the other party,
// most recently active first.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	const query = `SELECT c.id,
        u.id AS other_user_id, u.full_name AS other_user_name, u.role AS other_user_role,
        lm.content AS last_message, lm.created_at AS last_message_at,
        (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id AND m.sender_id <> $1 AND m.is_read = FALSE) AS unread_count,
        c.updated_at
        FROM conversations c
        JOIN users u ON u.id = CASE WHEN c.user_low_id = $1 THEN c.user_high_id ELSE c.user_low_id END
        LEFT JOIN LATERAL (
            SELECT content, created_at FROM messages WHERE conversation_id = c.id ORDER BY created_at DESC LIMIT 1
        ) lm ON TRUE
        WHERE c.user_low_id = $1 OR c.user_high_id = $1
        ORDER BY c.updated_at DESC`
	var summaries []models.ConversationSummary
	if err := r.db.SelectContext(ctx, &summaries, query, userID); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return summaries, nil
}

// CreateMessage inserts a message.
func (r *ConversationRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO messages (id, conversation_id, sender_id, content, is_read, created_at) VALUES (:id, :conversation_id, :sender_id, :content, :is_read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages oldest first.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	const query = `SELECT id, conversation_id, sender_id, content, is_read, created_at FROM messages WHERE conversation_id = $1 ORDER BY created_at`
	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, query, conversationID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// FindMessage fetches a single message by identifier.
func (r *ConversationRepository) FindMessage(ctx context.Context, id string) (*models.Message, error) {
	const query = `SELECT id, conversation_id, sender_id, content, is_read, created_at FROM messages WHERE id = $1 LIMIT 1`
	var msg models.Message
	if err := r.db.GetContext(ctx, &msg, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find message: %w", err)
	}
	return &msg, nil
}

// DeleteMessage removes a message.
func (r *ConversationRepository) DeleteMessage(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// MarkRead flags the counterpart's messages in a conversation as read.
func (r *ConversationRepository) MarkRead(ctx context.Context, conversationID, readerID string) error {
	const query = `UPDATE messages SET is_read = TRUE WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE`
	if _, err := r.db.ExecContext(ctx, query, conversationID, readerID); err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}
	return nil
}

// UnreadTotal returns the user's total unread message count across all
// conversations.
func (r *ConversationRepository) UnreadTotal(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM messages m
        JOIN conversations c ON c.id = m.conversation_id
        WHERE (c.user_low_id = $1 OR c.user_high_id = $1) AND m.sender_id <> $1 AND m.is_read = FALSE`
	var total int
	if err := r.db.GetContext(ctx, &total, query, userID); err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return total, nil
}
