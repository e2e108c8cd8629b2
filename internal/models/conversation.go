package models

import "time"

// Conversation is a direct-message thread between two users. Participants are
// stored in canonical order (UserLowID < UserHighID) so the pair maps to
// exactly one row regardless of who started the thread.
type Conversation struct {
	ID         string    `db:"id" json:"id"`
	UserLowID  string    `db:"user_low_id" json:"user_low_id"`
	UserHighID string    `db:"user_high_id" json:"user_high_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// CanonicalPair orders two user IDs into the (low, high) form used for
// conversation lookup and creation.
func CanonicalPair(a, b string) (low, high string) {
	if a < b {
		return a, b
	}
	return b, a
}

// OtherParty returns the participant that is not userID.
func (c *Conversation) OtherParty(userID string) string {
	if c.UserLowID == userID {
		return c.UserHighID
	}
	return c.UserLowID
}

// Message is one entry in a conversation.
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	SenderID       string    `db:"sender_id" json:"sender_id"`
	Content        string    `db:"content" json:"content"`
	IsRead         bool      `db:"is_read" json:"is_read"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ConversationSummary is a conversation listed from one user's perspective,
// with the counterpart's identity, the latest message, and how many of the
// counterpart's messages remain unread.
type ConversationSummary struct {
	ID            string     `db:"id" json:"id"`
	OtherUserID   string     `db:"other_user_id" json:"other_user_id"`
	OtherUserName string     `db:"other_user_name" json:"other_user_name"`
	OtherUserRole UserRole   `db:"other_user_role" json:"other_user_role"`
	LastMessage   *string    `db:"last_message" json:"last_message,omitempty"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	UnreadCount   int        `db:"unread_count" json:"unread_count"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// SendMessageRequest is the payload for starting or continuing a thread.
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id" validate:"required,uuid"`
	Content     string `json:"content" validate:"required,max=5000"`
}
