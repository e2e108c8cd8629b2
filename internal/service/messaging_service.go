package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/boardinghub/boardinghub-api/internal/models"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
)

type conversationRepository interface {
	FindByPair(ctx context.Context, a, b string) (*models.Conversation, error)
	FindByID(ctx context.Context, id string) (*models.Conversation, error)
	Create(ctx context.Context, a, b string) (*models.Conversation, error)
	Touch(ctx context.Context, id string, ts time.Time) error
	ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID string) error
	UnreadTotal(ctx context.Context, userID string) (int, error)
	FindMessage(ctx context.Context, id string) (*models.Message, error)
	DeleteMessage(ctx context.Context, id string) error
}

type messagingUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// MessagingService handles direct messages between students and property
// owners. Threads are keyed by the canonical user pair, so the same two
// people always share one conversation.
type MessagingService struct {
	conversations conversationRepository
	users         messagingUserRepository
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewMessagingService constructs a MessagingService.
func NewMessagingService(conversations conversationRepository, users messagingUserRepository, validate *validator.Validate, logger *zap.Logger) *MessagingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MessagingService{conversations: conversations, users: users, validator: validate, logger: logger}
}

// Send delivers a message, creating the conversation on first contact.
func (s *MessagingService) Send(ctx context.Context, senderID string, req models.SendMessageRequest) (*models.Message, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}
	if req.RecipientID == senderID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot message yourself")
	}

	recipient, err := s.users.FindByID(ctx, req.RecipientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipient")
	}
	if !recipient.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
	}

	conv, err := s.conversations.FindByPair(ctx, senderID, recipient.ID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conversation")
		}
		conv, err = s.conversations.Create(ctx, senderID, recipient.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create conversation")
		}
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        req.Content,
	}
	if err := s.conversations.CreateMessage(ctx, msg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store message")
	}
	if err := s.conversations.Touch(ctx, conv.ID, msg.CreatedAt); err != nil {
		s.logger.Warn("failed to touch conversation", zap.String("conversation_id", conv.ID), zap.Error(err))
	}
	return msg, nil
}

// ListConversations returns the user's threads, most recently active first.
func (s *MessagingService) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	summaries, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conversations")
	}
	return summaries, nil
}

// ListMessages returns a thread's messages and marks the counterpart's
// messages read, since listing means the reader has seen them.
func (s *MessagingService) ListMessages(ctx context.Context, conversationID, readerID string) ([]models.Message, error) {
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "conversation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conversation")
	}
	if conv.UserLowID != readerID && conv.UserHighID != readerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a participant in this conversation")
	}

	messages, err := s.conversations.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}
	if err := s.conversations.MarkRead(ctx, conversationID, readerID); err != nil {
		s.logger.Warn("failed to mark messages read", zap.String("conversation_id", conversationID), zap.Error(err))
	}
	return messages, nil
}

// DeleteMessage removes a message; only its sender may delete it.
func (s *MessagingService) DeleteMessage(ctx context.Context, messageID, requesterID string) error {
	msg, err := s.conversations.FindMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "message not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load message")
	}
	if msg.SenderID != requesterID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the sender can delete a message")
	}
	if err := s.conversations.DeleteMessage(ctx, messageID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete message")
	}
	return nil
}

// UnreadCount returns the user's total unread message count.
func (s *MessagingService) UnreadCount(ctx context.Context, userID string) (int, error) {
	total, err := s.conversations.UnreadTotal(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread messages")
	}
	return total, nil
}
