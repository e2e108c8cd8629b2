package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boardinghub/boardinghub-api/internal/models"
	appErrors "github.com/boardinghub/boardinghub-api/pkg/errors"
)

const (
	msgStudentID = "11111111-1111-1111-1111-111111111111"
	msgOwnerID   = "22222222-2222-2222-2222-222222222222"
)

type mockConversationRepo struct {
	conversations map[string]*models.Conversation
	messages      map[string][]models.Message
	touched       []string
	readMarks     []string
	deleted       []string
	unread        int
}

func (m *mockConversationRepo) FindByPair(ctx context.Context, a, b string) (*models.Conversation, error) {
	low, high := models.CanonicalPair(a, b)
	for _, c := range m.conversations {
		if c.UserLowID == low && c.UserHighID == high {
			return c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockConversationRepo) FindByID(ctx context.Context, id string) (*models.Conversation, error) {
	if c, ok := m.conversations[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockConversationRepo) Create(ctx context.Context, a, b string) (*models.Conversation, error) {
	low, high := models.CanonicalPair(a, b)
	conv := &models.Conversation{ID: "conv1", UserLowID: low, UserHighID: high, CreatedAt: time.Now().UTC()}
	if m.conversations == nil {
		m.conversations = make(map[string]*models.Conversation)
	}
	m.conversations[conv.ID] = conv
	return conv, nil
}

func (m *mockConversationRepo) Touch(ctx context.Context, id string, ts time.Time) error {
	m.touched = append(m.touched, id)
	return nil
}

func (m *mockConversationRepo) ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	return nil, nil
}

func (m *mockConversationRepo) CreateMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = "msg1"
	msg.CreatedAt = time.Now().UTC()
	if m.messages == nil {
		m.messages = make(map[string][]models.Message)
	}
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], *msg)
	return nil
}

func (m *mockConversationRepo) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	return m.messages[conversationID], nil
}

func (m *mockConversationRepo) MarkRead(ctx context.Context, conversationID, readerID string) error {
	m.readMarks = append(m.readMarks, conversationID+":"+readerID)
	return nil
}

func (m *mockConversationRepo) UnreadTotal(ctx context.Context, userID string) (int, error) {
	return m.unread, nil
}

func (m *mockConversationRepo) FindMessage(ctx context.Context, id string) (*models.Message, error) {
	for _, msgs := range m.messages {
		for _, msg := range msgs {
			if msg.ID == id {
				found := msg
				return &found, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockConversationRepo) DeleteMessage(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockMessagingUsers struct {
	byID map[string]*models.User
}

func (m *mockMessagingUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func newMessagingFixture() (*MessagingService, *mockConversationRepo, *mockMessagingUsers) {
	conversations := &mockConversationRepo{conversations: map[string]*models.Conversation{}}
	users := &mockMessagingUsers{byID: map[string]*models.User{
		msgStudentID: {ID: msgStudentID, Role: models.RoleStudent, Active: true},
		msgOwnerID:   {ID: msgOwnerID, Role: models.RolePropertyOwner, Active: true},
	}}
	return NewMessagingService(conversations, users, nil, zap.NewNop()), conversations, users
}

func TestSendCreatesConversationOnFirstContact(t *testing.T) {
	svc, conversations, _ := newMessagingFixture()

	msg, err := svc.Send(context.Background(), msgStudentID, models.SendMessageRequest{
		RecipientID: msgOwnerID,
		Content:     "Is the single room still available?",
	})
	require.NoError(t, err)
	assert.Equal(t, "conv1", msg.ConversationID)
	assert.Equal(t, msgStudentID, msg.SenderID)
	assert.Contains(t, conversations.touched, "conv1")

	// The canonical pair is stored in (low, high) order.
	conv := conversations.conversations["conv1"]
	assert.Equal(t, msgStudentID, conv.UserLowID)
	assert.Equal(t, msgOwnerID, conv.UserHighID)
}

func TestSendReusesExistingConversation(t *testing.T) {
	svc, conversations, _ := newMessagingFixture()
	conversations.conversations["conv9"] = &models.Conversation{
		ID: "conv9", UserLowID: msgStudentID, UserHighID: msgOwnerID,
	}

	// The owner replying lands in the same thread despite the reversed pair.
	msg, err := svc.Send(context.Background(), msgOwnerID, models.SendMessageRequest{
		RecipientID: msgStudentID,
		Content:     "Yes, drop by this weekend.",
	})
	require.NoError(t, err)
	assert.Equal(t, "conv9", msg.ConversationID)
	assert.Len(t, conversations.conversations, 1)
}

func TestSendRejectsSelfMessage(t *testing.T) {
	svc, _, _ := newMessagingFixture()

	_, err := svc.Send(context.Background(), msgStudentID, models.SendMessageRequest{
		RecipientID: msgStudentID,
		Content:     "hello me",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSendHidesInactiveRecipient(t *testing.T) {
	svc, _, users := newMessagingFixture()
	users.byID[msgOwnerID].Active = false

	_, err := svc.Send(context.Background(), msgStudentID, models.SendMessageRequest{
		RecipientID: msgOwnerID,
		Content:     "anyone there?",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestListMessagesMarksThreadRead(t *testing.T) {
	svc, conversations, _ := newMessagingFixture()
	conversations.conversations["conv1"] = &models.Conversation{
		ID: "conv1", UserLowID: msgStudentID, UserHighID: msgOwnerID,
	}
	conversations.messages = map[string][]models.Message{
		"conv1": {{ID: "m1", ConversationID: "conv1", SenderID: msgOwnerID, Content: "hi"}},
	}

	messages, err := svc.ListMessages(context.Background(), "conv1", msgStudentID)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
	assert.Contains(t, conversations.readMarks, "conv1:"+msgStudentID)
}

func TestDeleteMessageOnlyBySender(t *testing.T) {
	svc, conversations, _ := newMessagingFixture()
	conversations.messages = map[string][]models.Message{
		"conv1": {{ID: "m1", ConversationID: "conv1", SenderID: msgOwnerID, Content: "hi"}},
	}

	err := svc.DeleteMessage(context.Background(), "m1", msgStudentID)
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Empty(t, conversations.deleted)

	require.NoError(t, svc.DeleteMessage(context.Background(), "m1", msgOwnerID))
	assert.Contains(t, conversations.deleted, "m1")
}

func TestListMessagesRequiresParticipant(t *testing.T) {
	svc, conversations, _ := newMessagingFixture()
	conversations.conversations["conv1"] = &models.Conversation{
		ID: "conv1", UserLowID: msgStudentID, UserHighID: msgOwnerID,
	}

	_, err := svc.ListMessages(context.Background(), "conv1", "33333333-3333-3333-3333-333333333333")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Empty(t, conversations.readMarks)
}
