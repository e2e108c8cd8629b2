package mailer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardinghub/boardinghub-api/pkg/config"
)

func TestSendFallsBackToFileWhenHostUnset(t *testing.T) {
	dir := t.TempDir()
	svc := NewSMTP(config.MailConfig{
		FromName:    "Boarding Hub",
		FromAddress: "no-reply@boardinghub.local",
		FallbackDir: dir,
	}, nil)

	result, err := svc.Send(context.Background(), Message{
		To:      []string{"student@example.com"},
		Subject: "Welcome to Boarding Hub",
		Body:    "Your account is ready.",
	})
	require.NoError(t, err)
	assert.True(t, result.UsedFallback)
	require.NotEmpty(t, result.SavedFile)

	raw, err := os.ReadFile(result.SavedFile)
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "To: student@example.com")
	assert.Contains(t, content, "Subject: Welcome to Boarding Hub")
	assert.Contains(t, content, "Your account is ready.")
	assert.Equal(t, dir, filepath.Dir(result.SavedFile))
	assert.True(t, strings.HasSuffix(result.SavedFile, ".eml"))
}

func TestSendRequiresRecipients(t *testing.T) {
	svc := NewSMTP(config.MailConfig{FallbackDir: t.TempDir()}, nil)
	_, err := svc.Send(context.Background(), Message{Subject: "no recipients"})
	require.Error(t, err)
}

func TestConsoleServiceRecordsMessages(t *testing.T) {
	svc := NewConsole(nil)
	_, err := svc.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "hi"})
	require.NoError(t, err)
	sent := svc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "hi", sent[0].Subject)
}
