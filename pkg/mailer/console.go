package mailer

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ConsoleService logs messages instead of delivering them and records them
// for inspection. Used in development and tests.
type ConsoleService struct {
	logger *zap.Logger

	mu   sync.Mutex
	sent []Message
}

// NewConsole constructs the console mailer.
func NewConsole(logger *zap.Logger) *ConsoleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleService{logger: logger}
}

// Send records the message and logs a summary.
func (s *ConsoleService) Send(_ context.Context, msg Message) (Result, error) {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	s.logger.Info("mail (console)",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject))
	return Result{}, nil
}

// Sent returns a copy of all recorded messages.
func (s *ConsoleService) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
