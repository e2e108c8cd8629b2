package mailer

import (
	"context"
	"fmt"
	"net/mail"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/boardinghub/boardinghub-api/pkg/config"
)

// Message is a plain-text outbound email.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Result reports how a message was delivered. UsedFallback is true when SMTP
// was skipped or failed and the message was written to disk instead.
type Result struct {
	UsedFallback bool
	SavedFile    string
}

// Service is any backend that can deliver messages.
type Service interface {
	Send(ctx context.Context, msg Message) (Result, error)
}

// SMTPService sends via SMTP and falls back to local .eml files. Delivery is
// best-effort: a fallback write is reported as success with UsedFallback set,
// so callers never abort their enclosing flow on mail trouble.
type SMTPService struct {
	cfg    config.MailConfig
	logger *zap.Logger
}

// NewSMTP constructs the SMTP-with-fallback mailer.
func NewSMTP(cfg config.MailConfig, logger *zap.Logger) *SMTPService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPService{cfg: cfg, logger: logger}
}

// Send attempts SMTP delivery, writing the rendered message to the fallback
// directory when the host is unconfigured or the dial/send fails.
func (s *SMTPService) Send(ctx context.Context, msg Message) (Result, error) {
	if len(msg.To) == 0 {
		return Result{}, fmt.Errorf("message has no recipients")
	}

	raw := s.render(msg)

	if s.cfg.Host == "" {
		return s.saveFallback(msg, raw)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.FromAddress, msg.To, []byte(raw)); err != nil {
		s.logger.Warn("smtp delivery failed, using file fallback",
			zap.String("subject", msg.Subject), zap.Error(err))
		return s.saveFallback(msg, raw)
	}

	return Result{}, nil
}

func (s *SMTPService) render(msg Message) string {
	from := mail.Address{Name: s.cfg.FromName, Address: s.cfg.FromAddress}

	b := &strings.Builder{}
	fmt.Fprintf(b, "From: %s\r\n", from.String())
	fmt.Fprintf(b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprint(b, "MIME-Version: 1.0\r\n")
	fmt.Fprint(b, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprint(b, "\r\n")
	b.WriteString(msg.Body)
	return b.String()
}

func (s *SMTPService) saveFallback(msg Message, raw string) (Result, error) {
	dir := s.cfg.FallbackDir
	if dir == "" {
		dir = "./sent_emails"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{UsedFallback: true}, fmt.Errorf("create mail fallback dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.eml", time.Now().UTC().Format("20060102T150405"), sanitize(msg.Subject))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		return Result{UsedFallback: true}, fmt.Errorf("write mail fallback file: %w", err)
	}

	s.logger.Info("mail saved to fallback file", zap.String("file", path))
	return Result{UsedFallback: true, SavedFile: path}, nil
}

func sanitize(subject string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '_'
		default:
			return -1
		}
	}, subject)
	if len(cleaned) > 40 {
		cleaned = cleaned[:40]
	}
	if cleaned == "" {
		cleaned = "message"
	}
	return cleaned
}
