package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/events"
)

// Mailer delivers lifecycle token links. Implementations own the transport;
// the auth service itself never sends anything.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, tokenValue string) error
	SendPasswordResetEmail(ctx context.Context, email, tokenValue string) error
}

// LogMailer is a development mailer that writes the outbound mail to the log
// instead of an SMTP transport.
type LogMailer struct {
	logger *zap.Logger
	cfg    config.MailerConfig
}

// NewLogMailer constructs the stub mailer.
func NewLogMailer(logger *zap.Logger, cfg config.MailerConfig) *LogMailer {
	return &LogMailer{logger: logger, cfg: cfg}
}

// SendVerificationEmail logs the verification link.
func (m *LogMailer) SendVerificationEmail(_ context.Context, email, tokenValue string) error {
	m.logger.Info("sending verification email",
		zap.String("from", m.cfg.EmailFrom),
		zap.String("to", email),
		zap.String("link", fmt.Sprintf("%s/api/auth/verify-email?token=%s", m.cfg.BaseURL, tokenValue)))
	return nil
}

// SendPasswordResetEmail logs the reset link.
func (m *LogMailer) SendPasswordResetEmail(_ context.Context, email, tokenValue string) error {
	m.logger.Info("sending password reset email",
		zap.String("from", m.cfg.EmailFrom),
		zap.String("to", email),
		zap.String("link", fmt.Sprintf("%s/reset-password?token=%s", m.cfg.BaseURL, tokenValue)))
	return nil
}

// MailerService bridges auth events to the mailer.
type MailerService struct {
	dispatcher events.Dispatcher
	mailer     Mailer
	logger     *zap.Logger
}

// NewMailerService creates the service.
func NewMailerService(dispatcher events.Dispatcher, mailer Mailer, logger *zap.Logger) *MailerService {
	return &MailerService{dispatcher: dispatcher, mailer: mailer, logger: logger}
}

// RegisterHandlers subscribes to the events that produce outbound mail.
func (s *MailerService) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Subscribe(events.EventUserRegistered, s.handleUserRegistered)
	s.dispatcher.Subscribe(events.EventPasswordResetRequested, s.handlePasswordResetRequested)
}

func (s *MailerService) handleUserRegistered(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.UserRegisteredPayload)
	if !ok {
		return nil
	}
	if err := s.mailer.SendVerificationEmail(ctx, payload.Email, payload.VerificationToken); err != nil {
		s.logger.Error("verification email failed", zap.String("subject_id", event.SubjectID), zap.Error(err))
	}
	return nil
}

func (s *MailerService) handlePasswordResetRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PasswordResetRequestedPayload)
	if !ok {
		return nil
	}
	if err := s.mailer.SendPasswordResetEmail(ctx, payload.Email, payload.ResetToken); err != nil {
		s.logger.Error("password reset email failed", zap.String("subject_id", event.SubjectID), zap.Error(err))
	}
	return nil
}
