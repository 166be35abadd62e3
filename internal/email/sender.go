package email

import (
	"context"
	"errors"
	"time"
)

// Sender define la interfaz para los correos que emite el servicio.
type Sender interface {
	SendWelcome(ctx context.Context, toEmail, name string) error
	SendVerifyOTP(ctx context.Context, toEmail, code string, expiresAt time.Time) error
	SendResetOTP(ctx context.Context, toEmail, code string, expiresAt time.Time) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendWelcome(_ context.Context, _, _ string) error {
	return s.err()
}

func (s *disabledSender) SendVerifyOTP(_ context.Context, _, _ string, _ time.Time) error {
	return s.err()
}

func (s *disabledSender) SendResetOTP(_ context.Context, _, _ string, _ time.Time) error {
	return s.err()
}

func (s *disabledSender) err() error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
