package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

// GomailSender envia correos via SMTP usando gomail.
type GomailSender struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func NewGomailSender(host string, port int, username, password, from, fromName string) (*GomailSender, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("smtp from is required")
	}
	if port == 0 {
		port = 587
	}
	return &GomailSender{
		dialer:   gomail.NewDialer(host, port, username, password),
		from:     from,
		fromName: fromName,
	}, nil
}

func (s *GomailSender) SendWelcome(_ context.Context, toEmail, name string) error {
	greeting := "Welcome to our app!"
	if strings.TrimSpace(name) != "" {
		greeting = fmt.Sprintf("Welcome to our app, %s!", name)
	}
	body := fmt.Sprintf("%s We're glad to have you on board with %s.\n", greeting, toEmail)
	return s.send(toEmail, "Welcome to Our App!", body)
}

func (s *GomailSender) SendVerifyOTP(_ context.Context, toEmail, code string, expiresAt time.Time) error {
	body := fmt.Sprintf(
		"Your verification OTP is %s.\nIt expires at %s UTC.\n",
		code,
		expiresAt.UTC().Format(time.RFC3339),
	)
	return s.send(toEmail, "Verify your email", body)
}

func (s *GomailSender) SendResetOTP(_ context.Context, toEmail, code string, expiresAt time.Time) error {
	body := fmt.Sprintf(
		"Your OTP for resetting your password is %s.\nIt expires at %s UTC.\nIf you didn't request this password reset, please ignore this email.\n",
		code,
		expiresAt.UTC().Format(time.RFC3339),
	)
	return s.send(toEmail, "Password Reset OTP", body)
}

func (s *GomailSender) send(toEmail, subject, body string) error {
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("to email is required")
	}

	msg := gomail.NewMessage()
	if strings.TrimSpace(s.fromName) != "" {
		msg.SetAddressHeader("From", s.from, s.fromName)
	} else {
		msg.SetHeader("From", s.from)
	}
	msg.SetHeader("To", toEmail)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	return s.dialer.DialAndSend(msg)
}
