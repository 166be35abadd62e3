package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"auth-api/internal/domain"
	"auth-api/internal/queue"
	"auth-api/internal/repository"
)

type mockUserRepo struct {
	usersByID    map[string]domain.User
	usersByEmail map[string]string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	if _, ok := m.usersByEmail[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	id, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(context.Background(), id)
}

func (m *mockUserRepo) UpdateVerifyOTP(_ context.Context, id, code string, expiresAt time.Time) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.VerifyOTP = code
	user.VerifyOTPExpiresAt = &expiresAt
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) MarkVerified(_ context.Context, id string) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.IsVerified = true
	user.VerifyOTP = ""
	user.VerifyOTPExpiresAt = nil
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) UpdateResetOTP(_ context.Context, id, code string, expiresAt time.Time) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.ResetOTP = code
	user.ResetOTPExpiresAt = &expiresAt
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	user.ResetOTP = ""
	user.ResetOTPExpiresAt = nil
	m.usersByID[id] = user
	return nil
}

// setExpiry permite a los tests mover la expiración de un par OTP.
func (m *mockUserRepo) setExpiry(id string, verify, reset *time.Time) {
	user := m.usersByID[id]
	if verify != nil {
		user.VerifyOTPExpiresAt = verify
	}
	if reset != nil {
		user.ResetOTPExpiresAt = reset
	}
	m.usersByID[id] = user
}

type mockSender struct {
	mu         sync.Mutex
	welcomeTo  string
	verifyTo   string
	verifyCode string
	resetTo    string
	resetCode  string
	err        error
}

func (m *mockSender) SendWelcome(_ context.Context, toEmail, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcomeTo = toEmail
	return m.err
}

func (m *mockSender) SendVerifyOTP(_ context.Context, toEmail, code string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyTo = toEmail
	m.verifyCode = code
	return m.err
}

func (m *mockSender) SendResetOTP(_ context.Context, toEmail, code string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTo = toEmail
	m.resetCode = code
	return m.err
}

func (m *mockSender) lastVerifyCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifyCode
}

func (m *mockSender) lastResetCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetCode
}

type mockPublisher struct {
	events []queue.WelcomeEmailEvent
	err    error
}

func (m *mockPublisher) PublishWelcome(_ context.Context, evt queue.WelcomeEmailEvent) error {
	m.events = append(m.events, evt)
	return m.err
}

type mockLimiter struct {
	allow bool
}

func (m *mockLimiter) Allow(_ string) bool {
	return m.allow
}

func newTestService(repo *mockUserRepo, sender *mockSender, pub WelcomePublisher) *AuthService {
	return NewAuthService(zap.NewNop(), repo, sender, pub, &mockLimiter{allow: true})
}

func TestRegisterThenAuthenticate(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockSender{}
	pub := &mockPublisher{}
	svc := newTestService(repo, sender, pub)

	user, err := svc.Register(context.Background(), "Ann", " Ann@X.com ", "secret1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "ann@x.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.IsVerified {
		t.Fatalf("new user must start unverified")
	}
	if user.PasswordHash == "" || user.PasswordHash == "secret1" {
		t.Fatalf("password must be stored hashed")
	}
	if len(pub.events) != 1 || pub.events[0].Email != "ann@x.com" {
		t.Fatalf("expected welcome event, got %+v", pub.events)
	}

	got, err := svc.Authenticate(context.Background(), "ann@x.com", "secret1")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected same user id")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestService(repo, &mockSender{}, &mockPublisher{})

	if _, err := svc.Register(context.Background(), "Ann", "ann@x.com", "secret1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := svc.Register(context.Background(), "Other", "ANN@x.com", "different")
	if !errors.Is(err, repository.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestRegisterMissingFields(t *testing.T) {
	svc := newTestService(newMockUserRepo(), &mockSender{}, &mockPublisher{})

	cases := [][3]string{
		{"", "ann@x.com", "secret1"},
		{"Ann", "", "secret1"},
		{"Ann", "ann@x.com", ""},
	}
	for _, tc := range cases {
		if _, err := svc.Register(context.Background(), tc[0], tc[1], tc[2]); !errors.Is(err, ErrMissingField) {
			t.Fatalf("expected ErrMissingField for %v, got %v", tc, err)
		}
	}
}

func TestRegisterSucceedsWhenWelcomePublishFails(t *testing.T) {
	repo := newMockUserRepo()
	pub := &mockPublisher{err: errors.New("broker down")}
	svc := newTestService(repo, &mockSender{}, pub)

	if _, err := svc.Register(context.Background(), "Ann", "ann@x.com", "secret1"); err != nil {
		t.Fatalf("register must not fail on welcome delivery, got %v", err)
	}
}

func TestAuthenticateEnumerationResistance(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestService(repo, &mockSender{}, &mockPublisher{})

	if _, err := svc.Register(context.Background(), "Ann", "ann@x.com", "secret1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, errWrongPass := svc.Authenticate(context.Background(), "ann@x.com", "wrong")
	_, errNoUser := svc.Authenticate(context.Background(), "nobody@x.com", "secret1")
	if !errors.Is(errWrongPass, ErrInvalidCredentials) || !errors.Is(errNoUser, ErrInvalidCredentials) {
		t.Fatalf("expected identical ErrInvalidCredentials, got %v / %v", errWrongPass, errNoUser)
	}
}

func TestSendVerifyOTPStoresAndSends(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockSender{}
	svc := newTestService(repo, sender, &mockPublisher{})

	user, _ := svc.Register(context.Background(), "Ann", "ann@x.com", "secret1")
	if err := svc.SendVerifyOTP(context.Background(), user.ID); err != nil {
		t.Fatalf("send verify otp: %v", err)
	}

	stored := repo.usersByID[user.ID]
	if !isValidOTPCode(stored.VerifyOTP) {
		t.Fatalf("expected stored 6-digit code, got %q", stored.VerifyOTP)
	}
	if stored.VerifyOTPExpiresAt == nil {
		t.Fatalf("expected expiry to be set alongside the code")
	}
	ttl := time.Until(*stored.VerifyOTPExpiresAt)
	if ttl < verifyOTPTTL-time.Minute || ttl > verifyOTPTTL+time.Minute {
		t.Fatalf("expected ~2h expiry, got %v", ttl)
	}
	if sender.lastVerifyCode() != stored.VerifyOTP {
		t.Fatalf("sent code must match stored code")
	}
}

func TestSendVerifyOTPAlreadyVerified(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockSender{}
	svc := newTestService(repo, sender, &mockPublisher{})

	user, _ := svc.Register(context.Background(), "Ann", "ann@x.com", "secret1")
	svc.SendVerifyOTP(context.Background(), user.ID)
	if _, err := svc.VerifyEmail(context.Background(), user.ID, sender.lastVerifyCode()); err != nil {
		t.Fatalf("verify email: %v", err)
	}

	if err := svc.SendVerifyOTP(context.Background(), user.ID); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
}

func TestSendVerifyOTPRateLimited(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(zap.NewNop(), repo, &mockSender{}, &mockPublisher{}, &mockLimiter{allow: false})

	user, _ := svc.Register(context.Background(), "Ann", "ann@x.com", "secret1")
	if err := svc.SendVerifyOTP(context.Background(), user.ID); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestVerifyEmailConsumesCode(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockSender{}
	svc := newTestService(repo, sender, &mockPublisher{})

	user, _ := svc.Register(context.Background(), "Ann", "ann@x.com", "secret1")
	svc.SendVerifyOTP(context.Background(), user.ID)
	code := sender.lastVerifyCode()

	verified, err := svc.VerifyEmail(context.Background(), user.ID, code)
	if err != nil {
		t.Fatalf("verify email: %v", err)
	}
	if !verified.IsVerified {
		t.Fatalf("expected user to be verified")
	}
	stored := repo.usersByID[user.ID]
	if stored.VerifyOTP != "" || stored.VerifyOTPExpiresAt != nil {
		t.Fatalf("expected OTP pair to be cleared, got %+v", stored)
	}

	if _, err := svc.VerifyEmail(context.Background(), user.ID, code); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected second use to fail with ErrOTPInvalid, got %v", err)
	}
}

func TestVerifyEmailNewCodeInvalidatesOld(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockSender{}
	svc := newTestService(repo, sender, &mockPublisher{})

	user, _ := svc.Register(context.Background(), "Ann", "ann@x.com", "secret1")
	svc.SendVerifyOTP(context.Background(), user.ID)
	oldCode := sender.lastVerifyCode()
	svc.SendVerifyOTP(context.Background(), user.ID)
	newCode := sender.lastVerifyCode()

	if oldCode == newCode {
		t.Skip("collision between generated codes")
	}
	if _, err := svc.VerifyEmail(context.Background(), user.ID, oldCode); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected overwritten code to be rejected, got %v", err)
	}
	if _, err := svc.VerifyEmail(context.Background(), user.ID, newCode); err != nil {
		t.Fatalf("expected latest code to verify, got %v", err)
	}
}

func TestVerifyEmailDoesNotCheckExpiry(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockSender{}
	svc := newTestService(repo, sender, &mockPublisher{})

	user, _ := svc.Register(context.Background(), "Ann", "ann@x.com", "secret1")
	svc.SendVerifyOTP(context.Background(), user.ID)
	past := time.Now().UTC().Add(-time.Hour)
	repo.setExpiry(user.ID, &past, nil)

	if _, err := svc.VerifyEmail(context.Background(), user.ID, sender.lastVerifyCode()); err != nil {
		t.Fatalf("verify-email path accepts codes past their expiry, got %v", err)
	}
}

func TestVerifyEmailRejectsMalformedCode(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestService(repo, &mockSender{}, &mockPublisher{})
	user, _ := svc.Register(context.Background(), "Ann", "ann@x.com", "secret1")

	if _, err := svc.VerifyEmail(context.Background(), user.ID, ""); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField for empty code, got %v", err)
	}
	if _, err := svc.VerifyEmail(context.Background(), user.ID, "12ab56"); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid for non-numeric code, got %v", err)
	}
}

func TestSendPasswordResetOTPUnknownUser(t *testing.T) {
	svc := newTestService(newMockUserRepo(), &mockSender{}, &mockPublisher{})
	if err := svc.SendPasswordResetOTP(context.Background(), "nobody@x.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockSender{}
	svc := newTestService(repo, sender, &mockPublisher{})

	user, _ := svc.Register(context.Background(), "Ann", "ann@x.com", "secret1")
	if err := svc.SendPasswordResetOTP(context.Background(), "ann@x.com"); err != nil {
		t.Fatalf("send reset otp: %v", err)
	}
	code := sender.lastResetCode()

	if err := svc.VerifyPasswordResetOTP(context.Background(), "ann@x.com", code); err != nil {
		t.Fatalf("verify reset otp: %v", err)
	}
	if repo.usersByID[user.ID].ResetOTP == "" {
		t.Fatalf("verify must not consume the reset code")
	}

	oldHash := repo.usersByID[user.ID].PasswordHash
	if err := svc.ResetPassword(context.Background(), "ann@x.com", code, "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if repo.usersByID[user.ID].PasswordHash != oldHash {
		t.Fatalf("failed reset must leave the stored hash unchanged")
	}

	if err := svc.ResetPassword(context.Background(), "ann@x.com", code, "newsecret"); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	stored := repo.usersByID[user.ID]
	if stored.ResetOTP != "" || stored.ResetOTPExpiresAt != nil {
		t.Fatalf("expected reset OTP pair to be cleared")
	}
	if _, err := svc.Authenticate(context.Background(), "ann@x.com", "newsecret"); err != nil {
		t.Fatalf("authenticate with new password: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "ann@x.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must be rejected, got %v", err)
	}
}

func TestResetPasswordExpiredOTP(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockSender{}
	svc := newTestService(repo, sender, &mockPublisher{})

	user, _ := svc.Register(context.Background(), "Ann", "ann@x.com", "secret1")
	svc.SendPasswordResetOTP(context.Background(), "ann@x.com")
	code := sender.lastResetCode()

	if err := svc.VerifyPasswordResetOTP(context.Background(), "ann@x.com", code); err != nil {
		t.Fatalf("verify reset otp before expiry: %v", err)
	}

	past := time.Now().UTC().Add(-time.Minute)
	repo.setExpiry(user.ID, nil, &past)

	if err := svc.ResetPassword(context.Background(), "ann@x.com", code, "newsecret"); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired after expiry, got %v", err)
	}
}

func TestResetOTPOverwriteInvalidatesOld(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockSender{}
	svc := newTestService(repo, sender, &mockPublisher{})

	svc.Register(context.Background(), "Ann", "ann@x.com", "secret1")
	svc.SendPasswordResetOTP(context.Background(), "ann@x.com")
	firstCode := sender.lastResetCode()
	svc.SendPasswordResetOTP(context.Background(), "ann@x.com")
	secondCode := sender.lastResetCode()

	if firstCode == secondCode {
		t.Skip("collision between generated codes")
	}
	if err := svc.VerifyPasswordResetOTP(context.Background(), "ann@x.com", firstCode); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected first code to be rejected after overwrite, got %v", err)
	}
	if err := svc.VerifyPasswordResetOTP(context.Background(), "ann@x.com", secondCode); err != nil {
		t.Fatalf("expected second code to be valid, got %v", err)
	}
}

func TestVerifyPasswordResetOTPWrongCode(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockSender{}
	svc := newTestService(repo, sender, &mockPublisher{})

	svc.Register(context.Background(), "Ann", "ann@x.com", "secret1")
	svc.SendPasswordResetOTP(context.Background(), "ann@x.com")

	wrong := "000000"
	if wrong == sender.lastResetCode() {
		wrong = "000001"
	}
	if err := svc.VerifyPasswordResetOTP(context.Background(), "ann@x.com", wrong); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid, got %v", err)
	}
}
