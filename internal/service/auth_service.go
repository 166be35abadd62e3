package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"auth-api/internal/domain"
	"auth-api/internal/email"
	"auth-api/internal/queue"
	"auth-api/internal/repository"
)

// AuthService coordina registro, login, verificación por OTP y reset de contraseña.
// Cada operación trabaja sobre un solo registro de usuario; no hay estado
// compartido entre requests más allá del repositorio.
type AuthService struct {
	logger     *zap.Logger
	users      repository.UserRepository
	sender     email.Sender
	welcome    WelcomePublisher
	otpLimiter OTPRateLimiter
}

// WelcomePublisher encola el correo de bienvenida para entrega asíncrona.
type WelcomePublisher interface {
	PublishWelcome(ctx context.Context, evt queue.WelcomeEmailEvent) error
}

func NewAuthService(logger *zap.Logger, users repository.UserRepository, sender email.Sender, welcome WelcomePublisher, otpLimiter OTPRateLimiter) *AuthService {
	if otpLimiter == nil {
		otpLimiter = NewOTPRateLimiter(10*time.Minute, 3)
	}
	return &AuthService{
		logger:     logger,
		users:      users,
		sender:     sender,
		welcome:    welcome,
		otpLimiter: otpLimiter,
	}
}

var (
	ErrMissingField       = errors.New("missing details")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrAlreadyVerified    = errors.New("account already verified")
	ErrOTPInvalid         = errors.New("otp invalid")
	ErrOTPExpired         = errors.New("otp expired")
	ErrWeakPassword       = errors.New("password too short")
	ErrRateLimited        = errors.New("rate limited")
	ErrEmailSendFailure   = errors.New("email send failed")
)

const (
	verifyOTPTTL   = 2 * time.Hour
	resetOTPTTL    = 15 * time.Minute
	minPasswordLen = 6
)

// Register crea la cuenta, hashea la contraseña y despacha el correo de
// bienvenida sin bloquear ni fallar el alta.
func (s *AuthService) Register(ctx context.Context, name, emailAddr, password string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("auth service not configured")
	}

	name = strings.TrimSpace(name)
	emailAddr = normalizeEmail(emailAddr)
	if name == "" || emailAddr == "" || password == "" {
		return domain.User{}, ErrMissingField
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        emailAddr,
		PasswordHash: string(hashBytes),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return domain.User{}, err
	}

	s.dispatchWelcome(user)
	return user, nil
}

// Authenticate valida las credenciales. Usuario inexistente y contraseña
// incorrecta devuelven el mismo error para no permitir enumerar cuentas.
func (s *AuthService) Authenticate(ctx context.Context, emailAddr, password string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("auth service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if user.PasswordHash == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) GetUser(ctx context.Context, id string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// SendVerifyOTP genera y envía un código de verificación con vigencia de dos
// horas. Pisa cualquier código anterior pendiente.
func (s *AuthService) SendVerifyOTP(ctx context.Context, userID string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}
	if s.otpLimiter != nil && !s.otpLimiter.Allow(user.Email) {
		return ErrRateLimited
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}
	expiresAt := time.Now().UTC().Add(verifyOTPTTL)

	if err := s.users.UpdateVerifyOTP(ctx, user.ID, code, expiresAt); err != nil {
		return err
	}

	if s.sender == nil {
		return ErrEmailSendFailure
	}
	if err := s.sender.SendVerifyOTP(ctx, user.Email, code, expiresAt); err != nil {
		if s.logger != nil {
			s.logger.Warn("send verify otp failed", zap.Error(err), zap.String("email", user.Email))
		}
		return ErrEmailSendFailure
	}
	return nil
}

// VerifyEmail marca la cuenta como verificada si el código coincide y limpia el
// par OTP. La expiración no se consulta en este flujo; solo el de reset la aplica.
func (s *AuthService) VerifyEmail(ctx context.Context, userID, code string) (domain.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.User{}, ErrMissingField
	}
	if !isValidOTPCode(code) {
		return domain.User{}, ErrOTPInvalid
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if !matchOTP(code, user.VerifyOTP) {
		return domain.User{}, ErrOTPInvalid
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return domain.User{}, err
	}

	user.IsVerified = true
	user.VerifyOTP = ""
	user.VerifyOTPExpiresAt = nil
	return user, nil
}

// SendPasswordResetOTP genera y envía un código de reset con vigencia de quince
// minutos. El flujo es deliberadamente no autenticado.
func (s *AuthService) SendPasswordResetOTP(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrMissingField
	}
	if s.otpLimiter != nil && !s.otpLimiter.Allow(emailAddr) {
		return ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}
	expiresAt := time.Now().UTC().Add(resetOTPTTL)

	if err := s.users.UpdateResetOTP(ctx, user.ID, code, expiresAt); err != nil {
		return err
	}

	if s.sender == nil {
		return ErrEmailSendFailure
	}
	if err := s.sender.SendResetOTP(ctx, user.Email, code, expiresAt); err != nil {
		if s.logger != nil {
			s.logger.Warn("send reset otp failed", zap.Error(err), zap.String("email", user.Email))
		}
		return ErrEmailSendFailure
	}
	return nil
}

// VerifyPasswordResetOTP chequea código y expiración sin consumir el código;
// lo consume el ResetPassword posterior.
func (s *AuthService) VerifyPasswordResetOTP(ctx context.Context, emailAddr, code string) error {
	emailAddr = normalizeEmail(emailAddr)
	code = strings.TrimSpace(code)
	if emailAddr == "" || code == "" {
		return ErrMissingField
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	return checkResetOTP(user, code)
}

// ResetPassword revalida el OTP de reset, aplica la política de longitud mínima
// y reemplaza el hash. El update consume el par OTP.
func (s *AuthService) ResetPassword(ctx context.Context, emailAddr, code, newPassword string) error {
	emailAddr = normalizeEmail(emailAddr)
	code = strings.TrimSpace(code)
	if emailAddr == "" || code == "" || newPassword == "" {
		return ErrMissingField
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if err := checkResetOTP(user, code); err != nil {
		return err
	}
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, user.ID, string(hashBytes))
}

func checkResetOTP(user domain.User, code string) error {
	if !matchOTP(code, user.ResetOTP) {
		return ErrOTPInvalid
	}
	if user.ResetOTPExpiresAt == nil || time.Now().UTC().After(*user.ResetOTPExpiresAt) {
		return ErrOTPExpired
	}
	return nil
}

// dispatchWelcome publica el evento en la cola si hay broker; si no, envía el
// correo en una goroutine. En ningún caso el registro falla por el correo.
func (s *AuthService) dispatchWelcome(user domain.User) {
	evt := queue.WelcomeEmailEvent{UserID: user.ID, Email: user.Email, Name: user.Name}

	if s.welcome != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.welcome.PublishWelcome(ctx, evt); err != nil && s.logger != nil {
			s.logger.Warn("publish welcome event failed", zap.Error(err), zap.String("email", evt.Email))
		}
		return
	}

	if s.sender == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.sender.SendWelcome(ctx, evt.Email, evt.Name); err != nil && s.logger != nil {
			s.logger.Warn("send welcome email failed", zap.Error(err), zap.String("email", evt.Email))
		}
	}()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
