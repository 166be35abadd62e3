package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auth-api/internal/repository"
	"auth-api/internal/service"
)

// AuthHandler mantiene dependencias para los endpoints de autenticación.
//
// Todas las fallas de negocio responden HTTP 200 con {success:false, message};
// los mensajes son fijos y el error real solo va al log.
type AuthHandler struct {
	logger       *zap.Logger
	authServ     *service.AuthService
	jwtServ      *service.JWTService
	secureCookie bool
}

func NewAuthHandler(logger *zap.Logger, authServ *service.AuthService, jwtServ *service.JWTService, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		logger:       logger,
		authServ:     authServ,
		jwtServ:      jwtServ,
		secureCookie: secureCookie,
	}
}

func fail(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "message": message})
}

func ok(c *gin.Context, payload gin.H) {
	payload["success"] = true
	c.JSON(http.StatusOK, payload)
}

// Register maneja POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "Missing details")
		return
	}

	user, err := h.authServ.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingField):
			fail(c, "Missing details")
		case errors.Is(err, repository.ErrDuplicateEmail):
			fail(c, "User already exists")
		default:
			h.logger.Error("register failed", zap.Error(err))
			fail(c, "Error creating user")
		}
		return
	}

	token, err := h.jwtServ.Issue(user.ID)
	if err != nil {
		h.logger.Error("issue session token failed", zap.Error(err))
		fail(c, "Error creating user")
		return
	}
	h.setSessionCookie(c, token)
	ok(c, gin.H{"user": user, "token": token})
}

// Login maneja POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "Email and password are required")
		return
	}

	user, err := h.authServ.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			fail(c, "Invalid email or password")
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		fail(c, "Error logging in")
		return
	}

	token, err := h.jwtServ.Issue(user.ID)
	if err != nil {
		h.logger.Error("issue session token failed", zap.Error(err))
		fail(c, "Error logging in")
		return
	}
	h.setSessionCookie(c, token)
	ok(c, gin.H{"user": user, "token": token})
}

// Logout maneja POST /api/auth/logout. Siempre limpia la cookie y responde éxito.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.clearSessionCookie(c)
	ok(c, gin.H{"message": "Logged out successfully"})
}

// SendVerifyOTP maneja POST /api/auth/send-verify-otp (requiere sesión).
func (h *AuthHandler) SendVerifyOTP(c *gin.Context) {
	userID, authed := GetAuthUserID(c)
	if !authed {
		fail(c, "Unauthorized")
		return
	}

	if err := h.authServ.SendVerifyOTP(c.Request.Context(), userID); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			fail(c, "User not found")
		case errors.Is(err, service.ErrAlreadyVerified):
			fail(c, "Account already verified")
		case errors.Is(err, service.ErrRateLimited):
			fail(c, "Too many requests, try again later")
		default:
			h.logger.Error("send verify otp failed", zap.Error(err))
			fail(c, "Error sending OTP")
		}
		return
	}
	ok(c, gin.H{"message": "OTP sent to email"})
}

// VerifyAccount maneja POST /api/auth/verify-account (requiere sesión).
func (h *AuthHandler) VerifyAccount(c *gin.Context) {
	userID, authed := GetAuthUserID(c)
	if !authed {
		fail(c, "Unauthorized")
		return
	}

	var req struct {
		OTP string `json:"otp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "Missing details")
		return
	}

	if _, err := h.authServ.VerifyEmail(c.Request.Context(), userID, req.OTP); err != nil {
		switch {
		case errors.Is(err, service.ErrMissingField):
			fail(c, "Missing details")
		case errors.Is(err, service.ErrUserNotFound):
			fail(c, "User not found")
		case errors.Is(err, service.ErrOTPInvalid):
			fail(c, "Invalid OTP")
		default:
			h.logger.Error("verify account failed", zap.Error(err))
			fail(c, "Error verifying email")
		}
		return
	}
	ok(c, gin.H{"message": "Email verified successfully"})
}

// IsAuthenticated maneja POST /api/auth/is-authenticated (requiere sesión).
func (h *AuthHandler) IsAuthenticated(c *gin.Context) {
	if _, authed := GetAuthUserID(c); !authed {
		fail(c, "User is not authenticated")
		return
	}
	ok(c, gin.H{"message": "User is authenticated"})
}

// SendPasswordResetOTP maneja POST /api/auth/send-password-reset-otp.
func (h *AuthHandler) SendPasswordResetOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "Email is required")
		return
	}

	if err := h.authServ.SendPasswordResetOTP(c.Request.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, service.ErrMissingField):
			fail(c, "Email is required")
		case errors.Is(err, service.ErrUserNotFound):
			fail(c, "User not found")
		case errors.Is(err, service.ErrRateLimited):
			fail(c, "Too many requests, try again later")
		default:
			h.logger.Error("send password reset otp failed", zap.Error(err))
			fail(c, "Error generating password reset OTP")
		}
		return
	}
	ok(c, gin.H{"message": "Password reset OTP sent to email"})
}

// VerifyPasswordResetOTP maneja POST /api/auth/verify-password-reset-otp.
func (h *AuthHandler) VerifyPasswordResetOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		OTP   string `json:"otp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "Email and OTP are required")
		return
	}

	if err := h.authServ.VerifyPasswordResetOTP(c.Request.Context(), req.Email, req.OTP); err != nil {
		h.failResetFlow(c, err, "Error verifying OTP")
		return
	}
	ok(c, gin.H{"message": "OTP verified successfully"})
}

// ResetPassword maneja POST /api/auth/reset-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required"`
		OTP         string `json:"otp" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "Email, OTP, and new password are required")
		return
	}

	if err := h.authServ.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrWeakPassword) {
			fail(c, "Password must be at least 6 characters")
			return
		}
		h.failResetFlow(c, err, "Error resetting password")
		return
	}
	ok(c, gin.H{"message": "Password reset successfully"})
}

func (h *AuthHandler) failResetFlow(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrMissingField):
		fail(c, "Missing details")
	case errors.Is(err, service.ErrUserNotFound):
		fail(c, "User not found")
	case errors.Is(err, service.ErrOTPInvalid):
		fail(c, "Invalid OTP")
	case errors.Is(err, service.ErrOTPExpired):
		fail(c, "OTP has expired")
	default:
		h.logger.Error("password reset flow failed", zap.Error(err))
		fail(c, fallback)
	}
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(sessionCookieName, token, int(h.jwtServ.TTL().Seconds()), "/", "", h.secureCookie, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(sessionCookieName, "", -1, "/", "", h.secureCookie, true)
}
