package domain

import "time"

// User representa una cuenta con su estado de verificación y de reset.
// Los pares OTP (código + expiración) se setean y se limpian juntos.
type User struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	IsVerified         bool       `json:"is_verified"`
	VerifyOTP          string     `json:"-"`
	VerifyOTPExpiresAt *time.Time `json:"-"`
	ResetOTP           string     `json:"-"`
	ResetOTPExpiresAt  *time.Time `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
}
