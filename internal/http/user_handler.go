package http

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auth-api/internal/service"
)

// UserHandler mantiene dependencias para los endpoints de usuario.
type UserHandler struct {
	logger   *zap.Logger
	authServ *service.AuthService
}

func NewUserHandler(logger *zap.Logger, authServ *service.AuthService) *UserHandler {
	return &UserHandler{
		logger:   logger,
		authServ: authServ,
	}
}

// GetUserData maneja GET /api/user/data (requiere sesión).
func (h *UserHandler) GetUserData(c *gin.Context) {
	userID, authed := GetAuthUserID(c)
	if !authed {
		fail(c, "Unauthorized")
		return
	}

	user, err := h.authServ.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			fail(c, "User not found")
			return
		}
		h.logger.Error("get user data failed", zap.Error(err))
		fail(c, "Error getting user")
		return
	}

	ok(c, gin.H{"userData": gin.H{
		"name":              user.Name,
		"isAccountVerified": user.IsVerified,
	}})
}
