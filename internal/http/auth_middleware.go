package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"auth-api/internal/service"
)

const (
	sessionCookieName = "token"
	authUserIDKey     = "auth_user_id"
)

// SessionAuthMiddleware valida la cookie de sesión y deja el id de usuario en el
// contexto. El rechazo es una respuesta de negocio, nunca un error de transporte.
func SessionAuthMiddleware(jwtSvc *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSvc == nil {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "Not authorized, login again"})
			c.Abort()
			return
		}

		token, err := c.Cookie(sessionCookieName)
		if err != nil || token == "" {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "Unauthorized"})
			c.Abort()
			return
		}

		claims, err := jwtSvc.Parse(token)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "Not authorized, login again"})
			c.Abort()
			return
		}

		c.Set(authUserIDKey, claims.UserID)
		c.Next()
	}
}

// GetAuthUserID obtiene el id de usuario que dejó el middleware de sesión.
func GetAuthUserID(c *gin.Context) (string, bool) {
	val, ok := c.Get(authUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := val.(string)
	return id, ok && id != ""
}
