package queue

// WelcomeEmailEvent viaja por el topic de bienvenida hacia el mailworker.
type WelcomeEmailEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}
