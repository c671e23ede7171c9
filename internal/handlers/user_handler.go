package handlers

import (
	"net/http"

	"chat-realtime-api/internal/middleware"
	"chat-realtime-api/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	users UserStore
	log   *zap.Logger
}

func NewUserHandler(users UserStore, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

// GetUsers returns every other user's public profile (protected)
// GET /api/users
func (h *UserHandler) GetUsers(c *gin.Context) {
	users, err := h.users.ListUsersExcept(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		h.log.Error("list users failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	resp := make([]models.Profile, 0, len(users))
	for _, u := range users {
		resp = append(resp, u.Profile())
	}
	c.JSON(http.StatusOK, resp)
}
