package handlers

import (
	"context"

	"chat-realtime-api/internal/models"
)

// UserStore is the user persistence the handlers need.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id string) (models.User, error)
	ListUsersExcept(ctx context.Context, id string) ([]models.User, error)
}

// MessageStore is the message persistence the handlers need.
type MessageStore interface {
	CreateMessage(ctx context.Context, m *models.Message) error
	Conversation(ctx context.Context, a, b string) ([]models.Message, error)
}
