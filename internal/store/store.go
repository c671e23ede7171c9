// Package store is the CRUD persistence used by the HTTP handlers.
// The realtime core never touches it.
package store

import (
	"context"
	"strings"
	"time"

	"chat-realtime-api/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// Store persists users and messages through gorm.
type Store struct {
	db    *gorm.DB
	now   func() time.Time
	newID func() string
}

// New wraps an open gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{
		db:    db,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// CreateUser inserts u, assigning an id when empty. Emails are unique.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", u.Email).Count(&count).Error; err != nil {
		return errors.Wrap(err, "count users by email")
	}
	if count > 0 {
		return errors.Wrapf(ErrConflict, "email %s", u.Email)
	}
	if u.ID == "" {
		u.ID = s.newID()
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(ErrConflict, "email %s", u.Email)
		}
		return errors.Wrap(err, "create user")
	}
	return nil
}

// UserByEmail looks a user up by (case-insensitive) email.
func (s *Store) UserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	return u, notFound(err, "user by email")
}

// UserByID looks a user up by id.
func (s *Store) UserByID(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	return u, notFound(err, "user by id")
}

// ListUsersExcept returns every user but the caller, ordered by name.
func (s *Store) ListUsersExcept(ctx context.Context, id string) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Where("id <> ?", id).Order("full_name asc").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return users, nil
}

// CreateMessage stores m with a server-assigned id and timestamp.
func (s *Store) CreateMessage(ctx context.Context, m *models.Message) error {
	m.ID = s.newID()
	m.CreatedAt = s.now().UTC()
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return errors.Wrap(err, "create message")
	}
	return nil
}

// Conversation returns the messages exchanged between a and b, oldest first.
func (s *Store) Conversation(ctx context.Context, a, b string) ([]models.Message, error) {
	msgs := make([]models.Message, 0)
	err := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("created_at asc").
		Order("id asc").
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrapf(err, "conversation %s/%s", a, b)
	}
	return msgs, nil
}

func notFound(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(ErrNotFound, what)
	}
	return errors.Wrap(err, what)
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
