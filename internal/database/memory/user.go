package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sipstreak/internal/friends"
	"github.com/jason-s-yu/sipstreak/internal/models"
)

// ResolveEmail matches email case-insensitively against stored accounts.
func (s *Store) ResolveEmail(ctx context.Context, email string) (uuid.UUID, bool, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[models.NormalizeEmail(email)]
	return id, ok, nil
}

// CreateUser stores u, assigning an id when it has none. The password must
// already be hashed.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	email := models.NormalizeEmail(u.Email)
	if _, taken := s.emails[email]; taken {
		return fmt.Errorf("create user %q: %w", email, friends.ErrDuplicate)
	}
	u.Email = email
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = *u
	s.emails[email] = u.ID
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[models.NormalizeEmail(email)]
	if !ok {
		return nil, friends.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, friends.ErrNotFound
	}
	return &u, nil
}
