package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asjjun/naejango/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserStore struct {
	db *gorm.DB
}

func (s *UserStore) Create(ctx context.Context, email, displayName, passwordHash string) (*models.User, error) {
	row := userRow{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  displayName,
		Role:         string(models.RoleUser),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, insertError("insert user", err)
	}
	return row.model(), nil
}

func (s *UserStore) get(ctx context.Context, op, where string, arg any) (*models.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where(where, arg).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return row.model(), nil
}

func (s *UserStore) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.get(ctx, "get user", "id = ?", userID)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.get(ctx, "get user by email", "email = ?", email)
}
