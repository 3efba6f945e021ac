package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/trilliondigital/Dirt-v1.0-sub007/models"
)

const maxHandleLength = 32

func validHandle(handle string) bool {
	if handle == "" || len(handle) > maxHandleLength {
		return false
	}
	for _, c := range handle {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return false
		}
	}
	return true
}

func (s *Store) CreateUser(ctx context.Context, handle, email string) (*models.User, error) {
	handle = strings.TrimSpace(handle)
	if !validHandle(handle) {
		return nil, fmt.Errorf("%w: handle must be 1-%d alphanumeric/underscore characters", models.ErrValidation, maxHandleLength)
	}

	u := models.User{
		Handle:       handle,
		Email:        email,
		Tier:         "newcomer",
		LastActiveAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: handle %q already taken", models.ErrConflict, handle)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", models.ErrNotFound, id)
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByHandle(ctx context.Context, handle string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "handle = ?", handle).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: handle %q", models.ErrNotFound, handle)
		}
		return nil, err
	}
	return &u, nil
}

// SetVerified flips the verification flag. The caller is responsible for
// scheduling a reputation recompute afterwards; verification carries a
// fixed score bonus.
func (s *Store) SetVerified(ctx context.Context, userID uint, verified bool) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("is_verified", verified)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %d", models.ErrNotFound, userID)
	}
	return nil
}

func (s *Store) BanUser(ctx context.Context, userID uint, reason string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
		"is_banned":  true,
		"ban_reason": reason,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %d", models.ErrNotFound, userID)
	}
	return nil
}

func (s *Store) TouchLastActive(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("last_active_at", time.Now()).Error
}
