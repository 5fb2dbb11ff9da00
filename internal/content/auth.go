package content

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// =============================================================================
// 🔐 管理员凭据
// =============================================================================

const (
	minPasswordLength = 6
	minUsernameLength = 3
)

// HashPassword 生成 bcrypt 哈希
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Authenticate 校验用户名与密码，失败统一返回 ErrInvalidCredentials
func (s *Store) Authenticate(ctx context.Context, username, password string) (*AdminCredential, error) {
	var admin AdminCredential
	err := s.run(ctx, func(db *gorm.DB) error {
		return db.Where("username = ?", username).First(&admin).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &admin, nil
}

// ChangePassword 校验当前密码后设置新密码
func (s *Store) ChangePassword(ctx context.Context, username, current, next string) error {
	if utf8.RuneCountInString(next) < minPasswordLength {
		return invalid("new_password", "must be at least %d characters", minPasswordLength)
	}
	admin, err := s.Authenticate(ctx, username, current)
	if err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	err = s.run(ctx, func(db *gorm.DB) error {
		return db.Model(admin).Update("password_hash", hash).Error
	})
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	s.logger.Info("admin password changed")
	return nil
}

// UpdateUsername 校验密码后修改用户名
func (s *Store) UpdateUsername(ctx context.Context, current, next, password string) error {
	if utf8.RuneCountInString(next) < minUsernameLength {
		return invalid("username", "must be at least %d characters", minUsernameLength)
	}
	admin, err := s.Authenticate(ctx, current, password)
	if err != nil {
		return err
	}
	err = s.atomic(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&AdminCredential{}).
			Where("username = ? AND id <> ?", next, admin.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyExists
		}
		return tx.Model(admin).Update("username", next).Error
	})
	if err != nil {
		return wrapStoreErr("update username", err)
	}
	return nil
}
