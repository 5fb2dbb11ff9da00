package content

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 初始管理员账号
const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin"
)

// Seed 写入初始管理员与默认设置。已存在的记录保持不变，可重复执行。
func (s *Store) Seed(ctx context.Context) error {
	hash, err := HashPassword(DefaultAdminPassword)
	if err != nil {
		return err
	}

	var createdAdmin bool
	err = s.atomic(ctx, func(tx *gorm.DB) error {
		var admin AdminCredential
		err := tx.Where("username = ?", DefaultAdminUsername).First(&admin).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			createdAdmin = true
			if err := tx.Create(&AdminCredential{
				Username:     DefaultAdminUsername,
				PasswordHash: hash,
			}).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		}

		rows := make([]Setting, 0, len(defaultSettings))
		for k, v := range defaultSettings {
			rows = append(rows, Setting{Key: k, Value: v})
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("seed database: %w", err)
	}
	if createdAdmin {
		s.logger.Warn("created default admin account; change its password after first login")
	}
	return nil
}

// DefaultSettings 返回默认设置的副本
func DefaultSettings() map[string]string {
	out := make(map[string]string, len(defaultSettings))
	for k, v := range defaultSettings {
		out[k] = v
	}
	return out
}
