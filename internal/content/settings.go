package content

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 默认站点设置
var defaultSettings = map[string]string{
	"site_title":       "My Blog",
	"site_description": "A simple club site powered by ClubCMS",
	"posts_per_page":   "5",
	"introduction":     "Welcome to my blog",
	"instagram_url":    "",
	"linkedin_url":     "",
	"twitter_url":      "",
}

// DefaultPostsPerPage posts_per_page 缺失或非法时使用
const DefaultPostsPerPage = 5

// GetSettings 返回全部设置
func (s *Store) GetSettings(ctx context.Context) (map[string]string, error) {
	var rows []Setting
	err := s.run(ctx, func(db *gorm.DB) error {
		return db.Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// GetSetting 返回单个设置
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var row Setting
	err := s.run(ctx, func(db *gorm.DB) error {
		return db.Where(map[string]any{"key": key}).First(&row).Error
	})
	if err != nil {
		return "", wrapStoreErr("get setting", err)
	}
	return row.Value, nil
}

// UpdateSettings 在一个事务中写入多个设置，不存在的键会被创建
func (s *Store) UpdateSettings(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return invalid("settings", "no settings provided")
	}
	rows := make([]Setting, 0, len(values))
	for k, v := range values {
		if k == "" {
			return invalid("key", "must not be empty")
		}
		rows = append(rows, Setting{Key: k, Value: v})
	}
	err := s.atomic(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

// DeleteSetting 删除设置
func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	var affected int64
	err := s.run(ctx, func(db *gorm.DB) error {
		res := db.Where(map[string]any{"key": key}).Delete(&Setting{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete setting: %w", ErrNotFound)
	}
	return nil
}

// PostsPerPage 读取 posts_per_page，失败时返回默认值
func (s *Store) PostsPerPage(ctx context.Context) int {
	v, err := s.GetSetting(ctx, "posts_per_page")
	if err != nil {
		return DefaultPostsPerPage
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return DefaultPostsPerPage
	}
	return n
}
