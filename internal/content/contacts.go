package content

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
)

// ContactInput 联系表单
type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (in ContactInput) validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(in.Name)) < 2 {
		return invalid("name", "name is too short")
	}
	if !looksLikeEmail(in.Email) {
		return invalid("email", "invalid email format")
	}
	if strings.TrimSpace(in.Subject) == "" {
		return invalid("subject", "is required")
	}
	switch n := utf8.RuneCountInString(in.Message); {
	case n < 10:
		return invalid("message", "message is too short")
	case n > 5000:
		return invalid("message", "message is too long (max 5000 characters)")
	}
	return nil
}

func looksLikeEmail(s string) bool {
	return strings.Contains(s, "@") && strings.Contains(s, ".")
}

// SubmitContact 保存联系表单留言
func (s *Store) SubmitContact(ctx context.Context, in ContactInput) (*Contact, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c := Contact{
		Name:    in.Name,
		Email:   in.Email,
		Subject: in.Subject,
		Message: in.Message,
	}
	err := s.run(ctx, func(db *gorm.DB) error {
		return db.Create(&c).Error
	})
	if err != nil {
		return nil, fmt.Errorf("submit contact: %w", err)
	}
	return &c, nil
}

// ListContacts 列出留言，新的在前
func (s *Store) ListContacts(ctx context.Context, unreadOnly bool) ([]Contact, error) {
	var contacts []Contact
	err := s.run(ctx, func(db *gorm.DB) error {
		q := db.Order("created_at DESC")
		if unreadOnly {
			q = q.Where(map[string]any{"read": false})
		}
		return q.Find(&contacts).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, nil
}

// GetContact 获取留言
func (s *Store) GetContact(ctx context.Context, id uint) (*Contact, error) {
	var c Contact
	err := s.run(ctx, func(db *gorm.DB) error {
		return db.First(&c, id).Error
	})
	if err != nil {
		return nil, wrapStoreErr("get contact", err)
	}
	return &c, nil
}

// MarkContactRead 标记留言为已读
func (s *Store) MarkContactRead(ctx context.Context, id uint) (*Contact, error) {
	var c Contact
	err := s.atomic(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&c, id).Error; err != nil {
			return err
		}
		c.Read = true
		return tx.Model(&c).Update("read", true).Error
	})
	if err != nil {
		return nil, wrapStoreErr("mark contact read", err)
	}
	return &c, nil
}

// DeleteContact 删除留言
func (s *Store) DeleteContact(ctx context.Context, id uint) error {
	return s.deleteByID(ctx, "delete contact", &Contact{}, id)
}
