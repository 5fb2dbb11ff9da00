package content

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// TeamMemberInput 创建或更新团队成员。更新时 nil 字段保持不变。
type TeamMemberInput struct {
	Name       *string `json:"name"`
	Role       *string `json:"role"`
	Bio        *string `json:"bio"`
	Image      *string `json:"image"`
	Leadership *bool   `json:"leadership"`
	Github     *string `json:"github"`
	Linkedin   *string `json:"linkedin"`
	Email      *string `json:"email"`
}

func (in TeamMemberInput) missing() []string {
	var fields []string
	for name, v := range map[string]*string{"name": in.Name, "role": in.Role, "bio": in.Bio, "image": in.Image} {
		if v == nil {
			fields = append(fields, name)
		}
	}
	return fields
}

func (in TeamMemberInput) updates() map[string]any {
	u := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			u[col] = *v
		}
	}
	set("name", in.Name)
	set("role", in.Role)
	set("bio", in.Bio)
	set("image", in.Image)
	set("github", in.Github)
	set("linkedin", in.Linkedin)
	set("email", in.Email)
	if in.Leadership != nil {
		u["leadership"] = *in.Leadership
	}
	return u
}

// ListTeam 列出团队成员，leadership 非 nil 时按领导层标记过滤
func (s *Store) ListTeam(ctx context.Context, leadership *bool) ([]TeamMember, error) {
	var members []TeamMember
	err := s.run(ctx, func(db *gorm.DB) error {
		q := db.Order("id")
		if leadership != nil {
			q = q.Where("leadership = ?", *leadership)
		}
		return q.Find(&members).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list team: %w", err)
	}
	return members, nil
}

// GetTeamMember 获取团队成员
func (s *Store) GetTeamMember(ctx context.Context, id uint) (*TeamMember, error) {
	var m TeamMember
	err := s.run(ctx, func(db *gorm.DB) error {
		return db.First(&m, id).Error
	})
	if err != nil {
		return nil, wrapStoreErr("get team member", err)
	}
	return &m, nil
}

// CreateTeamMember 创建团队成员，name、role、bio、image 必填
func (s *Store) CreateTeamMember(ctx context.Context, in TeamMemberInput) (*TeamMember, error) {
	if missing := in.missing(); len(missing) > 0 {
		sort.Strings(missing)
		return nil, invalid(strings.Join(missing, ","), "missing required fields")
	}
	m := TeamMember{
		Name:       *in.Name,
		Role:       *in.Role,
		Bio:        *in.Bio,
		Image:      *in.Image,
		Leadership: deref(in.Leadership),
		Github:     deref(in.Github),
		Linkedin:   deref(in.Linkedin),
		Email:      deref(in.Email),
	}
	err := s.run(ctx, func(db *gorm.DB) error {
		return db.Create(&m).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create team member: %w", err)
	}
	return &m, nil
}

// UpdateTeamMember 更新团队成员
func (s *Store) UpdateTeamMember(ctx context.Context, id uint, in TeamMemberInput) (*TeamMember, error) {
	var m TeamMember
	err := s.atomic(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&m, id).Error; err != nil {
			return err
		}
		if u := in.updates(); len(u) > 0 {
			if err := tx.Model(&m).Updates(u).Error; err != nil {
				return err
			}
		}
		return tx.First(&m, id).Error
	})
	if err != nil {
		return nil, wrapStoreErr("update team member", err)
	}
	return &m, nil
}

// DeleteTeamMember 删除团队成员
func (s *Store) DeleteTeamMember(ctx context.Context, id uint) error {
	return s.deleteByID(ctx, "delete team member", &TeamMember{}, id)
}
