package content

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// GalleryInput 新图片元数据
type GalleryInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublicID    string `json:"public_id"`
	Featured    bool   `json:"featured"`
}

// GalleryPatch 修改图片元数据
type GalleryPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Featured    *bool   `json:"featured"`
}

// ListGallery 列出图库，新的在前
func (s *Store) ListGallery(ctx context.Context, featuredOnly bool) ([]GalleryImage, error) {
	var images []GalleryImage
	err := s.run(ctx, func(db *gorm.DB) error {
		q := db.Order("created_at DESC")
		if featuredOnly {
			q = q.Where("featured = ?", true)
		}
		return q.Find(&images).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list gallery: %w", err)
	}
	return images, nil
}

// GetGalleryImage 获取图片
func (s *Store) GetGalleryImage(ctx context.Context, id uint) (*GalleryImage, error) {
	var img GalleryImage
	err := s.run(ctx, func(db *gorm.DB) error {
		return db.First(&img, id).Error
	})
	if err != nil {
		return nil, wrapStoreErr("get gallery image", err)
	}
	return &img, nil
}

// AddGalleryImage 登记已上传的图片，public_id 重复返回 ErrAlreadyExists
func (s *Store) AddGalleryImage(ctx context.Context, in GalleryInput) (*GalleryImage, error) {
	if strings.TrimSpace(in.URL) == "" || strings.TrimSpace(in.PublicID) == "" {
		return nil, invalid("url,public_id", "are required")
	}
	img := GalleryImage{
		Title:       in.Title,
		Description: in.Description,
		URL:         in.URL,
		PublicID:    in.PublicID,
		Featured:    in.Featured,
	}
	err := s.atomic(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&GalleryImage{}).Where("public_id = ?", in.PublicID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyExists
		}
		return tx.Create(&img).Error
	})
	if err != nil {
		return nil, wrapStoreErr("add gallery image", err)
	}
	return &img, nil
}

// UpdateGalleryImage 修改图片元数据
func (s *Store) UpdateGalleryImage(ctx context.Context, id uint, in GalleryPatch) (*GalleryImage, error) {
	var img GalleryImage
	err := s.atomic(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&img, id).Error; err != nil {
			return err
		}
		u := map[string]any{}
		if in.Title != nil {
			u["title"] = *in.Title
		}
		if in.Description != nil {
			u["description"] = *in.Description
		}
		if in.Featured != nil {
			u["featured"] = *in.Featured
		}
		if len(u) > 0 {
			if err := tx.Model(&img).Updates(u).Error; err != nil {
				return err
			}
		}
		return tx.First(&img, id).Error
	})
	if err != nil {
		return nil, wrapStoreErr("update gallery image", err)
	}
	return &img, nil
}

// SetFeatured 设置精选标记
func (s *Store) SetFeatured(ctx context.Context, id uint, featured bool) (*GalleryImage, error) {
	return s.UpdateGalleryImage(ctx, id, GalleryPatch{Featured: &featured})
}

// DeleteGalleryImage 删除图片记录
func (s *Store) DeleteGalleryImage(ctx context.Context, id uint) error {
	return s.deleteByID(ctx, "delete gallery image", &GalleryImage{}, id)
}

// DeleteGalleryImageByPublicID 按 public_id 删除图片记录
func (s *Store) DeleteGalleryImageByPublicID(ctx context.Context, publicID string) error {
	var affected int64
	err := s.run(ctx, func(db *gorm.DB) error {
		res := db.Where("public_id = ?", publicID).Delete(&GalleryImage{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return fmt.Errorf("delete gallery image: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete gallery image: %w", ErrNotFound)
	}
	return nil
}
