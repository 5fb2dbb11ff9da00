package content

import (
	"context"
	"fmt"
	"unicode/utf8"

	"gorm.io/gorm"
)

// CommentInput 新评论
type CommentInput struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (in CommentInput) validate() error {
	switch n := utf8.RuneCountInString(in.Content); {
	case n < 3:
		return invalid("content", "comment is too short")
	case n > 2000:
		return invalid("content", "comment is too long (max 2000 characters)")
	}
	if utf8.RuneCountInString(in.Name) < 2 {
		return invalid("name", "name is too short")
	}
	return nil
}

// ListComments 列出文章评论，新评论在前
func (s *Store) ListComments(ctx context.Context, pageID uint) ([]Comment, error) {
	var comments []Comment
	err := s.run(ctx, func(db *gorm.DB) error {
		return db.Where("page_id = ?", pageID).Order("created_at DESC").Find(&comments).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// ListAllComments 管理端评论列表，附带所属文章标题与 slug
func (s *Store) ListAllComments(ctx context.Context) ([]Comment, error) {
	var comments []Comment
	err := s.run(ctx, func(db *gorm.DB) error {
		return db.Table("comments").
			Select("comments.*, pages.title AS post_title, pages.slug AS post_slug").
			Joins("LEFT JOIN pages ON pages.id = comments.page_id").
			Order("comments.created_at DESC").
			Scan(&comments).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list all comments: %w", err)
	}
	for i := range comments {
		if comments[i].PostTitle == "" {
			comments[i].PostTitle = "Unknown"
		}
	}
	return comments, nil
}

// AddComment 给 slug 对应的博客文章添加评论
func (s *Store) AddComment(ctx context.Context, slug string, in CommentInput) (*Comment, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var comment Comment
	err := s.run(ctx, func(db *gorm.DB) error {
		var page Page
		if err := db.Where("slug = ?", slug).First(&page).Error; err != nil {
			return err
		}
		if !page.IsBlog {
			return ErrNotBlogPost
		}
		if page.CommentsDisabled {
			return ErrCommentsDisabled
		}
		comment = Comment{
			PageID:     page.ID,
			AuthorName: in.Name,
			Content:    in.Content,
		}
		return db.Create(&comment).Error
	})
	if err != nil {
		return nil, wrapStoreErr("add comment", err)
	}
	return &comment, nil
}

// DeleteComment 删除评论
func (s *Store) DeleteComment(ctx context.Context, id uint) error {
	return s.deleteByID(ctx, "delete comment", &Comment{}, id)
}

// deleteByID 删除主键为 id 的记录，未命中返回 ErrNotFound
func (s *Store) deleteByID(ctx context.Context, op string, model any, id any) error {
	var affected int64
	err := s.run(ctx, func(db *gorm.DB) error {
		res := db.Delete(model, "id = ?", id)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
