package content

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// 页面列表类型
const (
	PageTypeBlog = "blog"
	PageTypePage = "page"
)

// PageFilter 页面列表条件
type PageFilter struct {
	// Type 为 "blog"、"page" 或空（全部）
	Type     string
	Featured bool
	Limit    int
	Page     int
}

// PageInput 创建或更新页面。更新时 nil 字段保持不变。
type PageInput struct {
	Title            *string `json:"title"`
	Content          *string `json:"content"`
	IsBlog           *bool   `json:"is_blog"`
	Featured         *bool   `json:"featured"`
	Excerpt          *string `json:"excerpt"`
	CommentsDisabled *bool   `json:"comments_disabled"`
}

// ListPages 列出页面。博客按发布时间倒序，普通页面按标题排序；
// 指定 Page 而未指定 Limit 时使用 posts_per_page 设置。
func (s *Store) ListPages(ctx context.Context, f PageFilter) ([]Page, error) {
	switch f.Type {
	case PageTypeBlog:
		if f.Page > 0 && f.Limit <= 0 {
			f.Limit = s.PostsPerPage(ctx)
		}
		return s.listBlogPosts(ctx, f)
	case PageTypePage:
		return s.listStaticPages(ctx)
	case "":
		pages, err := s.listStaticPages(ctx)
		if err != nil {
			return nil, err
		}
		posts, err := s.listBlogPosts(ctx, PageFilter{})
		if err != nil {
			return nil, err
		}
		return append(pages, posts...), nil
	default:
		return nil, invalid("type", "unknown page type %q", f.Type)
	}
}

func (s *Store) listStaticPages(ctx context.Context) ([]Page, error) {
	var pages []Page
	err := s.run(ctx, func(db *gorm.DB) error {
		return db.Where("is_blog = ?", false).Order("title").Find(&pages).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return pages, nil
}

func (s *Store) listBlogPosts(ctx context.Context, f PageFilter) ([]Page, error) {
	var posts []Page
	err := s.run(ctx, func(db *gorm.DB) error {
		q := db.Where("is_blog = ?", true)
		if f.Featured {
			q = q.Where("featured = ?", true)
		}
		q = q.Order("published_date DESC")
		if f.Limit > 0 {
			q = q.Limit(f.Limit)
			if f.Page > 1 {
				q = q.Offset((f.Page - 1) * f.Limit)
			}
		}
		return q.Find(&posts).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list blog posts: %w", err)
	}
	for i := range posts {
		posts[i].FirstImage = ExtractFirstImage(posts[i].Content)
	}
	return posts, nil
}

// GetPageBySlug 按 slug 获取页面，博客文章附带评论数与首图
func (s *Store) GetPageBySlug(ctx context.Context, slug string) (*Page, error) {
	var page Page
	err := s.run(ctx, func(db *gorm.DB) error {
		if err := db.Where("slug = ?", slug).First(&page).Error; err != nil {
			return err
		}
		if !page.IsBlog {
			return nil
		}
		return db.Model(&Comment{}).Where("page_id = ?", page.ID).Count(&page.CommentCount).Error
	})
	if err != nil {
		return nil, notFound(err)
	}
	if page.IsBlog {
		page.FirstImage = ExtractFirstImage(page.Content)
	}
	return &page, nil
}

// CreatePage 创建页面，slug 由标题生成，冲突时追加 -1、-2 ...
func (s *Store) CreatePage(ctx context.Context, in PageInput) (*Page, error) {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, invalid("title", "is required")
	}
	if in.Content == nil {
		return nil, invalid("content", "is required")
	}

	now := s.now()
	page := Page{
		Title:            *in.Title,
		Content:          *in.Content,
		IsBlog:           deref(in.IsBlog),
		Featured:         deref(in.Featured),
		CommentsDisabled: deref(in.CommentsDisabled),
		PublishedDate:    &now,
	}
	if in.Excerpt != nil && *in.Excerpt != "" {
		page.Excerpt = *in.Excerpt
	} else if page.IsBlog {
		page.Excerpt = GenerateExcerpt(page.Content)
	}

	err := s.atomic(ctx, func(tx *gorm.DB) error {
		slug, err := uniqueSlug(tx, Slugify(page.Title), 0)
		if err != nil {
			return err
		}
		page.Slug = slug
		return tx.Create(&page).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", conflict(err))
	}
	return &page, nil
}

// UpdatePage 按 slug 更新页面；标题变化时重新生成 slug
func (s *Store) UpdatePage(ctx context.Context, slug string, in PageInput) (*Page, error) {
	var page Page
	err := s.atomic(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("slug = ?", slug).First(&page).Error; err != nil {
			return err
		}

		updates := map[string]any{}
		if in.Title != nil {
			if strings.TrimSpace(*in.Title) == "" {
				return invalid("title", "must not be empty")
			}
			updates["title"] = *in.Title
			if newSlug := Slugify(*in.Title); newSlug != page.Slug {
				unique, err := uniqueSlug(tx, newSlug, page.ID)
				if err != nil {
					return err
				}
				updates["slug"] = unique
			}
		}
		if in.IsBlog != nil {
			updates["is_blog"] = *in.IsBlog
		}
		isBlog := page.IsBlog
		if in.IsBlog != nil {
			isBlog = *in.IsBlog
		}
		if in.Content != nil {
			updates["content"] = *in.Content
			if isBlog && in.Excerpt == nil {
				updates["excerpt"] = GenerateExcerpt(*in.Content)
			}
		}
		if in.Featured != nil {
			updates["featured"] = *in.Featured
		}
		if in.Excerpt != nil {
			updates["excerpt"] = *in.Excerpt
		}
		if in.CommentsDisabled != nil {
			updates["comments_disabled"] = *in.CommentsDisabled
		}
		updates["updated_at"] = s.now()

		if err := tx.Model(&page).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&page, page.ID).Error
	})
	if err != nil {
		return nil, wrapStoreErr("update page", err)
	}
	return &page, nil
}

// DeletePage 删除页面及其评论
func (s *Store) DeletePage(ctx context.Context, slug string) error {
	err := s.atomic(ctx, func(tx *gorm.DB) error {
		var page Page
		if err := tx.Where("slug = ?", slug).First(&page).Error; err != nil {
			return err
		}
		if err := tx.Where("page_id = ?", page.ID).Delete(&Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&page).Error
	})
	if err != nil {
		return wrapStoreErr("delete page", err)
	}
	return nil
}

// uniqueSlug 返回未被其他页面（exclude 之外）占用的 slug
func uniqueSlug(tx *gorm.DB, base string, exclude uint) (string, error) {
	if base == "" {
		base = "page"
	}
	candidate := base
	for i := 1; ; i++ {
		var count int64
		q := tx.Model(&Page{}).Where("slug = ?", candidate)
		if exclude != 0 {
			q = q.Where("id <> ?", exclude)
		}
		if err := q.Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
