package content

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("content: not found")
	// ErrCommentsDisabled 文章关闭了评论
	ErrCommentsDisabled = errors.New("content: comments are disabled for this post")
	// ErrNotBlogPost 只有博客文章接受评论
	ErrNotBlogPost = errors.New("content: comments can only be added to blog posts")
	// ErrSubmissionsClosed 活动已停止报名
	ErrSubmissionsClosed = errors.New("content: event is no longer accepting registrations")
	// ErrAlreadyExists 唯一键冲突（活动 ID、图片 public_id、用户名）
	ErrAlreadyExists = errors.New("content: already exists")
	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials = errors.New("content: invalid credentials")
)

// ValidationError 输入校验失败
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
