package content

import "time"

// =============================================================================
// 📄 数据模型
// =============================================================================
// 表结构与 internal/migration/migrations/postgres 保持一致，
// SQLite 由 AutoMigrate 按这些定义建表。

// AdminCredential 管理员账号
type AdminCredential struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:80;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Page 静态页面或博客文章
type Page struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Title            string     `gorm:"size:200;not null" json:"title"`
	Slug             string     `gorm:"size:200;uniqueIndex;not null" json:"slug"`
	Content          string     `gorm:"type:text;not null" json:"content"`
	IsBlog           bool       `gorm:"not null" json:"is_blog"`
	Excerpt          string     `gorm:"type:text;not null" json:"excerpt"`
	Featured         bool       `gorm:"not null" json:"featured"`
	CommentsDisabled bool       `gorm:"not null" json:"comments_disabled"`
	PublishedDate    *time.Time `json:"published_date"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// 查询时填充
	CommentCount int64  `gorm:"-" json:"comment_count"`
	FirstImage   string `gorm:"-" json:"first_image,omitempty"`
}

// Comment 文章评论
type Comment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PageID     uint      `gorm:"not null;index" json:"page_id"`
	AuthorName string    `gorm:"size:100;not null" json:"author_name"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time `json:"created_at"`

	// 管理列表联表查询时填充，只读且不建列
	PostTitle string `gorm:"->;-:migration" json:"post_title,omitempty"`
	PostSlug  string `gorm:"->;-:migration" json:"post_slug,omitempty"`
}

// Setting 站点设置键值
type Setting struct {
	ID    uint   `gorm:"primaryKey" json:"-"`
	Key   string `gorm:"size:100;uniqueIndex;not null" json:"key"`
	Value string `gorm:"type:text;not null" json:"value"`
}

// TeamMember 团队成员
type TeamMember struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	Role       string    `gorm:"size:100;not null" json:"role"`
	Bio        string    `gorm:"type:text;not null" json:"bio"`
	Image      string    `gorm:"size:500;not null" json:"image"`
	Leadership bool      `gorm:"not null" json:"leadership"`
	Github     string    `gorm:"size:200;not null" json:"github"`
	Linkedin   string    `gorm:"size:200;not null" json:"linkedin"`
	Email      string    `gorm:"size:200;not null" json:"email"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// GalleryImage 图库图片元数据，图片本身托管在外部
type GalleryImage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	URL         string    `gorm:"column:url;size:500;not null" json:"url"`
	PublicID    string    `gorm:"size:200;uniqueIndex;not null" json:"public_id"`
	Featured    bool      `gorm:"not null" json:"featured"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Contact 联系表单留言
type Contact struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:200;not null" json:"email"`
	Subject   string    `gorm:"size:200;not null" json:"subject"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Read      bool      `gorm:"not null" json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Event 活动，ID 由名称与日期生成
type Event struct {
	ID                   string    `gorm:"primaryKey;size:64" json:"id"`
	Name                 string    `gorm:"size:200;not null" json:"name"`
	Description          string    `gorm:"type:text;not null" json:"description"`
	EventDate            string    `gorm:"size:10;not null" json:"event_date"`
	AcceptingSubmissions bool      `gorm:"not null" json:"accepting_submissions"`
	Instructor           string    `gorm:"size:200;not null" json:"instructor"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`

	ParticipantCount int64 `gorm:"-" json:"participant_count"`
}

// Participant 活动报名者，同一学号在同一活动中唯一
type Participant struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EventID      string    `gorm:"size:64;not null;index;uniqueIndex:uq_participant_student_event,priority:2" json:"event_id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Email        string    `gorm:"size:200;not null" json:"email"`
	Phone        string    `gorm:"size:30;not null" json:"phone"`
	Department   string    `gorm:"size:100;not null" json:"department"`
	AcademicYear string    `gorm:"size:20;not null" json:"academic_year"`
	CollegeCode  string    `gorm:"size:50;not null" json:"college_code"`
	StudentID    string    `gorm:"size:50;not null;uniqueIndex:uq_participant_student_event,priority:1" json:"student_id"`
	Attended     bool      `gorm:"not null" json:"attended"`
	CreatedAt    time.Time `json:"created_at"`
}

// ParticipantCode 证书查询用的参与者编号
func (p *Participant) ParticipantCode() string {
	return p.CollegeCode + p.StudentID
}

// Models 所有需要建表的模型
func Models() []any {
	return []any{
		&AdminCredential{},
		&Page{},
		&Comment{},
		&Setting{},
		&TeamMember{},
		&GalleryImage{},
		&Contact{},
		&Event{},
		&Participant{},
	}
}
