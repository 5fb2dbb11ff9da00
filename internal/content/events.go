package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// =============================================================================
// 📅 活动与报名
// =============================================================================

const eventDateLayout = "2006-01-02"

// EventInput 创建或更新活动。更新时 nil 字段保持不变。
type EventInput struct {
	Name                 *string `json:"name"`
	EventDate            *string `json:"event_date"`
	Description          *string `json:"description"`
	AcceptingSubmissions *bool   `json:"accepting_submissions"`
	Instructor           *string `json:"instructor"`
}

// ParticipantInput 报名信息
type ParticipantInput struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Department   string `json:"department"`
	AcademicYear string `json:"academic_year"`
	CollegeCode  string `json:"college_code"`
	StudentID    string `json:"student_id"`
}

func (in ParticipantInput) validate() error {
	required := []struct{ field, value string }{
		{"name", in.Name},
		{"email", in.Email},
		{"department", in.Department},
		{"academic_year", in.AcademicYear},
		{"college_code", in.CollegeCode},
		{"student_id", in.StudentID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return invalid(r.field, "is required")
		}
	}
	if !looksLikeEmail(in.Email) {
		return invalid("email", "invalid email format")
	}
	return nil
}

// ParticipantPatch 管理端修改报名信息
type ParticipantPatch struct {
	Name         *string `json:"name"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	Department   *string `json:"department"`
	AcademicYear *string `json:"academic_year"`
	CollegeCode  *string `json:"college_code"`
	StudentID    *string `json:"student_id"`
	Attended     *bool   `json:"attended"`
}

func validDate(s string) bool {
	_, err := time.Parse(eventDateLayout, s)
	return err == nil
}

// ListEvents 按日期倒序列出活动，附带报名人数
func (s *Store) ListEvents(ctx context.Context) ([]Event, error) {
	var events []Event
	err := s.run(ctx, func(db *gorm.DB) error {
		if err := db.Order("event_date DESC").Find(&events).Error; err != nil {
			return err
		}
		return fillParticipantCounts(db, events)
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func fillParticipantCounts(db *gorm.DB, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	var rows []struct {
		EventID string
		Count   int64
	}
	err := db.Model(&Participant{}).
		Select("event_id, COUNT(*) AS count").
		Group("event_id").
		Scan(&rows).Error
	if err != nil {
		return err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.EventID] = r.Count
	}
	for i := range events {
		events[i].ParticipantCount = counts[events[i].ID]
	}
	return nil
}

// GetEvent 获取活动
func (s *Store) GetEvent(ctx context.Context, id string) (*Event, error) {
	var ev Event
	err := s.run(ctx, func(db *gorm.DB) error {
		if err := db.First(&ev, "id = ?", id).Error; err != nil {
			return err
		}
		return db.Model(&Participant{}).Where("event_id = ?", id).Count(&ev.ParticipantCount).Error
	})
	if err != nil {
		return nil, wrapStoreErr("get event", err)
	}
	return &ev, nil
}

// CreateEvent 创建活动，ID 由 GenerateEventID 生成；同名同日期的活动返回 ErrAlreadyExists
func (s *Store) CreateEvent(ctx context.Context, in EventInput) (*Event, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, invalid("name", "is required")
	}
	if in.EventDate == nil || !validDate(*in.EventDate) {
		return nil, invalid("event_date", "must be YYYY-MM-DD")
	}

	ev := Event{
		ID:                   GenerateEventID(*in.Name, *in.EventDate),
		Name:                 *in.Name,
		EventDate:            *in.EventDate,
		Description:          deref(in.Description),
		Instructor:           deref(in.Instructor),
		AcceptingSubmissions: true,
	}
	if in.AcceptingSubmissions != nil {
		ev.AcceptingSubmissions = *in.AcceptingSubmissions
	}

	err := s.atomic(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Event{}).Where("id = ?", ev.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyExists
		}
		return tx.Create(&ev).Error
	})
	if err != nil {
		return nil, wrapStoreErr("create event", err)
	}
	return &ev, nil
}

// UpdateEvent 更新活动，ID 不随名称或日期变化
func (s *Store) UpdateEvent(ctx context.Context, id string, in EventInput) (*Event, error) {
	if in.EventDate != nil && !validDate(*in.EventDate) {
		return nil, invalid("event_date", "must be YYYY-MM-DD")
	}
	var ev Event
	err := s.atomic(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&ev, "id = ?", id).Error; err != nil {
			return err
		}
		u := map[string]any{}
		if in.Name != nil {
			u["name"] = *in.Name
		}
		if in.EventDate != nil {
			u["event_date"] = *in.EventDate
		}
		if in.Description != nil {
			u["description"] = *in.Description
		}
		if in.AcceptingSubmissions != nil {
			u["accepting_submissions"] = *in.AcceptingSubmissions
		}
		if in.Instructor != nil {
			u["instructor"] = *in.Instructor
		}
		if len(u) > 0 {
			if err := tx.Model(&ev).Updates(u).Error; err != nil {
				return err
			}
		}
		return tx.First(&ev, "id = ?", id).Error
	})
	if err != nil {
		return nil, wrapStoreErr("update event", err)
	}
	return &ev, nil
}

// DeleteEvent 删除活动及其报名记录
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	err := s.atomic(ctx, func(tx *gorm.DB) error {
		var ev Event
		if err := tx.First(&ev, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Where("event_id = ?", id).Delete(&Participant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&ev).Error
	})
	if err != nil {
		return wrapStoreErr("delete event", err)
	}
	return nil
}

// RegisterParticipant 报名活动。同一学号重复报名时更新已有记录，
// 返回值 created 区分新建与更新。
func (s *Store) RegisterParticipant(ctx context.Context, eventID string, in ParticipantInput) (p *Participant, created bool, err error) {
	if err := in.validate(); err != nil {
		return nil, false, err
	}

	var out Participant
	err = s.atomic(ctx, func(tx *gorm.DB) error {
		var ev Event
		if err := tx.First(&ev, "id = ?", eventID).Error; err != nil {
			return err
		}
		if !ev.AcceptingSubmissions {
			return ErrSubmissionsClosed
		}

		err := tx.Where("event_id = ? AND student_id = ?", eventID, in.StudentID).First(&out).Error
		switch {
		case err == nil:
			created = false
			return tx.Model(&out).Updates(map[string]any{
				"name":          in.Name,
				"email":         in.Email,
				"phone":         in.Phone,
				"department":    in.Department,
				"academic_year": in.AcademicYear,
				"college_code":  in.CollegeCode,
			}).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			out = Participant{
				EventID:      eventID,
				Name:         in.Name,
				Email:        in.Email,
				Phone:        in.Phone,
				Department:   in.Department,
				AcademicYear: in.AcademicYear,
				CollegeCode:  in.CollegeCode,
				StudentID:    in.StudentID,
			}
			return tx.Create(&out).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, false, wrapStoreErr("register participant", err)
	}
	return &out, created, nil
}

// ListParticipants 列出活动报名者
func (s *Store) ListParticipants(ctx context.Context, eventID string) ([]Participant, error) {
	var participants []Participant
	err := s.run(ctx, func(db *gorm.DB) error {
		var count int64
		if err := db.Model(&Event{}).Where("id = ?", eventID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return db.Where("event_id = ?", eventID).Order("id").Find(&participants).Error
	})
	if err != nil {
		return nil, wrapStoreErr("list participants", err)
	}
	return participants, nil
}

// UpdateParticipant 管理端修改报名信息
func (s *Store) UpdateParticipant(ctx context.Context, id uint, in ParticipantPatch) (*Participant, error) {
	var p Participant
	err := s.atomic(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&p, id).Error; err != nil {
			return err
		}
		u := map[string]any{}
		for col, v := range map[string]*string{
			"name":          in.Name,
			"email":         in.Email,
			"phone":         in.Phone,
			"department":    in.Department,
			"academic_year": in.AcademicYear,
			"college_code":  in.CollegeCode,
			"student_id":    in.StudentID,
		} {
			if v != nil {
				u[col] = *v
			}
		}
		if in.Attended != nil {
			u["attended"] = *in.Attended
		}
		if len(u) > 0 {
			if err := tx.Model(&p).Updates(u).Error; err != nil {
				return err
			}
		}
		return tx.First(&p, id).Error
	})
	if err != nil {
		return nil, wrapStoreErr("update participant", err)
	}
	return &p, nil
}

// SetAttendance 设置出勤状态
func (s *Store) SetAttendance(ctx context.Context, id uint, attended bool) (*Participant, error) {
	return s.UpdateParticipant(ctx, id, ParticipantPatch{Attended: &attended})
}

// DeleteParticipant 删除报名记录
func (s *Store) DeleteParticipant(ctx context.Context, id uint) error {
	return s.deleteByID(ctx, "delete participant", &Participant{}, id)
}

// CheckAchievement 查询已出勤的报名者，用于证书校验；未出勤同样返回 ErrNotFound
func (s *Store) CheckAchievement(ctx context.Context, eventID, collegeCode, studentID string) (*Participant, error) {
	var p Participant
	err := s.run(ctx, func(db *gorm.DB) error {
		return db.Where("event_id = ? AND college_code = ? AND student_id = ? AND attended = ?",
			eventID, collegeCode, studentID, true).First(&p).Error
	})
	if err != nil {
		return nil, wrapStoreErr("check achievement", err)
	}
	return &p, nil
}
