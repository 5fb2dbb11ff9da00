package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/clubcms/internal/content"
	"github.com/BaSui01/clubcms/types"
)

// =============================================================================
// 📅 活动与报名
// =============================================================================

// HandleListEvents GET /api/events
func (h *ContentHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.ListEvents(r.Context())
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, events)
}

// HandleGetEvent GET /api/events/{id}
func (h *ContentHandler) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.store.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, ev)
}

// HandleCreateEvent POST /api/events（管理员）
func (h *ContentHandler) HandleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in content.EventInput
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}
	ev, err := h.store.CreateEvent(r.Context(), in)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	h.logger.Info("event created", zap.String("event_id", ev.ID))
	WriteCreated(w, ev)
}

// HandleUpdateEvent PUT /api/events/{id}（管理员）
func (h *ContentHandler) HandleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var in content.EventInput
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}
	ev, err := h.store.UpdateEvent(r.Context(), r.PathValue("id"), in)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, ev)
}

// HandleDeleteEvent DELETE /api/events/{id}（管理员）
func (h *ContentHandler) HandleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteEvent(r.Context(), r.PathValue("id")); err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"message": "Event deleted"})
}

// HandleRegister POST /api/events/{id}/register。
// 首次报名返回 201，同一学号再次提交时更新信息并返回 200。
func (h *ContentHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in content.ParticipantInput
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}

	p, created, err := h.store.RegisterParticipant(r.Context(), r.PathValue("id"), in)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	if created {
		WriteCreated(w, p)
		return
	}
	WriteSuccess(w, p)
}

// HandleListParticipants GET /api/events/{id}/participants（管理员）
func (h *ContentHandler) HandleListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.store.ListParticipants(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, participants)
}

// HandleUpdateParticipant PUT /api/participants/{id}（管理员）
func (h *ContentHandler) HandleUpdateParticipant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, types.NewInvalidRequestError("invalid participant ID"), h.logger)
		return
	}
	var in content.ParticipantPatch
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}
	p, err := h.store.UpdateParticipant(r.Context(), id, in)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, p)
}

type attendanceRequest struct {
	Attended bool `json:"attended"`
}

// HandleSetAttendance PUT /api/participants/{id}/attendance（管理员）
func (h *ContentHandler) HandleSetAttendance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, types.NewInvalidRequestError("invalid participant ID"), h.logger)
		return
	}
	var req attendanceRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	p, err := h.store.SetAttendance(r.Context(), id, req.Attended)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, p)
}

// HandleDeleteParticipant DELETE /api/participants/{id}（管理员）
func (h *ContentHandler) HandleDeleteParticipant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, types.NewInvalidRequestError("invalid participant ID"), h.logger)
		return
	}
	if err := h.store.DeleteParticipant(r.Context(), id); err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"message": "Participant deleted"})
}

// achievementResponse 证书校验结果，不返回联系方式
type achievementResponse struct {
	Achieved        bool   `json:"achieved"`
	EventID         string `json:"event_id"`
	Name            string `json:"name"`
	ParticipantCode string `json:"participant_code"`
}

// HandleCheckAchievement GET /api/events/{id}/achievement?college_code=&student_id=
func (h *ContentHandler) HandleCheckAchievement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	collegeCode := strings.TrimSpace(q.Get("college_code"))
	studentID := strings.TrimSpace(q.Get("student_id"))
	if collegeCode == "" || studentID == "" {
		WriteError(w, types.NewInvalidRequestError("college_code and student_id are required"), h.logger)
		return
	}

	p, err := h.store.CheckAchievement(r.Context(), r.PathValue("id"), collegeCode, studentID)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, achievementResponse{
		Achieved:        true,
		EventID:         p.EventID,
		Name:            p.Name,
		ParticipantCode: p.ParticipantCode(),
	})
}
