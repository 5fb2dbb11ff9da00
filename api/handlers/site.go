package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/clubcms/internal/content"
	"github.com/BaSui01/clubcms/types"
)

// =============================================================================
// ⚙️ 站点设置
// =============================================================================

// HandleGetSettings GET /api/settings
func (h *ContentHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetSettings(r.Context())
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, settings)
}

// HandleUpdateSettings PUT /api/settings（管理员），请求体为键值对象
func (h *ContentHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := DecodeJSONBody(w, r, &values, h.logger); err != nil {
		return
	}
	if err := h.store.UpdateSettings(r.Context(), values); err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}

	settings, err := h.store.GetSettings(r.Context())
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, settings)
}

// HandleDeleteSetting DELETE /api/settings/{key}（管理员）
func (h *ContentHandler) HandleDeleteSetting(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteSetting(r.Context(), r.PathValue("key")); err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"message": "Setting deleted"})
}

// =============================================================================
// 👥 团队
// =============================================================================

// HandleListTeam GET /api/team?leadership=true|false
func (h *ContentHandler) HandleListTeam(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.ListTeam(r.Context(), queryBool(r, "leadership"))
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, members)
}

// HandleGetTeamMember GET /api/team/{id}
func (h *ContentHandler) HandleGetTeamMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, types.NewInvalidRequestError("invalid team member ID"), h.logger)
		return
	}
	m, err := h.store.GetTeamMember(r.Context(), id)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, m)
}

// HandleCreateTeamMember POST /api/team（管理员）
func (h *ContentHandler) HandleCreateTeamMember(w http.ResponseWriter, r *http.Request) {
	var in content.TeamMemberInput
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}
	m, err := h.store.CreateTeamMember(r.Context(), in)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteCreated(w, m)
}

// HandleUpdateTeamMember PUT /api/team/{id}（管理员）
func (h *ContentHandler) HandleUpdateTeamMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, types.NewInvalidRequestError("invalid team member ID"), h.logger)
		return
	}
	var in content.TeamMemberInput
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}
	m, err := h.store.UpdateTeamMember(r.Context(), id, in)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, m)
}

// HandleDeleteTeamMember DELETE /api/team/{id}（管理员）
func (h *ContentHandler) HandleDeleteTeamMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, types.NewInvalidRequestError("invalid team member ID"), h.logger)
		return
	}
	if err := h.store.DeleteTeamMember(r.Context(), id); err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"message": "Team member deleted"})
}

// =============================================================================
// ✉️ 联系表单
// =============================================================================

// HandleSubmitContact POST /api/contact
func (h *ContentHandler) HandleSubmitContact(w http.ResponseWriter, r *http.Request) {
	var in content.ContactInput
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}
	c, err := h.store.SubmitContact(r.Context(), in)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	h.logger.Info("contact message received", zap.Uint("id", c.ID))
	WriteCreated(w, map[string]any{"id": c.ID, "message": "Thank you for your message"})
}

// HandleListContacts GET /api/contacts?unread=true（管理员）
func (h *ContentHandler) HandleListContacts(w http.ResponseWriter, r *http.Request) {
	unreadOnly := false
	if v := queryBool(r, "unread"); v != nil {
		unreadOnly = *v
	}
	contacts, err := h.store.ListContacts(r.Context(), unreadOnly)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, contacts)
}

// HandleGetContact GET /api/contacts/{id}（管理员）
func (h *ContentHandler) HandleGetContact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, types.NewInvalidRequestError("invalid contact ID"), h.logger)
		return
	}
	c, err := h.store.GetContact(r.Context(), id)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, c)
}

// HandleMarkContactRead PUT /api/contacts/{id}/read（管理员）
func (h *ContentHandler) HandleMarkContactRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, types.NewInvalidRequestError("invalid contact ID"), h.logger)
		return
	}
	c, err := h.store.MarkContactRead(r.Context(), id)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, c)
}

// HandleDeleteContact DELETE /api/contacts/{id}（管理员）
func (h *ContentHandler) HandleDeleteContact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, types.NewInvalidRequestError("invalid contact ID"), h.logger)
		return
	}
	if err := h.store.DeleteContact(r.Context(), id); err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"message": "Contact deleted"})
}

// =============================================================================
// 🖼️ 图库
// =============================================================================

// HandleListGallery GET /api/gallery?featured=true
func (h *ContentHandler) HandleListGallery(w http.ResponseWriter, r *http.Request) {
	featuredOnly := false
	if v := queryBool(r, "featured"); v != nil {
		featuredOnly = *v
	}
	images, err := h.store.ListGallery(r.Context(), featuredOnly)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, images)
}

// HandleAddGalleryImage POST /api/gallery（管理员），只保存元数据
func (h *ContentHandler) HandleAddGalleryImage(w http.ResponseWriter, r *http.Request) {
	var in content.GalleryInput
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}
	img, err := h.store.AddGalleryImage(r.Context(), in)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteCreated(w, img)
}

// HandleUpdateGalleryImage PUT /api/gallery/{id}（管理员）
func (h *ContentHandler) HandleUpdateGalleryImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, types.NewInvalidRequestError("invalid image ID"), h.logger)
		return
	}
	var in content.GalleryPatch
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}
	img, err := h.store.UpdateGalleryImage(r.Context(), id, in)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, img)
}

type featuredRequest struct {
	Featured bool `json:"featured"`
}

// HandleSetFeatured PUT /api/gallery/{id}/featured（管理员）
func (h *ContentHandler) HandleSetFeatured(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, types.NewInvalidRequestError("invalid image ID"), h.logger)
		return
	}
	var req featuredRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	img, err := h.store.SetFeatured(r.Context(), id, req.Featured)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, img)
}

// HandleDeleteGalleryImage DELETE /api/gallery/{id}（管理员）
func (h *ContentHandler) HandleDeleteGalleryImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, types.NewInvalidRequestError("invalid image ID"), h.logger)
		return
	}
	if err := h.store.DeleteGalleryImage(r.Context(), id); err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"message": "Image deleted"})
}

// HandleDeleteGalleryByPublicID DELETE /api/gallery/public/{public_id...}（管理员）
func (h *ContentHandler) HandleDeleteGalleryByPublicID(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteGalleryImageByPublicID(r.Context(), r.PathValue("public_id")); err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"message": "Image deleted"})
}
