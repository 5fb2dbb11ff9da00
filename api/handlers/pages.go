package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/clubcms/internal/content"
	"github.com/BaSui01/clubcms/types"
)

// =============================================================================
// 📝 页面与评论 Handler
// =============================================================================

// ContentHandler 内容 API。所有读写经由 content.Store。
type ContentHandler struct {
	store  *content.Store
	logger *zap.Logger
}

// NewContentHandler 创建内容处理器
func NewContentHandler(store *content.Store, logger *zap.Logger) *ContentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentHandler{
		store:  store,
		logger: logger.With(zap.String("component", "content_api")),
	}
}

// HandleListPages GET /api/pages?type=blog|page&featured=true&limit=&page=
func (h *ContentHandler) HandleListPages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := content.PageFilter{
		Type:  q.Get("type"),
		Limit: queryInt(r, "limit", 0),
		Page:  queryInt(r, "page", 0),
	}
	if featured := queryBool(r, "featured"); featured != nil {
		filter.Featured = *featured
	}

	pages, err := h.store.ListPages(r.Context(), filter)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, pages)
}

// HandleGetPage GET /api/pages/{slug}
func (h *ContentHandler) HandleGetPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.store.GetPageBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, page)
}

// HandleCreatePage POST /api/pages（管理员）
func (h *ContentHandler) HandleCreatePage(w http.ResponseWriter, r *http.Request) {
	var in content.PageInput
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}

	page, err := h.store.CreatePage(r.Context(), in)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	h.logger.Info("page created", zap.String("slug", page.Slug), zap.Bool("is_blog", page.IsBlog))
	WriteCreated(w, page)
}

// HandleUpdatePage PUT /api/pages/{slug}（管理员）
func (h *ContentHandler) HandleUpdatePage(w http.ResponseWriter, r *http.Request) {
	var in content.PageInput
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}

	page, err := h.store.UpdatePage(r.Context(), r.PathValue("slug"), in)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, page)
}

// HandleDeletePage DELETE /api/pages/{slug}（管理员）
func (h *ContentHandler) HandleDeletePage(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if err := h.store.DeletePage(r.Context(), slug); err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	h.logger.Info("page deleted", zap.String("slug", slug))
	WriteSuccess(w, map[string]string{"message": "Page deleted"})
}

// HandleListComments GET /api/pages/{slug}/comments
func (h *ContentHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	page, err := h.store.GetPageBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	comments, err := h.store.ListComments(r.Context(), page.ID)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, comments)
}

// HandleAddComment POST /api/pages/{slug}/comments
func (h *ContentHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	var in content.CommentInput
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}

	c, err := h.store.AddComment(r.Context(), r.PathValue("slug"), in)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteCreated(w, c)
}

// HandleListAllComments GET /api/comments（管理员）
func (h *ContentHandler) HandleListAllComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.store.ListAllComments(r.Context())
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, comments)
}

// HandleDeleteComment DELETE /api/comments/{id}（管理员）
func (h *ContentHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		WriteError(w, types.NewInvalidRequestError("invalid comment ID"), h.logger)
		return
	}
	if err := h.store.DeleteComment(r.Context(), id); err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"message": "Comment deleted"})
}
