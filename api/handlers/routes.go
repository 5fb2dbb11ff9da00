package handlers

import "net/http"

// =============================================================================
// 🧭 路由注册
// =============================================================================

// Routes 所有 API 处理器。nil 的处理器对应的路由不注册。
type Routes struct {
	Health   *HealthHandler
	DBHealth *DBHealthHandler
	Content  *ContentHandler
	Auth     *AuthHandler

	Version, BuildTime, GitCommit string
}

// Register 在 mux 上注册全部路由。管理员路由需要 Auth 提供的会话。
func (rt Routes) Register(mux *http.ServeMux) {
	if h := rt.Health; h != nil {
		mux.HandleFunc("GET /health", h.HandleHealth)
		mux.HandleFunc("GET /healthz", h.HandleHealthz)
		mux.HandleFunc("GET /ready", h.HandleReady)
		mux.HandleFunc("GET /readyz", h.HandleReady)
		mux.HandleFunc("GET /version", h.HandleVersion(rt.Version, rt.BuildTime, rt.GitCommit))
	}

	if h := rt.DBHealth; h != nil {
		mux.HandleFunc("GET /health/db", h.HandleDBHealth)
		mux.HandleFunc("POST /health/db/terminate-idle", h.HandleTerminateIdle)
	}

	if rt.Auth == nil {
		return
	}
	a := rt.Auth
	admin := func(fn http.HandlerFunc) http.Handler { return a.RequireSession(fn) }

	mux.HandleFunc("POST /api/auth/login", a.HandleLogin)
	mux.HandleFunc("POST /api/auth/logout", a.HandleLogout)
	mux.HandleFunc("GET /api/auth/status", a.HandleStatus)
	mux.Handle("POST /api/auth/change-password", admin(a.HandleChangePassword))
	mux.Handle("POST /api/auth/update-username", admin(a.HandleUpdateUsername))

	c := rt.Content
	if c == nil {
		return
	}

	// 页面与评论
	mux.HandleFunc("GET /api/pages", c.HandleListPages)
	mux.HandleFunc("GET /api/pages/{slug}", c.HandleGetPage)
	mux.Handle("POST /api/pages", admin(c.HandleCreatePage))
	mux.Handle("PUT /api/pages/{slug}", admin(c.HandleUpdatePage))
	mux.Handle("DELETE /api/pages/{slug}", admin(c.HandleDeletePage))
	mux.HandleFunc("GET /api/pages/{slug}/comments", c.HandleListComments)
	mux.HandleFunc("POST /api/pages/{slug}/comments", c.HandleAddComment)
	mux.Handle("GET /api/comments", admin(c.HandleListAllComments))
	mux.Handle("DELETE /api/comments/{id}", admin(c.HandleDeleteComment))

	// 设置
	mux.HandleFunc("GET /api/settings", c.HandleGetSettings)
	mux.Handle("PUT /api/settings", admin(c.HandleUpdateSettings))
	mux.Handle("DELETE /api/settings/{key}", admin(c.HandleDeleteSetting))

	// 团队
	mux.HandleFunc("GET /api/team", c.HandleListTeam)
	mux.HandleFunc("GET /api/team/{id}", c.HandleGetTeamMember)
	mux.Handle("POST /api/team", admin(c.HandleCreateTeamMember))
	mux.Handle("PUT /api/team/{id}", admin(c.HandleUpdateTeamMember))
	mux.Handle("DELETE /api/team/{id}", admin(c.HandleDeleteTeamMember))

	// 联系表单
	mux.HandleFunc("POST /api/contact", c.HandleSubmitContact)
	mux.Handle("GET /api/contacts", admin(c.HandleListContacts))
	mux.Handle("GET /api/contacts/{id}", admin(c.HandleGetContact))
	mux.Handle("PUT /api/contacts/{id}/read", admin(c.HandleMarkContactRead))
	mux.Handle("DELETE /api/contacts/{id}", admin(c.HandleDeleteContact))

	// 活动
	mux.HandleFunc("GET /api/events", c.HandleListEvents)
	mux.HandleFunc("GET /api/events/{id}", c.HandleGetEvent)
	mux.Handle("POST /api/events", admin(c.HandleCreateEvent))
	mux.Handle("PUT /api/events/{id}", admin(c.HandleUpdateEvent))
	mux.Handle("DELETE /api/events/{id}", admin(c.HandleDeleteEvent))
	mux.HandleFunc("POST /api/events/{id}/register", c.HandleRegister)
	mux.HandleFunc("GET /api/events/{id}/achievement", c.HandleCheckAchievement)
	mux.Handle("GET /api/events/{id}/participants", admin(c.HandleListParticipants))
	mux.Handle("PUT /api/participants/{id}", admin(c.HandleUpdateParticipant))
	mux.Handle("PUT /api/participants/{id}/attendance", admin(c.HandleSetAttendance))
	mux.Handle("DELETE /api/participants/{id}", admin(c.HandleDeleteParticipant))

	// 图库
	mux.HandleFunc("GET /api/gallery", c.HandleListGallery)
	mux.Handle("POST /api/gallery", admin(c.HandleAddGalleryImage))
	mux.Handle("PUT /api/gallery/{id}", admin(c.HandleUpdateGalleryImage))
	mux.Handle("PUT /api/gallery/{id}/featured", admin(c.HandleSetFeatured))
	mux.Handle("DELETE /api/gallery/{id}", admin(c.HandleDeleteGalleryImage))
	mux.Handle("DELETE /api/gallery/public/{public_id...}", admin(c.HandleDeleteGalleryByPublicID))
}
