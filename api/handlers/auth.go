package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/clubcms/config"
	"github.com/BaSui01/clubcms/internal/content"
	"github.com/BaSui01/clubcms/internal/ctxkeys"
	"github.com/BaSui01/clubcms/internal/session"
	"github.com/BaSui01/clubcms/types"
)

// =============================================================================
// 🔐 管理员登录 Handler
// =============================================================================

// AuthHandler 管理员登录、登出与会话校验
type AuthHandler struct {
	store    *content.Store
	sessions session.Store
	cookie   config.SessionConfig
	logger   *zap.Logger
}

// NewAuthHandler 创建登录处理器
func NewAuthHandler(store *content.Store, sessions session.Store, cookie config.SessionConfig, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		store:    store,
		sessions: sessions,
		cookie:   cookie,
		logger:   logger.With(zap.String("component", "auth")),
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type updateUsernameRequest struct {
	NewUsername string `json:"new_username"`
	Password    string `json:"password"`
}

// AuthStatus 登录状态
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

// HandleLogin POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		WriteError(w, types.NewInvalidRequestError("username and password are required"), h.logger)
		return
	}

	admin, err := h.store.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, content.ErrInvalidCredentials) {
			h.logger.Warn("failed login attempt", zap.String("username", req.Username))
		}
		WriteStoreError(w, err, h.logger)
		return
	}

	if !h.startSession(w, r, admin.Username) {
		return
	}
	h.logger.Info("admin logged in", zap.String("username", admin.Username))
	WriteSuccess(w, AuthStatus{Authenticated: true, Username: admin.Username})
}

// HandleLogout POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(h.cookie.CookieName); err == nil {
		if err := h.sessions.Delete(r.Context(), c.Value); err != nil {
			h.logger.Warn("failed to delete session", zap.Error(err))
		}
	}
	h.clearCookie(w)
	WriteSuccess(w, AuthStatus{Authenticated: false})
}

// HandleStatus GET /api/auth/status
func (h *AuthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := h.currentSession(r)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			h.writeSessionError(w, err)
			return
		}
		WriteSuccess(w, AuthStatus{Authenticated: false})
		return
	}
	WriteSuccess(w, AuthStatus{Authenticated: true, Username: sess.Username})
}

// HandleChangePassword POST /api/auth/change-password（管理员）
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	username, _ := ctxkeys.AdminUser(r.Context())

	var req changePasswordRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := h.store.ChangePassword(r.Context(), username, req.CurrentPassword, req.NewPassword); err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"message": "Password updated"})
}

// HandleUpdateUsername POST /api/auth/update-username（管理员）。
// 成功后旧会话作废，重新签发绑定新用户名的会话。
func (h *AuthHandler) HandleUpdateUsername(w http.ResponseWriter, r *http.Request) {
	username, _ := ctxkeys.AdminUser(r.Context())

	var req updateUsernameRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := h.store.UpdateUsername(r.Context(), username, req.NewUsername, req.Password); err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}

	if id, ok := ctxkeys.SessionID(r.Context()); ok {
		if err := h.sessions.Delete(r.Context(), id); err != nil {
			h.logger.Warn("failed to delete previous session", zap.Error(err))
		}
	}
	if !h.startSession(w, r, req.NewUsername) {
		return
	}
	h.logger.Info("admin username changed", zap.String("username", req.NewUsername))
	WriteSuccess(w, AuthStatus{Authenticated: true, Username: req.NewUsername})
}

// RequireSession 要求有效的管理员会话，并把用户名与会话 ID 写入 context
func (h *AuthHandler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.currentSession(r)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				WriteError(w, types.NewUnauthorizedError("authentication required"), h.logger)
				return
			}
			h.writeSessionError(w, err)
			return
		}

		ctx := ctxkeys.WithAdminUser(r.Context(), sess.Username)
		ctx = ctxkeys.WithSessionID(ctx, sess.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// =============================================================================
// 🍪 Cookie
// =============================================================================

func (h *AuthHandler) currentSession(r *http.Request) (*session.Session, error) {
	c, err := r.Cookie(h.cookie.CookieName)
	if err != nil || c.Value == "" {
		return nil, session.ErrNotFound
	}
	return h.sessions.Get(r.Context(), c.Value)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, username string) bool {
	sess, err := h.sessions.Create(r.Context(), username)
	if err != nil {
		h.writeSessionError(w, err)
		return false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.CookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return true
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) writeSessionError(w http.ResponseWriter, err error) {
	WriteError(w, types.NewError(types.ErrServiceUnavailable, "session store unavailable").
		WithCause(err).
		WithHTTPStatus(http.StatusServiceUnavailable).
		WithRetryable(true), h.logger)
}
