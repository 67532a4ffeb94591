package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/unidash/internal/model"
)

const sessionCookieName = "session_id"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Authenticate はユーザー名とパスワードを検証しセッションを発行する。
	Authenticate(ctx context.Context, username, secret string) (*model.Session, error)
	// Logout はセッションを破棄する。冪等。
	Logout(ctx context.Context, sessionID string)
	// CurrentSession は有効なセッションを返す。
	CurrentSession(ctx context.Context, sessionID string) (*model.Session, error)
	// SwitchProject はセッションの現在プロジェクトを切り替える。
	SwitchProject(ctx context.Context, sessionID string, project model.ProjectType) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はセッションゲートのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// switchProjectRequest はプロジェクト切り替えリクエストのボディ。
type switchProjectRequest struct {
	Project string `json:"project"`
}

// sessionResponse はセッション情報のAPIレスポンス。
type sessionResponse struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Project   string    `json:"project"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toSessionResponse(session *model.Session) sessionResponse {
	return sessionResponse{
		Username:  session.Username,
		Role:      string(session.Role),
		Project:   string(session.Project),
		ExpiresAt: session.ExpiresAt,
	}
}

// Login はユーザー名・パスワードによるログインを処理する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	session, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		h.service.Logout(r.Context(), cookie.Value)
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のセッション情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNoSessionError())
		return
	}

	session, err := h.service.CurrentSession(r.Context(), cookie.Value)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// SwitchProject はセッションの現在プロジェクトを切り替える。
// PUT /auth/project
func (h *AuthHandler) SwitchProject(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNoSessionError())
		return
	}

	var req switchProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if err := h.service.SwitchProject(r.Context(), cookie.Value, model.ProjectType(req.Project)); err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("project switched", slog.String("project", req.Project))

	writeJSON(w, http.StatusOK, map[string]string{"project": req.Project})
}
