package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/unidash/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	authenticateFn   func(ctx context.Context, username, secret string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string)
	currentSessionFn func(ctx context.Context, sessionID string) (*model.Session, error)
	switchProjectFn  func(ctx context.Context, sessionID string, project model.ProjectType) error
}

func (m *mockAuthService) Authenticate(ctx context.Context, username, secret string) (*model.Session, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, username, secret)
	}
	return nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) {
	if m.logoutFn != nil {
		m.logoutFn(ctx, sessionID)
	}
}

func (m *mockAuthService) CurrentSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if m.currentSessionFn != nil {
		return m.currentSessionFn(ctx, sessionID)
	}
	return nil, model.NewNoSessionError()
}

func (m *mockAuthService) SwitchProject(ctx context.Context, sessionID string, project model.ProjectType) error {
	if m.switchProjectFn != nil {
		return m.switchProjectFn(ctx, sessionID, project)
	}
	return nil
}

func testSession(username string, role model.Role) *model.Session {
	return &model.Session{
		ID:        "session-" + username,
		Username:  username,
		Role:      role,
		Project:   model.ProjectLead,
		ExpiresAt: time.Now().Add(8 * time.Hour),
		CreatedAt: time.Now(),
	}
}

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		CookieSecure:  false,
		SessionMaxAge: 28800,
	}
}

// --- ログインのテスト ---

func TestLogin_ValidCredentials_SetsSessionCookie(t *testing.T) {
	service := &mockAuthService{
		authenticateFn: func(ctx context.Context, username, secret string) (*model.Session, error) {
			if username == "admin" && secret == "correct-password" {
				return testSession("admin", model.RoleAdmin), nil
			}
			return nil, model.NewInvalidCredentialsError()
		},
	}
	h := NewAuthHandler(service, testAuthConfig())

	body, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "correct-password",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// セッションCookieが設定されていること
	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("expected session cookie to be set")
	}
	if sessionCookie.Value != "session-admin" {
		t.Errorf("cookie value = %q, want %q", sessionCookie.Value, "session-admin")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}

	var got sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Username != "admin" || got.Role != "admin" {
		t.Errorf("response = %+v, want admin session", got)
	}
}

func TestLogin_InvalidCredentials_Returns401(t *testing.T) {
	service := &mockAuthService{}
	h := NewAuthHandler(service, testAuthConfig())

	body, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrong-password",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	var errResp apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Code != "INVALID_CREDENTIALS" {
		t.Errorf("code = %q, want %q", errResp.Code, "INVALID_CREDENTIALS")
	}
}

func TestLogin_RateLimited_Returns429WithRetryAfter(t *testing.T) {
	service := &mockAuthService{
		authenticateFn: func(ctx context.Context, username, secret string) (*model.Session, error) {
			return nil, model.NewRateLimitedError(10 * time.Minute)
		},
	}
	h := NewAuthHandler(service, testAuthConfig())

	body, _ := json.Marshal(map[string]string{
		"username": "locked-user",
		"password": "whatever",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}
	if got := resp.Header.Get("Retry-After"); got != "600" {
		t.Errorf("Retry-After = %q, want %q", got, "600")
	}
}

// ロック中かどうかを応答文言から推測できないこと。
// INVALID_CREDENTIALSとRATE_LIMITEDは同一のメッセージを返す。
func TestLogin_DenialMessagesAreIdentical(t *testing.T) {
	invalidErr := model.NewInvalidCredentialsError()
	limitedErr := model.NewRateLimitedError(time.Minute)

	if invalidErr.Message != limitedErr.Message {
		t.Errorf("denial messages differ: %q vs %q", invalidErr.Message, limitedErr.Message)
	}
}

func TestLogin_MalformedJSON_Returns400(t *testing.T) {
	service := &mockAuthService{}
	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// --- ログアウトのテスト ---

func TestLogout_ClearsSessionCookie(t *testing.T) {
	loggedOut := ""
	service := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) {
			loggedOut = sessionID
		},
	}
	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "session-to-destroy"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if loggedOut != "session-to-destroy" {
		t.Errorf("logged out session = %q, want %q", loggedOut, "session-to-destroy")
	}

	// Cookieが無効化されていること
	var cleared *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName {
			cleared = c
		}
	}
	if cleared == nil {
		t.Fatal("expected session cookie in response")
	}
	if cleared.MaxAge != -1 || cleared.Value != "" {
		t.Errorf("cookie not cleared: MaxAge=%d Value=%q", cleared.MaxAge, cleared.Value)
	}
}

func TestLogout_WithoutCookie_StillSucceeds(t *testing.T) {
	service := &mockAuthService{}
	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
}

// --- セッション情報取得のテスト ---

func TestMe_ValidSession_ReturnsSessionInfo(t *testing.T) {
	service := &mockAuthService{
		currentSessionFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
			if sessionID == "session-manager1" {
				return testSession("manager1", model.RoleManager), nil
			}
			return nil, model.NewNoSessionError()
		},
	}
	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "session-manager1"})
	w := httptest.NewRecorder()

	h.Me(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Username != "manager1" || got.Role != "manager" || got.Project != "lead" {
		t.Errorf("response = %+v, want manager1/manager/lead", got)
	}
}

func TestMe_NoCookie_Returns401(t *testing.T) {
	service := &mockAuthService{}
	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestMe_ExpiredSession_Returns401(t *testing.T) {
	service := &mockAuthService{}
	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "expired-session"})
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// --- プロジェクト切り替えのテスト ---

func TestSwitchProject_ValidProject_Returns200(t *testing.T) {
	var switched model.ProjectType
	service := &mockAuthService{
		switchProjectFn: func(ctx context.Context, sessionID string, project model.ProjectType) error {
			switched = project
			return nil
		},
	}
	h := NewAuthHandler(service, testAuthConfig())

	body, _ := json.Marshal(map[string]string{"project": "cpa"})
	req := httptest.NewRequest(http.MethodPut, "/auth/project", bytes.NewReader(body))
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "session-1"})
	w := httptest.NewRecorder()

	h.SwitchProject(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if switched != model.ProjectCPA {
		t.Errorf("switched project = %q, want %q", switched, model.ProjectCPA)
	}
}

func TestSwitchProject_InvalidProject_Returns400(t *testing.T) {
	service := &mockAuthService{
		switchProjectFn: func(ctx context.Context, sessionID string, project model.ProjectType) error {
			return model.NewInvalidProjectError(string(project))
		},
	}
	h := NewAuthHandler(service, testAuthConfig())

	body, _ := json.Marshal(map[string]string{"project": "unknown"})
	req := httptest.NewRequest(http.MethodPut, "/auth/project", bytes.NewReader(body))
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "session-1"})
	w := httptest.NewRecorder()

	h.SwitchProject(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestSwitchProject_NoCookie_Returns401(t *testing.T) {
	service := &mockAuthService{}
	h := NewAuthHandler(service, testAuthConfig())

	body, _ := json.Marshal(map[string]string{"project": "cpa"})
	req := httptest.NewRequest(http.MethodPut, "/auth/project", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.SwitchProject(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
