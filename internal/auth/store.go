package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/hitoshi/unidash/internal/model"
)

// CredentialStore は設定由来のクレデンシャルテーブルを保持する。
// 起動時に1回構築され、以降はイミュータブル（読み取りのみ）。
type CredentialStore struct {
	byUsername map[string]model.Credential
}

// NewCredentialStore はクレデンシャル一覧からCredentialStoreを構築する。
// 空のテーブル、空のユーザー名、サポート外形式の格納ハッシュ、
// 未定義ロール、重複はエラーを返す。設定エラーは起動時に致命的として扱われ、
// リクエストパスでの遅延失敗は発生しない。
func NewCredentialStore(credentials []model.Credential) (*CredentialStore, error) {
	if len(credentials) == 0 {
		return nil, model.NewConfigurationError("credential table is empty")
	}

	byUsername := make(map[string]model.Credential, len(credentials))
	for _, c := range credentials {
		if c.Username == "" {
			return nil, model.NewConfigurationError("credential with empty username")
		}
		if err := ValidateStoredHash(c.PasswordHash); err != nil {
			// ハッシュ値そのものはエラーメッセージに含めない
			return nil, model.NewConfigurationError(
				fmt.Sprintf("credential for %s has malformed password hash: %v", c.Username, err))
		}
		if !c.Role.Valid() {
			return nil, model.NewConfigurationError(
				fmt.Sprintf("credential for %s has unknown role: %s", c.Username, c.Role))
		}
		if _, dup := byUsername[c.Username]; dup {
			return nil, model.NewConfigurationError(
				fmt.Sprintf("duplicate username in credential table: %s", c.Username))
		}
		byUsername[c.Username] = c
	}

	return &CredentialStore{byUsername: byUsername}, nil
}

// Lookup はユーザー名でクレデンシャルを検索する。
func (s *CredentialStore) Lookup(username string) (model.Credential, bool) {
	c, ok := s.byUsername[username]
	return c, ok
}

// SessionStore はインメモリのセッションストア。
// 並行アクセスはmutexで直列化され、期限切れセッションは
// 検索時とバックグラウンドのクリーンアップで破棄される。
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session

	maxAge time.Duration

	cleanupInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
}

// NewSessionStore は新しいSessionStoreを生成する。
// バックグラウンドで期限切れセッションのクリーンアップを開始する。
func NewSessionStore(maxAge time.Duration) *SessionStore {
	s := &SessionStore{
		sessions:        make(map[string]*model.Session),
		maxAge:          maxAge,
		cleanupInterval: time.Minute,
		stopCh:          make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。冪等。
func (s *SessionStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// Create は認証済みユーザーのセッションを発行する。
// デフォルトのナビゲーション先はリード管理プロジェクト。
func (s *SessionStore) Create(username string, role model.Role) (*model.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        id,
		Username:  username,
		Role:      role,
		Project:   model.ProjectLead,
		ExpiresAt: now.Add(s.maxAge),
		CreatedAt: now,
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	return session, nil
}

// FindByID は指定IDのセッションを取得する。期限切れまたは不存在の場合はnilを返す。
// 返却値はコピーであり、呼び出し側の変更はストアに影響しない。
func (s *SessionStore) FindByID(ctx context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok || !time.Now().Before(session.ExpiresAt) {
		return nil, nil
	}

	copied := *session
	return &copied, nil
}

// DeleteByID は指定IDのセッションを削除する。不存在でもエラーにならない（冪等）。
func (s *SessionStore) DeleteByID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// SetProject はセッションの現在プロジェクトを切り替える。
// セッションが不存在または期限切れの場合はNO_SESSIONを返す。
func (s *SessionStore) SetProject(id string, project model.ProjectType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || !time.Now().Before(session.ExpiresAt) {
		return model.NewNoSessionError()
	}
	session.Project = project
	return nil
}

// Len は現在保持しているセッション数を返す。テストおよびメトリクス用。
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// cleanupLoop はバックグラウンドで期限切れセッションを定期的にクリーンアップする。
func (s *SessionStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup(time.Now())
		case <-s.stopCh:
			return
		}
	}
}

// cleanup は期限切れセッションを削除する。
func (s *SessionStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, session := range s.sessions {
		if !now.Before(session.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
