package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/unidash/internal/model"
)

// LoginRecorder はログイン結果のメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。nilの場合は記録しない。
type LoginRecorder interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordLoginRateLimited()
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge time.Duration // セッション有効期間
}

// Service はセッションゲート: 提示されたユーザー名・パスワードの認可判定と、
// ブルートフォース耐性のためのロックアウト、セッションの発行・検証・破棄を提供する。
// クレデンシャルと試行カウンタはService生成時に注入され、グローバル状態を持たない。
type Service struct {
	credentials *CredentialStore
	sessions    *SessionStore
	attempts    *AttemptTracker
	recorder    LoginRecorder
}

// NewService はServiceを生成する。recorderはnil可。
func NewService(
	credentials *CredentialStore,
	sessions *SessionStore,
	attempts *AttemptTracker,
	recorder LoginRecorder,
) *Service {
	return &Service{
		credentials: credentials,
		sessions:    sessions,
		attempts:    attempts,
		recorder:    recorder,
	}
}

// Authenticate は提示されたユーザー名・パスワードを検証し、セッションを発行する。
//
// 判定順序:
//  1. ロックアウト判定 — ウィンドウ内の失敗回数が閾値以上なら
//     クレデンシャルストアに触れずRATE_LIMITEDを返す
//  2. クレデンシャル検索 — 不存在ならカウンタを増やしINVALID_CREDENTIALSを返す
//     （パスワード不一致と同一の応答で、登録済みユーザー名の推測を防ぐ）
//  3. ハッシュ照合 — 格納済みのアルゴリズムタグで定数時間比較
//  4. 一致: カウンタをクリアしセッションを発行、不一致: カウンタを増やし拒否
//
// secretはログに出力されない。すべての拒否は回復可能で、致命的エラーパスはない。
func (s *Service) Authenticate(ctx context.Context, username, secret string) (*model.Session, error) {
	if username == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	now := time.Now()

	if blocked, retryAfter := s.attempts.Blocked(username, now); blocked {
		s.recordRateLimited()
		slog.Warn("login rate limited",
			slog.String("username", username),
			slog.Duration("retry_after", retryAfter),
		)
		return nil, model.NewRateLimitedError(retryAfter)
	}

	cred, found := s.credentials.Lookup(username)
	if !found {
		s.attempts.RecordFailure(username, now)
		s.recordFailure()
		slog.Warn("login failed: unknown username", slog.String("username", username))
		return nil, model.NewInvalidCredentialsError()
	}

	ok, err := VerifyPassword(secret, cred.PasswordHash)
	if err != nil {
		// 格納ハッシュの形式不正は設定上の問題だが、
		// 呼び出し側には通常の認証失敗として応答する
		s.attempts.RecordFailure(username, now)
		s.recordFailure()
		slog.Error("password verification error",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, model.NewInvalidCredentialsError()
	}
	if !ok {
		s.attempts.RecordFailure(username, now)
		s.recordFailure()
		slog.Warn("login failed: password mismatch", slog.String("username", username))
		return nil, model.NewInvalidCredentialsError()
	}

	s.attempts.Reset(username)

	session, err := s.sessions.Create(cred.Username, cred.Role)
	if err != nil {
		return nil, err
	}

	s.recordSuccess()
	slog.Info("login succeeded",
		slog.String("username", cred.Username),
		slog.String("role", string(cred.Role)),
	)

	return session, nil
}

// Authorize はセッションのロールが要求された最小ロール以上かを判定する。
// 有効なセッションが存在しない場合はNO_SESSION、
// ロールが不足する場合はINSUFFICIENT_ROLEを返す。
func (s *Service) Authorize(ctx context.Context, sessionID string, required model.Role) error {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return model.NewNoSessionError()
	}
	if !session.Role.AtLeast(required) {
		return model.NewInsufficientRoleError(required)
	}
	return nil
}

// Logout はセッションを破棄する。不存在でもエラーにならない（冪等）。
func (s *Service) Logout(ctx context.Context, sessionID string) {
	s.sessions.DeleteByID(sessionID)
	slog.Info("user logged out")
}

// CurrentSession は有効なセッションを返す。不存在・期限切れの場合はNO_SESSIONを返す。
func (s *Service) CurrentSession(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, model.NewNoSessionError()
	}
	return session, nil
}

// CurrentRole は有効なセッションのロールを返す。
func (s *Service) CurrentRole(ctx context.Context, sessionID string) (model.Role, error) {
	session, err := s.CurrentSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return session.Role, nil
}

// SwitchProject はセッションの現在プロジェクトを切り替える。
func (s *Service) SwitchProject(ctx context.Context, sessionID string, project model.ProjectType) error {
	if !projectValid(project) {
		return model.NewInvalidProjectError(string(project))
	}
	return s.sessions.SetProject(sessionID, project)
}

func projectValid(p model.ProjectType) bool {
	_, ok := model.ParseProjectType(string(p))
	return ok
}

func (s *Service) recordSuccess() {
	if s.recorder != nil {
		s.recorder.RecordLoginSuccess()
	}
}

func (s *Service) recordFailure() {
	if s.recorder != nil {
		s.recorder.RecordLoginFailure()
	}
}

func (s *Service) recordRateLimited() {
	if s.recorder != nil {
		s.recorder.RecordLoginRateLimited()
	}
}
