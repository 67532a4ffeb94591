// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code       string        // エラーコード
	Message    string        // エラーメッセージ
	Category   string        // カテゴリ: auth, validation, data, ai, system
	Action     string        // ユーザー向け対処方法
	RetryAfter time.Duration // RATE_LIMITEDの場合のみ設定される再試行までの待ち時間
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeNoSession          = "NO_SESSION"
	ErrCodeInsufficientRole   = "INSUFFICIENT_ROLE"
	ErrCodeConfiguration      = "CONFIGURATION_ERROR"
	ErrCodeRecordNotFound     = "RECORD_NOT_FOUND"
	ErrCodeInvalidProject     = "INVALID_PROJECT"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeAIUnavailable      = "AI_UNAVAILABLE"
)

// genericLoginDeniedMessage は認証拒否時の共通メッセージ。
// INVALID_CREDENTIALSとRATE_LIMITEDで同一の文言を使い、
// 存在するユーザー名の推測やロック状態の露出を防ぐ。
const genericLoginDeniedMessage = "ユーザー名またはパスワードが正しくありません。"

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// ユーザー名不存在とパスワード不一致で同一の応答を返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  genericLoginDeniedMessage,
		Category: "auth",
		Action:   "ユーザー名とパスワードを確認して再度お試しください。",
	}
}

// NewRateLimitedError はログイン試行回数超過エラーを生成する。
// メッセージ文言はINVALID_CREDENTIALSと同一だが、再試行までの待ち時間を付加する。
func NewRateLimitedError(retryAfter time.Duration) *APIError {
	return &APIError{
		Code:       ErrCodeRateLimited,
		Message:    genericLoginDeniedMessage,
		Category:   "auth",
		Action:     "しばらく待ってから再度お試しください。",
		RetryAfter: retryAfter,
	}
}

// NewNoSessionError は有効なセッションが存在しない場合のエラーを生成する。
func NewNoSessionError() *APIError {
	return &APIError{
		Code:     ErrCodeNoSession,
		Message:  "ログインしていないか、セッションの有効期限が切れています。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewInsufficientRoleError は権限不足エラーを生成する。
func NewInsufficientRoleError(required Role) *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientRole,
		Message:  fmt.Sprintf("この操作には %s 以上の権限が必要です。", required),
		Category: "auth",
		Action:   "権限のあるアカウントでログインするか、管理者に連絡してください。",
	}
}

// NewConfigurationError は起動時設定エラーを生成する。
// 致命的エラーとして起動時に即座に報告され、リクエストパスでは発生しない。
func NewConfigurationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeConfiguration,
		Message:  fmt.Sprintf("設定が不正です: %s", reason),
		Category: "system",
		Action:   "環境変数またはsecretsファイルの設定を確認してください。",
	}
}

// NewRecordNotFoundError はレコード未検出エラーを生成する。
func NewRecordNotFoundError(entity, id string) *APIError {
	return &APIError{
		Code:     ErrCodeRecordNotFound,
		Message:  fmt.Sprintf("指定された%sが見つかりません: %s", entity, id),
		Category: "data",
		Action:   "IDを確認してください。",
	}
}

// NewInvalidProjectError は未定義プロジェクト指定エラーを生成する。
func NewInvalidProjectError(project string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProject,
		Message:  fmt.Sprintf("無効なプロジェクトです: %s", project),
		Category: "validation",
		Action:   "プロジェクトには lead、cpa、prop のいずれかを指定してください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewAIUnavailableError はAIアシスタント呼び出し失敗エラーを生成する。
func NewAIUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeAIUnavailable,
		Message:  "AIアシスタントが応答しませんでした。",
		Category: "ai",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
