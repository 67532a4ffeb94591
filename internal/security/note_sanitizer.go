// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NoteSanitizerService はリード・クライアント・ブローカーの自由記述フィールドを
// 保存前にサニタイズし、ダッシュボードUIでの表示時のXSSを防ぐ。
// bluemondayのStrictPolicyにより全HTMLタグが除去され、プレーンテキストのみが残る。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NoteSanitizerService は自由記述フィールドのサニタイズ機能のインターフェースを定義する。
type NoteSanitizerService interface {
	// Sanitize は入力からHTMLタグをすべて除去したプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// noteSanitizer はNoteSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type noteSanitizer struct {
	policy *bluemonday.Policy
}

// NewNoteSanitizer はNoteSanitizerServiceの新しいインスタンスを生成する。
// 備考欄はUI上プレーンテキストとして扱うため、許可タグを持たない
// StrictPolicyを使用する。scriptタグ、イベント属性、装飾タグも全て除去される。
func NewNoteSanitizer() *noteSanitizer {
	return &noteSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグをすべて除去したプレーンテキストを返す。
// タグ除去後の前後空白もトリムする。
func (s *noteSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
