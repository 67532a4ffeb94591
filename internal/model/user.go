// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ティアを表す。
// viewer < manager < admin の固定順序で比較される。
type Role string

const (
	// RoleViewer は読み取り専用の権限ティア。
	RoleViewer Role = "viewer"
	// RoleManager は作成・更新とAIアシスタント利用が可能な権限ティア。
	RoleManager Role = "manager"
	// RoleAdmin は削除を含む全操作が可能な権限ティア。
	RoleAdmin Role = "admin"
)

// roleRank はロールの順序付け。数値が大きいほど強い権限を持つ。
var roleRank = map[Role]int{
	RoleViewer:  1,
	RoleManager: 2,
	RoleAdmin:   3,
}

// Valid はロールが定義済みのいずれかであるかを返す。
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast はロールがminと同等以上の権限を持つかを返す。
// 未定義のロールは常にfalseを返す。
func (r Role) AtLeast(min Role) bool {
	rr, ok := roleRank[r]
	if !ok {
		return false
	}
	mr, ok := roleRank[min]
	if !ok {
		return false
	}
	return rr >= mr
}

// ParseRole は文字列をRoleに変換する。未定義の場合はfalseを返す。
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	if !r.Valid() {
		return "", false
	}
	return r, true
}

// Credential は設定から読み込まれた1ユーザーの認証情報を表す。
// 起動時に構築され、プロセス実行中はイミュータブル。
type Credential struct {
	Username     string
	PasswordHash string // アルゴリズムタグ付き: bcrypt（$2a$/$2b$）または salt$sha256hex
	Role         Role
}

// Session はログイン済みユーザーのセッションを表す。
// 認証成功時にのみ生成され、ログアウトまたは期限切れで破棄される。
type Session struct {
	ID        string
	Username  string
	Role      Role
	Project   ProjectType // ナビゲーション中の現在プロジェクト
	ExpiresAt time.Time
	CreatedAt time.Time
}
