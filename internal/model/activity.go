// Package model はドメインモデルを定義する。
package model

import "time"

// ActivityLog は監査ログの1エントリを表す。
// ログイン成功と状態変更操作（作成・更新・削除）で記録される。
type ActivityLog struct {
	ID        string
	Username  string
	Action    string // login, create, update, delete
	Entity    string // leads, clients, brokers, wallets等の対象テーブル
	EntityID  string
	CreatedAt time.Time
}
