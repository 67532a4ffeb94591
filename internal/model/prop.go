// Package model はドメインモデルを定義する。
package model

import "time"

// Broker はプロップブローカープロジェクトの1ブローカーを表す。
type Broker struct {
	ID        string
	Name      string
	Firm      string // 所属プロップファーム
	Active    bool
	Notes     string // 保存前にサニタイズされる自由記述
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Wallet はブローカーに紐付く1ウォレットを表す。
type Wallet struct {
	ID        string
	BrokerID  string
	Label     string
	Balance   float64
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BrokerPerformance はブローカーごとのウォレット残高集計を表す。
type BrokerPerformance struct {
	BrokerID    string
	BrokerName  string
	WalletCount int
	Balance     float64
}

// PropOverview はプロップブローカープロジェクトの全体サマリーを表す。
type PropOverview struct {
	TotalBalance  float64
	ActiveBrokers int
	Brokers       []BrokerPerformance
}
