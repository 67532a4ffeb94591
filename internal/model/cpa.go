// Package model はドメインモデルを定義する。
package model

import "time"

// Client はCPAプロジェクトの1クライアントを表す。
type Client struct {
	ID        string
	Name      string
	Email     string
	Broker    string // 契約先ブローカー名
	Platform  string // 取引プラットフォーム（MT4, MT5等）
	Deposit   float64
	Active    bool
	Notes     string // 保存前にサニタイズされる自由記述
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TransactionType はウォレット取引の種別を表す。
type TransactionType string

const (
	// TransactionDeposit は入金取引。
	TransactionDeposit TransactionType = "deposit"
	// TransactionWithdrawal は出金取引。
	TransactionWithdrawal TransactionType = "withdrawal"
)

// WalletTransaction はCPAプロジェクトのウォレット取引を表す。
type WalletTransaction struct {
	ID        string
	ClientID  string
	Type      TransactionType
	Amount    float64
	Currency  string
	CreatedAt time.Time
}

// FinancialOverview はCPAプロジェクトの財務サマリーを表す。
type FinancialOverview struct {
	TotalDeposits    float64
	TotalWithdrawals float64
	NetBalance       float64
	ActiveClients    int
	ROI              float64 // (deposits - withdrawals) / withdrawals（出金0の場合は0）
}
