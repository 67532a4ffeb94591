// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/unidash/internal/model"
)

// LeadRepository はリードデータの永続化インターフェース。
type LeadRepository interface {
	// FindByID は指定IDのリードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Lead, error)

	// List はリード一覧をcreated_at降順で取得する。
	// stateが空文字列の場合は全状態を対象とする。
	// searchが非空の場合は名前またはメールアドレスの部分一致で絞り込む。
	List(ctx context.Context, state model.LeadState, search string, limit, offset int) ([]*model.Lead, error)

	// Create はリードを作成する。
	Create(ctx context.Context, lead *model.Lead) error

	// Update はリード情報を更新する。
	Update(ctx context.Context, lead *model.Lead) error

	// DeleteByID は指定IDのリードを削除する。
	DeleteByID(ctx context.Context, id string) error

	// Overview は状態別件数と成約率の集計サマリーを取得する。
	Overview(ctx context.Context) (*model.LeadOverview, error)
}

// ClientRepository はCPAクライアントデータの永続化インターフェース。
type ClientRepository interface {
	// FindByID は指定IDのクライアントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Client, error)

	// List はクライアント一覧をcreated_at降順で取得する。
	// activeOnlyがtrueの場合はアクティブなクライアントのみを対象とする。
	// searchが非空の場合は名前またはメールアドレスの部分一致で絞り込む。
	List(ctx context.Context, activeOnly bool, search string, limit, offset int) ([]*model.Client, error)

	// Create はクライアントを作成する。
	Create(ctx context.Context, client *model.Client) error

	// Update はクライアント情報を更新する。
	Update(ctx context.Context, client *model.Client) error

	// DeleteByID は指定IDのクライアントを削除する。
	// 関連するwallet_transactionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// TransactionRepository はウォレット取引データの永続化インターフェース。
type TransactionRepository interface {
	// ListByClientID は指定クライアントの取引一覧をcreated_at降順で取得する。
	ListByClientID(ctx context.Context, clientID string, limit int) ([]*model.WalletTransaction, error)

	// Create は取引を作成する。
	Create(ctx context.Context, tx *model.WalletTransaction) error

	// FinancialOverview は入出金合計・純残高・ROI・アクティブクライアント数を集計する。
	FinancialOverview(ctx context.Context) (*model.FinancialOverview, error)
}

// BrokerRepository はプロップブローカーデータの永続化インターフェース。
type BrokerRepository interface {
	// FindByID は指定IDのブローカーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Broker, error)

	// List はブローカー一覧をcreated_at降順で取得する。
	// searchが非空の場合は名前またはファーム名の部分一致で絞り込む。
	List(ctx context.Context, activeOnly bool, search string, limit, offset int) ([]*model.Broker, error)

	// Create はブローカーを作成する。
	Create(ctx context.Context, broker *model.Broker) error

	// Update はブローカー情報を更新する。
	Update(ctx context.Context, broker *model.Broker) error

	// DeleteByID は指定IDのブローカーを削除する。
	// 関連するwalletsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// WalletRepository はブローカーウォレットデータの永続化インターフェース。
type WalletRepository interface {
	// FindByID は指定IDのウォレットを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Wallet, error)

	// ListByBrokerID は指定ブローカーのウォレット一覧を取得する。
	ListByBrokerID(ctx context.Context, brokerID string) ([]*model.Wallet, error)

	// Create はウォレットを作成する。
	Create(ctx context.Context, wallet *model.Wallet) error

	// UpdateBalance はウォレット残高を更新する。
	UpdateBalance(ctx context.Context, id string, balance float64) error

	// DeleteByID は指定IDのウォレットを削除する。
	DeleteByID(ctx context.Context, id string) error

	// Overview はブローカー別のウォレット残高集計を取得する。
	Overview(ctx context.Context) (*model.PropOverview, error)
}

// ActivityLogRepository は監査ログの永続化インターフェース。
// 3プロジェクトの各データベースが同名のactivity_logテーブルを持つ。
type ActivityLogRepository interface {
	// Insert は監査ログのエントリを追加する。
	Insert(ctx context.Context, entry *model.ActivityLog) error

	// ListRecent は直近の監査ログをcreated_at降順で取得する。
	ListRecent(ctx context.Context, limit int) ([]*model.ActivityLog, error)

	// DeleteOlderThan は指定日時より古いエントリを削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// TableStat はテーブルごとの行数を表す。
type TableStat struct {
	Table string
	Rows  int64
}

// StatsRepository はデータベース統計情報の取得インターフェース。
type StatsRepository interface {
	// TableStats は指定テーブル群の行数を取得する。
	TableStats(ctx context.Context, tables []string) ([]TableStat, error)

	// Ping はデータベースへの接続を確認する。
	Ping(ctx context.Context) error
}
