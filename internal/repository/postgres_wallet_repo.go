package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/unidash/internal/model"
)

// PostgresWalletRepo はPostgreSQLを使用したブローカーウォレットリポジトリ。
type PostgresWalletRepo struct {
	db *sql.DB
}

// NewPostgresWalletRepo はPostgresWalletRepoを生成する。
func NewPostgresWalletRepo(db *sql.DB) *PostgresWalletRepo {
	return &PostgresWalletRepo{db: db}
}

// FindByID は指定IDのウォレットを取得する。見つからない場合はnilを返す。
func (r *PostgresWalletRepo) FindByID(ctx context.Context, id string) (*model.Wallet, error) {
	wallet := &model.Wallet{}
	var label sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, broker_id, label, balance, currency, created_at, updated_at
		 FROM wallets WHERE id = $1`,
		id,
	).Scan(
		&wallet.ID, &wallet.BrokerID, &label, &wallet.Balance, &wallet.Currency,
		&wallet.CreatedAt, &wallet.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ウォレットの取得に失敗しました: %w", err)
	}

	wallet.Label = nullStringValue(label)

	return wallet, nil
}

// ListByBrokerID は指定ブローカーのウォレット一覧を取得する。
func (r *PostgresWalletRepo) ListByBrokerID(ctx context.Context, brokerID string) ([]*model.Wallet, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, broker_id, label, balance, currency, created_at, updated_at
		 FROM wallets
		 WHERE broker_id = $1
		 ORDER BY created_at ASC`,
		brokerID,
	)
	if err != nil {
		return nil, fmt.Errorf("ウォレット一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var wallets []*model.Wallet
	for rows.Next() {
		wallet := &model.Wallet{}
		var label sql.NullString

		if err := rows.Scan(
			&wallet.ID, &wallet.BrokerID, &label, &wallet.Balance, &wallet.Currency,
			&wallet.CreatedAt, &wallet.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ウォレット一覧の読み取りに失敗しました: %w", err)
		}

		wallet.Label = nullStringValue(label)

		wallets = append(wallets, wallet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ウォレット一覧の走査に失敗しました: %w", err)
	}

	return wallets, nil
}

// Create はウォレットを作成する。
func (r *PostgresWalletRepo) Create(ctx context.Context, wallet *model.Wallet) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wallets (id, broker_id, label, balance, currency, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		wallet.ID, wallet.BrokerID, nullString(wallet.Label), wallet.Balance,
		wallet.Currency, wallet.CreatedAt, wallet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ウォレットの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateBalance はウォレット残高を更新する。
func (r *PostgresWalletRepo) UpdateBalance(ctx context.Context, id string, balance float64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE wallets SET balance = $2, updated_at = now() WHERE id = $1`,
		id, balance,
	)
	if err != nil {
		return fmt.Errorf("ウォレット残高の更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのウォレットを削除する。
func (r *PostgresWalletRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM wallets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ウォレットの削除に失敗しました: %w", err)
	}
	return nil
}

// Overview はブローカー別のウォレット残高集計を取得する。
// 残高合計はアクティブなブローカーのウォレットのみを対象とする。
func (r *PostgresWalletRepo) Overview(ctx context.Context) (*model.PropOverview, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.id, b.name, COUNT(w.id), COALESCE(SUM(w.balance), 0)
		 FROM brokers b
		 LEFT JOIN wallets w ON b.id = w.broker_id
		 WHERE b.active = true
		 GROUP BY b.id, b.name
		 ORDER BY b.name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("ブローカーサマリーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	overview := &model.PropOverview{}
	for rows.Next() {
		perf := model.BrokerPerformance{}
		if err := rows.Scan(&perf.BrokerID, &perf.BrokerName, &perf.WalletCount, &perf.Balance); err != nil {
			return nil, fmt.Errorf("ブローカーサマリーの読み取りに失敗しました: %w", err)
		}
		overview.Brokers = append(overview.Brokers, perf)
		overview.TotalBalance += perf.Balance
		overview.ActiveBrokers++
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ブローカーサマリーの走査に失敗しました: %w", err)
	}

	return overview, nil
}

// compile-time interface check
var _ WalletRepository = (*PostgresWalletRepo)(nil)
