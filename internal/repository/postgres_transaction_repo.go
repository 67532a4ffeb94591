package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/unidash/internal/model"
)

// PostgresTransactionRepo はPostgreSQLを使用したウォレット取引リポジトリ。
type PostgresTransactionRepo struct {
	db *sql.DB
}

// NewPostgresTransactionRepo はPostgresTransactionRepoを生成する。
func NewPostgresTransactionRepo(db *sql.DB) *PostgresTransactionRepo {
	return &PostgresTransactionRepo{db: db}
}

// ListByClientID は指定クライアントの取引一覧をcreated_at降順で取得する。
func (r *PostgresTransactionRepo) ListByClientID(ctx context.Context, clientID string, limit int) ([]*model.WalletTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, client_id, type, amount, currency, created_at
		 FROM wallet_transactions
		 WHERE client_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		clientID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("取引一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var txs []*model.WalletTransaction
	for rows.Next() {
		tx := &model.WalletTransaction{}
		if err := rows.Scan(
			&tx.ID, &tx.ClientID, &tx.Type, &tx.Amount, &tx.Currency, &tx.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("取引一覧の読み取りに失敗しました: %w", err)
		}
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("取引一覧の走査に失敗しました: %w", err)
	}

	return txs, nil
}

// Create は取引を作成する。
func (r *PostgresTransactionRepo) Create(ctx context.Context, tx *model.WalletTransaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wallet_transactions (id, client_id, type, amount, currency, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		tx.ID, tx.ClientID, tx.Type, tx.Amount, tx.Currency, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("取引の作成に失敗しました: %w", err)
	}
	return nil
}

// FinancialOverview は入出金合計・純残高・ROI・アクティブクライアント数を集計する。
func (r *PostgresTransactionRepo) FinancialOverview(ctx context.Context) (*model.FinancialOverview, error) {
	overview := &model.FinancialOverview{}

	err := r.db.QueryRowContext(ctx,
		`SELECT
		    COALESCE(SUM(amount) FILTER (WHERE type = 'deposit'), 0),
		    COALESCE(SUM(amount) FILTER (WHERE type = 'withdrawal'), 0)
		 FROM wallet_transactions`,
	).Scan(&overview.TotalDeposits, &overview.TotalWithdrawals)
	if err != nil {
		return nil, fmt.Errorf("財務サマリーの取得に失敗しました: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM clients WHERE active = true`,
	).Scan(&overview.ActiveClients)
	if err != nil {
		return nil, fmt.Errorf("アクティブクライアント数の取得に失敗しました: %w", err)
	}

	overview.NetBalance = overview.TotalDeposits - overview.TotalWithdrawals
	if overview.TotalWithdrawals > 0 {
		overview.ROI = overview.NetBalance / overview.TotalWithdrawals
	}

	return overview, nil
}

// compile-time interface check
var _ TransactionRepository = (*PostgresTransactionRepo)(nil)
