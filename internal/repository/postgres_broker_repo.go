package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/unidash/internal/model"
)

// PostgresBrokerRepo はPostgreSQLを使用したプロップブローカーリポジトリ。
type PostgresBrokerRepo struct {
	db *sql.DB
}

// NewPostgresBrokerRepo はPostgresBrokerRepoを生成する。
func NewPostgresBrokerRepo(db *sql.DB) *PostgresBrokerRepo {
	return &PostgresBrokerRepo{db: db}
}

// FindByID は指定IDのブローカーを取得する。見つからない場合はnilを返す。
func (r *PostgresBrokerRepo) FindByID(ctx context.Context, id string) (*model.Broker, error) {
	broker := &model.Broker{}
	var firm, notes sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, firm, active, notes, created_at, updated_at
		 FROM brokers WHERE id = $1`,
		id,
	).Scan(
		&broker.ID, &broker.Name, &firm, &broker.Active, &notes,
		&broker.CreatedAt, &broker.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ブローカーの取得に失敗しました: %w", err)
	}

	broker.Firm = nullStringValue(firm)
	broker.Notes = nullStringValue(notes)

	return broker, nil
}

// List はブローカー一覧をcreated_at降順で取得する。
// searchが非空の場合は名前またはファーム名の部分一致で絞り込む。
func (r *PostgresBrokerRepo) List(ctx context.Context, activeOnly bool, search string, limit, offset int) ([]*model.Broker, error) {
	query := `SELECT id, name, firm, active, notes, created_at, updated_at FROM brokers`
	args := []any{}
	var where []string
	if activeOnly {
		where = append(where, `active = true`)
	}
	if search != "" {
		args = append(args, likePattern(search))
		where = append(where, fmt.Sprintf(`(name ILIKE $%d OR firm ILIKE $%d)`, len(args), len(args)))
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ブローカー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var brokers []*model.Broker
	for rows.Next() {
		broker := &model.Broker{}
		var firm, notes sql.NullString

		if err := rows.Scan(
			&broker.ID, &broker.Name, &firm, &broker.Active, &notes,
			&broker.CreatedAt, &broker.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ブローカー一覧の読み取りに失敗しました: %w", err)
		}

		broker.Firm = nullStringValue(firm)
		broker.Notes = nullStringValue(notes)

		brokers = append(brokers, broker)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ブローカー一覧の走査に失敗しました: %w", err)
	}

	return brokers, nil
}

// Create はブローカーを作成する。
func (r *PostgresBrokerRepo) Create(ctx context.Context, broker *model.Broker) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO brokers (id, name, firm, active, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		broker.ID, broker.Name, nullString(broker.Firm), broker.Active,
		nullString(broker.Notes), broker.CreatedAt, broker.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ブローカーの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はブローカー情報を更新する。
func (r *PostgresBrokerRepo) Update(ctx context.Context, broker *model.Broker) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE brokers SET
		    name = $2, firm = $3, active = $4, notes = $5, updated_at = $6
		 WHERE id = $1`,
		broker.ID, broker.Name, nullString(broker.Firm), broker.Active,
		nullString(broker.Notes), broker.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ブローカーの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのブローカーを削除する。
// 関連するwalletsはCASCADE削除される。
func (r *PostgresBrokerRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM brokers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ブローカーの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ BrokerRepository = (*PostgresBrokerRepo)(nil)
