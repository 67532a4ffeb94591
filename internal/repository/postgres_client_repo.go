package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/unidash/internal/model"
)

// PostgresClientRepo はPostgreSQLを使用したCPAクライアントリポジトリ。
type PostgresClientRepo struct {
	db *sql.DB
}

// NewPostgresClientRepo はPostgresClientRepoを生成する。
func NewPostgresClientRepo(db *sql.DB) *PostgresClientRepo {
	return &PostgresClientRepo{db: db}
}

// FindByID は指定IDのクライアントを取得する。見つからない場合はnilを返す。
func (r *PostgresClientRepo) FindByID(ctx context.Context, id string) (*model.Client, error) {
	client := &model.Client{}
	var email, broker, platform, notes sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, broker, platform, deposit, active, notes, created_at, updated_at
		 FROM clients WHERE id = $1`,
		id,
	).Scan(
		&client.ID, &client.Name, &email, &broker, &platform,
		&client.Deposit, &client.Active, &notes,
		&client.CreatedAt, &client.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("クライアントの取得に失敗しました: %w", err)
	}

	client.Email = nullStringValue(email)
	client.Broker = nullStringValue(broker)
	client.Platform = nullStringValue(platform)
	client.Notes = nullStringValue(notes)

	return client, nil
}

// List はクライアント一覧をcreated_at降順で取得する。
// activeOnlyがtrueの場合はアクティブなクライアントのみを対象とする。
// searchが非空の場合は名前またはメールアドレスの部分一致で絞り込む。
func (r *PostgresClientRepo) List(ctx context.Context, activeOnly bool, search string, limit, offset int) ([]*model.Client, error) {
	query := `SELECT id, name, email, broker, platform, deposit, active, notes, created_at, updated_at
	          FROM clients`
	args := []any{}
	var where []string
	if activeOnly {
		where = append(where, `active = true`)
	}
	if search != "" {
		args = append(args, likePattern(search))
		where = append(where, fmt.Sprintf(`(name ILIKE $%d OR email ILIKE $%d)`, len(args), len(args)))
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("クライアント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var clients []*model.Client
	for rows.Next() {
		client := &model.Client{}
		var email, broker, platform, notes sql.NullString

		if err := rows.Scan(
			&client.ID, &client.Name, &email, &broker, &platform,
			&client.Deposit, &client.Active, &notes,
			&client.CreatedAt, &client.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("クライアント一覧の読み取りに失敗しました: %w", err)
		}

		client.Email = nullStringValue(email)
		client.Broker = nullStringValue(broker)
		client.Platform = nullStringValue(platform)
		client.Notes = nullStringValue(notes)

		clients = append(clients, client)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("クライアント一覧の走査に失敗しました: %w", err)
	}

	return clients, nil
}

// Create はクライアントを作成する。
func (r *PostgresClientRepo) Create(ctx context.Context, client *model.Client) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (id, name, email, broker, platform, deposit, active, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		client.ID, client.Name, nullString(client.Email), nullString(client.Broker),
		nullString(client.Platform), client.Deposit, client.Active, nullString(client.Notes),
		client.CreatedAt, client.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("クライアントの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はクライアント情報を更新する。
func (r *PostgresClientRepo) Update(ctx context.Context, client *model.Client) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE clients SET
		    name = $2, email = $3, broker = $4, platform = $5,
		    deposit = $6, active = $7, notes = $8, updated_at = $9
		 WHERE id = $1`,
		client.ID, client.Name, nullString(client.Email), nullString(client.Broker),
		nullString(client.Platform), client.Deposit, client.Active, nullString(client.Notes),
		client.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("クライアントの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのクライアントを削除する。
// 関連するwallet_transactionsはCASCADE削除される。
func (r *PostgresClientRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("クライアントの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ClientRepository = (*PostgresClientRepo)(nil)
