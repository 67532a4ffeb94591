package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/unidash/internal/model"
)

// PostgresLeadRepo はPostgreSQLを使用したリードリポジトリ。
type PostgresLeadRepo struct {
	db *sql.DB
}

// NewPostgresLeadRepo はPostgresLeadRepoを生成する。
func NewPostgresLeadRepo(db *sql.DB) *PostgresLeadRepo {
	return &PostgresLeadRepo{db: db}
}

// FindByID は指定IDのリードを取得する。見つからない場合はnilを返す。
func (r *PostgresLeadRepo) FindByID(ctx context.Context, id string) (*model.Lead, error) {
	lead := &model.Lead{}
	var email, phone, source, notes sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone, source, state, priority, notes, created_at, updated_at
		 FROM leads WHERE id = $1`,
		id,
	).Scan(
		&lead.ID, &lead.Name, &email, &phone, &source,
		&lead.State, &lead.Priority, &notes,
		&lead.CreatedAt, &lead.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("リードの取得に失敗しました: %w", err)
	}

	lead.Email = nullStringValue(email)
	lead.Phone = nullStringValue(phone)
	lead.Source = nullStringValue(source)
	lead.Notes = nullStringValue(notes)

	return lead, nil
}

// List はリード一覧をcreated_at降順で取得する。
// stateが空文字列の場合は全状態を対象とする。
// searchが非空の場合は名前またはメールアドレスの部分一致で絞り込む。
func (r *PostgresLeadRepo) List(ctx context.Context, state model.LeadState, search string, limit, offset int) ([]*model.Lead, error) {
	query := `SELECT id, name, email, phone, source, state, priority, notes, created_at, updated_at
	          FROM leads`
	args := []any{}
	var where []string
	if state != "" {
		args = append(args, state)
		where = append(where, fmt.Sprintf(`state = $%d`, len(args)))
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
		return nil, fmt.Errorf("リード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var leads []*model.Lead
	for rows.Next() {
		lead := &model.Lead{}
		var email, phone, source, notes sql.NullString

		if err := rows.Scan(
			&lead.ID, &lead.Name, &email, &phone, &source,
			&lead.State, &lead.Priority, &notes,
			&lead.CreatedAt, &lead.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("リード一覧の読み取りに失敗しました: %w", err)
		}

		lead.Email = nullStringValue(email)
		lead.Phone = nullStringValue(phone)
		lead.Source = nullStringValue(source)
		lead.Notes = nullStringValue(notes)

		leads = append(leads, lead)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リード一覧の走査に失敗しました: %w", err)
	}

	return leads, nil
}

// Create はリードを作成する。
func (r *PostgresLeadRepo) Create(ctx context.Context, lead *model.Lead) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO leads (id, name, email, phone, source, state, priority, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		lead.ID, lead.Name, nullString(lead.Email), nullString(lead.Phone),
		nullString(lead.Source), lead.State, lead.Priority, nullString(lead.Notes),
		lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("リードの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はリード情報を更新する。
func (r *PostgresLeadRepo) Update(ctx context.Context, lead *model.Lead) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE leads SET
		    name = $2, email = $3, phone = $4, source = $5,
		    state = $6, priority = $7, notes = $8, updated_at = $9
		 WHERE id = $1`,
		lead.ID, lead.Name, nullString(lead.Email), nullString(lead.Phone),
		nullString(lead.Source), lead.State, lead.Priority, nullString(lead.Notes),
		lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("リードの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのリードを削除する。
func (r *PostgresLeadRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("リードの削除に失敗しました: %w", err)
	}
	return nil
}

// Overview は状態別件数と成約率の集計サマリーを取得する。
func (r *PostgresLeadRepo) Overview(ctx context.Context) (*model.LeadOverview, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM leads GROUP BY state`,
	)
	if err != nil {
		return nil, fmt.Errorf("リードサマリーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	overview := &model.LeadOverview{
		ByState: make(map[model.LeadState]int),
	}
	for rows.Next() {
		var state model.LeadState
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("リードサマリーの読み取りに失敗しました: %w", err)
		}
		overview.ByState[state] = count
		overview.Total += count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リードサマリーの走査に失敗しました: %w", err)
	}

	if overview.Total > 0 {
		overview.ConversionRate = float64(overview.ByState[model.LeadStateConverted]) / float64(overview.Total)
	}

	return overview, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// likePattern は部分一致検索用のILIKEパターンを生成する。
// 入力に含まれるワイルドカード文字はリテラルとして扱う。
func likePattern(search string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(search)
	return "%" + escaped + "%"
}

// compile-time interface check
var _ LeadRepository = (*PostgresLeadRepo)(nil)
