package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/unidash/internal/model"
)

// PostgresActivityRepo はPostgreSQLを使用した監査ログリポジトリ。
// 3プロジェクトの各データベースが同名のactivity_logテーブルを持つため、
// 接続先データベースごとに1インスタンスを生成する。
type PostgresActivityRepo struct {
	db *sql.DB
}

// NewPostgresActivityRepo はPostgresActivityRepoを生成する。
func NewPostgresActivityRepo(db *sql.DB) *PostgresActivityRepo {
	return &PostgresActivityRepo{db: db}
}

// Insert は監査ログのエントリを追加する。
func (r *PostgresActivityRepo) Insert(ctx context.Context, entry *model.ActivityLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_log (id, username, action, entity, entity_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.Username, entry.Action,
		nullString(entry.Entity), nullString(entry.EntityID), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("監査ログの追加に失敗しました: %w", err)
	}
	return nil
}

// ListRecent は直近の監査ログをcreated_at降順で取得する。
func (r *PostgresActivityRepo) ListRecent(ctx context.Context, limit int) ([]*model.ActivityLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, action, entity, entity_id, created_at
		 FROM activity_log
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("監査ログ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []*model.ActivityLog
	for rows.Next() {
		entry := &model.ActivityLog{}
		var entity, entityID sql.NullString

		if err := rows.Scan(
			&entry.ID, &entry.Username, &entry.Action, &entity, &entityID, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("監査ログ一覧の読み取りに失敗しました: %w", err)
		}

		entry.Entity = nullStringValue(entity)
		entry.EntityID = nullStringValue(entityID)

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("監査ログ一覧の走査に失敗しました: %w", err)
	}

	return entries, nil
}

// DeleteOlderThan は指定日時より古いエントリを削除し、削除件数を返す。
func (r *PostgresActivityRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM activity_log WHERE created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("監査ログの削除に失敗しました: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("監査ログの削除件数の取得に失敗しました: %w", err)
	}

	return deleted, nil
}

// compile-time interface check
var _ ActivityLogRepository = (*PostgresActivityRepo)(nil)
