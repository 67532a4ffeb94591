package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

// PostgresStatsRepo はPostgreSQLを使用した統計情報リポジトリ。
type PostgresStatsRepo struct {
	db *sql.DB
}

// NewPostgresStatsRepo はPostgresStatsRepoを生成する。
func NewPostgresStatsRepo(db *sql.DB) *PostgresStatsRepo {
	return &PostgresStatsRepo{db: db}
}

// validTableName はテーブル名として許可するパターン。
// テーブル名はプレースホルダにできないため、識別子として検証してから埋め込む。
var validTableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// TableStats は指定テーブル群の行数を取得する。
func (r *PostgresStatsRepo) TableStats(ctx context.Context, tables []string) ([]TableStat, error) {
	stats := make([]TableStat, 0, len(tables))
	for _, table := range tables {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("不正なテーブル名です: %q", table)
		}

		var count int64
		query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)
		if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return nil, fmt.Errorf("テーブル %s の行数取得に失敗しました: %w", table, err)
		}

		stats = append(stats, TableStat{Table: table, Rows: count})
	}
	return stats, nil
}

// Ping はデータベースへの接続を確認する。
func (r *PostgresStatsRepo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("データベースへの接続確認に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ StatsRepository = (*PostgresStatsRepo)(nil)
