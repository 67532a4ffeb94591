package repository

import (
	"context"
	"testing"
)

// PostgresStatsRepoはStatsRepositoryインターフェースを満たすことを検証
func TestPostgresStatsRepo_ImplementsInterface(t *testing.T) {
	var _ StatsRepository = (*PostgresStatsRepo)(nil)
}

// 不正なテーブル名がクエリ実行前に拒否されることを検証
func TestPostgresStatsRepo_TableStats_RejectsInvalidTableName(t *testing.T) {
	repo := NewPostgresStatsRepo(nil)

	cases := []string{
		"leads; DROP TABLE leads",
		"leads--",
		"Leads",
		"1leads",
		"",
		`leads"`,
	}

	for _, table := range cases {
		t.Run(table, func(t *testing.T) {
			_, err := repo.TableStats(context.Background(), []string{table})
			if err == nil {
				t.Errorf("TableStats(%q) should reject invalid table name", table)
			}
		})
	}
}

// 正当なテーブル名がパターンを通過することを検証
func TestValidTableName_AcceptsKnownTables(t *testing.T) {
	for _, table := range []string{"leads", "clients", "wallet_transactions", "brokers", "wallets", "activity_log"} {
		if !validTableName.MatchString(table) {
			t.Errorf("table %q should match validTableName", table)
		}
	}
}
