// Package cleanup は監査ログの自動削除ジョブを提供する。
// 保持期間（デフォルト30日）を超過したactivity_logのエントリを
// 3プロジェクトすべてのデータベースから日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/unidash/internal/model"
	"github.com/hitoshi/unidash/internal/repository"
)

// CleanupJob は保持期間を超過した監査ログの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	repos         map[model.ProjectType]repository.ActivityLogRepository
	logger        *slog.Logger
	RetentionDays int // 監査ログの保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は30日。
func NewCleanupJob(repos map[model.ProjectType]repository.ActivityLogRepository, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		repos:         repos,
		logger:        logger,
		RetentionDays: 30,
	}
}

// Run は保持期間を超過した監査ログを全プロジェクトから削除する。
// 1プロジェクトの削除失敗は他プロジェクトの削除を妨げない。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := time.Now().AddDate(0, 0, -j.RetentionDays)

	var totalDeleted int64
	var failed []string

	for _, project := range model.AllProjects() {
		repo, ok := j.repos[project]
		if !ok {
			continue
		}

		deleted, err := repo.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			j.logger.Error("監査ログクリーンアップの実行に失敗しました",
				slog.String("project", string(project)),
				slog.String("error", err.Error()),
				slog.Int("retention_days", j.RetentionDays),
			)
			failed = append(failed, string(project))
			continue
		}

		totalDeleted += deleted
		j.logger.Info("監査ログを削除しました",
			slog.String("project", string(project)),
			slog.Int64("deleted_count", deleted),
		)
	}

	duration := time.Since(start)
	j.logger.Info("監査ログクリーンアップジョブが完了しました",
		slog.Int64("total_deleted", totalDeleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	if len(failed) > 0 {
		return fmt.Errorf("監査ログクリーンアップに失敗したプロジェクト: %v", failed)
	}
	return nil
}

// Start はクリーンアップジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("監査ログクリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Int("retention_days", j.RetentionDays),
	)

	// 起動直後に1回実行
	if err := j.Run(ctx); err != nil {
		j.logger.Error("監査ログクリーンアップサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("監査ログクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("監査ログクリーンアップサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
