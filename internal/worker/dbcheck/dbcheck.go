// Package dbcheck は3プロジェクトのデータベース接続を定期確認するバッチジョブを提供する。
// 確認結果はPrometheusゲージとしてエクスポートされる。
package dbcheck

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/unidash/internal/model"
	"github.com/hitoshi/unidash/internal/repository"
)

// StatusRecorder はデータベース接続状態の記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type StatusRecorder interface {
	SetDBUp(project string, up bool)
}

// CheckConfig は接続確認ジョブの設定パラメータ。
type CheckConfig struct {
	// Interval は確認の実行間隔（デフォルト: 1分）。
	Interval time.Duration
	// PingTimeout は1データベースあたりの確認タイムアウト（デフォルト: 5秒）。
	PingTimeout time.Duration
}

// DefaultCheckConfig はデフォルトの接続確認設定を返す。
func DefaultCheckConfig() CheckConfig {
	return CheckConfig{
		Interval:    time.Minute,
		PingTimeout: 5 * time.Second,
	}
}

// CheckJob はデータベース接続確認の定期バッチジョブ。
// 1データベースの障害は他データベースの確認を妨げない。
type CheckJob struct {
	repos    map[model.ProjectType]repository.StatsRepository
	recorder StatusRecorder
	logger   *slog.Logger
	config   CheckConfig
}

// NewCheckJob はCheckJobの新しいインスタンスを生成する。
func NewCheckJob(
	repos map[model.ProjectType]repository.StatsRepository,
	recorder StatusRecorder,
	logger *slog.Logger,
	config CheckConfig,
) *CheckJob {
	return &CheckJob{
		repos:    repos,
		recorder: recorder,
		logger:   logger,
		config:   config,
	}
}

// Start は接続確認ジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CheckJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.logger.Info("データベース接続確認ジョブを開始しました",
		slog.Duration("interval", j.config.Interval),
		slog.Duration("ping_timeout", j.config.PingTimeout),
	)

	// 起動直後に1回実行
	j.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("データベース接続確認ジョブを停止しました")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce は全プロジェクトのデータベース接続を1回確認する。
func (j *CheckJob) RunOnce(ctx context.Context) {
	for _, project := range model.AllProjects() {
		repo, ok := j.repos[project]
		if !ok {
			continue
		}

		pingCtx, cancel := context.WithTimeout(ctx, j.config.PingTimeout)
		err := repo.Ping(pingCtx)
		cancel()

		up := err == nil
		j.recorder.SetDBUp(string(project), up)

		if err != nil {
			j.logger.Warn("データベース接続の確認に失敗しました",
				slog.String("project", string(project)),
				slog.String("error", err.Error()),
			)
		}
	}
}
