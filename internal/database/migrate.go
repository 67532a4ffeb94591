// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/hitoshi/unidash/internal/model"
)

//go:embed migrations/lead/*.sql migrations/cpa/*.sql migrations/prop/*.sql
var migrationsFS embed.FS

// NewMigrator は指定プロジェクト用のmigrateインスタンスを生成する。
// プロジェクトごとにスキーマが異なるため、マイグレーションはプロジェクト別の
// ディレクトリから読み込む。
func NewMigrator(project model.ProjectType, databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations/"+string(project))
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source for %s: %w", project, err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator for %s: %w", project, err)
	}

	return m, nil
}

// RunMigrations は指定プロジェクトのすべてのマイグレーションを適用する。
// すでに最新の場合はエラーなしで返る。
func RunMigrations(project model.ProjectType, databaseURL string) error {
	m, err := NewMigrator(project, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations for %s: %w", project, err)
	}

	return nil
}

// RunAllMigrations は3プロジェクトすべてのマイグレーションを適用する。
func RunAllMigrations(urls map[model.ProjectType]string) error {
	for _, project := range model.AllProjects() {
		url, ok := urls[project]
		if !ok {
			return fmt.Errorf("missing database URL for project %s", project)
		}
		if err := RunMigrations(project, url); err != nil {
			return err
		}
	}
	return nil
}
