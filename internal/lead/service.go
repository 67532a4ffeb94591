// Package lead はリード管理プロジェクトのドメインロジックを提供する。
package lead

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/unidash/internal/model"
	"github.com/hitoshi/unidash/internal/repository"
)

// NoteSanitizer は自由記述フィールドのサニタイズ機能のインターフェース。
type NoteSanitizer interface {
	Sanitize(raw string) string
}

// Service はリード管理のサービス層。
// リードのCRUD、集計サマリー取得のビジネスロジックを提供する。
type Service struct {
	leadRepo     repository.LeadRepository
	activityRepo repository.ActivityLogRepository
	sanitizer    NoteSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	leadRepo repository.LeadRepository,
	activityRepo repository.ActivityLogRepository,
	sanitizer NoteSanitizer,
) *Service {
	return &Service{
		leadRepo:     leadRepo,
		activityRepo: activityRepo,
		sanitizer:    sanitizer,
	}
}

// defaultListLimit は一覧取得のデフォルト件数。
const defaultListLimit = 50

// maxListLimit は一覧取得の最大件数。
const maxListLimit = 200

// normalizeLimit は一覧取得のlimitをデフォルト値と上限で正規化する。
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// List はリード一覧を取得する。
// stateが空文字列の場合は全状態を対象とする。
// searchが非空の場合は名前またはメールアドレスの部分一致で絞り込む。
func (s *Service) List(ctx context.Context, state model.LeadState, search string, limit, offset int) ([]*model.Lead, error) {
	if state != "" && !model.ValidLeadState(state) {
		return nil, model.NewValidationError(fmt.Sprintf("不正なリード状態です: %s", state))
	}
	if offset < 0 {
		offset = 0
	}

	leads, err := s.leadRepo.List(ctx, state, strings.TrimSpace(search), normalizeLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("リード一覧の取得に失敗しました: %w", err)
	}
	return leads, nil
}

// Get は指定IDのリードを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Lead, error) {
	lead, err := s.leadRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("リードの取得に失敗しました: %w", err)
	}
	if lead == nil {
		return nil, model.NewRecordNotFoundError("leads", id)
	}
	return lead, nil
}

// CreateInput はリード作成の入力値。
type CreateInput struct {
	Name     string
	Email    string
	Phone    string
	Source   string
	State    model.LeadState
	Priority int
	Notes    string
}

// Create はリードを作成する。
// Stateが空の場合はnew、Priorityが0の場合は1を採用する。
// Notesは保存前にサニタイズされる。
func (s *Service) Create(ctx context.Context, username string, input CreateInput) (*model.Lead, error) {
	if input.Name == "" {
		return nil, model.NewValidationError("リード名は必須です")
	}
	if input.State == "" {
		input.State = model.LeadStateNew
	}
	if !model.ValidLeadState(input.State) {
		return nil, model.NewValidationError(fmt.Sprintf("不正なリード状態です: %s", input.State))
	}
	if input.Priority == 0 {
		input.Priority = 1
	}
	if input.Priority < 1 || input.Priority > 3 {
		return nil, model.NewValidationError("優先度は1〜3で指定してください")
	}

	now := time.Now()
	lead := &model.Lead{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Email:     input.Email,
		Phone:     input.Phone,
		Source:    input.Source,
		State:     input.State,
		Priority:  input.Priority,
		Notes:     s.sanitizer.Sanitize(input.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.leadRepo.Create(ctx, lead); err != nil {
		return nil, fmt.Errorf("リードの作成に失敗しました: %w", err)
	}

	s.recordActivity(ctx, username, "create", lead.ID)

	return lead, nil
}

// UpdateInput はリード更新の入力値。nilのフィールドは変更しない。
type UpdateInput struct {
	Name     *string
	Email    *string
	Phone    *string
	Source   *string
	State    *model.LeadState
	Priority *int
	Notes    *string
}

// Update はリードを部分更新する。
func (s *Service) Update(ctx context.Context, username, id string, input UpdateInput) (*model.Lead, error) {
	lead, err := s.leadRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("リードの取得に失敗しました: %w", err)
	}
	if lead == nil {
		return nil, model.NewRecordNotFoundError("leads", id)
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, model.NewValidationError("リード名は必須です")
		}
		lead.Name = *input.Name
	}
	if input.Email != nil {
		lead.Email = *input.Email
	}
	if input.Phone != nil {
		lead.Phone = *input.Phone
	}
	if input.Source != nil {
		lead.Source = *input.Source
	}
	if input.State != nil {
		if !model.ValidLeadState(*input.State) {
			return nil, model.NewValidationError(fmt.Sprintf("不正なリード状態です: %s", *input.State))
		}
		lead.State = *input.State
	}
	if input.Priority != nil {
		if *input.Priority < 1 || *input.Priority > 3 {
			return nil, model.NewValidationError("優先度は1〜3で指定してください")
		}
		lead.Priority = *input.Priority
	}
	if input.Notes != nil {
		lead.Notes = s.sanitizer.Sanitize(*input.Notes)
	}
	lead.UpdatedAt = time.Now()

	if err := s.leadRepo.Update(ctx, lead); err != nil {
		return nil, fmt.Errorf("リードの更新に失敗しました: %w", err)
	}

	s.recordActivity(ctx, username, "update", lead.ID)

	return lead, nil
}

// Delete は指定IDのリードを削除する。
func (s *Service) Delete(ctx context.Context, username, id string) error {
	lead, err := s.leadRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("リードの取得に失敗しました: %w", err)
	}
	if lead == nil {
		return model.NewRecordNotFoundError("leads", id)
	}

	if err := s.leadRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("リードの削除に失敗しました: %w", err)
	}

	s.recordActivity(ctx, username, "delete", id)

	return nil
}

// Overview は状態別件数と成約率の集計サマリーを取得する。
func (s *Service) Overview(ctx context.Context) (*model.LeadOverview, error) {
	overview, err := s.leadRepo.Overview(ctx)
	if err != nil {
		return nil, fmt.Errorf("リードサマリーの取得に失敗しました: %w", err)
	}
	return overview, nil
}

// recordActivity は監査ログを記録する。
// 監査ログの記録失敗は本体の操作を失敗させない。
func (s *Service) recordActivity(ctx context.Context, username, action, entityID string) {
	entry := &model.ActivityLog{
		ID:        uuid.New().String(),
		Username:  username,
		Action:    action,
		Entity:    "leads",
		EntityID:  entityID,
		CreatedAt: time.Now(),
	}
	if err := s.activityRepo.Insert(ctx, entry); err != nil {
		slog.Warn("failed to record activity log",
			"action", action,
			"entity", "leads",
			"entity_id", entityID,
			"error", err,
		)
	}
}
