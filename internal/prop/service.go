// Package prop はプロップブローカープロジェクトのドメインロジックを提供する。
// ブローカーとウォレットの管理、残高集計を担当する。
package prop

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

// Service はプロップブローカープロジェクトのサービス層。
type Service struct {
	brokerRepo   repository.BrokerRepository
	walletRepo   repository.WalletRepository
	activityRepo repository.ActivityLogRepository
	sanitizer    NoteSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	brokerRepo repository.BrokerRepository,
	walletRepo repository.WalletRepository,
	activityRepo repository.ActivityLogRepository,
	sanitizer NoteSanitizer,
) *Service {
	return &Service{
		brokerRepo:   brokerRepo,
		walletRepo:   walletRepo,
		activityRepo: activityRepo,
		sanitizer:    sanitizer,
	}
}

const defaultListLimit = 50
const maxListLimit = 200

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// ListBrokers はブローカー一覧を取得する。
// searchが非空の場合は名前またはファーム名の部分一致で絞り込む。
func (s *Service) ListBrokers(ctx context.Context, activeOnly bool, search string, limit, offset int) ([]*model.Broker, error) {
	if offset < 0 {
		offset = 0
	}
	brokers, err := s.brokerRepo.List(ctx, activeOnly, strings.TrimSpace(search), normalizeLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("ブローカー一覧の取得に失敗しました: %w", err)
	}
	return brokers, nil
}

// GetBroker は指定IDのブローカーを取得する。
func (s *Service) GetBroker(ctx context.Context, id string) (*model.Broker, error) {
	broker, err := s.brokerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ブローカーの取得に失敗しました: %w", err)
	}
	if broker == nil {
		return nil, model.NewRecordNotFoundError("brokers", id)
	}
	return broker, nil
}

// CreateBrokerInput はブローカー作成の入力値。
type CreateBrokerInput struct {
	Name   string
	Firm   string
	Active bool
	Notes  string
}

// CreateBroker はブローカーを作成する。Notesは保存前にサニタイズされる。
func (s *Service) CreateBroker(ctx context.Context, username string, input CreateBrokerInput) (*model.Broker, error) {
	if input.Name == "" {
		return nil, model.NewValidationError("ブローカー名は必須です")
	}

	now := time.Now()
	broker := &model.Broker{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Firm:      input.Firm,
		Active:    input.Active,
		Notes:     s.sanitizer.Sanitize(input.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.brokerRepo.Create(ctx, broker); err != nil {
		return nil, fmt.Errorf("ブローカーの作成に失敗しました: %w", err)
	}

	s.recordActivity(ctx, username, "create", "brokers", broker.ID)

	return broker, nil
}

// UpdateBrokerInput はブローカー更新の入力値。nilのフィールドは変更しない。
type UpdateBrokerInput struct {
	Name   *string
	Firm   *string
	Active *bool
	Notes  *string
}

// UpdateBroker はブローカーを部分更新する。
func (s *Service) UpdateBroker(ctx context.Context, username, id string, input UpdateBrokerInput) (*model.Broker, error) {
	broker, err := s.brokerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ブローカーの取得に失敗しました: %w", err)
	}
	if broker == nil {
		return nil, model.NewRecordNotFoundError("brokers", id)
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, model.NewValidationError("ブローカー名は必須です")
		}
		broker.Name = *input.Name
	}
	if input.Firm != nil {
		broker.Firm = *input.Firm
	}
	if input.Active != nil {
		broker.Active = *input.Active
	}
	if input.Notes != nil {
		broker.Notes = s.sanitizer.Sanitize(*input.Notes)
	}
	broker.UpdatedAt = time.Now()

	if err := s.brokerRepo.Update(ctx, broker); err != nil {
		return nil, fmt.Errorf("ブローカーの更新に失敗しました: %w", err)
	}

	s.recordActivity(ctx, username, "update", "brokers", broker.ID)

	return broker, nil
}

// DeleteBroker は指定IDのブローカーを削除する。
// 関連するウォレットも合わせて削除される。
func (s *Service) DeleteBroker(ctx context.Context, username, id string) error {
	broker, err := s.brokerRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ブローカーの取得に失敗しました: %w", err)
	}
	if broker == nil {
		return model.NewRecordNotFoundError("brokers", id)
	}

	if err := s.brokerRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("ブローカーの削除に失敗しました: %w", err)
	}

	s.recordActivity(ctx, username, "delete", "brokers", id)

	return nil
}

// ListWallets は指定ブローカーのウォレット一覧を取得する。
func (s *Service) ListWallets(ctx context.Context, brokerID string) ([]*model.Wallet, error) {
	broker, err := s.brokerRepo.FindByID(ctx, brokerID)
	if err != nil {
		return nil, fmt.Errorf("ブローカーの取得に失敗しました: %w", err)
	}
	if broker == nil {
		return nil, model.NewRecordNotFoundError("brokers", brokerID)
	}

	wallets, err := s.walletRepo.ListByBrokerID(ctx, brokerID)
	if err != nil {
		return nil, fmt.Errorf("ウォレット一覧の取得に失敗しました: %w", err)
	}
	return wallets, nil
}

// AddWallet はブローカーにウォレットを追加する。
func (s *Service) AddWallet(ctx context.Context, username, brokerID, label string, balance float64, currency string) (*model.Wallet, error) {
	if balance < 0 {
		return nil, model.NewValidationError("残高は0以上で指定してください")
	}
	if currency == "" {
		currency = "USD"
	}

	broker, err := s.brokerRepo.FindByID(ctx, brokerID)
	if err != nil {
		return nil, fmt.Errorf("ブローカーの取得に失敗しました: %w", err)
	}
	if broker == nil {
		return nil, model.NewRecordNotFoundError("brokers", brokerID)
	}

	now := time.Now()
	wallet := &model.Wallet{
		ID:        uuid.New().String(),
		BrokerID:  brokerID,
		Label:     label,
		Balance:   balance,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		return nil, fmt.Errorf("ウォレットの作成に失敗しました: %w", err)
	}

	s.recordActivity(ctx, username, "create", "wallets", wallet.ID)

	return wallet, nil
}

// UpdateWalletBalance はウォレット残高を更新する。
func (s *Service) UpdateWalletBalance(ctx context.Context, username, walletID string, balance float64) error {
	if balance < 0 {
		return model.NewValidationError("残高は0以上で指定してください")
	}

	wallet, err := s.walletRepo.FindByID(ctx, walletID)
	if err != nil {
		return fmt.Errorf("ウォレットの取得に失敗しました: %w", err)
	}
	if wallet == nil {
		return model.NewRecordNotFoundError("wallets", walletID)
	}

	if err := s.walletRepo.UpdateBalance(ctx, walletID, balance); err != nil {
		return fmt.Errorf("ウォレット残高の更新に失敗しました: %w", err)
	}

	s.recordActivity(ctx, username, "update", "wallets", walletID)

	return nil
}

// DeleteWallet は指定IDのウォレットを削除する。
func (s *Service) DeleteWallet(ctx context.Context, username, walletID string) error {
	wallet, err := s.walletRepo.FindByID(ctx, walletID)
	if err != nil {
		return fmt.Errorf("ウォレットの取得に失敗しました: %w", err)
	}
	if wallet == nil {
		return model.NewRecordNotFoundError("wallets", walletID)
	}

	if err := s.walletRepo.DeleteByID(ctx, walletID); err != nil {
		return fmt.Errorf("ウォレットの削除に失敗しました: %w", err)
	}

	s.recordActivity(ctx, username, "delete", "wallets", walletID)

	return nil
}

// Overview はブローカー別のウォレット残高集計を取得する。
func (s *Service) Overview(ctx context.Context) (*model.PropOverview, error) {
	overview, err := s.walletRepo.Overview(ctx)
	if err != nil {
		return nil, fmt.Errorf("ブローカーサマリーの取得に失敗しました: %w", err)
	}
	return overview, nil
}

// recordActivity は監査ログを記録する。
// 監査ログの記録失敗は本体の操作を失敗させない。
func (s *Service) recordActivity(ctx context.Context, username, action, entity, entityID string) {
	entry := &model.ActivityLog{
		ID:        uuid.New().String(),
		Username:  username,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		CreatedAt: time.Now(),
	}
	if err := s.activityRepo.Insert(ctx, entry); err != nil {
		slog.Warn("failed to record activity log",
			"action", action,
			"entity", entity,
			"entity_id", entityID,
			"error", err,
		)
	}
}
