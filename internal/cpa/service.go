// Package cpa はCPAプロジェクトのドメインロジックを提供する。
// クライアント管理、ウォレット取引の記録、財務サマリーの集計を担当する。
package cpa

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

// Service はCPAプロジェクトのサービス層。
type Service struct {
	clientRepo   repository.ClientRepository
	txRepo       repository.TransactionRepository
	activityRepo repository.ActivityLogRepository
	sanitizer    NoteSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	clientRepo repository.ClientRepository,
	txRepo repository.TransactionRepository,
	activityRepo repository.ActivityLogRepository,
	sanitizer NoteSanitizer,
) *Service {
	return &Service{
		clientRepo:   clientRepo,
		txRepo:       txRepo,
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

// ListClients はクライアント一覧を取得する。
// searchが非空の場合は名前またはメールアドレスの部分一致で絞り込む。
func (s *Service) ListClients(ctx context.Context, activeOnly bool, search string, limit, offset int) ([]*model.Client, error) {
	if offset < 0 {
		offset = 0
	}
	clients, err := s.clientRepo.List(ctx, activeOnly, strings.TrimSpace(search), normalizeLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("クライアント一覧の取得に失敗しました: %w", err)
	}
	return clients, nil
}

// GetClient は指定IDのクライアントを取得する。
func (s *Service) GetClient(ctx context.Context, id string) (*model.Client, error) {
	client, err := s.clientRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("クライアントの取得に失敗しました: %w", err)
	}
	if client == nil {
		return nil, model.NewRecordNotFoundError("clients", id)
	}
	return client, nil
}

// CreateClientInput はクライアント作成の入力値。
type CreateClientInput struct {
	Name     string
	Email    string
	Broker   string
	Platform string
	Deposit  float64
	Active   bool
	Notes    string
}

// CreateClient はクライアントを作成する。Notesは保存前にサニタイズされる。
func (s *Service) CreateClient(ctx context.Context, username string, input CreateClientInput) (*model.Client, error) {
	if input.Name == "" {
		return nil, model.NewValidationError("クライアント名は必須です")
	}
	if input.Deposit < 0 {
		return nil, model.NewValidationError("入金額は0以上で指定してください")
	}

	now := time.Now()
	client := &model.Client{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Email:     input.Email,
		Broker:    input.Broker,
		Platform:  input.Platform,
		Deposit:   input.Deposit,
		Active:    input.Active,
		Notes:     s.sanitizer.Sanitize(input.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, fmt.Errorf("クライアントの作成に失敗しました: %w", err)
	}

	s.recordActivity(ctx, username, "create", "clients", client.ID)

	return client, nil
}

// UpdateClientInput はクライアント更新の入力値。nilのフィールドは変更しない。
type UpdateClientInput struct {
	Name     *string
	Email    *string
	Broker   *string
	Platform *string
	Deposit  *float64
	Active   *bool
	Notes    *string
}

// UpdateClient はクライアントを部分更新する。
func (s *Service) UpdateClient(ctx context.Context, username, id string, input UpdateClientInput) (*model.Client, error) {
	client, err := s.clientRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("クライアントの取得に失敗しました: %w", err)
	}
	if client == nil {
		return nil, model.NewRecordNotFoundError("clients", id)
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, model.NewValidationError("クライアント名は必須です")
		}
		client.Name = *input.Name
	}
	if input.Email != nil {
		client.Email = *input.Email
	}
	if input.Broker != nil {
		client.Broker = *input.Broker
	}
	if input.Platform != nil {
		client.Platform = *input.Platform
	}
	if input.Deposit != nil {
		if *input.Deposit < 0 {
			return nil, model.NewValidationError("入金額は0以上で指定してください")
		}
		client.Deposit = *input.Deposit
	}
	if input.Active != nil {
		client.Active = *input.Active
	}
	if input.Notes != nil {
		client.Notes = s.sanitizer.Sanitize(*input.Notes)
	}
	client.UpdatedAt = time.Now()

	if err := s.clientRepo.Update(ctx, client); err != nil {
		return nil, fmt.Errorf("クライアントの更新に失敗しました: %w", err)
	}

	s.recordActivity(ctx, username, "update", "clients", client.ID)

	return client, nil
}

// DeleteClient は指定IDのクライアントを削除する。
func (s *Service) DeleteClient(ctx context.Context, username, id string) error {
	client, err := s.clientRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("クライアントの取得に失敗しました: %w", err)
	}
	if client == nil {
		return model.NewRecordNotFoundError("clients", id)
	}

	if err := s.clientRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("クライアントの削除に失敗しました: %w", err)
	}

	s.recordActivity(ctx, username, "delete", "clients", id)

	return nil
}

// RecordTransaction はウォレット取引を記録する。
// 取引種別はdepositまたはwithdrawal、金額は正の値のみを受け付ける。
func (s *Service) RecordTransaction(ctx context.Context, username, clientID string, txType model.TransactionType, amount float64, currency string) (*model.WalletTransaction, error) {
	if txType != model.TransactionDeposit && txType != model.TransactionWithdrawal {
		return nil, model.NewValidationError(fmt.Sprintf("不正な取引種別です: %s", txType))
	}
	if amount <= 0 {
		return nil, model.NewValidationError("取引金額は正の値で指定してください")
	}
	if currency == "" {
		currency = "USD"
	}

	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("クライアントの取得に失敗しました: %w", err)
	}
	if client == nil {
		return nil, model.NewRecordNotFoundError("clients", clientID)
	}

	tx := &model.WalletTransaction{
		ID:        uuid.New().String(),
		ClientID:  clientID,
		Type:      txType,
		Amount:    amount,
		Currency:  currency,
		CreatedAt: time.Now(),
	}

	if err := s.txRepo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("取引の作成に失敗しました: %w", err)
	}

	s.recordActivity(ctx, username, "create", "wallet_transactions", tx.ID)

	return tx, nil
}

// ListTransactions は指定クライアントの取引一覧を取得する。
func (s *Service) ListTransactions(ctx context.Context, clientID string, limit int) ([]*model.WalletTransaction, error) {
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("クライアントの取得に失敗しました: %w", err)
	}
	if client == nil {
		return nil, model.NewRecordNotFoundError("clients", clientID)
	}

	txs, err := s.txRepo.ListByClientID(ctx, clientID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("取引一覧の取得に失敗しました: %w", err)
	}
	return txs, nil
}

// FinancialOverview は財務サマリーを取得する。
func (s *Service) FinancialOverview(ctx context.Context) (*model.FinancialOverview, error) {
	overview, err := s.txRepo.FinancialOverview(ctx)
	if err != nil {
		return nil, fmt.Errorf("財務サマリーの取得に失敗しました: %w", err)
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
