package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/unidash/internal/middleware"
	"github.com/hitoshi/unidash/internal/model"
	"github.com/hitoshi/unidash/internal/prop"
)

// PropServiceInterface はプロップブローカーハンドラーが必要とするサービスインターフェース。
type PropServiceInterface interface {
	ListBrokers(ctx context.Context, activeOnly bool, search string, limit, offset int) ([]*model.Broker, error)
	GetBroker(ctx context.Context, id string) (*model.Broker, error)
	CreateBroker(ctx context.Context, username string, input prop.CreateBrokerInput) (*model.Broker, error)
	UpdateBroker(ctx context.Context, username, id string, input prop.UpdateBrokerInput) (*model.Broker, error)
	DeleteBroker(ctx context.Context, username, id string) error
	ListWallets(ctx context.Context, brokerID string) ([]*model.Wallet, error)
	AddWallet(ctx context.Context, username, brokerID, label string, balance float64, currency string) (*model.Wallet, error)
	UpdateWalletBalance(ctx context.Context, username, walletID string, balance float64) error
	DeleteWallet(ctx context.Context, username, walletID string) error
	Overview(ctx context.Context) (*model.PropOverview, error)
}

// BrokerHandler はプロップブローカー管理のHTTPハンドラー。
type BrokerHandler struct {
	service PropServiceInterface
}

// NewBrokerHandler はBrokerHandlerを生成する。
func NewBrokerHandler(service PropServiceInterface) *BrokerHandler {
	return &BrokerHandler{service: service}
}

// brokerRequest はブローカー作成・更新リクエストのボディ。
type brokerRequest struct {
	Name   *string `json:"name"`
	Firm   *string `json:"firm"`
	Active *bool   `json:"active"`
	Notes  *string `json:"notes"`
}

// walletRequest はウォレット追加・更新リクエストのボディ。
type walletRequest struct {
	Label    string  `json:"label"`
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}

// brokerResponse はブローカー情報のAPIレスポンス。
type brokerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Firm      string    `json:"firm"`
	Active    bool      `json:"active"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toBrokerResponse(b *model.Broker) brokerResponse {
	return brokerResponse{
		ID:        b.ID,
		Name:      b.Name,
		Firm:      b.Firm,
		Active:    b.Active,
		Notes:     b.Notes,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

// walletResponse はウォレット情報のAPIレスポンス。
type walletResponse struct {
	ID        string    `json:"id"`
	BrokerID  string    `json:"broker_id"`
	Label     string    `json:"label"`
	Balance   float64   `json:"balance"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toWalletResponse(wallet *model.Wallet) walletResponse {
	return walletResponse{
		ID:        wallet.ID,
		BrokerID:  wallet.BrokerID,
		Label:     wallet.Label,
		Balance:   wallet.Balance,
		Currency:  wallet.Currency,
		CreatedAt: wallet.CreatedAt,
		UpdatedAt: wallet.UpdatedAt,
	}
}

// brokerPerformanceResponse はブローカーごとの残高集計のAPIレスポンス。
type brokerPerformanceResponse struct {
	BrokerID    string  `json:"broker_id"`
	BrokerName  string  `json:"broker_name"`
	WalletCount int     `json:"wallet_count"`
	Balance     float64 `json:"balance"`
}

// propOverviewResponse はプロップブローカー全体サマリーのAPIレスポンス。
type propOverviewResponse struct {
	TotalBalance  float64                     `json:"total_balance"`
	ActiveBrokers int                         `json:"active_brokers"`
	Brokers       []brokerPerformanceResponse `json:"brokers"`
}

// ListBrokers はブローカー一覧を取得する。
// GET /api/brokers?active=true&search=ftmo&limit=50&offset=0
// searchは名前またはファーム名の部分一致検索。
func (h *BrokerHandler) ListBrokers(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	search := r.URL.Query().Get("search")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	brokers, err := h.service.ListBrokers(r.Context(), activeOnly, search, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]brokerResponse, 0, len(brokers))
	for _, b := range brokers {
		resp = append(resp, toBrokerResponse(b))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetBroker はブローカー詳細を取得する。
// GET /api/brokers/{id}
func (h *BrokerHandler) GetBroker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b, err := h.service.GetBroker(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBrokerResponse(b))
}

// CreateBroker はブローカーを作成する。
// POST /api/brokers
func (h *BrokerHandler) CreateBroker(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNoSessionError())
		return
	}

	var req brokerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	input := prop.CreateBrokerInput{}
	if req.Name != nil {
		input.Name = *req.Name
	}
	if req.Firm != nil {
		input.Firm = *req.Firm
	}
	if req.Active != nil {
		input.Active = *req.Active
	}
	if req.Notes != nil {
		input.Notes = *req.Notes
	}

	b, err := h.service.CreateBroker(r.Context(), username, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBrokerResponse(b))
}

// UpdateBroker はブローカーを部分更新する。
// PATCH /api/brokers/{id}
func (h *BrokerHandler) UpdateBroker(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNoSessionError())
		return
	}

	id := chi.URLParam(r, "id")

	var req brokerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	input := prop.UpdateBrokerInput{
		Name:   req.Name,
		Firm:   req.Firm,
		Active: req.Active,
		Notes:  req.Notes,
	}

	b, err := h.service.UpdateBroker(r.Context(), username, id, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBrokerResponse(b))
}

// DeleteBroker はブローカーを削除する。
// DELETE /api/brokers/{id}
func (h *BrokerHandler) DeleteBroker(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNoSessionError())
		return
	}

	id := chi.URLParam(r, "id")

	if err := h.service.DeleteBroker(r.Context(), username, id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListWallets は指定ブローカーのウォレット一覧を取得する。
// GET /api/brokers/{id}/wallets
func (h *BrokerHandler) ListWallets(w http.ResponseWriter, r *http.Request) {
	brokerID := chi.URLParam(r, "id")

	wallets, err := h.service.ListWallets(r.Context(), brokerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]walletResponse, 0, len(wallets))
	for _, wallet := range wallets {
		resp = append(resp, toWalletResponse(wallet))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddWallet は指定ブローカーにウォレットを追加する。
// POST /api/brokers/{id}/wallets
func (h *BrokerHandler) AddWallet(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNoSessionError())
		return
	}

	brokerID := chi.URLParam(r, "id")

	var req walletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	wallet, err := h.service.AddWallet(r.Context(), username, brokerID, req.Label, req.Balance, req.Currency)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toWalletResponse(wallet))
}

// UpdateWalletBalance はウォレット残高を更新する。
// PUT /api/wallets/{id}/balance
func (h *BrokerHandler) UpdateWalletBalance(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNoSessionError())
		return
	}

	walletID := chi.URLParam(r, "id")

	var req struct {
		Balance float64 `json:"balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if err := h.service.UpdateWalletBalance(r.Context(), username, walletID, req.Balance); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteWallet はウォレットを削除する。
// DELETE /api/wallets/{id}
func (h *BrokerHandler) DeleteWallet(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNoSessionError())
		return
	}

	walletID := chi.URLParam(r, "id")

	if err := h.service.DeleteWallet(r.Context(), username, walletID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PropOverview はプロップブローカー全体のサマリーを取得する。
// GET /api/brokers/overview
func (h *BrokerHandler) PropOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	brokers := make([]brokerPerformanceResponse, 0, len(overview.Brokers))
	for _, b := range overview.Brokers {
		brokers = append(brokers, brokerPerformanceResponse{
			BrokerID:    b.BrokerID,
			BrokerName:  b.BrokerName,
			WalletCount: b.WalletCount,
			Balance:     b.Balance,
		})
	}

	writeJSON(w, http.StatusOK, propOverviewResponse{
		TotalBalance:  overview.TotalBalance,
		ActiveBrokers: overview.ActiveBrokers,
		Brokers:       brokers,
	})
}
