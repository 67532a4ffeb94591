package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/unidash/internal/cpa"
	"github.com/hitoshi/unidash/internal/middleware"
	"github.com/hitoshi/unidash/internal/model"
)

// CPAServiceInterface はCPAハンドラーが必要とするサービスインターフェース。
type CPAServiceInterface interface {
	ListClients(ctx context.Context, activeOnly bool, search string, limit, offset int) ([]*model.Client, error)
	GetClient(ctx context.Context, id string) (*model.Client, error)
	CreateClient(ctx context.Context, username string, input cpa.CreateClientInput) (*model.Client, error)
	UpdateClient(ctx context.Context, username, id string, input cpa.UpdateClientInput) (*model.Client, error)
	DeleteClient(ctx context.Context, username, id string) error
	RecordTransaction(ctx context.Context, username, clientID string, txType model.TransactionType, amount float64, currency string) (*model.WalletTransaction, error)
	ListTransactions(ctx context.Context, clientID string, limit int) ([]*model.WalletTransaction, error)
	FinancialOverview(ctx context.Context) (*model.FinancialOverview, error)
}

// ClientHandler はCPAクライアント管理のHTTPハンドラー。
type ClientHandler struct {
	service CPAServiceInterface
}

// NewClientHandler はClientHandlerを生成する。
func NewClientHandler(service CPAServiceInterface) *ClientHandler {
	return &ClientHandler{service: service}
}

// clientRequest はクライアント作成・更新リクエストのボディ。
type clientRequest struct {
	Name     *string  `json:"name"`
	Email    *string  `json:"email"`
	Broker   *string  `json:"broker"`
	Platform *string  `json:"platform"`
	Deposit  *float64 `json:"deposit"`
	Active   *bool    `json:"active"`
	Notes    *string  `json:"notes"`
}

// transactionRequest はウォレット取引記録リクエストのボディ。
type transactionRequest struct {
	Type     string  `json:"type"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// clientResponse はクライアント情報のAPIレスポンス。
type clientResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Broker    string    `json:"broker"`
	Platform  string    `json:"platform"`
	Deposit   float64   `json:"deposit"`
	Active    bool      `json:"active"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toClientResponse(c *model.Client) clientResponse {
	return clientResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Broker:    c.Broker,
		Platform:  c.Platform,
		Deposit:   c.Deposit,
		Active:    c.Active,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// transactionResponse はウォレット取引のAPIレスポンス。
type transactionResponse struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Type      string    `json:"type"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

func toTransactionResponse(tx *model.WalletTransaction) transactionResponse {
	return transactionResponse{
		ID:        tx.ID,
		ClientID:  tx.ClientID,
		Type:      string(tx.Type),
		Amount:    tx.Amount,
		Currency:  tx.Currency,
		CreatedAt: tx.CreatedAt,
	}
}

// financialOverviewResponse は財務サマリーのAPIレスポンス。
type financialOverviewResponse struct {
	TotalDeposits    float64 `json:"total_deposits"`
	TotalWithdrawals float64 `json:"total_withdrawals"`
	NetBalance       float64 `json:"net_balance"`
	ActiveClients    int     `json:"active_clients"`
	ROI              float64 `json:"roi"`
}

// ListClients はクライアント一覧を取得する。
// GET /api/clients?active=true&search=rossi&limit=50&offset=0
// searchは名前またはメールアドレスの部分一致検索。
func (h *ClientHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	search := r.URL.Query().Get("search")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	clients, err := h.service.ListClients(r.Context(), activeOnly, search, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]clientResponse, 0, len(clients))
	for _, c := range clients {
		resp = append(resp, toClientResponse(c))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetClient はクライアント詳細を取得する。
// GET /api/clients/{id}
func (h *ClientHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.service.GetClient(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toClientResponse(c))
}

// CreateClient はクライアントを作成する。
// POST /api/clients
func (h *ClientHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNoSessionError())
		return
	}

	var req clientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	input := cpa.CreateClientInput{}
	if req.Name != nil {
		input.Name = *req.Name
	}
	if req.Email != nil {
		input.Email = *req.Email
	}
	if req.Broker != nil {
		input.Broker = *req.Broker
	}
	if req.Platform != nil {
		input.Platform = *req.Platform
	}
	if req.Deposit != nil {
		input.Deposit = *req.Deposit
	}
	if req.Active != nil {
		input.Active = *req.Active
	}
	if req.Notes != nil {
		input.Notes = *req.Notes
	}

	c, err := h.service.CreateClient(r.Context(), username, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toClientResponse(c))
}

// UpdateClient はクライアントを部分更新する。
// PATCH /api/clients/{id}
func (h *ClientHandler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNoSessionError())
		return
	}

	id := chi.URLParam(r, "id")

	var req clientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	input := cpa.UpdateClientInput{
		Name:     req.Name,
		Email:    req.Email,
		Broker:   req.Broker,
		Platform: req.Platform,
		Deposit:  req.Deposit,
		Active:   req.Active,
		Notes:    req.Notes,
	}

	c, err := h.service.UpdateClient(r.Context(), username, id, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toClientResponse(c))
}

// DeleteClient はクライアントを削除する。
// DELETE /api/clients/{id}
func (h *ClientHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNoSessionError())
		return
	}

	id := chi.URLParam(r, "id")

	if err := h.service.DeleteClient(r.Context(), username, id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RecordTransaction はウォレット取引を記録する。
// POST /api/clients/{id}/transactions
func (h *ClientHandler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNoSessionError())
		return
	}

	clientID := chi.URLParam(r, "id")

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	tx, err := h.service.RecordTransaction(r.Context(), username, clientID, model.TransactionType(req.Type), req.Amount, req.Currency)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

// ListTransactions は指定クライアントの取引一覧を取得する。
// GET /api/clients/{id}/transactions?limit=50
func (h *ClientHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	txs, err := h.service.ListTransactions(r.Context(), clientID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		resp = append(resp, toTransactionResponse(tx))
	}

	writeJSON(w, http.StatusOK, resp)
}

// FinancialOverview は財務サマリーを取得する。
// GET /api/clients/overview
func (h *ClientHandler) FinancialOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.FinancialOverview(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, financialOverviewResponse{
		TotalDeposits:    overview.TotalDeposits,
		TotalWithdrawals: overview.TotalWithdrawals,
		NetBalance:       overview.NetBalance,
		ActiveClients:    overview.ActiveClients,
		ROI:              overview.ROI,
	})
}
