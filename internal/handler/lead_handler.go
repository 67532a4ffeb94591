package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/unidash/internal/lead"
	"github.com/hitoshi/unidash/internal/middleware"
	"github.com/hitoshi/unidash/internal/model"
)

// LeadServiceInterface はリードハンドラーが必要とするサービスインターフェース。
type LeadServiceInterface interface {
	List(ctx context.Context, state model.LeadState, search string, limit, offset int) ([]*model.Lead, error)
	Get(ctx context.Context, id string) (*model.Lead, error)
	Create(ctx context.Context, username string, input lead.CreateInput) (*model.Lead, error)
	Update(ctx context.Context, username, id string, input lead.UpdateInput) (*model.Lead, error)
	Delete(ctx context.Context, username, id string) error
	Overview(ctx context.Context) (*model.LeadOverview, error)
}

// LeadHandler はリード管理のHTTPハンドラー。
type LeadHandler struct {
	service LeadServiceInterface
}

// NewLeadHandler はLeadHandlerを生成する。
func NewLeadHandler(service LeadServiceInterface) *LeadHandler {
	return &LeadHandler{service: service}
}

// leadRequest はリード作成・更新リクエストのボディ。
// 更新時はnilのフィールドを変更しない。
type leadRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Source   *string `json:"source"`
	State    *string `json:"state"`
	Priority *int    `json:"priority"`
	Notes    *string `json:"notes"`
}

// leadResponse はリード情報のAPIレスポンス。
type leadResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Source    string    `json:"source"`
	State     string    `json:"state"`
	Priority  int       `json:"priority"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toLeadResponse(l *model.Lead) leadResponse {
	return leadResponse{
		ID:        l.ID,
		Name:      l.Name,
		Email:     l.Email,
		Phone:     l.Phone,
		Source:    l.Source,
		State:     string(l.State),
		Priority:  l.Priority,
		Notes:     l.Notes,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

// leadOverviewResponse はリード集計サマリーのAPIレスポンス。
type leadOverviewResponse struct {
	Total          int            `json:"total"`
	ByState        map[string]int `json:"by_state"`
	ConversionRate float64        `json:"conversion_rate"`
}

// ListLeads はリード一覧を取得する。
// GET /api/leads?state=new&search=yamada&limit=50&offset=0
// searchは名前またはメールアドレスの部分一致検索。
func (h *LeadHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	state := model.LeadState(r.URL.Query().Get("state"))
	search := r.URL.Query().Get("search")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	leads, err := h.service.List(r.Context(), state, search, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]leadResponse, 0, len(leads))
	for _, l := range leads {
		resp = append(resp, toLeadResponse(l))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetLead はリード詳細を取得する。
// GET /api/leads/{id}
func (h *LeadHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	l, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLeadResponse(l))
}

// CreateLead はリードを作成する。
// POST /api/leads
func (h *LeadHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNoSessionError())
		return
	}

	var req leadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	input := lead.CreateInput{}
	if req.Name != nil {
		input.Name = *req.Name
	}
	if req.Email != nil {
		input.Email = *req.Email
	}
	if req.Phone != nil {
		input.Phone = *req.Phone
	}
	if req.Source != nil {
		input.Source = *req.Source
	}
	if req.State != nil {
		input.State = model.LeadState(*req.State)
	}
	if req.Priority != nil {
		input.Priority = *req.Priority
	}
	if req.Notes != nil {
		input.Notes = *req.Notes
	}

	l, err := h.service.Create(r.Context(), username, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLeadResponse(l))
}

// UpdateLead はリードを部分更新する。
// PATCH /api/leads/{id}
func (h *LeadHandler) UpdateLead(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNoSessionError())
		return
	}

	id := chi.URLParam(r, "id")

	var req leadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	input := lead.UpdateInput{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Source: req.Source,
		Notes:  req.Notes,
	}
	if req.State != nil {
		state := model.LeadState(*req.State)
		input.State = &state
	}
	input.Priority = req.Priority

	l, err := h.service.Update(r.Context(), username, id, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLeadResponse(l))
}

// DeleteLead はリードを削除する。
// DELETE /api/leads/{id}
func (h *LeadHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNoSessionError())
		return
	}

	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), username, id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LeadOverview はリードの集計サマリーを取得する。
// GET /api/leads/overview
func (h *LeadHandler) LeadOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	byState := make(map[string]int, len(overview.ByState))
	for state, count := range overview.ByState {
		byState[string(state)] = count
	}

	writeJSON(w, http.StatusOK, leadOverviewResponse{
		Total:          overview.Total,
		ByState:        byState,
		ConversionRate: overview.ConversionRate,
	})
}
