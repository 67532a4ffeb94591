package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/unidash/internal/model"
	"github.com/hitoshi/unidash/internal/repository"
)

// projectTables はプロジェクトごとの統計対象テーブル。
var projectTables = map[model.ProjectType][]string{
	model.ProjectLead: {"leads", "activity_log"},
	model.ProjectCPA:  {"clients", "wallet_transactions", "activity_log"},
	model.ProjectProp: {"brokers", "wallets", "activity_log"},
}

// StatsHandler はデータベース統計・監査ログ参照のHTTPハンドラー。
// プロジェクトごとに独立したリポジトリを保持する。
type StatsHandler struct {
	stats      map[model.ProjectType]repository.StatsRepository
	activities map[model.ProjectType]repository.ActivityLogRepository
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(
	stats map[model.ProjectType]repository.StatsRepository,
	activities map[model.ProjectType]repository.ActivityLogRepository,
) *StatsHandler {
	return &StatsHandler{
		stats:      stats,
		activities: activities,
	}
}

// tableStatResponse はテーブル統計のAPIレスポンス。
type tableStatResponse struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// projectStatsResponse はプロジェクト単位の統計のAPIレスポンス。
type projectStatsResponse struct {
	Project string              `json:"project"`
	Status  string              `json:"status"`
	Tables  []tableStatResponse `json:"tables"`
}

// activityLogResponse は監査ログ1件のAPIレスポンス。
type activityLogResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	CreatedAt time.Time `json:"created_at"`
}

// DatabaseStats は全プロジェクトのテーブル統計と接続状態を返す。
// GET /api/stats
func (h *StatsHandler) DatabaseStats(w http.ResponseWriter, r *http.Request) {
	resp := make([]projectStatsResponse, 0, len(model.AllProjects()))

	for _, project := range model.AllProjects() {
		repo, ok := h.stats[project]
		if !ok {
			continue
		}

		entry := projectStatsResponse{
			Project: string(project),
			Status:  "up",
			Tables:  []tableStatResponse{},
		}

		stats, err := repo.TableStats(r.Context(), projectTables[project])
		if err != nil {
			// 1プロジェクトの障害は他プロジェクトの統計表示を妨げない
			entry.Status = "down"
		} else {
			for _, s := range stats {
				entry.Tables = append(entry.Tables, tableStatResponse{
					Table: s.Table,
					Rows:  s.Rows,
				})
			}
		}

		resp = append(resp, entry)
	}

	writeJSON(w, http.StatusOK, resp)
}

// RecentActivity は指定プロジェクトの直近の監査ログを返す。
// GET /api/activity?project=lead&limit=50
func (h *StatsHandler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	projectParam := r.URL.Query().Get("project")
	project, ok := model.ParseProjectType(projectParam)
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidProjectError(projectParam))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	repo, ok := h.activities[project]
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidProjectError(projectParam))
		return
	}

	entries, err := repo.ListRecent(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]activityLogResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, activityLogResponse{
			ID:        e.ID,
			Username:  e.Username,
			Action:    e.Action,
			Entity:    e.Entity,
			EntityID:  e.EntityID,
			CreatedAt: e.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health は全プロジェクトのデータベース接続状態を返す。
// 全DBが正常なら200、1つでも異常があれば503を返す。
// GET /health
func (h *StatsHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	databases := make(map[string]string, len(h.stats))
	allUp := true

	for _, project := range model.AllProjects() {
		repo, ok := h.stats[project]
		if !ok {
			continue
		}
		if err := repo.Ping(ctx); err != nil {
			databases[string(project)] = "down"
			allUp = false
		} else {
			databases[string(project)] = "up"
		}
	}

	status := http.StatusOK
	overall := "ok"
	if !allUp {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	writeJSON(w, status, map[string]interface{}{
		"status":    overall,
		"databases": databases,
	})
}
