package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/unidash/internal/model"
	"github.com/hitoshi/unidash/internal/repository"
)

type mockStatsRepo struct {
	tableStatsFn func(ctx context.Context, tables []string) ([]repository.TableStat, error)
	pingFn       func(ctx context.Context) error
}

func (m *mockStatsRepo) TableStats(ctx context.Context, tables []string) ([]repository.TableStat, error) {
	return m.tableStatsFn(ctx, tables)
}

func (m *mockStatsRepo) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

type mockActivityRepo struct {
	listRecentFn func(ctx context.Context, limit int) ([]*model.ActivityLog, error)
}

func (m *mockActivityRepo) Insert(ctx context.Context, entry *model.ActivityLog) error {
	return nil
}

func (m *mockActivityRepo) ListRecent(ctx context.Context, limit int) ([]*model.ActivityLog, error) {
	return m.listRecentFn(ctx, limit)
}

func (m *mockActivityRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func healthyStatsRepo(rows int64) *mockStatsRepo {
	return &mockStatsRepo{
		tableStatsFn: func(ctx context.Context, tables []string) ([]repository.TableStat, error) {
			stats := make([]repository.TableStat, 0, len(tables))
			for _, table := range tables {
				stats = append(stats, repository.TableStat{Table: table, Rows: rows})
			}
			return stats, nil
		},
	}
}

func TestDatabaseStats_AllProjects(t *testing.T) {
	h := NewStatsHandler(
		map[model.ProjectType]repository.StatsRepository{
			model.ProjectLead: healthyStatsRepo(10),
			model.ProjectCPA:  healthyStatsRepo(20),
			model.ProjectProp: healthyStatsRepo(30),
		},
		nil,
	)

	req := authedRequest(http.MethodGet, "/api/stats", nil, "viewer1", model.RoleViewer)
	w := httptest.NewRecorder()
	h.DatabaseStats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var got []projectStatsResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	// AllProjectsの固定順で返ること
	if got[0].Project != "lead" || got[1].Project != "cpa" || got[2].Project != "prop" {
		t.Errorf("project order = %s/%s/%s", got[0].Project, got[1].Project, got[2].Project)
	}
	if got[0].Status != "up" || len(got[0].Tables) != 2 {
		t.Errorf("lead stats = %+v", got[0])
	}
	if got[1].Tables[0].Rows != 20 {
		t.Errorf("cpa rows = %d, want 20", got[1].Tables[0].Rows)
	}
}

// 1プロジェクトのDB障害は他プロジェクトの統計表示を妨げない。
func TestDatabaseStats_OneProjectDown_OthersStillReported(t *testing.T) {
	h := NewStatsHandler(
		map[model.ProjectType]repository.StatsRepository{
			model.ProjectLead: healthyStatsRepo(10),
			model.ProjectCPA: &mockStatsRepo{
				tableStatsFn: func(ctx context.Context, tables []string) ([]repository.TableStat, error) {
					return nil, errors.New("connection refused")
				},
			},
			model.ProjectProp: healthyStatsRepo(30),
		},
		nil,
	)

	req := authedRequest(http.MethodGet, "/api/stats", nil, "viewer1", model.RoleViewer)
	w := httptest.NewRecorder()
	h.DatabaseStats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var got []projectStatsResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got[1].Status != "down" {
		t.Errorf("cpa status = %q, want %q", got[1].Status, "down")
	}
	if got[0].Status != "up" || got[2].Status != "up" {
		t.Errorf("lead/prop status = %q/%q, want up/up", got[0].Status, got[2].Status)
	}
}

func TestRecentActivity_ReturnsEntries(t *testing.T) {
	var gotLimit int
	h := NewStatsHandler(
		nil,
		map[model.ProjectType]repository.ActivityLogRepository{
			model.ProjectLead: &mockActivityRepo{
				listRecentFn: func(ctx context.Context, limit int) ([]*model.ActivityLog, error) {
					gotLimit = limit
					return []*model.ActivityLog{
						{ID: "log-1", Username: "manager1", Action: "create", Entity: "lead", EntityID: "lead-1"},
					}, nil
				},
			},
		},
	)

	req := authedRequest(http.MethodGet, "/api/activity?project=lead&limit=25", nil, "viewer1", model.RoleViewer)
	w := httptest.NewRecorder()
	h.RecentActivity(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotLimit != 25 {
		t.Errorf("limit = %d, want 25", gotLimit)
	}

	var got []activityLogResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 1 || got[0].Action != "create" {
		t.Errorf("activity = %+v", got)
	}
}

func TestRecentActivity_LimitOutOfRange_UsesDefault(t *testing.T) {
	var gotLimit int
	h := NewStatsHandler(
		nil,
		map[model.ProjectType]repository.ActivityLogRepository{
			model.ProjectLead: &mockActivityRepo{
				listRecentFn: func(ctx context.Context, limit int) ([]*model.ActivityLog, error) {
					gotLimit = limit
					return nil, nil
				},
			},
		},
	)

	req := authedRequest(http.MethodGet, "/api/activity?project=lead&limit=9999", nil, "viewer1", model.RoleViewer)
	w := httptest.NewRecorder()
	h.RecentActivity(w, req)

	if gotLimit != 50 {
		t.Errorf("limit = %d, want default 50", gotLimit)
	}
}

func TestRecentActivity_InvalidProject_Returns400(t *testing.T) {
	h := NewStatsHandler(nil, nil)

	req := authedRequest(http.MethodGet, "/api/activity?project=unknown", nil, "viewer1", model.RoleViewer)
	w := httptest.NewRecorder()
	h.RecentActivity(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var errResp apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Code != "INVALID_PROJECT" {
		t.Errorf("code = %q, want %q", errResp.Code, "INVALID_PROJECT")
	}
}

func TestHealth_AllUp_Returns200(t *testing.T) {
	h := NewStatsHandler(
		map[model.ProjectType]repository.StatsRepository{
			model.ProjectLead: healthyStatsRepo(1),
			model.ProjectCPA:  healthyStatsRepo(1),
			model.ProjectProp: healthyStatsRepo(1),
		},
		nil,
	)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Health(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var got struct {
		Status    string            `json:"status"`
		Databases map[string]string `json:"databases"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Status != "ok" {
		t.Errorf("status = %q, want %q", got.Status, "ok")
	}
	if got.Databases["lead"] != "up" || got.Databases["cpa"] != "up" || got.Databases["prop"] != "up" {
		t.Errorf("databases = %v", got.Databases)
	}
}

func TestHealth_OneDown_Returns503(t *testing.T) {
	h := NewStatsHandler(
		map[model.ProjectType]repository.StatsRepository{
			model.ProjectLead: healthyStatsRepo(1),
			model.ProjectCPA: &mockStatsRepo{
				pingFn: func(ctx context.Context) error {
					return errors.New("connection refused")
				},
			},
			model.ProjectProp: healthyStatsRepo(1),
		},
		nil,
	)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Health(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var got struct {
		Status    string            `json:"status"`
		Databases map[string]string `json:"databases"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Status != "degraded" {
		t.Errorf("status = %q, want %q", got.Status, "degraded")
	}
	if got.Databases["cpa"] != "down" {
		t.Errorf("cpa = %q, want %q", got.Databases["cpa"], "down")
	}
}
