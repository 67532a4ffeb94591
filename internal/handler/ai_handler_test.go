package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/unidash/internal/model"
)

type mockAssistant struct {
	askFn func(ctx context.Context, project model.ProjectType, question, dataSummary string) (string, error)
}

func (m *mockAssistant) Ask(ctx context.Context, project model.ProjectType, question, dataSummary string) (string, error) {
	return m.askFn(ctx, project, question, dataSummary)
}

type mockLeadOverviewProvider struct {
	overviewFn func(ctx context.Context) (*model.LeadOverview, error)
}

func (m *mockLeadOverviewProvider) Overview(ctx context.Context) (*model.LeadOverview, error) {
	return m.overviewFn(ctx)
}

type mockFinancialOverviewProvider struct {
	overviewFn func(ctx context.Context) (*model.FinancialOverview, error)
}

func (m *mockFinancialOverviewProvider) FinancialOverview(ctx context.Context) (*model.FinancialOverview, error) {
	return m.overviewFn(ctx)
}

type mockPropOverviewProvider struct {
	overviewFn func(ctx context.Context) (*model.PropOverview, error)
}

func (m *mockPropOverviewProvider) Overview(ctx context.Context) (*model.PropOverview, error) {
	return m.overviewFn(ctx)
}

func testAIHandler(assistant AIAssistantInterface) *AIHandler {
	return NewAIHandler(
		assistant,
		&mockLeadOverviewProvider{
			overviewFn: func(ctx context.Context) (*model.LeadOverview, error) {
				return &model.LeadOverview{
					Total: 20,
					ByState: map[model.LeadState]int{
						model.LeadStateNew:       8,
						model.LeadStateConverted: 4,
					},
					ConversionRate: 0.2,
				}, nil
			},
		},
		&mockFinancialOverviewProvider{
			overviewFn: func(ctx context.Context) (*model.FinancialOverview, error) {
				return &model.FinancialOverview{
					TotalDeposits:    10000,
					TotalWithdrawals: 4000,
					NetBalance:       6000,
					ActiveClients:    12,
					ROI:              1.5,
				}, nil
			},
		},
		&mockPropOverviewProvider{
			overviewFn: func(ctx context.Context) (*model.PropOverview, error) {
				return &model.PropOverview{
					TotalBalance:  25000,
					ActiveBrokers: 2,
					Brokers: []model.BrokerPerformance{
						{BrokerID: "broker-1", BrokerName: "Kimura", WalletCount: 2, Balance: 15000},
					},
				}, nil
			},
		},
	)
}

func askWith(t *testing.T, h *AIHandler, body map[string]string, role model.Role) *httptest.ResponseRecorder {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := authedRequest(http.MethodPost, "/api/ai/ask", bytes.NewReader(raw), "manager1", role)
	w := httptest.NewRecorder()
	h.Ask(w, req)
	return w
}

func TestAsk_LeadProject_PassesSummaryToAssistant(t *testing.T) {
	var gotSummary string
	var gotProject model.ProjectType
	assistant := &mockAssistant{
		askFn: func(ctx context.Context, project model.ProjectType, question, dataSummary string) (string, error) {
			gotProject = project
			gotSummary = dataSummary
			return "成約率は20%です。", nil
		},
	}
	h := testAIHandler(assistant)

	w := askWith(t, h, map[string]string{"question": "成約率は？", "project": "lead"}, model.RoleManager)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotProject != model.ProjectLead {
		t.Errorf("project = %q, want %q", gotProject, model.ProjectLead)
	}
	if !strings.Contains(gotSummary, "リード総数: 20") {
		t.Errorf("summary missing total: %q", gotSummary)
	}
	if !strings.Contains(gotSummary, "成約率: 20.0%") {
		t.Errorf("summary missing conversion rate: %q", gotSummary)
	}

	var got askResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Answer != "成約率は20%です。" || got.Project != "lead" {
		t.Errorf("response = %+v", got)
	}
}

func TestAsk_CPAProject_SummaryContainsFinancials(t *testing.T) {
	var gotSummary string
	assistant := &mockAssistant{
		askFn: func(ctx context.Context, project model.ProjectType, question, dataSummary string) (string, error) {
			gotSummary = dataSummary
			return "ok", nil
		},
	}
	h := testAIHandler(assistant)

	w := askWith(t, h, map[string]string{"question": "純残高は？", "project": "cpa"}, model.RoleManager)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(gotSummary, "純残高: 6000.00") {
		t.Errorf("summary missing net balance: %q", gotSummary)
	}
	if !strings.Contains(gotSummary, "アクティブクライアント数: 12") {
		t.Errorf("summary missing active clients: %q", gotSummary)
	}
}

func TestAsk_EmptyProject_UsesSessionProject(t *testing.T) {
	var gotProject model.ProjectType
	assistant := &mockAssistant{
		askFn: func(ctx context.Context, project model.ProjectType, question, dataSummary string) (string, error) {
			gotProject = project
			return "ok", nil
		},
	}
	h := testAIHandler(assistant)

	// testSessionのProjectはlead
	w := askWith(t, h, map[string]string{"question": "今の状況は？"}, model.RoleManager)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotProject != model.ProjectLead {
		t.Errorf("project = %q, want session project %q", gotProject, model.ProjectLead)
	}
}

func TestAsk_InvalidProject_Returns400(t *testing.T) {
	assistant := &mockAssistant{
		askFn: func(ctx context.Context, project model.ProjectType, question, dataSummary string) (string, error) {
			t.Fatal("assistant should not be called")
			return "", nil
		},
	}
	h := testAIHandler(assistant)

	w := askWith(t, h, map[string]string{"question": "？", "project": "unknown"}, model.RoleManager)

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

func TestAsk_AssistantUnavailable_Returns502(t *testing.T) {
	assistant := &mockAssistant{
		askFn: func(ctx context.Context, project model.ProjectType, question, dataSummary string) (string, error) {
			return "", model.NewAIUnavailableError()
		},
	}
	h := testAIHandler(assistant)

	w := askWith(t, h, map[string]string{"question": "？", "project": "lead"}, model.RoleManager)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}

	var errResp apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Code != "AI_UNAVAILABLE" {
		t.Errorf("code = %q, want %q", errResp.Code, "AI_UNAVAILABLE")
	}
}

// サマリー構築の失敗は質問自体を失敗させず、空サマリーで続行する。
func TestAsk_SummaryBuildFailure_StillAnswers(t *testing.T) {
	var gotSummary string
	assistant := &mockAssistant{
		askFn: func(ctx context.Context, project model.ProjectType, question, dataSummary string) (string, error) {
			gotSummary = dataSummary
			return "データなしでも回答します。", nil
		},
	}
	h := NewAIHandler(
		assistant,
		&mockLeadOverviewProvider{
			overviewFn: func(ctx context.Context) (*model.LeadOverview, error) {
				return nil, errors.New("db connection lost")
			},
		},
		&mockFinancialOverviewProvider{},
		&mockPropOverviewProvider{},
	)

	w := askWith(t, h, map[string]string{"question": "？", "project": "lead"}, model.RoleManager)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotSummary != "" {
		t.Errorf("summary = %q, want empty", gotSummary)
	}
}

func TestAsk_NoSession_Returns401(t *testing.T) {
	h := testAIHandler(&mockAssistant{})

	body, _ := json.Marshal(map[string]string{"question": "？"})
	req := httptest.NewRequest(http.MethodPost, "/api/ai/ask", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.Ask(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
