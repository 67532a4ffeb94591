package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/unidash/internal/middleware"
	"github.com/hitoshi/unidash/internal/model"
)

// AIAssistantInterface はAIハンドラーが必要とするアシスタントインターフェース。
type AIAssistantInterface interface {
	// Ask はプロジェクトのデータサマリーを文脈として質問に回答する。
	Ask(ctx context.Context, project model.ProjectType, question, dataSummary string) (string, error)
}

// LeadOverviewProvider はリード集計サマリーの取得インターフェース。
type LeadOverviewProvider interface {
	Overview(ctx context.Context) (*model.LeadOverview, error)
}

// FinancialOverviewProvider はCPA財務サマリーの取得インターフェース。
type FinancialOverviewProvider interface {
	FinancialOverview(ctx context.Context) (*model.FinancialOverview, error)
}

// PropOverviewProvider はプロップブローカーサマリーの取得インターフェース。
type PropOverviewProvider interface {
	Overview(ctx context.Context) (*model.PropOverview, error)
}

// AIHandler はAIアシスタントのHTTPハンドラー。
// 質問時に現在プロジェクトの集計サマリーを構築してアシスタントに渡す。
type AIHandler struct {
	assistant AIAssistantInterface
	leads     LeadOverviewProvider
	cpa       FinancialOverviewProvider
	prop      PropOverviewProvider
}

// NewAIHandler はAIHandlerを生成する。
func NewAIHandler(
	assistant AIAssistantInterface,
	leads LeadOverviewProvider,
	cpa FinancialOverviewProvider,
	prop PropOverviewProvider,
) *AIHandler {
	return &AIHandler{
		assistant: assistant,
		leads:     leads,
		cpa:       cpa,
		prop:      prop,
	}
}

// askRequest はAIアシスタントへの質問リクエストのボディ。
// projectが空の場合はセッションの現在プロジェクトを使用する。
type askRequest struct {
	Question string `json:"question"`
	Project  string `json:"project"`
}

// askResponse はAIアシスタントの回答レスポンス。
type askResponse struct {
	Answer  string `json:"answer"`
	Project string `json:"project"`
}

// Ask はAIアシスタントへの質問を処理する。
// POST /api/ai/ask
func (h *AIHandler) Ask(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNoSessionError())
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	project := session.Project
	if req.Project != "" {
		parsed, ok := model.ParseProjectType(req.Project)
		if !ok {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidProjectError(req.Project))
			return
		}
		project = parsed
	}

	// サマリー構築の失敗は質問自体を失敗させない
	summary := h.buildDataSummary(r.Context(), project)

	answer, err := h.assistant.Ask(r.Context(), project, req.Question, summary)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:  answer,
		Project: string(project),
	})
}

// buildDataSummary はプロジェクトの集計サマリーをAIの文脈用テキストに変換する。
func (h *AIHandler) buildDataSummary(ctx context.Context, project model.ProjectType) string {
	switch project {
	case model.ProjectLead:
		overview, err := h.leads.Overview(ctx)
		if err != nil {
			slog.Warn("failed to build lead summary for ai context", slog.String("error", err.Error()))
			return ""
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "リード総数: %d\n", overview.Total)
		for _, state := range []model.LeadState{
			model.LeadStateNew,
			model.LeadStateContacted,
			model.LeadStateQualified,
			model.LeadStateConverted,
			model.LeadStateLost,
		} {
			fmt.Fprintf(&sb, "%s: %d\n", state, overview.ByState[state])
		}
		fmt.Fprintf(&sb, "成約率: %.1f%%", overview.ConversionRate*100)
		return sb.String()

	case model.ProjectCPA:
		overview, err := h.cpa.FinancialOverview(ctx)
		if err != nil {
			slog.Warn("failed to build cpa summary for ai context", slog.String("error", err.Error()))
			return ""
		}
		return fmt.Sprintf(
			"入金合計: %.2f\n出金合計: %.2f\n純残高: %.2f\nアクティブクライアント数: %d\nROI: %.2f",
			overview.TotalDeposits,
			overview.TotalWithdrawals,
			overview.NetBalance,
			overview.ActiveClients,
			overview.ROI,
		)

	case model.ProjectProp:
		overview, err := h.prop.Overview(ctx)
		if err != nil {
			slog.Warn("failed to build prop summary for ai context", slog.String("error", err.Error()))
			return ""
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "残高合計: %.2f\nアクティブブローカー数: %d\n", overview.TotalBalance, overview.ActiveBrokers)
		for _, b := range overview.Brokers {
			fmt.Fprintf(&sb, "%s: ウォレット%d件 残高%.2f\n", b.BrokerName, b.WalletCount, b.Balance)
		}
		return strings.TrimRight(sb.String(), "\n")

	default:
		return ""
	}
}
