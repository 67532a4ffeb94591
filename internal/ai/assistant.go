// Package ai はダッシュボードのAIアシスタント機能を提供する。
// OpenAI互換のチャット補完APIを使用し、プロジェクトごとのシステムプロンプトと
// 現在のデータサマリーを添えて質問に回答する。
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/hitoshi/unidash/internal/model"
)

// ChatCompleter はチャット補完APIのインターフェース。
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// AssistantConfig はAssistantの設定。
type AssistantConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	MaxRetries  int
	CacheTTL    time.Duration
}

// MetricsRecorder はAI呼び出しのメトリクス記録のインターフェース。
// nilの場合は記録しない。
type MetricsRecorder interface {
	RecordAIRequest(duration time.Duration, cached bool, success bool)
}

// Assistant はAIアシスタントのサービス層。
type Assistant struct {
	client      ChatCompleter
	model       string
	maxTokens   int
	temperature float32
	maxRetries  int
	cache       *ResponseCache
	metrics     MetricsRecorder
}

// systemPrompts はプロジェクトごとのシステムプロンプト。
var systemPrompts = map[model.ProjectType]string{
	model.ProjectLead: "あなたはリード管理ダッシュボードのアシスタントです。" +
		"提供されたリードデータのサマリーに基づいて、リードの傾向、" +
		"コンバージョン率、優先すべきフォローアップについて簡潔に回答してください。",
	model.ProjectCPA: "あなたはCPAトレーディングダッシュボードのアシスタントです。" +
		"提供されたクライアントと入出金データのサマリーに基づいて、" +
		"財務状況、ROI、リスクについて簡潔に回答してください。",
	model.ProjectProp: "あなたはプロップブローカー管理ダッシュボードのアシスタントです。" +
		"提供されたブローカーとウォレット残高のサマリーに基づいて、" +
		"資金配分とパフォーマンスについて簡潔に回答してください。",
}

// NewAssistant はAssistantを生成する。
// httpClientにはSSRF防止機能付きクライアントを渡す。nilの場合はデフォルトを使用する。
func NewAssistant(cfg AssistantConfig, httpClient *http.Client, metrics MetricsRecorder) *Assistant {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}

	return newAssistant(openai.NewClientWithConfig(clientConfig), cfg, metrics)
}

// newAssistant はChatCompleterを注入してAssistantを生成する。テストで使用する。
func newAssistant(client ChatCompleter, cfg AssistantConfig, metrics MetricsRecorder) *Assistant {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1500
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	return &Assistant{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		cache:       NewResponseCache(cfg.CacheTTL),
		metrics:     metrics,
	}
}

// Ask はプロジェクトのデータサマリーを文脈として質問に回答する。
// 同一の質問とサマリーの組はキャッシュTTL内であればAPIを呼ばずに返す。
// 一時的なエラーは指数バックオフ付きで再試行し、試行回数を使い切った場合は
// AI_UNAVAILABLEエラーを返す。
func (a *Assistant) Ask(ctx context.Context, project model.ProjectType, question, dataSummary string) (string, error) {
	if _, ok := model.ParseProjectType(string(project)); !ok {
		return "", model.NewInvalidProjectError(string(project))
	}
	if question == "" {
		return "", model.NewValidationError("質問は必須です")
	}

	key := CacheKey(string(project), question, dataSummary)
	if answer, ok := a.cache.Get(key); ok {
		a.recordMetrics(0, true, true)
		return answer, nil
	}

	start := time.Now()
	answer, err := a.complete(ctx, project, question, dataSummary)
	if err != nil {
		a.recordMetrics(time.Since(start), false, false)
		slog.Error("AI completion failed",
			"project", project,
			"error", err,
		)
		return "", model.NewAIUnavailableError()
	}

	a.cache.Set(key, answer)
	a.recordMetrics(time.Since(start), false, true)

	return answer, nil
}

// complete はチャット補完APIを再試行付きで呼び出す。
func (a *Assistant) complete(ctx context.Context, project model.ProjectType, question, dataSummary string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompts[project],
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("現在のデータサマリー:\n%s\n\n質問: %s", dataSummary, question),
			},
		},
	}

	var lastErr error
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		if attempt > 0 {
			delay := CalculateBackoff(attempt - 1)
			slog.Warn("retrying AI request",
				"attempt", attempt+1,
				"delay", delay,
				"error", lastErr,
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := a.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			if !IsRetryable(err) {
				return "", err
			}
			continue
		}

		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("empty response from AI API")
		}
		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("AI request failed after %d attempts: %w", a.maxRetries, lastErr)
}

// Stop はキャッシュのクリーンアップgoroutineを停止する。
func (a *Assistant) Stop() {
	a.cache.Stop()
}

func (a *Assistant) recordMetrics(duration time.Duration, cached, success bool) {
	if a.metrics != nil {
		a.metrics.RecordAIRequest(duration, cached, success)
	}
}
