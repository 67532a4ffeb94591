// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやワーカー層から利用する。
type MetricsCollector interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordLoginRateLimited()
	RecordHTTPStatus(statusCode int)
	RecordAIRequest(duration time.Duration, cached bool, success bool)
	SetDBUp(project string, up bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess     prometheus.Counter
	loginFailure     prometheus.Counter
	loginRateLimited prometheus.Counter
	httpStatus       *prometheus.CounterVec
	aiLatency        prometheus.Histogram
	aiRequests       *prometheus.CounterVec
	aiCacheHits      prometheus.Counter
	dbUp             *prometheus.GaugeVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unidash_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unidash_login_failure_total",
			Help: "ログイン失敗の合計数",
		}),
		loginRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unidash_login_rate_limited_total",
			Help: "レート制限により拒否されたログイン試行の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unidash_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		aiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "unidash_ai_request_latency_seconds",
			Help:    "AIアシスタント呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		aiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unidash_ai_requests_total",
			Help: "AIアシスタント呼び出しの結果別の合計数",
		}, []string{"result"}),
		aiCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unidash_ai_cache_hits_total",
			Help: "AIレスポンスキャッシュヒットの合計数",
		}),
		dbUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "unidash_db_up",
			Help: "プロジェクト別のデータベース接続状態（1=正常、0=異常）",
		}, []string{"project"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFailure,
		c.loginRateLimited,
		c.httpStatus,
		c.aiLatency,
		c.aiRequests,
		c.aiCacheHits,
		c.dbUp,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFailure.Inc()
}

// RecordLoginRateLimited はレート制限によるログイン拒否を記録する。
func (c *Collector) RecordLoginRateLimited() {
	c.loginRateLimited.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordAIRequest はAIアシスタント呼び出しを記録する。
// キャッシュヒットの場合はレイテンシを記録せずキャッシュヒットカウンタのみ増やす。
func (c *Collector) RecordAIRequest(duration time.Duration, cached bool, success bool) {
	if cached {
		c.aiCacheHits.Inc()
		c.aiRequests.WithLabelValues("cached").Inc()
		return
	}

	c.aiLatency.Observe(duration.Seconds())
	if success {
		c.aiRequests.WithLabelValues("success").Inc()
	} else {
		c.aiRequests.WithLabelValues("failure").Inc()
	}
}

// SetDBUp はプロジェクト別のデータベース接続状態を設定する。
func (c *Collector) SetDBUp(project string, up bool) {
	val := 0.0
	if up {
		val = 1.0
	}
	c.dbUp.WithLabelValues(project).Set(val)
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
