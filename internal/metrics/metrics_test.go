package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue はレジストリから指定された名前のカウンタ値を取得する。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}

	t.Fatalf("%s metric not found", name)
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordLoginSuccess_IncrementsCounter はログイン成功カウンタが増加することを検証する。
func TestRecordLoginSuccess_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginSuccess()
	c.RecordLoginSuccess()

	if val := counterValue(t, reg, "unidash_login_success_total"); val != 2 {
		t.Errorf("login_success_total = %v, want 2", val)
	}
}

// TestRecordLoginFailure_IncrementsCounter はログイン失敗カウンタが増加することを検証する。
func TestRecordLoginFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginFailure()

	if val := counterValue(t, reg, "unidash_login_failure_total"); val != 1 {
		t.Errorf("login_failure_total = %v, want 1", val)
	}
}

// TestRecordLoginRateLimited_IncrementsCounter はレート制限カウンタが増加することを検証する。
func TestRecordLoginRateLimited_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginRateLimited()
	c.RecordLoginRateLimited()
	c.RecordLoginRateLimited()

	if val := counterValue(t, reg, "unidash_login_rate_limited_total"); val != 3 {
		t.Errorf("login_rate_limited_total = %v, want 3", val)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "unidash_http_status_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "200":
					if val != 2 {
						t.Errorf("http_status_total{status_code=200} = %v, want 2", val)
					}
				case "404":
					if val != 1 {
						t.Errorf("http_status_total{status_code=404} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("unidash_http_status_total metric not found")
	}
}

// TestRecordAIRequest_ObservesHistogram はAIレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordAIRequest_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAIRequest(100*time.Millisecond, false, true)
	c.RecordAIRequest(2*time.Second, false, false)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "unidash_ai_request_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("unidash_ai_request_latency_seconds metric not found")
	}
}

// TestRecordAIRequest_CacheHit_SkipsLatency はキャッシュヒット時にレイテンシが記録されないことを検証する。
func TestRecordAIRequest_CacheHit_SkipsLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAIRequest(0, true, true)
	c.RecordAIRequest(0, true, true)

	if val := counterValue(t, reg, "unidash_ai_cache_hits_total"); val != 2 {
		t.Errorf("ai_cache_hits_total = %v, want 2", val)
	}

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() == "unidash_ai_request_latency_seconds" {
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 0 {
				t.Errorf("cached requests should not record latency, sample_count = %d", h.GetSampleCount())
			}
		}
	}
}

// TestRecordAIRequest_ResultLabels は結果別のカウンタがラベル付きで増加することを検証する。
func TestRecordAIRequest_ResultLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAIRequest(time.Second, false, true)
	c.RecordAIRequest(time.Second, false, false)
	c.RecordAIRequest(0, true, true)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	got := map[string]float64{}
	for _, mf := range metrics {
		if mf.GetName() == "unidash_ai_requests_total" {
			for _, m := range mf.GetMetric() {
				got[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
			}
		}
	}

	if got["success"] != 1 {
		t.Errorf("ai_requests_total{result=success} = %v, want 1", got["success"])
	}
	if got["failure"] != 1 {
		t.Errorf("ai_requests_total{result=failure} = %v, want 1", got["failure"])
	}
	if got["cached"] != 1 {
		t.Errorf("ai_requests_total{result=cached} = %v, want 1", got["cached"])
	}
}

// TestSetDBUp_SetsGaugePerProject はプロジェクト別のDB接続ゲージが設定されることを検証する。
func TestSetDBUp_SetsGaugePerProject(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetDBUp("lead", true)
	c.SetDBUp("cpa", false)
	c.SetDBUp("prop", true)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	got := map[string]float64{}
	for _, mf := range metrics {
		if mf.GetName() == "unidash_db_up" {
			for _, m := range mf.GetMetric() {
				got[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
			}
		}
	}

	if got["lead"] != 1 {
		t.Errorf("db_up{project=lead} = %v, want 1", got["lead"])
	}
	if got["cpa"] != 0 {
		t.Errorf("db_up{project=cpa} = %v, want 0", got["cpa"])
	}
	if got["prop"] != 1 {
		t.Errorf("db_up{project=prop} = %v, want 1", got["prop"])
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// いくつかのメトリクスを記録
	c.RecordLoginSuccess()
	c.RecordLoginFailure()
	c.RecordHTTPStatus(200)
	c.RecordAIRequest(500*time.Millisecond, false, true)
	c.SetDBUp("lead", true)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	// Prometheus形式のメトリクスが含まれていることを確認
	expectedMetrics := []string{
		"unidash_login_success_total",
		"unidash_login_failure_total",
		"unidash_http_status_total",
		"unidash_ai_request_latency_seconds",
		"unidash_db_up",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordLoginSuccess()
	c2.RecordLoginSuccess()
	c2.RecordLoginSuccess()

	if val := counterValue(t, reg1, "unidash_login_success_total"); val != 1 {
		t.Errorf("reg1 login_success = %v, want 1", val)
	}
	if val := counterValue(t, reg2, "unidash_login_success_total"); val != 2 {
		t.Errorf("reg2 login_success = %v, want 2", val)
	}
}
