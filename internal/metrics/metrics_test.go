package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findFamily は指定名のメトリクスファミリーを返す。
func findFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(401)

	mf := findFamily(t, reg, "elderease_http_status_total")
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
		case "401":
			if val != 1 {
				t.Errorf("http_status_total{status_code=401} = %v, want 1", val)
			}
		default:
			t.Errorf("unexpected label value: %s", label)
		}
	}
}

// TestRecordSOSDispatch_LabelsByProviderAndResult はSOSカウンタがprovider/resultで分かれることを検証する。
func TestRecordSOSDispatch_LabelsByProviderAndResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSOSDispatch("MSG91", "delivered")
	c.RecordSOSDispatch("MSG91", "delivered")
	c.RecordSOSDispatch("Mock", "mock")

	mf := findFamily(t, reg, "elderease_sos_dispatch_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		labels := map[string]string{}
		for _, lp := range m.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		got[labels["provider"]+"/"+labels["result"]] = m.GetCounter().GetValue()
	}
	if got["MSG91/delivered"] != 2 {
		t.Errorf("MSG91/delivered = %v, want 2", got["MSG91/delivered"])
	}
	if got["Mock/mock"] != 1 {
		t.Errorf("Mock/mock = %v, want 1", got["Mock/mock"])
	}
}

// TestRecordGatewayLatency_ObservesHistogram はレイテンシが記録されることを検証する。
func TestRecordGatewayLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGatewayLatency(100 * time.Millisecond)
	c.RecordGatewayLatency(2 * time.Second)

	h := findFamily(t, reg, "elderease_sms_gateway_latency_seconds").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}
}

// TestRecordUpload_CountsAndSizes はアップロード件数とサイズが記録されることを検証する。
func TestRecordUpload_CountsAndSizes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpload("application/pdf", 2048)
	c.RecordUpload("image/png", 4096)

	mf := findFamily(t, reg, "elderease_uploads_total")
	if len(mf.GetMetric()) != 2 {
		t.Errorf("expected 2 file types, got %d", len(mf.GetMetric()))
	}
	h := findFamily(t, reg, "elderease_upload_size_bytes").GetMetric()[0].GetHistogram()
	if h.GetSampleSum() != 6144 {
		t.Errorf("upload size sum = %v, want 6144", h.GetSampleSum())
	}
}

// TestRecordLoginFailureAndSessionsCleaned は単純カウンタが増加することを検証する。
func TestRecordLoginFailureAndSessionsCleaned(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginFailure()
	c.RecordSessionsCleaned(7)
	c.RecordSessionsCleaned(3)

	if v := findFamily(t, reg, "elderease_login_failures_total").GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("login_failures_total = %v, want 1", v)
	}
	if v := findFamily(t, reg, "elderease_sessions_cleaned_total").GetMetric()[0].GetCounter().GetValue(); v != 10 {
		t.Errorf("sessions_cleaned_total = %v, want 10", v)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordSOSDispatch("Mock", "mock")
	c.RecordGatewayLatency(500 * time.Millisecond)
	c.RecordUpload("image/jpeg", 1024)

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, metric := range []string{
		"elderease_http_status_total",
		"elderease_sos_dispatch_total",
		"elderease_sms_gateway_latency_seconds",
		"elderease_uploads_total",
	} {
		if !strings.Contains(string(body), metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordLoginFailure()
	c2.RecordLoginFailure()
	c2.RecordLoginFailure()

	v1 := findFamily(t, reg1, "elderease_login_failures_total").GetMetric()[0].GetCounter().GetValue()
	v2 := findFamily(t, reg2, "elderease_login_failures_total").GetMetric()[0].GetCounter().GetValue()
	if v1 != 1 {
		t.Errorf("reg1 login_failures = %v, want 1", v1)
	}
	if v2 != 2 {
		t.Errorf("reg2 login_failures = %v, want 2", v2)
	}
}
