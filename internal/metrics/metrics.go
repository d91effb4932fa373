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
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordSOSDispatch(provider, result string)
	RecordGatewayLatency(duration time.Duration)
	RecordUpload(fileType string, size int)
	RecordLoginFailure()
	RecordSessionsCleaned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	sosDispatch     *prometheus.CounterVec
	gatewayLatency  prometheus.Histogram
	uploads         *prometheus.CounterVec
	uploadBytes     prometheus.Histogram
	loginFailures   prometheus.Counter
	sessionsCleaned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "elderease_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sosDispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "elderease_sos_dispatch_total",
			Help: "SOS送信の結果別件数",
		}, []string{"provider", "result"}),
		gatewayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "elderease_sms_gateway_latency_seconds",
			Help:    "SMSゲートウェイ呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "elderease_uploads_total",
			Help: "MIMEタイプ別の処方箋アップロード数",
		}, []string{"file_type"}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "elderease_upload_size_bytes",
			Help:    "アップロードされたファイルのサイズ（バイト）",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 6),
		}),
		loginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "elderease_login_failures_total",
			Help: "認証情報不一致によるログイン失敗数",
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "elderease_sessions_cleaned_total",
			Help: "クリーンアップで削除された期限切れセッション数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.sosDispatch,
		c.gatewayLatency,
		c.uploads,
		c.uploadBytes,
		c.loginFailures,
		c.sessionsCleaned,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSOSDispatch はSOS送信結果を記録する。
// resultは"delivered", "mock", "failed"のいずれか。
func (c *Collector) RecordSOSDispatch(provider, result string) {
	c.sosDispatch.WithLabelValues(provider, result).Inc()
}

// RecordGatewayLatency はSMSゲートウェイ呼び出しのレイテンシを記録する。
func (c *Collector) RecordGatewayLatency(duration time.Duration) {
	c.gatewayLatency.Observe(duration.Seconds())
}

// RecordUpload はアップロードを記録する。
func (c *Collector) RecordUpload(fileType string, size int) {
	c.uploads.WithLabelValues(fileType).Inc()
	c.uploadBytes.Observe(float64(size))
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFailures.Inc()
}

// RecordSessionsCleaned は削除されたセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。メトリクスが不要なテストやワイヤリングで使う。
type Nop struct{}

func (Nop) RecordHTTPStatus(int)               {}
func (Nop) RecordSOSDispatch(string, string)   {}
func (Nop) RecordGatewayLatency(time.Duration) {}
func (Nop) RecordUpload(string, int)           {}
func (Nop) RecordLoginFailure()                {}
func (Nop) RecordSessionsCleaned(int64)        {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
