// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証フロー、ミドルウェア、掃除ジョブ、ブリッジから利用する。
type MetricsCollector interface {
	RecordLogin(provider string, outcome string)
	RecordSessionValidation(outcome string)
	RecordSweep(target string, deleted int64)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins      *prometheus.CounterVec
	validations *prometheus.CounterVec
	swept       *prometheus.CounterVec
	httpStatus  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grailtracker_logins_total",
			Help: "プロバイダー・結果別のログイン試行数",
		}, []string{"provider", "outcome"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grailtracker_session_validations_total",
			Help: "結果別のセッション検証数",
		}, []string{"outcome"}),
		swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grailtracker_swept_rows_total",
			Help: "掃除ジョブで削除された期限切れレコード数",
		}, []string{"target"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grailtracker_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.logins,
		c.validations,
		c.swept,
		c.httpStatus,
	)

	return c
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(provider string, outcome string) {
	c.logins.WithLabelValues(provider, outcome).Inc()
}

// RecordSessionValidation はセッション検証の結果を記録する。
func (c *Collector) RecordSessionValidation(outcome string) {
	c.validations.WithLabelValues(outcome).Inc()
}

// RecordSweep は掃除ジョブの削除件数を記録する。
func (c *Collector) RecordSweep(target string, deleted int64) {
	c.swept.WithLabelValues(target).Add(float64(deleted))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordLogin(string, string) {}

func (Nop) RecordSessionValidation(string) {}

func (Nop) RecordSweep(string, int64) {}

func (Nop) RecordHTTPStatus(int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
