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
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordRecipeCreated()
	RecordImageUploaded()
	RecordImageRejected()
	RecordTokensPurged(count int)
	RecordOrphanFilesRemoved(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	recipesCreated prometheus.Counter
	imagesUploaded prometheus.Counter
	imagesRejected prometheus.Counter
	tokensPurged   prometheus.Counter
	orphansRemoved prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recipeman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recipeman_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		recipesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recipeman_recipes_created_total",
			Help: "作成されたレシピの合計数",
		}),
		imagesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recipeman_images_uploaded_total",
			Help: "アップロードに成功した画像の合計数",
		}),
		imagesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recipeman_images_rejected_total",
			Help: "画像として不正で拒否されたアップロードの合計数",
		}),
		tokensPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recipeman_tokens_purged_total",
			Help: "ワーカーが削除した期限切れトークンの合計数",
		}),
		orphansRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recipeman_orphan_files_removed_total",
			Help: "ワーカーが回収した孤児メディアファイルの合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.recipesCreated,
		c.imagesUploaded,
		c.imagesRejected,
		c.tokensPurged,
		c.orphansRemoved,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordRecipeCreated はレシピの作成を記録する。
func (c *Collector) RecordRecipeCreated() {
	c.recipesCreated.Inc()
}

// RecordImageUploaded は画像アップロードの成功を記録する。
func (c *Collector) RecordImageUploaded() {
	c.imagesUploaded.Inc()
}

// RecordImageRejected は不正な画像アップロードの拒否を記録する。
func (c *Collector) RecordImageRejected() {
	c.imagesRejected.Inc()
}

// RecordTokensPurged はワーカーが削除した期限切れトークン数を記録する。
func (c *Collector) RecordTokensPurged(count int) {
	c.tokensPurged.Add(float64(count))
}

// RecordOrphanFilesRemoved はワーカーが回収した孤児ファイル数を記録する。
func (c *Collector) RecordOrphanFilesRemoved(count int) {
	c.orphansRemoved.Add(float64(count))
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
