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
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordFetchOutcome(status string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordCacheHit()
	RecordCacheMiss()
	RecordBatchEmitted(size int)
	RecordEntitlementWrites(kind string, count int64)
	RecordDeliveryEnqueued(count int)
	RecordDeliveryFailed(errorCode string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchOutcome      *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
	fetchLatency      prometheus.Histogram
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	batchesEmitted    prometheus.Counter
	urlsScheduled     prometheus.Counter
	entitlementWrites *prometheus.CounterVec
	deliveriesQueued  prometheus.Counter
	deliveriesFailed  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feednotify_fetch_total",
			Help: "終端ステータス別のフェッチ試行数",
		}, []string{"status"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feednotify_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feednotify_fetch_latency_seconds",
			Help:    "フィードフェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feednotify_cache_hits_total",
			Help: "フィードボディキャッシュのヒット数",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feednotify_cache_misses_total",
			Help: "フィードボディキャッシュのミス数",
		}),
		batchesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feednotify_batches_emitted_total",
			Help: "スケジューラが発行したURLバッチの合計数",
		}),
		urlsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feednotify_urls_scheduled_total",
			Help: "スケジューラがバッチに積んだURLの合計数",
		}),
		entitlementWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feednotify_entitlement_writes_total",
			Help: "エンタイトルメント同期による更新行数",
		}, []string{"kind"}),
		deliveriesQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feednotify_deliveries_enqueued_total",
			Help: "プロデューサに受理された配信ジョブの合計数",
		}),
		deliveriesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feednotify_deliveries_failed_total",
			Help: "エラーコード別の配信失敗数",
		}, []string{"error_code"}),
	}

	reg.MustRegister(
		c.fetchOutcome,
		c.httpStatus,
		c.fetchLatency,
		c.cacheHits,
		c.cacheMisses,
		c.batchesEmitted,
		c.urlsScheduled,
		c.entitlementWrites,
		c.deliveriesQueued,
		c.deliveriesFailed,
	)

	return c
}

// RecordFetchOutcome は終端ステータス別のフェッチ試行を記録する。
func (c *Collector) RecordFetchOutcome(status string) {
	c.fetchOutcome.WithLabelValues(status).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordBatchEmitted は発行したURLバッチとそのURL数を記録する。
func (c *Collector) RecordBatchEmitted(size int) {
	c.batchesEmitted.Inc()
	c.urlsScheduled.Add(float64(size))
}

// RecordEntitlementWrites はエンタイトルメント同期による更新行数を記録する。
// kindは"refresh_rate"または"max_daily_articles"。
func (c *Collector) RecordEntitlementWrites(kind string, count int64) {
	c.entitlementWrites.WithLabelValues(kind).Add(float64(count))
}

// RecordDeliveryEnqueued はプロデューサに受理された配信ジョブ数を記録する。
func (c *Collector) RecordDeliveryEnqueued(count int) {
	c.deliveriesQueued.Add(float64(count))
}

// RecordDeliveryFailed はエラーコード別の配信失敗を記録する。
func (c *Collector) RecordDeliveryFailed(errorCode string) {
	c.deliveriesFailed.WithLabelValues(errorCode).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
