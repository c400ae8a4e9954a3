package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// gatherCounter は指定名のカウンタの最初のメトリクス値を返す。
func gatherCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mf := gatherFamily(t, reg, name)
	if len(mf.GetMetric()) != 1 {
		t.Fatalf("expected 1 metric for %s, got %d", name, len(mf.GetMetric()))
	}
	return mf.GetMetric()[0].GetCounter().GetValue()
}

// gatherFamily は指定名のメトリクスファミリを返す。見つからない場合はテスト失敗。
func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
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
	t.Fatalf("metric %s not found", name)
	return nil
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordFetchOutcome_CountsByStatus は終端ステータス別にフェッチ試行が集計されることを検証する。
func TestRecordFetchOutcome_CountsByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchOutcome("OK")
	c.RecordFetchOutcome("OK")
	c.RecordFetchOutcome("BAD_STATUS_CODE")

	mf := gatherFamily(t, reg, "feednotify_fetch_total")
	byStatus := map[string]float64{}
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "status" {
				byStatus[l.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	if byStatus["OK"] != 2 {
		t.Errorf("fetch_total{status=OK} = %v, want 2", byStatus["OK"])
	}
	if byStatus["BAD_STATUS_CODE"] != 1 {
		t.Errorf("fetch_total{status=BAD_STATUS_CODE} = %v, want 1", byStatus["BAD_STATUS_CODE"])
	}
}

// TestRecordHTTPStatus_CountsByCode はHTTPステータスコード別に集計されることを検証する。
func TestRecordHTTPStatus_CountsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(304)

	mf := gatherFamily(t, reg, "feednotify_http_status_total")
	byCode := map[string]float64{}
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "status_code" {
				byCode[l.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	if byCode["200"] != 2 {
		t.Errorf("http_status_total{status_code=200} = %v, want 2", byCode["200"])
	}
	if byCode["304"] != 1 {
		t.Errorf("http_status_total{status_code=304} = %v, want 1", byCode["304"])
	}
}

// TestRecordFetchLatency_ObservesHistogram はレイテンシがヒストグラムに記録されることを検証する。
func TestRecordFetchLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchLatency(250 * time.Millisecond)
	c.RecordFetchLatency(2 * time.Second)

	mf := gatherFamily(t, reg, "feednotify_fetch_latency_seconds")
	h := mf.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", h.GetSampleCount())
	}
	if h.GetSampleSum() < 2.2 || h.GetSampleSum() > 2.3 {
		t.Errorf("sample sum = %v, want 2.25", h.GetSampleSum())
	}
}

// TestRecordCacheHitAndMiss はキャッシュヒット・ミスが個別に集計されることを検証する。
func TestRecordCacheHitAndMiss(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCacheHit()
	c.RecordCacheHit()
	c.RecordCacheMiss()

	if got := gatherCounter(t, reg, "feednotify_cache_hits_total"); got != 2 {
		t.Errorf("cache_hits_total = %v, want 2", got)
	}
	if got := gatherCounter(t, reg, "feednotify_cache_misses_total"); got != 1 {
		t.Errorf("cache_misses_total = %v, want 1", got)
	}
}

// TestRecordBatchEmitted_CountsBatchesAndURLs はバッチ数とURL数の両方が集計されることを検証する。
func TestRecordBatchEmitted_CountsBatchesAndURLs(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBatchEmitted(25)
	c.RecordBatchEmitted(10)

	if got := gatherCounter(t, reg, "feednotify_batches_emitted_total"); got != 2 {
		t.Errorf("batches_emitted_total = %v, want 2", got)
	}
	if got := gatherCounter(t, reg, "feednotify_urls_scheduled_total"); got != 35 {
		t.Errorf("urls_scheduled_total = %v, want 35", got)
	}
}

// TestRecordEntitlementWrites_CountsByKind は更新行数が種別ラベル付きで集計されることを検証する。
func TestRecordEntitlementWrites_CountsByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordEntitlementWrites("refresh_rate", 3)
	c.RecordEntitlementWrites("refresh_rate", 2)
	c.RecordEntitlementWrites("max_daily_articles", 7)

	mf := gatherFamily(t, reg, "feednotify_entitlement_writes_total")
	byKind := map[string]float64{}
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "kind" {
				byKind[l.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	if byKind["refresh_rate"] != 5 {
		t.Errorf("entitlement_writes_total{kind=refresh_rate} = %v, want 5", byKind["refresh_rate"])
	}
	if byKind["max_daily_articles"] != 7 {
		t.Errorf("entitlement_writes_total{kind=max_daily_articles} = %v, want 7", byKind["max_daily_articles"])
	}
}

// TestRecordDeliveryEnqueuedAndFailed は配信キューイングと失敗が集計されることを検証する。
func TestRecordDeliveryEnqueuedAndFailed(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDeliveryEnqueued(3)
	c.RecordDeliveryEnqueued(1)
	c.RecordDeliveryFailed("NO_CHANNEL_OR_WEBHOOK")
	c.RecordDeliveryFailed("INTERNAL")
	c.RecordDeliveryFailed("INTERNAL")

	if got := gatherCounter(t, reg, "feednotify_deliveries_enqueued_total"); got != 4 {
		t.Errorf("deliveries_enqueued_total = %v, want 4", got)
	}

	mf := gatherFamily(t, reg, "feednotify_deliveries_failed_total")
	byCode := map[string]float64{}
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "error_code" {
				byCode[l.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	if byCode["INTERNAL"] != 2 {
		t.Errorf("deliveries_failed_total{error_code=INTERNAL} = %v, want 2", byCode["INTERNAL"])
	}
	if byCode["NO_CHANNEL_OR_WEBHOOK"] != 1 {
		t.Errorf("deliveries_failed_total{error_code=NO_CHANNEL_OR_WEBHOOK} = %v, want 1", byCode["NO_CHANNEL_OR_WEBHOOK"])
	}
}

// TestMetricsCollectorInterface はCollectorがインターフェースを実装していることを検証する。
func TestMetricsCollectorInterface(t *testing.T) {
	var _ MetricsCollector = NewCollector(prometheus.NewRegistry())
}
