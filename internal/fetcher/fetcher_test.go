package fetcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/feednotify/internal/model"
	"github.com/hitoshi/feednotify/internal/repository"
)

// mockRequestRepo はRequestRepositoryのテスト用実装。
type mockRequestRepo struct {
	mu        sync.Mutex
	created   []*model.FetchRequest
	createErr error

	latest    *model.FetchRequest
	latestErr error

	headers    map[string]string
	headersErr error
}

func (m *mockRequestRepo) Create(_ context.Context, req *model.FetchRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, req)
	return m.createErr
}

func (m *mockRequestRepo) FindLatestByURL(_ context.Context, _ string) (*model.FetchRequest, error) {
	return m.latest, m.latestErr
}

func (m *mockRequestRepo) LatestHeadersByURL(_ context.Context, _ string) (map[string]string, error) {
	return m.headers, m.headersErr
}

func (m *mockRequestRepo) ListByURL(_ context.Context, _ string, _ time.Time, _ int) ([]*model.FetchRequest, error) {
	return nil, nil
}

func (m *mockRequestRepo) CountByURL(_ context.Context, _ string) (int, error) {
	return 0, nil
}

// mockCacheStore はcache.Storeのテスト用実装。
type mockCacheStore struct {
	mu      sync.Mutex
	entries map[string]string
	setErr  error
	getErr  error
}

func newMockCacheStore() *mockCacheStore {
	return &mockCacheStore{entries: map[string]string{}}
}

func (m *mockCacheStore) SetFeedHTMLContent(_ context.Context, key, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[key] = body
	return nil
}

func (m *mockCacheStore) GetFeedHTMLContent(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	body, ok := m.entries[key]
	return body, ok, nil
}

// mockObjectStore はobjectstore.Storeのテスト用実装。
type mockObjectStore struct {
	mu        sync.Mutex
	objects   map[string]string
	uploadErr error
}

func newMockObjectStore() *mockObjectStore {
	return &mockObjectStore{objects: map[string]string{}}
}

func (m *mockObjectStore) UploadFeedHTMLContent(_ context.Context, key, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.objects[key] = body
	return nil
}

// mockSSRFGuard は検証を素通しし、通常のHTTPクライアントを返すテスト用実装。
// httptestサーバーはループバックアドレスで動くため、本物のガードは使えない。
type mockSSRFGuard struct {
	validateErr error
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, _ int) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockSSRFGuard) ValidateURL(_ string) error {
	return m.validateErr
}

// mockCollector はMetricsCollectorのテスト用実装。
type mockCollector struct {
	mu           sync.Mutex
	outcomes     []string
	httpStatuses []int
	latencies    int
	cacheHits    int
	cacheMisses  int
}

func (m *mockCollector) RecordFetchOutcome(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, status)
}

func (m *mockCollector) RecordHTTPStatus(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.httpStatuses = append(m.httpStatuses, code)
}

func (m *mockCollector) RecordFetchLatency(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies++
}

func (m *mockCollector) RecordCacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

func (m *mockCollector) RecordCacheMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheMisses++
}

func (m *mockCollector) RecordBatchEmitted(_ int)                  {}
func (m *mockCollector) RecordEntitlementWrites(_ string, _ int64) {}
func (m *mockCollector) RecordDeliveryEnqueued(_ int)              {}
func (m *mockCollector) RecordDeliveryFailed(_ string)             {}

type fetcherFixture struct {
	svc       *Service
	repo      *mockRequestRepo
	cache     *mockCacheStore
	objects   *mockObjectStore
	guard     *mockSSRFGuard
	collector *mockCollector
}

func newFetcherFixture(maxBodySize int64) *fetcherFixture {
	f := &fetcherFixture{
		repo:      &mockRequestRepo{},
		cache:     newMockCacheStore(),
		objects:   newMockObjectStore(),
		guard:     &mockSSRFGuard{},
		collector: &mockCollector{},
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	f.svc = NewService(f.repo, f.cache, f.objects, f.guard, f.collector, logger,
		5*time.Second, 3, maxBodySize, "feednotify-test/1.0")
	return f
}

func TestFetchAndCache_Success(t *testing.T) {
	body := "<rss><channel><title>news</title></channel></rss>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		io.WriteString(w, body)
	}))
	defer server.Close()

	f := newFetcherFixture(1 << 20)
	req, text := f.svc.FetchAndCache(context.Background(), server.URL, Options{})

	if req.Status != model.FetchRequestStatusOK {
		t.Errorf("expected status OK, got %s", req.Status)
	}
	if text != body {
		t.Errorf("expected body %q, got %q", body, text)
	}
	if req.Response == nil {
		t.Fatal("expected a response record")
	}
	if req.Response.StatusCode != http.StatusOK {
		t.Errorf("expected HTTP 200 recorded, got %d", req.Response.StatusCode)
	}
	if req.Response.ETag != `"abc123"` {
		t.Errorf("expected etag recorded, got %q", req.Response.ETag)
	}
	if req.Response.TextHash != TextHash(body) {
		t.Errorf("expected text hash of body, got %q", req.Response.TextHash)
	}
	if req.Response.CacheKey != CacheKey(server.URL) {
		t.Errorf("expected cache key derived from URL, got %q", req.Response.CacheKey)
	}

	compressed, ok, _ := f.cache.GetFeedHTMLContent(context.Background(), req.Response.CacheKey)
	if !ok {
		t.Fatal("expected body written to cache")
	}
	decompressed, err := DecompressBody(compressed)
	if err != nil {
		t.Fatalf("cache entry is not a valid compressed body: %v", err)
	}
	if decompressed != body {
		t.Errorf("cache entry mismatch: got %q", decompressed)
	}

	if len(f.repo.created) != 1 {
		t.Errorf("expected exactly 1 audit record, got %d", len(f.repo.created))
	}
	if len(f.collector.outcomes) != 1 || f.collector.outcomes[0] != "OK" {
		t.Errorf("expected one OK outcome recorded, got %v", f.collector.outcomes)
	}
}

func TestFetchAndCache_SendsConditionalHeaders(t *testing.T) {
	var gotEtag, gotModified, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEtag = r.Header.Get("If-None-Match")
		gotModified = r.Header.Get("If-Modified-Since")
		gotUA = r.Header.Get("User-Agent")
		io.WriteString(w, "<rss/>")
	}))
	defer server.Close()

	f := newFetcherFixture(1 << 20)
	f.svc.FetchAndCache(context.Background(), server.URL, Options{
		Headers: map[string]string{
			"If-None-Match":     `"abc123"`,
			"If-Modified-Since": "Mon, 02 Jan 2006 15:04:05 GMT",
		},
	})

	if gotEtag != `"abc123"` {
		t.Errorf("expected If-None-Match header, got %q", gotEtag)
	}
	if gotModified != "Mon, 02 Jan 2006 15:04:05 GMT" {
		t.Errorf("expected If-Modified-Since header, got %q", gotModified)
	}
	if gotUA != "feednotify-test/1.0" {
		t.Errorf("expected configured user agent, got %q", gotUA)
	}
}

// 1回目のフェッチで記録したetag/last-modifiedをリポジトリのヘッダー対応で
// 条件付きヘッダーに変換し、2回目のフェッチで304が成立することを検証する。
// 記録時のカラム名ではなくHTTPヘッダー名で送られることが契約。
func TestFetchAndCache_ConditionalFetchRoundTrip(t *testing.T) {
	const etag = `"v1"`
	const lastModified = "Mon, 02 Jan 2006 15:04:05 GMT"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Last-Modified", lastModified)
		io.WriteString(w, "<rss/>")
	}))
	defer server.Close()

	f := newFetcherFixture(1 << 20)

	// 1回目: 200でetag/last-modifiedが記録される
	first, _ := f.svc.FetchAndCache(context.Background(), server.URL, Options{})
	if first.Status != model.FetchRequestStatusOK {
		t.Fatalf("first fetch status = %s, want OK", first.Status)
	}
	if first.Response.ETag != etag {
		t.Fatalf("recorded etag = %q, want %q", first.Response.ETag, etag)
	}

	// 2回目: 記録済みレスポンスから条件付きヘッダーを組み立てて送る
	headers := repository.ConditionalHeaders(first.Response.ETag, first.Response.LastModified)
	second, body := f.svc.FetchAndCache(context.Background(), server.URL, Options{Headers: headers})

	if second.Status != model.FetchRequestStatusOK {
		t.Errorf("second fetch status = %s, want OK", second.Status)
	}
	if second.Response.StatusCode != http.StatusNotModified {
		t.Errorf("second fetch HTTP status = %d, want 304 (conditional headers not honored)", second.Response.StatusCode)
	}
	if body != "" {
		t.Errorf("second fetch body = %q, want empty on 304", body)
	}
}

func TestFetchAndCache_NotModified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	f := newFetcherFixture(1 << 20)
	req, text := f.svc.FetchAndCache(context.Background(), server.URL, Options{})

	if req.Status != model.FetchRequestStatusOK {
		t.Errorf("expected 304 to terminate as OK, got %s", req.Status)
	}
	if text != "" {
		t.Errorf("expected empty body for 304, got %q", text)
	}
	if req.Response.TextHash != TextHash("") {
		t.Errorf("expected hash of empty content, got %q", req.Response.TextHash)
	}
	if len(f.cache.entries) != 0 {
		t.Errorf("expected no cache writes on 304, got %d entries", len(f.cache.entries))
	}
	if len(f.repo.created) != 1 {
		t.Errorf("expected audit record for 304, got %d", len(f.repo.created))
	}
}

func TestFetchAndCache_BadStatusCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	f := newFetcherFixture(1 << 20)
	req, text := f.svc.FetchAndCache(context.Background(), server.URL, Options{})

	if req.Status != model.FetchRequestStatusBadStatusCode {
		t.Errorf("expected BAD_STATUS_CODE, got %s", req.Status)
	}
	if text != "" {
		t.Errorf("expected empty body on failure, got %q", text)
	}
	if req.Response == nil || req.Response.StatusCode != http.StatusNotFound {
		t.Error("expected the HTTP status recorded on the response")
	}
	if len(f.repo.created) != 1 {
		t.Errorf("expected audit record for failed fetch, got %d", len(f.repo.created))
	}
}

func TestFetchAndCache_SSRFValidationFailure(t *testing.T) {
	f := newFetcherFixture(1 << 20)
	f.guard.validateErr = errors.New("private address blocked")

	req, text := f.svc.FetchAndCache(context.Background(), "http://169.254.169.254/meta", Options{})

	if req.Status != model.FetchRequestStatusFetchError {
		t.Errorf("expected FETCH_ERROR, got %s", req.Status)
	}
	if text != "" {
		t.Errorf("expected empty body, got %q", text)
	}
	if req.Response != nil {
		t.Error("expected no response record when the request was never sent")
	}
	if len(f.repo.created) != 1 {
		t.Errorf("expected audit record for blocked fetch, got %d", len(f.repo.created))
	}
}

func TestFetchAndCache_RefusesLargeFeed(t *testing.T) {
	large := make([]byte, 2048)
	for i := range large {
		large[i] = 'a'
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(large)
	}))
	defer server.Close()

	f := newFetcherFixture(1024)
	req, text := f.svc.FetchAndCache(context.Background(), server.URL, Options{})

	if req.Status != model.FetchRequestStatusRefusedLargeFeed {
		t.Errorf("expected REFUSED_LARGE_FEED, got %s", req.Status)
	}
	if text != "" {
		t.Errorf("expected empty body for refused feed, got %q", text)
	}
	if len(f.cache.entries) != 0 {
		t.Error("expected no cache writes for refused feed")
	}
	if len(f.objects.objects) != 0 {
		t.Error("expected no object storage writes for refused feed")
	}
}

func TestFetchAndCache_BodyAtExactLimitIsAccepted(t *testing.T) {
	exact := make([]byte, 1024)
	for i := range exact {
		exact[i] = 'a'
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(exact)
	}))
	defer server.Close()

	f := newFetcherFixture(1024)
	req, text := f.svc.FetchAndCache(context.Background(), server.URL, Options{})

	if req.Status != model.FetchRequestStatusOK {
		t.Errorf("expected OK at exact size limit, got %s", req.Status)
	}
	if len(text) != 1024 {
		t.Errorf("expected full body, got %d bytes", len(text))
	}
}

func TestFetchAndCache_SaveToObjectStorage(t *testing.T) {
	body := "<rss/>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	defer server.Close()

	f := newFetcherFixture(1 << 20)
	req, _ := f.svc.FetchAndCache(context.Background(), server.URL, Options{SaveToObjectStorage: true})

	if req.Response.ObjectStorageKey == "" {
		t.Fatal("expected an object storage key on the response")
	}
	if req.Response.ObjectStorageKey == req.Response.CacheKey {
		t.Error("expected object storage key independent of cache key")
	}
	stored, ok := f.objects.objects[req.Response.ObjectStorageKey]
	if !ok {
		t.Fatal("expected body uploaded to object storage")
	}
	decompressed, err := DecompressBody(stored)
	if err != nil || decompressed != body {
		t.Errorf("object storage entry mismatch: %q (err=%v)", decompressed, err)
	}
}

func TestFetchAndCache_ObjectStorageFailureIsNonFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<rss/>")
	}))
	defer server.Close()

	f := newFetcherFixture(1 << 20)
	f.objects.uploadErr = errors.New("disk full")
	req, text := f.svc.FetchAndCache(context.Background(), server.URL, Options{SaveToObjectStorage: true})

	if req.Status != model.FetchRequestStatusOK {
		t.Errorf("expected OK despite upload failure, got %s", req.Status)
	}
	if text != "<rss/>" {
		t.Errorf("expected body returned, got %q", text)
	}
	if req.Response.ObjectStorageKey != "" {
		t.Error("expected no object storage key after failed upload")
	}
}

func TestFetchAndCache_CacheWriteFailureIsNonFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<rss/>")
	}))
	defer server.Close()

	f := newFetcherFixture(1 << 20)
	f.cache.setErr = errors.New("cache unavailable")
	req, text := f.svc.FetchAndCache(context.Background(), server.URL, Options{})

	if req.Status != model.FetchRequestStatusOK {
		t.Errorf("expected OK despite cache failure, got %s", req.Status)
	}
	if text != "<rss/>" {
		t.Errorf("expected body returned, got %q", text)
	}
}

func TestFetchAndCache_PersistFailureIsNonFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<rss/>")
	}))
	defer server.Close()

	f := newFetcherFixture(1 << 20)
	f.repo.createErr = errors.New("db down")
	req, text := f.svc.FetchAndCache(context.Background(), server.URL, Options{})

	if req.Status != model.FetchRequestStatusOK {
		t.Errorf("expected OK despite persistence failure, got %s", req.Status)
	}
	if text != "<rss/>" {
		t.Errorf("expected body returned, got %q", text)
	}
}

// PersistAsync指定時は監査レコードが呼び出し元のコンテキストから
// 切り離されたゴルーチンで書き込まれることを検証する。
func TestFetchAndCache_PersistAsync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<rss/>")
	}))
	defer server.Close()

	f := newFetcherFixture(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	req, text := f.svc.FetchAndCache(ctx, server.URL, Options{PersistAsync: true})
	// 呼び出し元のコンテキストが直後に終了しても永続化は完了する
	cancel()

	if req.Status != model.FetchRequestStatusOK {
		t.Errorf("expected OK, got %s", req.Status)
	}
	if text != "<rss/>" {
		t.Errorf("expected body returned, got %q", text)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		f.repo.mu.Lock()
		n := len(f.repo.created)
		f.repo.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("audit record not persisted asynchronously: %d records", n)
		}
		time.Sleep(10 * time.Millisecond)
	}

	f.repo.mu.Lock()
	persisted := f.repo.created[0]
	f.repo.mu.Unlock()
	if persisted.Status != model.FetchRequestStatusOK {
		t.Errorf("persisted record status = %s, want OK (status set before persistence)", persisted.Status)
	}
}

func TestFetchAndCache_DecodesShiftJIS(t *testing.T) {
	// "日本語" encoded as Shift_JIS
	sjis := []byte{0x93, 0xfa, 0x96, 0x7b, 0x8c, 0xea}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=Shift_JIS")
		w.Write(sjis)
	}))
	defer server.Close()

	f := newFetcherFixture(1 << 20)
	req, text := f.svc.FetchAndCache(context.Background(), server.URL, Options{})

	if req.Status != model.FetchRequestStatusOK {
		t.Fatalf("expected OK, got %s", req.Status)
	}
	if text != "日本語" {
		t.Errorf("expected decoded UTF-8 body, got %q", text)
	}
}

func TestGetLatestRequest_CacheHit(t *testing.T) {
	body := "<rss>cached</rss>"
	compressed, err := CompressBody(body)
	if err != nil {
		t.Fatalf("CompressBody returned error: %v", err)
	}

	f := newFetcherFixture(1 << 20)
	key := CacheKey("https://example.com/feed.xml")
	f.cache.entries[key] = compressed
	f.repo.latest = &model.FetchRequest{
		ID:  "req-1",
		URL: "https://example.com/feed.xml",
		Response: &model.FetchResponse{
			ID:       "resp-1",
			CacheKey: key,
		},
	}

	req, text, err := f.svc.GetLatestRequest(context.Background(), "https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("GetLatestRequest returned error: %v", err)
	}
	if req == nil || req.ID != "req-1" {
		t.Fatal("expected the stored request returned")
	}
	if text != body {
		t.Errorf("expected decompressed cached body, got %q", text)
	}
	if f.collector.cacheHits != 1 {
		t.Errorf("expected 1 cache hit recorded, got %d", f.collector.cacheHits)
	}
}

func TestGetLatestRequest_CacheMiss(t *testing.T) {
	f := newFetcherFixture(1 << 20)
	f.repo.latest = &model.FetchRequest{
		ID:       "req-1",
		URL:      "https://example.com/feed.xml",
		Response: &model.FetchResponse{ID: "resp-1", CacheKey: "expired-key"},
	}

	req, text, err := f.svc.GetLatestRequest(context.Background(), "https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("GetLatestRequest returned error: %v", err)
	}
	if req == nil {
		t.Fatal("expected the request returned even on cache miss")
	}
	if text != "" {
		t.Errorf("expected empty body on cache miss, got %q", text)
	}
	if f.collector.cacheMisses != 1 {
		t.Errorf("expected 1 cache miss recorded, got %d", f.collector.cacheMisses)
	}
}

func TestGetLatestRequest_NoRecord(t *testing.T) {
	f := newFetcherFixture(1 << 20)
	req, text, err := f.svc.GetLatestRequest(context.Background(), "https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("GetLatestRequest returned error: %v", err)
	}
	if req != nil {
		t.Error("expected nil request when no record exists")
	}
	if text != "" {
		t.Errorf("expected empty body, got %q", text)
	}
}

func TestGetLatestRequest_CorruptCacheEntry(t *testing.T) {
	f := newFetcherFixture(1 << 20)
	key := CacheKey("https://example.com/feed.xml")
	f.cache.entries[key] = "not a valid compressed body"
	f.repo.latest = &model.FetchRequest{
		ID:       "req-1",
		URL:      "https://example.com/feed.xml",
		Response: &model.FetchResponse{ID: "resp-1", CacheKey: key},
	}

	req, text, err := f.svc.GetLatestRequest(context.Background(), "https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("expected corrupt entry treated as expired, got error: %v", err)
	}
	if req == nil {
		t.Fatal("expected the request returned")
	}
	if text != "" {
		t.Errorf("expected empty body for corrupt entry, got %q", text)
	}
}

func TestGetLatestRequest_RepoError(t *testing.T) {
	f := newFetcherFixture(1 << 20)
	f.repo.latestErr = errors.New("db down")

	if _, _, err := f.svc.GetLatestRequest(context.Background(), "https://example.com/feed.xml"); err == nil {
		t.Error("expected error when the repository fails")
	}
}

func TestGetLatestRequestHeaders(t *testing.T) {
	f := newFetcherFixture(1 << 20)
	f.repo.headers = map[string]string{
		"If-None-Match":     `"abc123"`,
		"If-Modified-Since": "Mon, 02 Jan 2006 15:04:05 GMT",
	}

	headers, err := f.svc.GetLatestRequestHeaders(context.Background(), "https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("GetLatestRequestHeaders returned error: %v", err)
	}
	if headers["If-None-Match"] != `"abc123"` {
		t.Errorf("expected recorded etag header, got %q", headers["If-None-Match"])
	}
}

func TestGetLatestRequestHeaders_RepoError(t *testing.T) {
	f := newFetcherFixture(1 << 20)
	f.repo.headersErr = errors.New("db down")

	if _, err := f.svc.GetLatestRequestHeaders(context.Background(), "https://example.com/feed.xml"); err == nil {
		t.Error("expected error when the repository fails")
	}
}

func TestIsTimeoutError(t *testing.T) {
	if !isTimeoutError(context.DeadlineExceeded) {
		t.Error("expected deadline exceeded classified as timeout")
	}
	if isTimeoutError(errors.New("connection refused")) {
		t.Error("expected ordinary error not classified as timeout")
	}
	if !isTimeoutError(errors.New("Get \"http://x\": context deadline exceeded (Client.Timeout exceeded while awaiting headers)")) {
		t.Error("expected wrapped client timeout classified as timeout")
	}
}
