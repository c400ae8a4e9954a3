// Package fetcher はフィードURLのフェッチ・キャッシュ・監査記録を提供する。
// 1回のフェッチで文字コードのデコード、ボディの圧縮保存、
// Request/Responseレコードの永続化までを行う。
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html/charset"

	"github.com/hitoshi/feednotify/internal/cache"
	"github.com/hitoshi/feednotify/internal/metrics"
	"github.com/hitoshi/feednotify/internal/model"
	"github.com/hitoshi/feednotify/internal/objectstore"
	"github.com/hitoshi/feednotify/internal/repository"
	"github.com/hitoshi/feednotify/internal/security"
)

// Options はFetchAndCacheの呼び出しごとのオプション。
type Options struct {
	// Headers はリクエストに付与する追加ヘッダー。
	// 条件付きフェッチのIf-None-Match/If-Modified-Since等に使用する。
	Headers map[string]string
	// SaveToObjectStorage はボディを永続オブジェクトストレージにも保存する。
	SaveToObjectStorage bool
	// PersistAsync は監査レコードの書き込みを非同期に行う。
	// 偽の場合は書き込み完了を待ってから返る。
	PersistAsync bool
}

// Service はフィードURLのフェッチとキャッシュを行う。
// すべての失敗はフェッチ境界で捕捉され、終端ステータス付きの
// 監査レコードに変換される。エラーが呼び出し元へ伝播することはない。
type Service struct {
	requestRepo repository.RequestRepository
	cacheStore  cache.Store
	objectStore objectstore.Store
	ssrfGuard   security.SSRFGuardService
	collector   metrics.MetricsCollector
	logger      *slog.Logger

	timeout      time.Duration
	maxRedirects int
	maxBodySize  int64
	userAgent    string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	requestRepo repository.RequestRepository,
	cacheStore cache.Store,
	objectStore objectstore.Store,
	ssrfGuard security.SSRFGuardService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	timeout time.Duration,
	maxRedirects int,
	maxBodySize int64,
	userAgent string,
) *Service {
	return &Service{
		requestRepo:  requestRepo,
		cacheStore:   cacheStore,
		objectStore:  objectStore,
		ssrfGuard:    ssrfGuard,
		collector:    collector,
		logger:       logger,
		timeout:      timeout,
		maxRedirects: maxRedirects,
		maxBodySize:  maxBodySize,
		userAgent:    userAgent,
	}
}

// FetchAndCache は指定URLを1回フェッチし、結果を監査レコードとして永続化する。
// 成功時はデコード済みボディを圧縮してキャッシュに保存し、ボディ文字列を返す。
// 失敗時は空文字列を返す。戻り値のFetchRequestは常に非nilで、
// ステータスは永続化前にちょうど1回だけ設定される。
func (s *Service) FetchAndCache(ctx context.Context, feedURL string, opts Options) (*model.FetchRequest, string) {
	start := time.Now()

	req := &model.FetchRequest{
		ID:  uuid.NewString(),
		URL: feedURL,
		FetchOptions: model.FetchOptions{
			Headers:   opts.Headers,
			UserAgent: s.userAgent,
		},
		CreatedAt: start,
	}

	// SSRF検証
	if err := s.ssrfGuard.ValidateURL(feedURL); err != nil {
		s.finish(ctx, req, model.FetchRequestStatusFetchError, fmt.Sprintf("SSRF検証失敗: %s", err.Error()), opts)
		return req, ""
	}

	// HTTPリクエスト構築
	client := s.ssrfGuard.NewSafeClient(s.timeout, s.maxRedirects)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		s.finish(ctx, req, model.FetchRequestStatusFetchError, fmt.Sprintf("リクエスト作成失敗: %s", err.Error()), opts)
		return req, ""
	}

	httpReq.Header.Set("User-Agent", s.userAgent)
	httpReq.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")
	for k, v := range opts.Headers {
		httpReq.Header.Set(k, v)
	}

	// HTTPリクエスト実行
	resp, err := client.Do(httpReq)
	if err != nil {
		status := model.FetchRequestStatusFetchError
		if isTimeoutError(err) {
			status = model.FetchRequestStatusFetchTimeout
		}
		s.finish(ctx, req, status, fmt.Sprintf("HTTPリクエスト失敗: %s", err.Error()), opts)
		return req, ""
	}
	defer resp.Body.Close()

	s.collector.RecordHTTPStatus(resp.StatusCode)

	// レスポンスレコードの構築。cacheKeyはURLの純粋関数として常に設定する。
	req.Response = &model.FetchResponse{
		ID:                 uuid.NewString(),
		StatusCode:         resp.StatusCode,
		ETag:               resp.Header.Get("ETag"),
		LastModified:       resp.Header.Get("Last-Modified"),
		CacheKey:           CacheKey(feedURL),
		IsCloudflareOrigin: isCloudflareOrigin(resp.Header),
		CreatedAt:          time.Now(),
	}

	// 304: コンテンツ未変更。ボディは空文字列で、キャッシュにも
	// オブジェクトストレージにも書き込まない。
	if resp.StatusCode == http.StatusNotModified {
		req.Response.TextHash = TextHash("")
		s.finish(ctx, req, model.FetchRequestStatusOK, "", opts)
		s.collector.RecordFetchLatency(time.Since(start))
		return req, ""
	}

	// 2xx以外はフェッチ失敗として記録する
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.finish(ctx, req, model.FetchRequestStatusBadStatusCode,
			fmt.Sprintf("HTTPステータス %d", resp.StatusCode), opts)
		return req, ""
	}

	// 文字コードを判定しながらボディをデコードする。
	// content-typeが無い、またはUTF-8互換の場合はそのまま読み取る。
	limited := io.LimitReader(resp.Body, s.maxBodySize+1)
	decoder, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if err != nil {
		s.finish(ctx, req, model.FetchRequestStatusParseError,
			fmt.Sprintf("文字コード判定失敗: %s", err.Error()), opts)
		return req, ""
	}

	body, err := io.ReadAll(decoder)
	if err != nil {
		status := model.FetchRequestStatusFetchError
		if isTimeoutError(err) {
			status = model.FetchRequestStatusFetchTimeout
		}
		s.finish(ctx, req, status, fmt.Sprintf("レスポンス読み取り失敗: %s", err.Error()), opts)
		return req, ""
	}

	// デコード後ボディのサイズ上限を超えた場合は拒否し、
	// キャッシュにもオブジェクトストレージにも書き込まない。
	if int64(len(body)) > s.maxBodySize {
		s.finish(ctx, req, model.FetchRequestStatusRefusedLargeFeed,
			fmt.Sprintf("ボディサイズが上限を超えています (上限: %dバイト)", s.maxBodySize), opts)
		return req, ""
	}

	text := string(body)
	req.Response.TextHash = TextHash(text)

	// ボディを圧縮してキャッシュに保存する。
	// キャッシュへの書き込み失敗はフェッチ成功を妨げない。
	compressed, err := CompressBody(text)
	if err != nil {
		s.logger.Error("ボディの圧縮に失敗しました",
			slog.String("url", feedURL),
			slog.String("error", err.Error()),
		)
	} else {
		if err := s.cacheStore.SetFeedHTMLContent(ctx, req.Response.CacheKey, compressed); err != nil {
			s.logger.Error("キャッシュへの書き込みに失敗しました",
				slog.String("url", feedURL),
				slog.String("cache_key", req.Response.CacheKey),
				slog.String("error", err.Error()),
			)
		}

		// 明示的に要求された場合のみ、新規生成した不透明キーで
		// 永続オブジェクトストレージにも保存する。失敗は致命的ではない。
		if opts.SaveToObjectStorage {
			objectKey := uuid.NewString()
			if err := s.objectStore.UploadFeedHTMLContent(ctx, objectKey, compressed); err != nil {
				s.logger.Error("オブジェクトストレージへの保存に失敗しました",
					slog.String("url", feedURL),
					slog.String("object_key", objectKey),
					slog.String("error", err.Error()),
				)
			} else {
				req.Response.ObjectStorageKey = objectKey
			}
		}
	}

	s.finish(ctx, req, model.FetchRequestStatusOK, "", opts)
	s.collector.RecordFetchLatency(time.Since(start))

	s.logger.Info("フィードフェッチが完了しました",
		slog.String("url", feedURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("body_bytes", len(body)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return req, text
}

// GetLatestRequest は指定URLの最新の非304リクエストを返す。
// レスポンスボディはキャッシュから展開して返す。キャッシュエントリが
// 失効している場合は空文字列になる。リクエスト記録がない場合はnilを返す。
func (s *Service) GetLatestRequest(ctx context.Context, feedURL string) (*model.FetchRequest, string, error) {
	req, err := s.requestRepo.FindLatestByURL(ctx, feedURL)
	if err != nil {
		return nil, "", fmt.Errorf("最新リクエストの取得に失敗しました: %w", err)
	}
	if req == nil {
		return nil, "", nil
	}

	if req.Response == nil || req.Response.CacheKey == "" {
		return req, "", nil
	}

	compressed, ok, err := s.cacheStore.GetFeedHTMLContent(ctx, req.Response.CacheKey)
	if err != nil {
		return nil, "", fmt.Errorf("キャッシュの読み取りに失敗しました: %w", err)
	}
	if !ok {
		s.collector.RecordCacheMiss()
		return req, "", nil
	}
	s.collector.RecordCacheHit()

	text, err := DecompressBody(compressed)
	if err != nil {
		// 壊れたキャッシュエントリは失効と同様に扱う
		s.logger.Warn("キャッシュエントリの展開に失敗しました",
			slog.String("url", feedURL),
			slog.String("cache_key", req.Response.CacheKey),
			slog.String("error", err.Error()),
		)
		return req, "", nil
	}

	return req, text, nil
}

// GetLatestRequestHeaders は条件付きフェッチ用に、最後に記録された
// etag/last-modifiedヘッダーを返す。記録がない場合は空のマップを返す。
func (s *Service) GetLatestRequestHeaders(ctx context.Context, feedURL string) (map[string]string, error) {
	headers, err := s.requestRepo.LatestHeadersByURL(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("最新リクエストヘッダーの取得に失敗しました: %w", err)
	}
	return headers, nil
}

// finish はリクエストに終端ステータスを設定して永続化する。
// ステータスの設定は永続化前にちょうど1回だけ行われる。
// 永続化の失敗はログに記録するのみで、フェッチ結果には影響しない。
func (s *Service) finish(ctx context.Context, req *model.FetchRequest, status model.FetchRequestStatus, errorMessage string, opts Options) {
	req.Status = status
	req.ErrorMessage = errorMessage
	s.collector.RecordFetchOutcome(string(status))

	if status != model.FetchRequestStatusOK {
		s.logger.Warn("フィードフェッチが失敗ステータスで終了しました",
			slog.String("url", req.URL),
			slog.String("status", string(status)),
			slog.String("error", errorMessage),
		)
	}

	if opts.PersistAsync {
		go func() {
			// 呼び出し元のコンテキストはすでに終了しうるため切り離す
			persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			s.persist(persistCtx, req)
		}()
		return
	}

	s.persist(ctx, req)
}

// persist は監査レコードを書き込む。失敗はログに記録するのみ。
func (s *Service) persist(ctx context.Context, req *model.FetchRequest) {
	if err := s.requestRepo.Create(ctx, req); err != nil {
		s.logger.Error("監査レコードの永続化に失敗しました",
			slog.String("url", req.URL),
			slog.String("request_id", req.ID),
			slog.String("error", err.Error()),
		)
	}
}

// isTimeoutError はエラーがタイムアウト起因かを判定する。
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// safeurl等がタイムアウトをラップした場合のフォールバック
	return strings.Contains(err.Error(), "Client.Timeout exceeded")
}

// isCloudflareOrigin はレスポンスヘッダーからCloudflare配下のオリジンかを判定する。
func isCloudflareOrigin(h http.Header) bool {
	return strings.Contains(strings.ToLower(h.Get("Server")), "cloudflare")
}
