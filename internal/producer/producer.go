// Package producer はレート制限付きの配信ジョブ実行ワーカーを提供する。
package producer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/feednotify/internal/delivery"
)

// Config はプロデューサの設定を保持する。
type Config struct {
	// Workers はキューを消費するワーカーゴルーチン数。
	Workers int
	// Rate は配信先ごとの秒間リクエスト数。
	Rate rate.Limit
	// Burst は配信先ごとのバーストサイズ。
	Burst int
	// QueueSize はエンキュー待ちジョブの最大数。
	QueueSize int
	// RequestTimeout は1リクエストのタイムアウト。
	RequestTimeout time.Duration
	// CleanupInterval は未使用リミッターのクリーンアップ間隔。
	CleanupInterval time.Duration
}

// DefaultConfig はデフォルトのプロデューサ設定を返す。
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		Rate:            rate.Limit(5),
		Burst:           5,
		QueueSize:       1000,
		RequestTimeout:  15 * time.Second,
		CleanupInterval: 5 * time.Minute,
	}
}

// JobResult は非同期配信ジョブの実行結果を表す。
type JobResult struct {
	Meta        delivery.CorrelationMetadata
	StatusCode  int
	Error       string
	CompletedAt time.Time
}

// ResultHandler は非同期ジョブの実行結果を受け取るコールバック。
type ResultHandler func(result JobResult)

// queuedJob はキュー上の配信ジョブ1件を表す。
type queuedJob struct {
	endpoint string
	request  delivery.ProducerRequest
	meta     delivery.CorrelationMetadata
}

// targetLimiter は配信先ごとのレートリミッターとアクセス時刻を保持する。
type targetLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// HTTPProducer は配信先ごとのレート制限を適用しながら
// キュー上の配信ジョブをHTTPで実行するプロデューサ。
// Enqueueは受理のみを保証し、実行結果はResultHandlerへ非同期に報告される。
type HTTPProducer struct {
	config   Config
	client   *http.Client
	queue    chan queuedJob
	onResult ResultHandler
	logger   *slog.Logger

	mu       sync.Mutex
	limiters map[string]*targetLimiter
}

// NewHTTPProducer はHTTPProducerの新しいインスタンスを生成する。
// onResultはnilでもよく、その場合結果は破棄される。
func NewHTTPProducer(config Config, onResult ResultHandler, logger *slog.Logger) *HTTPProducer {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1
	}
	return &HTTPProducer{
		config:   config,
		client:   &http.Client{Timeout: config.RequestTimeout},
		queue:    make(chan queuedJob, config.QueueSize),
		onResult: onResult,
		logger:   logger,
		limiters: make(map[string]*targetLimiter),
	}
}

// Start はワーカーゴルーチンを起動し、コンテキストの終了までキューを消費する。
// すべてのワーカーの停止までブロックする。
func (p *HTTPProducer) Start(ctx context.Context) {
	p.logger.Info("配信プロデューサを開始します",
		slog.Int("workers", p.config.Workers),
		slog.Int("queue_size", p.config.QueueSize),
	)

	go p.cleanupLoop(ctx)

	var wg sync.WaitGroup
	for i := 0; i < p.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.workerLoop(ctx)
		}()
	}
	wg.Wait()
}

// Enqueue はジョブをキューに積む。受理のみを保証し、HTTP実行は待たない。
// キューが満杯の場合はブロックせずにエラーを返す。
func (p *HTTPProducer) Enqueue(ctx context.Context, endpoint string, req delivery.ProducerRequest, meta delivery.CorrelationMetadata) error {
	job := queuedJob{endpoint: endpoint, request: req, meta: meta}
	select {
	case p.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("配信キューが満杯です（容量: %d）", p.config.QueueSize)
	}
}

// Fetch はレート制限を適用した上でジョブを同期実行し、生レスポンスを返す。
func (p *HTTPProducer) Fetch(ctx context.Context, endpoint string, req delivery.ProducerRequest) (*delivery.ProducerResponse, error) {
	return p.execute(ctx, endpoint, req)
}

// workerLoop はキューからジョブを取り出して実行し、結果を報告する。
func (p *HTTPProducer) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.queue:
			result := JobResult{Meta: job.meta, CompletedAt: time.Now()}

			resp, err := p.execute(ctx, job.endpoint, job.request)
			if err != nil {
				result.Error = err.Error()
				p.logger.Warn("配信ジョブの実行に失敗しました",
					slog.String("delivery_id", job.meta.DeliveryID),
					slog.String("target_id", job.meta.TargetID),
					slog.String("error", err.Error()),
				)
			} else {
				result.StatusCode = resp.StatusCode
			}

			if job.meta.EmitDeliveryResult && p.onResult != nil {
				p.onResult(result)
			}
		}
	}
}

// execute はレート制限を待った後にHTTPリクエストを1回実行する。
func (p *HTTPProducer) execute(ctx context.Context, endpoint string, req delivery.ProducerRequest) (*delivery.ProducerResponse, error) {
	limiter := p.getOrCreateLimiter(endpoint)
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("レート制限の待機が中断されました: %w", err)
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("リクエストの構築に失敗しました: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("リクエストの実行に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	return &delivery.ProducerResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

// getOrCreateLimiter は配信先エンドポイントのリミッターを取得または作成する。
func (p *HTTPProducer) getOrCreateLimiter(endpoint string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if tl, exists := p.limiters[endpoint]; exists {
		tl.lastAccess = time.Now()
		return tl.limiter
	}

	limiter := rate.NewLimiter(p.config.Rate, p.config.Burst)
	p.limiters[endpoint] = &targetLimiter{limiter: limiter, lastAccess: time.Now()}
	return limiter
}

// cleanupLoop は最終アクセスがCleanupIntervalの2倍を超えたリミッターを定期削除する。
func (p *HTTPProducer) cleanupLoop(ctx context.Context) {
	if p.config.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(p.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ttl := p.config.CleanupInterval * 2
			now := time.Now()
			p.mu.Lock()
			for endpoint, tl := range p.limiters {
				if now.Sub(tl.lastAccess) > ttl {
					delete(p.limiters, endpoint)
				}
			}
			p.mu.Unlock()
		}
	}
}
