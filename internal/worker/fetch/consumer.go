package fetch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/feednotify/internal/fetcher"
	"github.com/hitoshi/feednotify/internal/model"
)

// FetcherService はバッチコンシューマが利用するフェッチ操作。
type FetcherService interface {
	FetchAndCache(ctx context.Context, feedURL string, opts fetcher.Options) (*model.FetchRequest, string)
	GetLatestRequestHeaders(ctx context.Context, feedURL string) (map[string]string, error)
}

// ArticleExtractor はフェッチ済みボディから記事を抽出する。
type ArticleExtractor interface {
	Extract(feedID, feedURL, body string) ([]model.Article, error)
}

// ArticleSink は抽出済み記事の受け渡し先。配信ルーターが実装する。
type ArticleSink interface {
	HandleArticles(ctx context.Context, feedURL string, articles []model.Article)
}

// Consumer はブローカーから受信したURLバッチを消費し、
// URLごとにフェッチ・記事抽出・配信ルーターへの受け渡しを行う。
// メッセージングレイヤのat-least-once再配信を前提に、
// 同一バッチを二重に処理しても安全なように各段は冪等に作られている。
type Consumer struct {
	fetcher        FetcherService
	extractor      ArticleExtractor
	sink           ArticleSink
	logger         *slog.Logger
	maxConcurrency int
}

// NewConsumer はConsumerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合は1として扱う。
func NewConsumer(
	fetcherService FetcherService,
	extractor ArticleExtractor,
	sink ArticleSink,
	logger *slog.Logger,
	maxConcurrency int,
) *Consumer {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Consumer{
		fetcher:        fetcherService,
		extractor:      extractor,
		sink:           sink,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// HandleBatch は1バッチ分のURLをセマフォ付きで並行フェッチする。
// バッチ内の1件の失敗は他のエントリの処理に影響しない。
func (c *Consumer) HandleBatch(ctx context.Context, batch model.FeedURLBatch) {
	if len(batch.Entries) == 0 {
		return
	}

	c.logger.Info("URLバッチの処理を開始します",
		slog.Int("entries", len(batch.Entries)),
		slog.Int("refresh_rate_seconds", batch.RefreshRateSeconds),
	)

	sem := make(chan struct{}, c.maxConcurrency)
	var wg sync.WaitGroup
	for _, entry := range batch.Entries {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(entry model.FeedURLEntry) {
			defer wg.Done()
			defer func() { <-sem }()
			c.processEntry(ctx, entry)
		}(entry)
	}
	wg.Wait()
}

// processEntry は1URL分のフェッチと記事抽出を行う。
func (c *Consumer) processEntry(ctx context.Context, entry model.FeedURLEntry) {
	headers, err := c.fetcher.GetLatestRequestHeaders(ctx, entry.URL)
	if err != nil {
		// 条件付きフェッチは最適化にすぎないため、ヘッダー取得失敗でも続行する
		c.logger.Warn("条件付きフェッチヘッダーの取得に失敗しました",
			slog.String("url", entry.URL),
			slog.String("error", err.Error()),
		)
		headers = nil
	}

	req, body := c.fetcher.FetchAndCache(ctx, entry.URL, fetcher.Options{
		Headers:             headers,
		SaveToObjectStorage: entry.SaveToObjectStorage,
	})
	if req.Status != model.FetchRequestStatusOK || body == "" {
		return
	}

	articles, err := c.extractor.Extract("", entry.URL, body)
	if err != nil {
		c.logger.Warn("フィードボディからの記事抽出に失敗しました",
			slog.String("url", entry.URL),
			slog.String("request_id", req.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if len(articles) == 0 || c.sink == nil {
		return
	}

	c.sink.HandleArticles(ctx, entry.URL, articles)
}
