// Package refresh はリフレッシュレート階層ごとのフェッチスケジューリングを提供する。
// 各階層はその秒数を間隔とするティッカーで独立したサイクルを実行し、
// フェッチ対象URLをバッチにまとめてディスパッチする。
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/feednotify/internal/broker"
	"github.com/hitoshi/feednotify/internal/entitlement"
	"github.com/hitoshi/feednotify/internal/metrics"
	"github.com/hitoshi/feednotify/internal/model"
	"github.com/hitoshi/feednotify/internal/repository"
)

// DispatchFunc はバッチのディスパッチコールバック。
// メッセージング層のat-least-once再配信に対して冪等であること。
type DispatchFunc func(ctx context.Context, batch model.FeedURLBatch) error

// EntitlementSyncer はエンタイトルメント同期のインターフェース。
type EntitlementSyncer interface {
	SyncRefreshRates(ctx context.Context, benefits []model.Benefit) error
	SyncMaxDailyArticles(ctx context.Context, benefits []model.Benefit) error
}

// Scheduler はリフレッシュレート階層ごとのスケジューリングを行う。
// 階層間で共有する可変状態はエンタイトルメント同期のみで、
// 同期は各サイクルの問い合わせより前に必ず完了する。
type Scheduler struct {
	benefits    entitlement.BenefitsProvider
	syncer      EntitlementSyncer
	feedSubRepo repository.FeedSubscriptionRepository
	debugRepo   repository.DebugURLRepository
	publisher   broker.Publisher
	collector   metrics.MetricsCollector
	logger      *slog.Logger
	batchSize   int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// batchSizeが0以下の場合はデフォルト値25を使用する。
func NewScheduler(
	benefits entitlement.BenefitsProvider,
	syncer EntitlementSyncer,
	feedSubRepo repository.FeedSubscriptionRepository,
	debugRepo repository.DebugURLRepository,
	publisher broker.Publisher,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	batchSize int,
) *Scheduler {
	if batchSize <= 0 {
		batchSize = 25
	}
	return &Scheduler{
		benefits:    benefits,
		syncer:      syncer,
		feedSubRepo: feedSubRepo,
		debugRepo:   debugRepo,
		publisher:   publisher,
		collector:   collector,
		logger:      logger,
		batchSize:   batchSize,
	}
}

// Start は各リフレッシュレート階層のサイクルをティッカーで起動する。
// 階層ごとに独立したゴルーチンで実行し、コンテキストが
// キャンセルされるまで実行を継続する（ブロッキング）。
func (s *Scheduler) Start(ctx context.Context, refreshRates []int) {
	var wg sync.WaitGroup

	for _, rate := range refreshRates {
		wg.Add(1)
		go func(rateSeconds int) {
			defer wg.Done()
			s.runTier(ctx, rateSeconds)
		}(rate)
	}

	s.logger.Info("リフレッシュスケジューラを開始しました",
		slog.Any("refresh_rates", refreshRates),
		slog.Int("batch_size", s.batchSize),
	)

	wg.Wait()
	s.logger.Info("リフレッシュスケジューラを停止しました")
}

// runTier は1つのリフレッシュレート階層のサイクルを定期実行する。
func (s *Scheduler) runTier(ctx context.Context, rateSeconds int) {
	interval := time.Duration(rateSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 起動直後に1回実行
	if err := s.RunCycle(ctx, rateSeconds, s.publishDispatch(rateSeconds)); err != nil {
		s.logger.Error("リフレッシュサイクルの実行に失敗しました",
			slog.Int("refresh_rate_seconds", rateSeconds),
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunCycle(ctx, rateSeconds, s.publishDispatch(rateSeconds)); err != nil {
				s.logger.Error("リフレッシュサイクルの実行に失敗しました",
					slog.Int("refresh_rate_seconds", rateSeconds),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// publishDispatch はブローカー発行をDispatchFuncに適合させる。
// バッチの有効期限はリフレッシュレート窓に等しく、処理が遅延した
// バッチはブローカー側で破棄される。
func (s *Scheduler) publishDispatch(rateSeconds int) DispatchFunc {
	ttl := time.Duration(rateSeconds) * time.Second
	return func(ctx context.Context, batch model.FeedURLBatch) error {
		return s.publisher.PublishURLBatch(ctx, batch, ttl)
	}
}

// RunCycle は1つの階層のスケジューリングサイクルを1回実行する。
// エンタイトルメント同期を完了させてから対象URLを問い合わせ、
// カーソル順にバッチへ蓄積して容量到達ごとに即時ディスパッチする。
// カーソル終端で最後の部分バッチをフラッシュする。
func (s *Scheduler) RunCycle(ctx context.Context, rateSeconds int, dispatch DispatchFunc) error {
	start := time.Now()

	// 1. エンタイトルメント同期。問い合わせが現在のエンタイトルメントを
	// 反映するよう、同期の完了を待ってからクエリを実行する。
	benefits, err := s.benefits.GetBenefitsOfAllSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("エンタイトルメントの取得に失敗しました: %w", err)
	}
	if err := s.syncer.SyncRefreshRates(ctx, benefits); err != nil {
		return fmt.Errorf("リフレッシュレート同期に失敗しました: %w", err)
	}
	if err := s.syncer.SyncMaxDailyArticles(ctx, benefits); err != nil {
		return fmt.Errorf("記事上限同期に失敗しました: %w", err)
	}

	// 2. デバッグURLセットの取得
	debugURLs, err := s.debugRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("デバッグURLセットの取得に失敗しました: %w", err)
	}

	// 3. 対象URLをカーソルでストリームしながらバッチに蓄積する
	cursor, err := s.feedSubRepo.DistinctURLsByRefreshRate(ctx, rateSeconds)
	if err != nil {
		return fmt.Errorf("フェッチ対象URLの問い合わせに失敗しました: %w", err)
	}
	defer cursor.Close()

	var (
		entries    []model.FeedURLEntry
		urlCount   int
		batchCount int
	)

	flush := func() error {
		if len(entries) == 0 {
			return nil
		}
		batch := model.FeedURLBatch{
			Entries:            entries,
			RefreshRateSeconds: rateSeconds,
		}
		if err := dispatch(ctx, batch); err != nil {
			return fmt.Errorf("バッチのディスパッチに失敗しました: %w", err)
		}
		s.collector.RecordBatchEmitted(len(entries))
		batchCount++
		entries = nil
		return nil
	}

	for cursor.Next() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		url := cursor.URL()
		_, isDebug := debugURLs[url]
		entries = append(entries, model.FeedURLEntry{
			URL:                 url,
			SaveToObjectStorage: isDebug,
		})
		urlCount++

		if len(entries) >= s.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("フェッチ対象URLの読み取りに失敗しました: %w", err)
	}

	// カーソル終端: 最後の部分バッチをフラッシュする（パディングなし）
	if err := flush(); err != nil {
		return err
	}

	s.logger.Info("リフレッシュサイクルが完了しました",
		slog.Int("refresh_rate_seconds", rateSeconds),
		slog.Int("url_count", urlCount),
		slog.Int("batch_count", batchCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}
