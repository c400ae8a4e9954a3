// Package entitlement は購読者のエンタイトルメント階層と
// 実効割り当て（リフレッシュレート・記事上限）の同期を提供する。
package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/feednotify/internal/metrics"
	"github.com/hitoshi/feednotify/internal/model"
	"github.com/hitoshi/feednotify/internal/repository"
)

// BenefitsProvider は外部のエンタイトルメントプロバイダのインターフェース。
// 全購読者のエンタイトルメント状態のスナップショットを返す。
type BenefitsProvider interface {
	GetBenefitsOfAllSubscribers(ctx context.Context) ([]model.Benefit, error)
}

// Service は購読者の実効割り当てをエンタイトルメント階層に収束させる。
// 同期は冪等で、同一入力での再実行は追加の書き込みを発生させない。
// 2つのパス（グループ設定、デフォルト復帰）はトランザクションで
// 結合されないため、途中でクラッシュしても次サイクルで自己修復する。
type Service struct {
	subRepo   repository.SubscriberRepository
	collector metrics.MetricsCollector
	logger    *slog.Logger

	defaultRefreshRate      int
	maxDailyArticlesDefault int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	subRepo repository.SubscriberRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	defaultRefreshRate int,
	maxDailyArticlesDefault int,
) *Service {
	return &Service{
		subRepo:                 subRepo,
		collector:               collector,
		logger:                  logger,
		defaultRefreshRate:      defaultRefreshRate,
		maxDailyArticlesDefault: maxDailyArticlesDefault,
	}
}

// SyncRefreshRates は全購読者のリフレッシュレート割り当てを同期する。
// 有効なエンタイトルメントを持つ購読者を値ごとにグループ化して一括設定し、
// どのグループにも含まれない購読者をデフォルト値に戻す。
func (s *Service) SyncRefreshRates(ctx context.Context, benefits []model.Benefit) error {
	groups := make(map[int][]string)
	for _, b := range benefits {
		if !b.IsSupporter || b.RefreshRateSeconds <= 0 {
			continue
		}
		groups[b.RefreshRateSeconds] = append(groups[b.RefreshRateSeconds], b.SubscriberID)
	}

	written, err := s.runSyncPasses(ctx, groups,
		s.subRepo.UpdateRefreshRates,
		s.subRepo.ResetRefreshRatesToDefault,
		s.defaultRefreshRate,
	)
	if err != nil {
		return fmt.Errorf("リフレッシュレートの同期に失敗しました: %w", err)
	}

	s.collector.RecordEntitlementWrites("refresh_rate", written)
	s.logger.Info("リフレッシュレートの同期が完了しました",
		slog.Int("groups", len(groups)),
		slog.Int64("rows_written", written),
	)
	return nil
}

// SyncMaxDailyArticles は全購読者の1日あたり記事上限を同期する。
func (s *Service) SyncMaxDailyArticles(ctx context.Context, benefits []model.Benefit) error {
	groups := make(map[int][]string)
	for _, b := range benefits {
		if !b.IsSupporter || b.MaxDailyArticles <= 0 {
			continue
		}
		groups[b.MaxDailyArticles] = append(groups[b.MaxDailyArticles], b.SubscriberID)
	}

	written, err := s.runSyncPasses(ctx, groups,
		s.subRepo.UpdateMaxDailyArticles,
		s.subRepo.ResetMaxDailyArticlesToDefault,
		s.maxDailyArticlesDefault,
	)
	if err != nil {
		return fmt.Errorf("記事上限の同期に失敗しました: %w", err)
	}

	s.collector.RecordEntitlementWrites("max_daily_articles", written)
	s.logger.Info("記事上限の同期が完了しました",
		slog.Int("groups", len(groups)),
		slog.Int64("rows_written", written),
	)
	return nil
}

// runSyncPasses は2つの同期パスを実行する。
// 第1パス: 値ごとのグループを並行して一括設定する。グループ内の更新は
// 現在値と異なる行のみに書き込まれる。いずれかのグループでエラーが
// 発生した場合は最初のエラーを返すが、すでに発行済みの他グループの
// 更新はコミットされている可能性がある（部分失敗は次サイクルで収束）。
// 第2パス: どのグループにも含まれない購読者をデフォルト値に戻す。
// 2つのパスは厳密に逐次実行される。
func (s *Service) runSyncPasses(
	ctx context.Context,
	groups map[int][]string,
	updateGroup func(ctx context.Context, ids []string, value int) (int64, error),
	resetToDefault func(ctx context.Context, excludeIDs []string, defaultValue int) (int64, error),
	defaultValue int,
) (int64, error) {
	var written atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	entitledIDs := make([]string, 0)
	for value, ids := range groups {
		entitledIDs = append(entitledIDs, ids...)
		g.Go(func() error {
			n, err := updateGroup(gctx, ids, value)
			if err != nil {
				return err
			}
			written.Add(n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return written.Load(), err
	}

	n, err := resetToDefault(ctx, entitledIDs, defaultValue)
	if err != nil {
		return written.Load(), err
	}
	written.Add(n)

	return written.Load(), nil
}
