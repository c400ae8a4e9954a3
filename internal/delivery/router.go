package delivery

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/feednotify/internal/model"
	"github.com/hitoshi/feednotify/internal/repository"
)

// Router は抽出済み記事を配信メディアに振り分ける。
// フィードURLに登録されたメディアごとに配信指示を組み立て、
// ディスパッチャに引き渡す。
type Router struct {
	mediumRepo      repository.DeliveryMediumRepository
	dispatcher      *Dispatcher
	quota           *DailyQuota
	logger          *slog.Logger
	defaultMaxDaily int
}

// NewRouter はRouterの新しいインスタンスを生成する。
func NewRouter(
	mediumRepo repository.DeliveryMediumRepository,
	dispatcher *Dispatcher,
	quota *DailyQuota,
	logger *slog.Logger,
	defaultMaxDaily int,
) *Router {
	return &Router{
		mediumRepo:      mediumRepo,
		dispatcher:      dispatcher,
		quota:           quota,
		logger:          logger,
		defaultMaxDaily: defaultMaxDaily,
	}
}

// HandleArticles はフィードに登録された各メディアへ記事を配信する。
// 個々の配信失敗は他のメディア・記事の配信を妨げない。
func (r *Router) HandleArticles(ctx context.Context, feedURL string, articles []model.Article) {
	mediums, err := r.mediumRepo.ListByFeedURL(ctx, feedURL)
	if err != nil {
		r.logger.Error("配信メディアの取得に失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return
	}
	if len(mediums) == 0 {
		return
	}

	for _, medium := range mediums {
		for _, article := range articles {
			limit := medium.MaxDailyArticles
			if limit <= 0 {
				limit = r.defaultMaxDaily
			}
			if !r.quota.Allow(medium.ID, limit) {
				r.logger.Warn("1日あたりの配信上限に達したため記事をスキップします",
					slog.String("medium_id", medium.ID),
					slog.String("feed_url", feedURL),
					slog.Int("limit", limit),
				)
				break
			}

			state := r.dispatcher.DeliverArticle(ctx, article, r.buildDetails(medium, article))
			if state.Status == model.ArticleDeliveryStatusFailed {
				r.logger.Error("記事の配信に失敗しました",
					slog.String("medium_id", medium.ID),
					slog.String("article_id", article.ID),
					slog.String("error_code", string(state.ErrorCode)),
					slog.String("error", state.Message),
				)
			}
		}
	}
}

// buildDetails はメディア設定から1記事分の配信指示を組み立てる。
func (r *Router) buildDetails(medium *model.DeliveryMedium, article model.Article) model.DeliveryDetails {
	details := model.DeliveryDetails{
		DeliveryID:     uuid.NewString(),
		MediumID:       medium.ID,
		FeedID:         medium.FeedID,
		FeedURL:        medium.FeedURL,
		OrganizationID: medium.OrganizationID,
		Content:        medium.ContentTemplate,
		Embeds:         medium.Embeds,
	}
	if medium.SplitLimit > 0 {
		details.Split = &model.SplitOptions{Limit: medium.SplitLimit}
	}

	switch medium.TargetKind {
	case model.DeliveryTargetChannel:
		details.Channel = &model.ChannelTarget{ID: medium.ChannelID}
	case model.DeliveryTargetWebhook:
		details.Webhook = &model.WebhookTarget{
			ID:      medium.WebhookID,
			Token:   medium.WebhookToken,
			Name:    medium.WebhookName,
			IconURL: medium.WebhookIconURL,
		}
	}
	return details
}
