package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/feednotify/internal/metrics"
	"github.com/hitoshi/feednotify/internal/model"
)

// ErrNoChannelOrWebhook は配信先が未指定または解決不能な場合のエラー。
var ErrNoChannelOrWebhook = errors.New("配信先のチャンネルまたはWebhookが指定されていません")

// ProducerRequest はプロデューサに渡すHTTPリクエスト内容。
type ProducerRequest struct {
	Method string
	Body   []byte
}

// ProducerResponse はプロデューサの同期フェッチの生レスポンス。
type ProducerResponse struct {
	StatusCode int
	Body       []byte
}

// CorrelationMetadata は配信ジョブに付与する相関メタデータ。
// 非同期の配信結果コールバックをジョブと突き合わせるために使う。
type CorrelationMetadata struct {
	DeliveryID         string
	ArticleID          string
	FeedID             string
	FeedURL            string
	OrganizationID     string
	TargetID           string
	EmitDeliveryResult bool
}

// Producer はレート制限付きの外部メッセージプロデューサ。
// Enqueueは受理のみを保証し、HTTP実行の結果は非同期に報告される。
// Fetchはテスト送信用の同期バリアント。
type Producer interface {
	Enqueue(ctx context.Context, endpoint string, req ProducerRequest, meta CorrelationMetadata) error
	Fetch(ctx context.Context, endpoint string, req ProducerRequest) (*ProducerResponse, error)
}

// Dispatcher は1記事を配信先ごとのメッセージペイロードに整形し、
// プロデューサのキューに引き渡す。
type Dispatcher struct {
	producer   Producer
	renderer   Renderer
	collector  metrics.MetricsCollector
	logger     *slog.Logger
	apiBaseURL string
	splitLimit int
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// splitLimitは分割ポリシー未指定時の既定の1パート最大文字数。
func NewDispatcher(
	producer Producer,
	renderer Renderer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	apiBaseURL string,
	splitLimit int,
) *Dispatcher {
	return &Dispatcher{
		producer:   producer,
		renderer:   renderer,
		collector:  collector,
		logger:     logger,
		apiBaseURL: apiBaseURL,
		splitLimit: splitLimit,
	}
}

// DeliverArticle は1記事を整形してプロデューサに引き渡し、配信状態を返す。
// すべてのペイロードが受理された時点でPENDING_DELIVERYを返す。
// 受理はHTTP完了を待たない。分割された各パートのエンキューは並行に行われ、
// 一部の失敗は呼び出し元からは単一の集約失敗として見える。
func (d *Dispatcher) DeliverArticle(ctx context.Context, article model.Article, details model.DeliveryDetails) model.ArticleDeliveryState {
	target, err := d.resolveTarget(details)
	if err != nil {
		d.collector.RecordDeliveryFailed(string(model.DeliveryErrorNoChannelOrWebhook))
		return model.ArticleDeliveryState{
			Status:    model.ArticleDeliveryStatusFailed,
			ErrorCode: model.DeliveryErrorNoChannelOrWebhook,
			Message:   err.Error(),
		}
	}

	jobs, err := d.buildJobs(article, details, target)
	if err != nil {
		d.collector.RecordDeliveryFailed(string(model.DeliveryErrorInternal))
		return model.ArticleDeliveryState{
			Status:    model.ArticleDeliveryStatusFailed,
			ErrorCode: model.DeliveryErrorInternal,
			Message:   err.Error(),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			return d.producer.Enqueue(gctx, target.endpoint, ProducerRequest{
				Method: http.MethodPost,
				Body:   job.Payload,
			}, CorrelationMetadata{
				DeliveryID:         details.DeliveryID,
				ArticleID:          article.ID,
				FeedID:             details.FeedID,
				FeedURL:            details.FeedURL,
				OrganizationID:     details.OrganizationID,
				TargetID:           target.id,
				EmitDeliveryResult: true,
			})
		})
	}
	if err := g.Wait(); err != nil {
		d.collector.RecordDeliveryFailed(string(model.DeliveryErrorInternal))
		d.logger.Error("配信ジョブのエンキューに失敗しました",
			slog.String("delivery_id", details.DeliveryID),
			slog.String("article_id", article.ID),
			slog.String("error", err.Error()),
		)
		return model.ArticleDeliveryState{
			Status:    model.ArticleDeliveryStatusFailed,
			ErrorCode: model.DeliveryErrorInternal,
			Message:   err.Error(),
		}
	}

	d.collector.RecordDeliveryEnqueued(len(jobs))
	return model.ArticleDeliveryState{
		Status: model.ArticleDeliveryStatusPending,
		Jobs:   jobs,
	}
}

// DeliverTestArticle はDeliverArticleと同じ整形を行うが、
// プロデューサの同期フェッチで即時送信し、生レスポンスを返す。
// レート制限付きキューを迂回するため、プレビュー用途にのみ使用する。
func (d *Dispatcher) DeliverTestArticle(ctx context.Context, article model.Article, details model.DeliveryDetails) (*ProducerResponse, error) {
	target, err := d.resolveTarget(details)
	if err != nil {
		return nil, err
	}
	jobs, err := d.buildJobs(article, details, target)
	if err != nil {
		return nil, err
	}

	var resp *ProducerResponse
	for _, job := range jobs {
		resp, err = d.producer.Fetch(ctx, target.endpoint, ProducerRequest{
			Method: http.MethodPost,
			Body:   job.Payload,
		})
		if err != nil {
			return nil, fmt.Errorf("テスト送信に失敗しました: %w", err)
		}
	}
	return resp, nil
}

// resolvedTarget は解決済みの配信先を表す。
type resolvedTarget struct {
	kind     model.DeliveryTargetKind
	id       string
	endpoint string
	webhook  *model.WebhookTarget
}

// resolveTarget は配信指示からちょうど1つの配信先を解決する。
// チャンネルとWebhookの両方が指定された場合はチャンネルを優先する。
func (d *Dispatcher) resolveTarget(details model.DeliveryDetails) (*resolvedTarget, error) {
	if details.Channel != nil && details.Channel.ID != "" {
		return &resolvedTarget{
			kind:     model.DeliveryTargetChannel,
			id:       details.Channel.ID,
			endpoint: fmt.Sprintf("%s/channels/%s/messages", d.apiBaseURL, details.Channel.ID),
		}, nil
	}
	if details.Webhook != nil && details.Webhook.ID != "" && details.Webhook.Token != "" {
		return &resolvedTarget{
			kind:     model.DeliveryTargetWebhook,
			id:       details.Webhook.ID,
			endpoint: fmt.Sprintf("%s/webhooks/%s/%s", d.apiBaseURL, details.Webhook.ID, details.Webhook.Token),
			webhook:  details.Webhook,
		}, nil
	}
	return nil, ErrNoChannelOrWebhook
}

// buildJobs は本文の分割と埋め込みの置換を行い、パートごとの配信ジョブを生成する。
// 埋め込みは先頭パートのペイロードにのみ付与される。
func (d *Dispatcher) buildJobs(article model.Article, details model.DeliveryDetails, target *resolvedTarget) ([]model.DeliveryJob, error) {
	content := d.renderer.Render(details.Content, article)

	limit := d.splitLimit
	if details.Split != nil && details.Split.Limit > 0 {
		limit = details.Split.Limit
	}
	parts := SplitContent(content, limit)
	embeds := renderEmbeds(d.renderer, article, details.Embeds, time.Now())

	jobs := make([]model.DeliveryJob, 0, len(parts))
	for i, part := range parts {
		payload := messagePayload{Content: part}
		if i == 0 {
			payload.Embeds = embeds
		}
		if target.kind == model.DeliveryTargetWebhook {
			payload.Username = target.webhook.Name
			payload.AvatarURL = target.webhook.IconURL
		}

		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("配信ペイロードのエンコードに失敗しました: %w", err)
		}
		jobs = append(jobs, model.DeliveryJob{
			ID:         uuid.NewString(),
			DeliveryID: details.DeliveryID,
			MediumID:   details.MediumID,
			TargetKind: target.kind,
			TargetID:   target.id,
			Payload:    body,
		})
	}
	return jobs, nil
}
