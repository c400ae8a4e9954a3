package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/feednotify/internal/delivery"
	"github.com/hitoshi/feednotify/internal/model"
)

// MediumStore は配信メディアハンドラーが必要とするストアインターフェース。
type MediumStore interface {
	ListByFeedURL(ctx context.Context, feedURL string) ([]*model.DeliveryMedium, error)
	Create(ctx context.Context, medium *model.DeliveryMedium) error
	Delete(ctx context.Context, id string) (bool, error)
}

// TestSender はテスト配信サービスのインターフェース。
// レート制限付きキューを迂回して同期送信し、生レスポンスを返す。
type TestSender interface {
	DeliverTestArticle(ctx context.Context, article model.Article, details model.DeliveryDetails) (*delivery.ProducerResponse, error)
}

// MediumHandler は配信メディア管理のHTTPハンドラー。
type MediumHandler struct {
	store  MediumStore
	sender TestSender
}

// NewMediumHandler はMediumHandlerを生成する。
func NewMediumHandler(store MediumStore, sender TestSender) *MediumHandler {
	return &MediumHandler{store: store, sender: sender}
}

// --- リクエスト・レスポンス型 ---

// mediumRequest は配信メディア作成リクエストのボディ。
type mediumRequest struct {
	FeedID           string        `json:"feed_id"`
	FeedURL          string        `json:"feed_url"`
	OrganizationID   string        `json:"organization_id"`
	TargetKind       string        `json:"target_kind"`
	ChannelID        string        `json:"channel_id,omitempty"`
	WebhookID        string        `json:"webhook_id,omitempty"`
	WebhookToken     string        `json:"webhook_token,omitempty"`
	WebhookName      string        `json:"webhook_name,omitempty"`
	WebhookIconURL   string        `json:"webhook_icon_url,omitempty"`
	ContentTemplate  string        `json:"content_template,omitempty"`
	Embeds           []model.Embed `json:"embeds,omitempty"`
	SplitLimit       int           `json:"split_limit,omitempty"`
	MaxDailyArticles int           `json:"max_daily_articles,omitempty"`
}

// mediumResponse は配信メディアのAPI表現。
type mediumResponse struct {
	ID               string        `json:"id"`
	FeedID           string        `json:"feed_id"`
	FeedURL          string        `json:"feed_url"`
	OrganizationID   string        `json:"organization_id"`
	TargetKind       string        `json:"target_kind"`
	ChannelID        string        `json:"channel_id,omitempty"`
	WebhookID        string        `json:"webhook_id,omitempty"`
	WebhookName      string        `json:"webhook_name,omitempty"`
	ContentTemplate  string        `json:"content_template,omitempty"`
	Embeds           []model.Embed `json:"embeds,omitempty"`
	SplitLimit       int           `json:"split_limit,omitempty"`
	MaxDailyArticles int           `json:"max_daily_articles,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// testDeliveryRequest はテスト配信リクエストのボディ。
type testDeliveryRequest struct {
	Medium  mediumRequest `json:"medium"`
	Article struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		Description string `json:"description,omitempty"`
		Content     string `json:"content,omitempty"`
		Author      string `json:"author,omitempty"`
		ImageURL    string `json:"image_url,omitempty"`
	} `json:"article"`
}

// testDeliveryResponse はテスト配信のレスポンス。配信先の生レスポンスを含む。
type testDeliveryResponse struct {
	StatusCode int    `json:"status_code"`
	Body       string `json:"body,omitempty"`
}

// toMediumResponse はモデルをAPI表現に変換する。WebhookTokenは公開しない。
func toMediumResponse(medium *model.DeliveryMedium) mediumResponse {
	return mediumResponse{
		ID:               medium.ID,
		FeedID:           medium.FeedID,
		FeedURL:          medium.FeedURL,
		OrganizationID:   medium.OrganizationID,
		TargetKind:       string(medium.TargetKind),
		ChannelID:        medium.ChannelID,
		WebhookID:        medium.WebhookID,
		WebhookName:      medium.WebhookName,
		ContentTemplate:  medium.ContentTemplate,
		Embeds:           medium.Embeds,
		SplitLimit:       medium.SplitLimit,
		MaxDailyArticles: medium.MaxDailyArticles,
		CreatedAt:        medium.CreatedAt,
	}
}

// validateMediumRequest は配信メディアリクエストを検証してモデルに変換する。
func validateMediumRequest(req mediumRequest) (*model.DeliveryMedium, string) {
	if req.FeedURL == "" {
		return nil, "feed_urlは必須です。"
	}

	kind := model.DeliveryTargetKind(req.TargetKind)
	switch kind {
	case model.DeliveryTargetChannel:
		if req.ChannelID == "" {
			return nil, "target_kindがchannelの場合はchannel_idが必須です。"
		}
	case model.DeliveryTargetWebhook:
		if req.WebhookID == "" || req.WebhookToken == "" {
			return nil, "target_kindがwebhookの場合はwebhook_idとwebhook_tokenが必須です。"
		}
	default:
		return nil, "target_kindはchannelまたはwebhookを指定してください。"
	}

	return &model.DeliveryMedium{
		ID:               uuid.NewString(),
		FeedID:           req.FeedID,
		FeedURL:          req.FeedURL,
		OrganizationID:   req.OrganizationID,
		TargetKind:       kind,
		ChannelID:        req.ChannelID,
		WebhookID:        req.WebhookID,
		WebhookToken:     req.WebhookToken,
		WebhookName:      req.WebhookName,
		WebhookIconURL:   req.WebhookIconURL,
		ContentTemplate:  req.ContentTemplate,
		Embeds:           req.Embeds,
		SplitLimit:       req.SplitLimit,
		MaxDailyArticles: req.MaxDailyArticles,
		CreatedAt:        time.Now(),
	}, ""
}

// ListMediums はフィードURLに登録された配信メディアの一覧を取得する。
// GET /api/mediums?feed_url=xxx
func (h *MediumHandler) ListMediums(w http.ResponseWriter, r *http.Request) {
	feedURL := r.URL.Query().Get("feed_url")
	if feedURL == "" {
		writeBadRequest(w, "feed_urlパラメータは必須です。", "対象のフィードURLを指定してください。")
		return
	}

	mediums, err := h.store.ListByFeedURL(r.Context(), feedURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result := make([]mediumResponse, 0, len(mediums))
	for _, medium := range mediums {
		result = append(result, toMediumResponse(medium))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// CreateMedium は配信メディアを登録する。
// POST /api/mediums
func (h *MediumHandler) CreateMedium(w http.ResponseWriter, r *http.Request) {
	var req mediumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "リクエストボディの解析に失敗しました。", "正しいJSON形式でリクエストしてください。")
		return
	}

	medium, errMessage := validateMediumRequest(req)
	if errMessage != "" {
		writeBadRequest(w, errMessage, "リクエスト内容を確認してください。")
		return
	}

	if err := h.store.Create(r.Context(), medium); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toMediumResponse(medium))
}

// DeleteMedium は配信メディアを削除する。
// DELETE /api/mediums/{id}
func (h *MediumHandler) DeleteMedium(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.store.Delete(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !deleted {
		writeNotFound(w, "MEDIUM_NOT_FOUND", "指定した配信メディアが見つかりません。")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TestDelivery はテスト記事を同期送信し、配信先の生レスポンスを返す。
// POST /api/mediums/test
func (h *MediumHandler) TestDelivery(w http.ResponseWriter, r *http.Request) {
	var req testDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "リクエストボディの解析に失敗しました。", "正しいJSON形式でリクエストしてください。")
		return
	}

	medium, errMessage := validateMediumRequest(req.Medium)
	if errMessage != "" {
		writeBadRequest(w, errMessage, "リクエスト内容を確認してください。")
		return
	}

	article := model.Article{
		ID:          uuid.NewString(),
		FeedURL:     medium.FeedURL,
		Title:       req.Article.Title,
		Link:        req.Article.Link,
		Description: req.Article.Description,
		Content:     req.Article.Content,
		Author:      req.Article.Author,
		ImageURL:    req.Article.ImageURL,
	}

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

	resp, err := h.sender.DeliverTestArticle(r.Context(), article, details)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(testDeliveryResponse{
		StatusCode: resp.StatusCode,
		Body:       string(resp.Body),
	})
}
