package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/feednotify/internal/model"
)

// HTTPProvider は外部エンタイトルメントAPIのクライアント。
// 全購読者のエンタイトルメント状態を一括取得エンドポイントから取得する。
type HTTPProvider struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
}

// NewHTTPProvider はHTTPProviderの新しいインスタンスを生成する。
func NewHTTPProvider(httpClient *http.Client, logger *slog.Logger, endpoint string) *HTTPProvider {
	return &HTTPProvider{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
	}
}

// benefitEntry はエンタイトルメントAPIのレスポンス1件分。
type benefitEntry struct {
	SubscriberID       string `json:"subscriber_id"`
	IsSupporter        bool   `json:"is_supporter"`
	RefreshRateSeconds int    `json:"refresh_rate_seconds"`
	MaxDailyArticles   int    `json:"max_daily_articles"`
}

// GetBenefitsOfAllSubscribers は全購読者のエンタイトルメント状態を取得する。
// 取得失敗時はエラーを返す（呼び出し元が同期スキップを判断する）。
func (p *HTTPProvider) GetBenefitsOfAllSubscribers(ctx context.Context) ([]model.Benefit, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("エンタイトルメントリクエストの構築に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("エンタイトルメントAPIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("エンタイトルメントAPIが異常ステータスを返しました: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("エンタイトルメントレスポンスの読み取りに失敗しました: %w", err)
	}

	var entries []benefitEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("エンタイトルメントレスポンスの解析に失敗しました: %w", err)
	}

	benefits := make([]model.Benefit, 0, len(entries))
	for _, e := range entries {
		benefits = append(benefits, model.Benefit{
			SubscriberID:       e.SubscriberID,
			IsSupporter:        e.IsSupporter,
			RefreshRateSeconds: e.RefreshRateSeconds,
			MaxDailyArticles:   e.MaxDailyArticles,
		})
	}

	p.logger.Info("エンタイトルメント状態を取得しました",
		slog.Int("subscribers", len(benefits)),
	)

	return benefits, nil
}

// StaticProvider は固定のエンタイトルメント一覧を返すプロバイダ。
// 外部APIが未設定の環境で使用し、全購読者をデフォルト値に収束させる。
type StaticProvider []model.Benefit

// GetBenefitsOfAllSubscribers は保持している一覧をそのまま返す。
func (p StaticProvider) GetBenefitsOfAllSubscribers(ctx context.Context) ([]model.Benefit, error) {
	return p, nil
}
