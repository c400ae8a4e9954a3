// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/feednotify/internal/model"
)

// RequestRepository はフェッチ監査証跡（Request/Response）の永続化インターフェース。
type RequestRepository interface {
	// Create はFetchRequestとそのFetchResponse（存在する場合）を
	// 同一トランザクションで作成する。呼び出しごとにちょうど1回実行される。
	Create(ctx context.Context, req *model.FetchRequest) error

	// FindLatestByURL は指定URLの最新の非304リクエストをレスポンス付きで取得する。
	// 該当リクエストが存在しない場合はnilを返す。
	FindLatestByURL(ctx context.Context, url string) (*model.FetchRequest, error)

	// LatestHeadersByURL は指定URLの最後に記録されたetag/last-modifiedを
	// 条件付きGET用のIf-None-Match/If-Modified-Sinceヘッダーとして返す。
	// マップのキーはそのままHTTPリクエストヘッダー名として送信できる。
	// 記録がない場合は空のマップを返す。
	LatestHeadersByURL(ctx context.Context, url string) (map[string]string, error)

	// ListByURL は指定URLのリクエスト履歴をcreated_at降順で返す。
	// cursorがゼロ値の場合は先頭から取得する。
	ListByURL(ctx context.Context, url string, cursor time.Time, limit int) ([]*model.FetchRequest, error)

	// CountByURL は指定URLのリクエスト総数を返す。
	CountByURL(ctx context.Context, url string) (int, error)
}

// SubscriberRepository は購読者のリフレッシュレート・記事上限割り当ての
// 永続化インターフェース。EntitlementSyncのバルク更新を提供する。
type SubscriberRepository interface {
	// FindByID は指定IDの購読者を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Subscriber, error)

	// UpdateRefreshRates は指定購読者群のリフレッシュレートを一括設定する。
	// すでに同じ値を持つ行は書き込まない。更新行数を返す。
	UpdateRefreshRates(ctx context.Context, subscriberIDs []string, seconds int) (int64, error)

	// ResetRefreshRatesToDefault は指定購読者群に含まれない全購読者を
	// デフォルト値に戻す。すでにデフォルト値の行は書き込まない。更新行数を返す。
	ResetRefreshRatesToDefault(ctx context.Context, excludeIDs []string, defaultSeconds int) (int64, error)

	// UpdateMaxDailyArticles は指定購読者群の1日あたり記事上限を一括設定する。
	// すでに同じ値を持つ行は書き込まない。更新行数を返す。
	UpdateMaxDailyArticles(ctx context.Context, subscriberIDs []string, limit int) (int64, error)

	// ResetMaxDailyArticlesToDefault は指定購読者群に含まれない全購読者を
	// デフォルト値に戻す。すでにデフォルト値の行は書き込まない。更新行数を返す。
	ResetMaxDailyArticlesToDefault(ctx context.Context, excludeIDs []string, defaultLimit int) (int64, error)
}

// URLCursor はフェッチ対象URLの前方向カーソル。
// 結果セット全体を実体化せずに1件ずつ取り出す。
type URLCursor interface {
	// Next は次のURLに進む。取り出せる行がない場合はfalseを返す。
	Next() bool
	// URL は現在行のURLを返す。
	URL() string
	// Err はイテレーション中に発生したエラーを返す。
	Err() error
	// Close はカーソルを閉じる。
	Close() error
}

// FeedSubscriptionRepository はフィード所有関係の問い合わせインターフェース。
// スケジューラが使用する集約プリミティブを提供する。
type FeedSubscriptionRepository interface {
	// DistinctURLsByRefreshRate は実効リフレッシュレートが指定値と一致する
	// 購読者が参照する重複のないURL集合をカーソルで返す。
	// 同一URLを複数の購読者が参照していても1回だけ現れる。
	DistinctURLsByRefreshRate(ctx context.Context, refreshRateSeconds int) (URLCursor, error)
}

// DeliveryMediumRepository は配信メディア設定の永続化インターフェース。
type DeliveryMediumRepository interface {
	// ListByFeedURL は指定フィードURLに登録された配信メディアを
	// created_at昇順で返す。
	ListByFeedURL(ctx context.Context, feedURL string) ([]*model.DeliveryMedium, error)

	// Create は配信メディアを作成する。
	Create(ctx context.Context, medium *model.DeliveryMedium) error

	// Delete は指定IDの配信メディアを削除する。削除した場合は真を返す。
	Delete(ctx context.Context, id string) (bool, error)
}

// DebugURLRepository はデバッグURLセットの問い合わせインターフェース。
// セットに含まれるURLはフェッチ時にボディを永続オブジェクトストレージへも保存する。
type DebugURLRepository interface {
	// ListAll はデバッグURLセットの全URLを返す。
	ListAll(ctx context.Context) (map[string]struct{}, error)
}
