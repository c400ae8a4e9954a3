package model

import "time"

// Subscriber はフィード購読者とその実効割り当てを表す。
// refresh_rate_secondsとmax_daily_articlesはEntitlementSyncのみが変更する。
// 特別なエンタイトルメント階層に属さない購読者はプロセス全体の
// デフォルト値に収束する。
type Subscriber struct {
	ID                 string
	RefreshRateSeconds int
	MaxDailyArticles   int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Benefit は購読者1人分のエンタイトルメント状態のスナップショットを表す。
// 外部のエンタイトルメントプロバイダから全購読者分をまとめて取得する。
type Benefit struct {
	SubscriberID       string
	IsSupporter        bool
	RefreshRateSeconds int
	MaxDailyArticles   int
}
