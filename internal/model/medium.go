package model

import "time"

// DeliveryMedium はフィードURLと配信先の対応付けを表す。
// 1つのフィードURLに複数の配信メディアを登録できる。
// TargetKindに応じてチャンネルIDまたはWebhook情報のどちらか一方を持つ。
type DeliveryMedium struct {
	ID             string
	FeedID         string
	FeedURL        string
	OrganizationID string
	TargetKind     DeliveryTargetKind
	ChannelID      string
	WebhookID      string
	WebhookToken   string
	WebhookName    string
	WebhookIconURL string
	// ContentTemplate は配信メッセージ本文のテンプレート。
	ContentTemplate string
	// Embeds は埋め込みブロックのテンプレート列。
	Embeds []Embed
	// SplitLimit は1メッセージパートの最大文字数。0は既定値を使用する。
	SplitLimit int
	// MaxDailyArticles はこのメディアへの1日あたりの配信記事数上限。
	// 0は既定値を使用する。
	MaxDailyArticles int
	CreatedAt        time.Time
}
