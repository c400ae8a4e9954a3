package model

// DeliveryTargetKind は配信先の種別を表す。
type DeliveryTargetKind string

const (
	// DeliveryTargetChannel はチャットチャンネルへの配信。
	DeliveryTargetChannel DeliveryTargetKind = "channel"
	// DeliveryTargetWebhook はWebhookへの配信。
	DeliveryTargetWebhook DeliveryTargetKind = "webhook"
)

// ChannelTarget はチャットチャンネル配信先を表す。
type ChannelTarget struct {
	ID string
}

// WebhookTarget はWebhook配信先を表す。
type WebhookTarget struct {
	ID      string
	Token   string
	Name    string
	IconURL string
}

// EmbedAuthor は埋め込みブロックの著者サブブロック。Nameが必須。
type EmbedAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

// EmbedFooter は埋め込みブロックのフッターサブブロック。Textが必須。
type EmbedFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

// EmbedImage は埋め込みブロックの画像サブブロック。URLが必須。
type EmbedImage struct {
	URL string `json:"url"`
}

// EmbedThumbnail は埋め込みブロックのサムネイルサブブロック。URLが必須。
type EmbedThumbnail struct {
	URL string `json:"url"`
}

// EmbedField は埋め込みブロックのフィールドサブブロック。NameとValueが必須。
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// 埋め込みタイムスタンプのモード。これら以外の値はタイムスタンプなしになる。
const (
	// EmbedTimestampNow はフォーマット時点の壁時計時刻を使用する。
	EmbedTimestampNow = "now"
	// EmbedTimestampArticle は記事自身の公開日時を使用する。
	EmbedTimestampArticle = "article"
)

// Embed は配信メッセージの埋め込みブロックのテンプレートを表す。
// 各フィールドは記事フィールドによるテンプレート置換の対象。
type Embed struct {
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	URL         string          `json:"url,omitempty"`
	Color       string          `json:"color,omitempty"`
	Timestamp   string          `json:"timestamp,omitempty"`
	Author      *EmbedAuthor    `json:"author,omitempty"`
	Footer      *EmbedFooter    `json:"footer,omitempty"`
	Image       *EmbedImage     `json:"image,omitempty"`
	Thumbnail   *EmbedThumbnail `json:"thumbnail,omitempty"`
	Fields      []EmbedField    `json:"fields,omitempty"`
}

// SplitOptions はメッセージ分割ポリシーの設定を表す。
type SplitOptions struct {
	// Limit は1メッセージパートの最大文字数。
	Limit int
}

// DeliveryDetails は1記事の配信指示を表す。
// ChannelとWebhookはちょうど一方のみ指定する。
type DeliveryDetails struct {
	DeliveryID     string
	MediumID       string
	FeedID         string
	FeedURL        string
	OrganizationID string
	Channel        *ChannelTarget
	Webhook        *WebhookTarget
	Content        string
	Embeds         []Embed
	Split          *SplitOptions
}

// DeliveryJob は整形済みメッセージパート1件分の配信ジョブを表す。
// 配信ディスパッチャが生成し、外部のレート制限付きプロデューサが消費する。
// 非同期の実行結果はこのコアのライフサイクルの外で報告される。
type DeliveryJob struct {
	ID         string
	DeliveryID string
	MediumID   string
	TargetKind DeliveryTargetKind
	TargetID   string
	Payload    []byte
}

// ArticleDeliveryStatus は配信試行の結果状態を表す。
type ArticleDeliveryStatus string

const (
	// ArticleDeliveryStatusPending はプロデューサに受理され非同期結果待ちの状態。
	ArticleDeliveryStatusPending ArticleDeliveryStatus = "PENDING_DELIVERY"
	// ArticleDeliveryStatusFailed は配信失敗の状態。
	ArticleDeliveryStatusFailed ArticleDeliveryStatus = "FAILED"
)

// ArticleDeliveryErrorCode は配信失敗の粗粒度なエラーコードを表す。
type ArticleDeliveryErrorCode string

const (
	// DeliveryErrorNoChannelOrWebhook は配信先が未指定または解決不能。
	DeliveryErrorNoChannelOrWebhook ArticleDeliveryErrorCode = "NO_CHANNEL_OR_WEBHOOK"
	// DeliveryErrorInternal は内部エラー。
	DeliveryErrorInternal ArticleDeliveryErrorCode = "INTERNAL"
)

// ArticleDeliveryState は1記事の配信結果を表す。
// 失敗時は診断用に原因メッセージを保持するが、外部の配信先には公開しない。
type ArticleDeliveryState struct {
	Status    ArticleDeliveryStatus
	ErrorCode ArticleDeliveryErrorCode
	Message   string
	Jobs      []DeliveryJob
}
