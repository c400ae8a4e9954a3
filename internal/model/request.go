// Package model はドメインモデルを定義する。
package model

import "time"

// FetchRequestStatus はフェッチ試行の終端ステータスを表す。
// 永続化前に1回だけ設定され、以後変更されない。
type FetchRequestStatus string

const (
	// FetchRequestStatusOK はフェッチ成功（2xxおよび304）。
	FetchRequestStatusOK FetchRequestStatus = "OK"
	// FetchRequestStatusBadStatusCode は2xx/304以外のHTTPステータスによる失敗。
	FetchRequestStatusBadStatusCode FetchRequestStatus = "BAD_STATUS_CODE"
	// FetchRequestStatusFetchError はトランスポートレベルの失敗。
	FetchRequestStatusFetchError FetchRequestStatus = "FETCH_ERROR"
	// FetchRequestStatusFetchTimeout はタイムアウトによる失敗。
	FetchRequestStatusFetchTimeout FetchRequestStatus = "FETCH_TIMEOUT"
	// FetchRequestStatusParseError は文字コード変換・デコードの失敗。
	FetchRequestStatusParseError FetchRequestStatus = "PARSE_ERROR"
	// FetchRequestStatusRefusedLargeFeed はデコード後ボディのサイズ上限超過による拒否。
	FetchRequestStatusRefusedLargeFeed FetchRequestStatus = "REFUSED_LARGE_FEED"
)

// FetchOptions はフェッチ試行時のリクエストオプションを表す。
// 監査証跡としてリクエストレコードに保存される。
type FetchOptions struct {
	// Headers はリクエストに付与した追加ヘッダー。
	Headers map[string]string `json:"headers,omitempty"`
	// UserAgent はリクエストに使用したUser-Agent。
	UserAgent string `json:"user_agent,omitempty"`
}

// FetchRequest はフィードURLへの1回のフェッチ試行を表す。
// 成否にかかわらず毎回作成され、永続化後はresponseリンク以外不変。
type FetchRequest struct {
	ID           string
	URL          string
	Status       FetchRequestStatus
	ErrorMessage string
	FetchOptions FetchOptions
	Response     *FetchResponse
	CreatedAt    time.Time
}

// FetchResponse はフェッチ試行に対するHTTP応答の記録を表す。
// FetchRequestに1:1で所有され、ライフタイムはリクエストと同じ。
// キャッシュ本体は別のKVストアに存在し、このレコードはキーで参照するのみ。
// キャッシュエントリが失効しても履歴レコードは無効化されない。
type FetchResponse struct {
	ID                 string
	StatusCode         int
	ETag               string
	LastModified       string
	TextHash           string
	CacheKey           string
	ObjectStorageKey   string
	IsCloudflareOrigin bool
	CreatedAt          time.Time
}
