package model

// FeedURLEntry はフェッチ対象URL1件を表す。
type FeedURLEntry struct {
	// URL はフェッチ対象の絶対URL。
	URL string `json:"url"`
	// SaveToObjectStorage はボディを永続オブジェクトストレージにも
	// 保存するかを示す。デバッグURLセットに含まれるURLで真になる。
	SaveToObjectStorage bool `json:"save_to_object_storage,omitempty"`
}

// FeedURLBatch はスケジューラが1サイクル内で生成する一時的なURL列。
// フェッチディスパッチコールバックによってちょうど1回消費され、
// 永続化されない。エントリの順序はカーソル順を保持する。
type FeedURLBatch struct {
	Entries []FeedURLEntry `json:"entries"`
	// RefreshRateSeconds はこのバッチを生成した階層のリフレッシュレート。
	RefreshRateSeconds int `json:"refresh_rate_seconds"`
}
