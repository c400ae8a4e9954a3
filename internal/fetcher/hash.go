package fetcher

import (
	"crypto/sha256"
	"encoding/hex"
)

// CacheKey はURLからキャッシュキーを導出する。
// 同一URLに対して常に同一のキーを返す純粋関数で、呼び出しごとに
// 新しいハッシュ状態を使用するため並行フェッチ間で状態を共有しない。
// 永続オブジェクトストレージのキーとは独立している。
func CacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// TextHash はデコード済みボディのコンテンツハッシュを計算する。
// 同一コンテンツに対して常に同一のハッシュを返す純粋関数。
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
