// Package cache はフェッチ済みフィードボディの共有キャッシュを提供する。
// 値はbase64エンコードされた圧縮済み文字列で、キャッシュキーはURLから
// 決定的に導出される。エントリはTTLで失効するベストエフォートな
// 鮮度ヒントであり、一貫性が要求されるストアではない。
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store はフィードボディキャッシュのインターフェースを定義する。
// 同一URLに対するSet/Getはキャッシュキーの決定性により冪等になる。
type Store interface {
	// SetFeedHTMLContent はキャッシュキーに対して圧縮済みボディを保存する。
	SetFeedHTMLContent(ctx context.Context, key, body string) error
	// GetFeedHTMLContent はキャッシュキーに対応する圧縮済みボディを返す。
	// エントリが存在しないか失効している場合はfalseを返す。
	GetFeedHTMLContent(ctx context.Context, key string) (string, bool, error)
}

// MemoryStore はTTL付きLRUによるインメモリのStore実装。
// 並行アクセスに対して安全。同一キーへの同時書き込みは後勝ちになる。
type MemoryStore struct {
	lru *expirable.LRU[string, string]
}

// NewMemoryStore はMemoryStoreを生成する。
// maxEntriesが0以下の場合はデフォルト値10000を使用する。
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &MemoryStore{
		lru: expirable.NewLRU[string, string](maxEntries, nil, ttl),
	}
}

// SetFeedHTMLContent はキャッシュキーに対して圧縮済みボディを保存する。
func (s *MemoryStore) SetFeedHTMLContent(_ context.Context, key, body string) error {
	s.lru.Add(key, body)
	return nil
}

// GetFeedHTMLContent はキャッシュキーに対応する圧縮済みボディを返す。
func (s *MemoryStore) GetFeedHTMLContent(_ context.Context, key string) (string, bool, error) {
	body, ok := s.lru.Get(key)
	return body, ok, nil
}
