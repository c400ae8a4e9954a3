// Package broker はURLバッチのハンドオフキューを提供する。
// 各メッセージにはリフレッシュレート窓に等しい有効期限が付与され、
// 期限切れのバッチは処理されずに破棄される。配信はat-least-once
// 相当であり、コンシューマ側の処理は冪等であること。
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/feednotify/internal/model"
)

// Publisher はURLバッチの発行インターフェース。
type Publisher interface {
	// PublishURLBatch はバッチを有効期限付きで発行する。
	PublishURLBatch(ctx context.Context, batch model.FeedURLBatch, ttl time.Duration) error
}

// Message はキュー上のバッチメッセージ。
type Message struct {
	Batch       model.FeedURLBatch
	PublishedAt time.Time
	ExpiresAt   time.Time
}

// Handler はコンシューマのバッチ処理コールバック。
type Handler func(ctx context.Context, batch model.FeedURLBatch)

// InProcessBroker はチャネルベースのインプロセスキュー実装。
// ルーティングキー相当として、1件のみのバッチは単発キュー、
// 複数件のバッチはバッチキューに振り分けられる。
type InProcessBroker struct {
	single chan Message
	batch  chan Message
	logger *slog.Logger
}

// NewInProcessBroker はInProcessBrokerを生成する。
// queueSizeが0以下の場合はデフォルト値100を使用する。
func NewInProcessBroker(queueSize int, logger *slog.Logger) *InProcessBroker {
	if queueSize <= 0 {
		queueSize = 100
	}
	return &InProcessBroker{
		single: make(chan Message, queueSize),
		batch:  make(chan Message, queueSize),
		logger: logger,
	}
}

// PublishURLBatch はバッチを有効期限付きで発行する。
// キューが満杯の場合はブロックせずエラーを返す。
func (b *InProcessBroker) PublishURLBatch(_ context.Context, batch model.FeedURLBatch, ttl time.Duration) error {
	now := time.Now()
	msg := Message{
		Batch:       batch,
		PublishedAt: now,
		ExpiresAt:   now.Add(ttl),
	}

	queue := b.batch
	if len(batch.Entries) == 1 {
		queue = b.single
	}

	select {
	case queue <- msg:
		return nil
	default:
		return fmt.Errorf("バッチキューが満杯です (容量: %d)", cap(queue))
	}
}

// Consume はキューからバッチを取り出してhandlerを呼び出す。
// 有効期限切れのメッセージは処理せずに破棄する。
// コンテキストがキャンセルされるまで実行を継続する。
func (b *InProcessBroker) Consume(ctx context.Context, handler Handler) {
	for {
		var msg Message
		select {
		case <-ctx.Done():
			return
		case msg = <-b.single:
		case msg = <-b.batch:
		}

		if time.Now().After(msg.ExpiresAt) {
			b.logger.Warn("期限切れのバッチを破棄します",
				slog.Int("entries", len(msg.Batch.Entries)),
				slog.Int("refresh_rate_seconds", msg.Batch.RefreshRateSeconds),
				slog.Time("published_at", msg.PublishedAt),
				slog.Time("expired_at", msg.ExpiresAt),
			)
			continue
		}

		handler(ctx, msg.Batch)
	}
}
