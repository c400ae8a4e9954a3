package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresFeedSubscriptionRepo はPostgreSQLを使用したフィード所有関係リポジトリ。
type PostgresFeedSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresFeedSubscriptionRepo はPostgresFeedSubscriptionRepoを生成する。
func NewPostgresFeedSubscriptionRepo(db *sql.DB) *PostgresFeedSubscriptionRepo {
	return &PostgresFeedSubscriptionRepo{db: db}
}

// DistinctURLsByRefreshRate は実効リフレッシュレートが指定値と一致する
// 購読者が参照する重複のないURL集合をカーソルで返す。
// 結果セットを実体化せず、sql.Rowsを前方向カーソルとしてそのまま返す。
func (r *PostgresFeedSubscriptionRepo) DistinctURLsByRefreshRate(ctx context.Context, refreshRateSeconds int) (URLCursor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT fs.url
		 FROM feed_subscriptions fs
		 JOIN subscribers s ON s.id = fs.subscriber_id
		 WHERE s.refresh_rate_seconds = $1
		 ORDER BY fs.url`,
		refreshRateSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("フェッチ対象URLの問い合わせに失敗しました: %w", err)
	}

	return &rowsURLCursor{rows: rows}, nil
}

// rowsURLCursor はsql.RowsをURLCursorに適合させる。
type rowsURLCursor struct {
	rows    *sql.Rows
	current string
	scanErr error
}

// Next は次のURLに進む。取り出せる行がない場合はfalseを返す。
func (c *rowsURLCursor) Next() bool {
	if !c.rows.Next() {
		return false
	}
	if err := c.rows.Scan(&c.current); err != nil {
		c.scanErr = err
		return false
	}
	return true
}

// URL は現在行のURLを返す。
func (c *rowsURLCursor) URL() string {
	return c.current
}

// Err はイテレーション中に発生したエラーを返す。
func (c *rowsURLCursor) Err() error {
	if c.scanErr != nil {
		return c.scanErr
	}
	return c.rows.Err()
}

// Close はカーソルを閉じる。
func (c *rowsURLCursor) Close() error {
	return c.rows.Close()
}
