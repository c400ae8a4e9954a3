package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresDebugURLRepo はPostgreSQLを使用したデバッグURLセットリポジトリ。
type PostgresDebugURLRepo struct {
	db *sql.DB
}

// NewPostgresDebugURLRepo はPostgresDebugURLRepoを生成する。
func NewPostgresDebugURLRepo(db *sql.DB) *PostgresDebugURLRepo {
	return &PostgresDebugURLRepo{db: db}
}

// ListAll はデバッグURLセットの全URLを返す。
func (r *PostgresDebugURLRepo) ListAll(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT url FROM debug_feed_urls`)
	if err != nil {
		return nil, fmt.Errorf("デバッグURLセットの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("デバッグURLの読み取りに失敗しました: %w", err)
		}
		urls[url] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("デバッグURLセットのイテレーションに失敗しました: %w", err)
	}

	return urls, nil
}
