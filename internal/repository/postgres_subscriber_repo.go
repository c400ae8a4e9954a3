package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/feednotify/internal/model"
)

// PostgresSubscriberRepo はPostgreSQLを使用した購読者リポジトリ。
// EntitlementSyncのバルク更新はWHERE句で現在値との差分を判定し、
// すでに正しい値を持つ行への冗長な書き込みを避ける。
type PostgresSubscriberRepo struct {
	db *sql.DB
}

// NewPostgresSubscriberRepo はPostgresSubscriberRepoを生成する。
func NewPostgresSubscriberRepo(db *sql.DB) *PostgresSubscriberRepo {
	return &PostgresSubscriberRepo{db: db}
}

// FindByID は指定IDの購読者を取得する。見つからない場合はnilを返す。
func (r *PostgresSubscriberRepo) FindByID(ctx context.Context, id string) (*model.Subscriber, error) {
	sub := &model.Subscriber{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, refresh_rate_seconds, max_daily_articles, created_at, updated_at
		 FROM subscribers WHERE id = $1`,
		id,
	).Scan(&sub.ID, &sub.RefreshRateSeconds, &sub.MaxDailyArticles, &sub.CreatedAt, &sub.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("購読者の取得に失敗しました: %w", err)
	}

	return sub, nil
}

// UpdateRefreshRates は指定購読者群のリフレッシュレートを一括設定する。
func (r *PostgresSubscriberRepo) UpdateRefreshRates(ctx context.Context, subscriberIDs []string, seconds int) (int64, error) {
	if len(subscriberIDs) == 0 {
		return 0, nil
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE subscribers
		 SET refresh_rate_seconds = $1, updated_at = now()
		 WHERE id = ANY($2) AND refresh_rate_seconds <> $1`,
		seconds, pq.Array(subscriberIDs),
	)
	if err != nil {
		return 0, fmt.Errorf("リフレッシュレートの一括更新に失敗しました: %w", err)
	}

	return result.RowsAffected()
}

// ResetRefreshRatesToDefault は指定購読者群に含まれない全購読者をデフォルト値に戻す。
func (r *PostgresSubscriberRepo) ResetRefreshRatesToDefault(ctx context.Context, excludeIDs []string, defaultSeconds int) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE subscribers
		 SET refresh_rate_seconds = $1, updated_at = now()
		 WHERE NOT (id = ANY($2)) AND refresh_rate_seconds <> $1`,
		defaultSeconds, pq.Array(excludeIDs),
	)
	if err != nil {
		return 0, fmt.Errorf("リフレッシュレートのデフォルト復帰に失敗しました: %w", err)
	}

	return result.RowsAffected()
}

// UpdateMaxDailyArticles は指定購読者群の1日あたり記事上限を一括設定する。
func (r *PostgresSubscriberRepo) UpdateMaxDailyArticles(ctx context.Context, subscriberIDs []string, limit int) (int64, error) {
	if len(subscriberIDs) == 0 {
		return 0, nil
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE subscribers
		 SET max_daily_articles = $1, updated_at = now()
		 WHERE id = ANY($2) AND max_daily_articles <> $1`,
		limit, pq.Array(subscriberIDs),
	)
	if err != nil {
		return 0, fmt.Errorf("記事上限の一括更新に失敗しました: %w", err)
	}

	return result.RowsAffected()
}

// ResetMaxDailyArticlesToDefault は指定購読者群に含まれない全購読者をデフォルト値に戻す。
func (r *PostgresSubscriberRepo) ResetMaxDailyArticlesToDefault(ctx context.Context, excludeIDs []string, defaultLimit int) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE subscribers
		 SET max_daily_articles = $1, updated_at = now()
		 WHERE NOT (id = ANY($2)) AND max_daily_articles <> $1`,
		defaultLimit, pq.Array(excludeIDs),
	)
	if err != nil {
		return 0, fmt.Errorf("記事上限のデフォルト復帰に失敗しました: %w", err)
	}

	return result.RowsAffected()
}
