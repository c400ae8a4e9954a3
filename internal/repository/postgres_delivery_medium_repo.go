package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/feednotify/internal/model"
)

// PostgresDeliveryMediumRepo はPostgreSQLを使用した配信メディアリポジトリ。
type PostgresDeliveryMediumRepo struct {
	db *sql.DB
}

// NewPostgresDeliveryMediumRepo はPostgresDeliveryMediumRepoを生成する。
func NewPostgresDeliveryMediumRepo(db *sql.DB) *PostgresDeliveryMediumRepo {
	return &PostgresDeliveryMediumRepo{db: db}
}

// ListByFeedURL は指定フィードURLに登録された配信メディアをcreated_at昇順で返す。
func (r *PostgresDeliveryMediumRepo) ListByFeedURL(ctx context.Context, feedURL string) ([]*model.DeliveryMedium, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, feed_id, feed_url, organization_id, target_kind,
		        channel_id, webhook_id, webhook_token, webhook_name, webhook_icon_url,
		        content_template, embeds, split_limit, max_daily_articles, created_at
		 FROM delivery_mediums
		 WHERE feed_url = $1
		 ORDER BY created_at ASC`,
		feedURL,
	)
	if err != nil {
		return nil, fmt.Errorf("配信メディアの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var mediums []*model.DeliveryMedium
	for rows.Next() {
		medium, err := scanDeliveryMedium(rows)
		if err != nil {
			return nil, fmt.Errorf("配信メディアの読み取りに失敗しました: %w", err)
		}
		mediums = append(mediums, medium)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("配信メディアのイテレーションに失敗しました: %w", err)
	}

	return mediums, nil
}

// Create は配信メディアを作成する。
func (r *PostgresDeliveryMediumRepo) Create(ctx context.Context, medium *model.DeliveryMedium) error {
	var embedsJSON []byte
	if len(medium.Embeds) > 0 {
		var err error
		embedsJSON, err = json.Marshal(medium.Embeds)
		if err != nil {
			return fmt.Errorf("埋め込みテンプレートのシリアライズに失敗しました: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO delivery_mediums (id, feed_id, feed_url, organization_id, target_kind,
		                               channel_id, webhook_id, webhook_token, webhook_name,
		                               webhook_icon_url, content_template, embeds,
		                               split_limit, max_daily_articles, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		medium.ID, medium.FeedID, medium.FeedURL, medium.OrganizationID,
		string(medium.TargetKind), nullString(medium.ChannelID),
		nullString(medium.WebhookID), nullString(medium.WebhookToken),
		nullString(medium.WebhookName), nullString(medium.WebhookIconURL),
		nullString(medium.ContentTemplate), embedsJSON,
		medium.SplitLimit, medium.MaxDailyArticles, medium.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("配信メディアの作成に失敗しました: %w", err)
	}

	return nil
}

// Delete は指定IDの配信メディアを削除する。削除した場合は真を返す。
func (r *PostgresDeliveryMediumRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM delivery_mediums WHERE id = $1`, id,
	)
	if err != nil {
		return false, fmt.Errorf("配信メディアの削除に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除行数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// scanDeliveryMedium はSELECT結果の1行をDeliveryMediumに読み取る。
func scanDeliveryMedium(row rowScanner) (*model.DeliveryMedium, error) {
	medium := &model.DeliveryMedium{}
	var targetKind string
	var channelID, webhookID, webhookToken, webhookName, webhookIconURL sql.NullString
	var contentTemplate sql.NullString
	var embedsJSON []byte

	err := row.Scan(
		&medium.ID, &medium.FeedID, &medium.FeedURL, &medium.OrganizationID, &targetKind,
		&channelID, &webhookID, &webhookToken, &webhookName, &webhookIconURL,
		&contentTemplate, &embedsJSON, &medium.SplitLimit, &medium.MaxDailyArticles,
		&medium.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	medium.TargetKind = model.DeliveryTargetKind(targetKind)
	medium.ChannelID = nullStringValue(channelID)
	medium.WebhookID = nullStringValue(webhookID)
	medium.WebhookToken = nullStringValue(webhookToken)
	medium.WebhookName = nullStringValue(webhookName)
	medium.WebhookIconURL = nullStringValue(webhookIconURL)
	medium.ContentTemplate = nullStringValue(contentTemplate)

	if len(embedsJSON) > 0 {
		if err := json.Unmarshal(embedsJSON, &medium.Embeds); err != nil {
			return nil, fmt.Errorf("埋め込みテンプレートのデシリアライズに失敗しました: %w", err)
		}
	}

	return medium, nil
}
