package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/feednotify/internal/model"
)

// PostgresRequestRepo はPostgreSQLを使用したフェッチ監査証跡リポジトリ。
type PostgresRequestRepo struct {
	db *sql.DB
}

// NewPostgresRequestRepo はPostgresRequestRepoを生成する。
func NewPostgresRequestRepo(db *sql.DB) *PostgresRequestRepo {
	return &PostgresRequestRepo{db: db}
}

// Create はFetchRequestとそのFetchResponseを同一トランザクションで作成する。
func (r *PostgresRequestRepo) Create(ctx context.Context, req *model.FetchRequest) error {
	optionsJSON, err := json.Marshal(req.FetchOptions)
	if err != nil {
		return fmt.Errorf("フェッチオプションのシリアライズに失敗しました: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO requests (id, url, status, error_message, fetch_options, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		req.ID, req.URL, string(req.Status), nullString(req.ErrorMessage),
		optionsJSON, req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("リクエストレコードの作成に失敗しました: %w", err)
	}

	if resp := req.Response; resp != nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO responses (id, request_id, status_code, etag, last_modified,
			                        text_hash, cache_key, object_storage_key,
			                        is_cloudflare_origin, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			resp.ID, req.ID, resp.StatusCode,
			nullString(resp.ETag), nullString(resp.LastModified),
			resp.TextHash, resp.CacheKey, nullString(resp.ObjectStorageKey),
			resp.IsCloudflareOrigin, resp.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("レスポンスレコードの作成に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return nil
}

// requestColumns はリクエスト＋レスポンスのJOIN結果のSELECT句。
const requestColumns = `
	r.id, r.url, r.status, r.error_message, r.fetch_options, r.created_at,
	p.id, p.status_code, p.etag, p.last_modified, p.text_hash, p.cache_key,
	p.object_storage_key, p.is_cloudflare_origin, p.created_at`

// FindLatestByURL は指定URLの最新の非304リクエストをレスポンス付きで取得する。
func (r *PostgresRequestRepo) FindLatestByURL(ctx context.Context, url string) (*model.FetchRequest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+`
		 FROM requests r
		 LEFT JOIN responses p ON p.request_id = r.id
		 WHERE r.url = $1 AND (p.status_code IS NULL OR p.status_code <> 304)
		 ORDER BY r.created_at DESC
		 LIMIT 1`,
		url,
	)

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("最新リクエストの取得に失敗しました: %w", err)
	}

	return req, nil
}

// ConditionalHeaders は記録済みのetag/last-modifiedを条件付きGETの
// リクエストヘッダー名に対応付ける。値が空のヘッダーは含めない。
// このマップはそのままHTTPリクエストヘッダーとして送信される。
func ConditionalHeaders(etag, lastModified string) map[string]string {
	headers := map[string]string{}
	if etag != "" {
		headers["If-None-Match"] = etag
	}
	if lastModified != "" {
		headers["If-Modified-Since"] = lastModified
	}
	return headers
}

// LatestHeadersByURL は指定URLの最後に記録されたetag/last-modifiedを
// If-None-Match/If-Modified-Sinceヘッダーとして返す。
func (r *PostgresRequestRepo) LatestHeadersByURL(ctx context.Context, url string) (map[string]string, error) {
	var etag, lastModified sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT p.etag, p.last_modified
		 FROM requests r
		 JOIN responses p ON p.request_id = r.id
		 WHERE r.url = $1 AND (p.etag IS NOT NULL OR p.last_modified IS NOT NULL)
		 ORDER BY r.created_at DESC
		 LIMIT 1`,
		url,
	).Scan(&etag, &lastModified)

	if err == sql.ErrNoRows {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("最新リクエストヘッダーの取得に失敗しました: %w", err)
	}

	return ConditionalHeaders(nullStringValue(etag), nullStringValue(lastModified)), nil
}

// ListByURL は指定URLのリクエスト履歴をcreated_at降順で返す。
func (r *PostgresRequestRepo) ListByURL(ctx context.Context, url string, cursor time.Time, limit int) ([]*model.FetchRequest, error) {
	if cursor.IsZero() {
		cursor = time.Now().Add(time.Minute)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+requestColumns+`
		 FROM requests r
		 LEFT JOIN responses p ON p.request_id = r.id
		 WHERE r.url = $1 AND r.created_at < $2
		 ORDER BY r.created_at DESC
		 LIMIT $3`,
		url, cursor, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("リクエスト履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var requests []*model.FetchRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("リクエスト履歴の読み取りに失敗しました: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リクエスト履歴のイテレーションに失敗しました: %w", err)
	}

	return requests, nil
}

// CountByURL は指定URLのリクエスト総数を返す。
func (r *PostgresRequestRepo) CountByURL(ctx context.Context, url string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE url = $1`, url,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("リクエスト数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通スキャンインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRequest はJOIN結果の1行をFetchRequestに読み取る。
func scanRequest(row rowScanner) (*model.FetchRequest, error) {
	req := &model.FetchRequest{}
	var errorMessage sql.NullString
	var optionsJSON []byte
	var respID, respETag, respLastModified, respObjectKey sql.NullString
	var respStatusCode sql.NullInt64
	var respTextHash, respCacheKey sql.NullString
	var respIsCloudflare sql.NullBool
	var respCreatedAt sql.NullTime

	err := row.Scan(
		&req.ID, &req.URL, &req.Status, &errorMessage, &optionsJSON, &req.CreatedAt,
		&respID, &respStatusCode, &respETag, &respLastModified,
		&respTextHash, &respCacheKey, &respObjectKey, &respIsCloudflare, &respCreatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.ErrorMessage = nullStringValue(errorMessage)
	if len(optionsJSON) > 0 {
		if err := json.Unmarshal(optionsJSON, &req.FetchOptions); err != nil {
			return nil, fmt.Errorf("フェッチオプションのデシリアライズに失敗しました: %w", err)
		}
	}

	if respID.Valid {
		req.Response = &model.FetchResponse{
			ID:                 respID.String,
			StatusCode:         int(respStatusCode.Int64),
			ETag:               nullStringValue(respETag),
			LastModified:       nullStringValue(respLastModified),
			TextHash:           nullStringValue(respTextHash),
			CacheKey:           nullStringValue(respCacheKey),
			ObjectStorageKey:   nullStringValue(respObjectKey),
			IsCloudflareOrigin: respIsCloudflare.Bool,
			CreatedAt:          respCreatedAt.Time,
		}
	}

	return req, nil
}

// nullString は空文字列をNULLとして扱うsql.NullStringを返す。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullStringValue はsql.NullStringから値を取り出す。NULLの場合は空文字列を返す。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
