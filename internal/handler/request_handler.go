package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/feednotify/internal/model"
)

// defaultRequestsPerPage は監査証跡一覧の1回の取得件数（デフォルト）。
const defaultRequestsPerPage = 50

// maxRequestsPerPage は監査証跡一覧の1回の取得件数の上限。
const maxRequestsPerPage = 200

// AuditStore は監査証跡ハンドラーが必要とするストアインターフェース。
type AuditStore interface {
	// ListByURL は指定URLのリクエスト履歴をcreated_at降順で返す。
	ListByURL(ctx context.Context, url string, cursor time.Time, limit int) ([]*model.FetchRequest, error)
	// CountByURL は指定URLのリクエスト総数を返す。
	CountByURL(ctx context.Context, url string) (int, error)
}

// LatestRequestService は最新フェッチ結果の取得サービスインターフェース。
type LatestRequestService interface {
	// GetLatestRequest は指定URLの最新の非304リクエストと
	// キャッシュ済みのデコード済みボディを返す。
	GetLatestRequest(ctx context.Context, feedURL string) (*model.FetchRequest, string, error)
}

// RequestHandler はフェッチ監査証跡のHTTPハンドラー。
type RequestHandler struct {
	store   AuditStore
	service LatestRequestService
}

// NewRequestHandler はRequestHandlerを生成する。
func NewRequestHandler(store AuditStore, service LatestRequestService) *RequestHandler {
	return &RequestHandler{store: store, service: service}
}

// --- レスポンス型 ---

// responseBody はレスポンスレコードのAPI表現。
type responseBody struct {
	ID                 string    `json:"id"`
	StatusCode         int       `json:"status_code"`
	ETag               string    `json:"etag,omitempty"`
	LastModified       string    `json:"last_modified,omitempty"`
	TextHash           string    `json:"text_hash"`
	CacheKey           string    `json:"cache_key"`
	ObjectStorageKey   string    `json:"object_storage_key,omitempty"`
	IsCloudflareOrigin bool      `json:"is_cloudflare_origin"`
	CreatedAt          time.Time `json:"created_at"`
}

// requestBody はリクエストレコードのAPI表現。
type requestBody struct {
	ID           string        `json:"id"`
	URL          string        `json:"url"`
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Response     *responseBody `json:"response,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// requestListResponse は監査証跡一覧のレスポンス。
type requestListResponse struct {
	Requests   []requestBody `json:"requests"`
	NextCursor string        `json:"next_cursor,omitempty"`
	HasMore    bool          `json:"has_more"`
}

// requestCountResponse は監査証跡件数のレスポンス。
type requestCountResponse struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// latestRequestResponse は最新フェッチ結果のレスポンス。
type latestRequestResponse struct {
	Request requestBody `json:"request"`
	Body    string      `json:"body,omitempty"`
}

// toRequestBody はモデルをAPI表現に変換する。
func toRequestBody(req *model.FetchRequest) requestBody {
	body := requestBody{
		ID:           req.ID,
		URL:          req.URL,
		Status:       string(req.Status),
		ErrorMessage: req.ErrorMessage,
		CreatedAt:    req.CreatedAt,
	}
	if resp := req.Response; resp != nil {
		body.Response = &responseBody{
			ID:                 resp.ID,
			StatusCode:         resp.StatusCode,
			ETag:               resp.ETag,
			LastModified:       resp.LastModified,
			TextHash:           resp.TextHash,
			CacheKey:           resp.CacheKey,
			ObjectStorageKey:   resp.ObjectStorageKey,
			IsCloudflareOrigin: resp.IsCloudflareOrigin,
			CreatedAt:          resp.CreatedAt,
		}
	}
	return body
}

// ListRequests は指定URLのフェッチ履歴を取得する。
// GET /api/feeds/requests?url=xxx&cursor=RFC3339&limit=50
func (h *RequestHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeBadRequest(w, "urlパラメータは必須です。", "対象のフィードURLを指定してください。")
		return
	}

	var cursor time.Time
	if cursorStr := r.URL.Query().Get("cursor"); cursorStr != "" {
		parsed, err := time.Parse(time.RFC3339Nano, cursorStr)
		if err != nil {
			writeBadRequest(w, "cursorパラメータの形式が不正です。", "RFC3339形式のタイムスタンプを指定してください。")
			return
		}
		cursor = parsed
	}

	limit := defaultRequestsPerPage
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "limitパラメータの形式が不正です。", "1以上の整数を指定してください。")
			return
		}
		if parsed > maxRequestsPerPage {
			parsed = maxRequestsPerPage
		}
		limit = parsed
	}

	// has_more判定のため1件余分に取得する
	requests, err := h.store.ListByURL(r.Context(), url, cursor, limit+1)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	hasMore := len(requests) > limit
	if hasMore {
		requests = requests[:limit]
	}

	result := requestListResponse{
		Requests: make([]requestBody, 0, len(requests)),
		HasMore:  hasMore,
	}
	for _, req := range requests {
		result.Requests = append(result.Requests, toRequestBody(req))
	}
	if hasMore && len(requests) > 0 {
		result.NextCursor = requests[len(requests)-1].CreatedAt.Format(time.RFC3339Nano)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// CountRequests は指定URLのフェッチ履歴の総数を取得する。
// GET /api/feeds/requests/count?url=xxx
func (h *RequestHandler) CountRequests(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeBadRequest(w, "urlパラメータは必須です。", "対象のフィードURLを指定してください。")
		return
	}

	count, err := h.store.CountByURL(r.Context(), url)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(requestCountResponse{URL: url, Count: count})
}

// GetLatestRequest は指定URLの最新フェッチ結果をキャッシュ済みボディ付きで取得する。
// GET /api/feeds/requests/latest?url=xxx
func (h *RequestHandler) GetLatestRequest(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeBadRequest(w, "urlパラメータは必須です。", "対象のフィードURLを指定してください。")
		return
	}

	req, body, err := h.service.GetLatestRequest(r.Context(), url)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if req == nil {
		writeNotFound(w, "REQUEST_NOT_FOUND", "指定URLのフェッチ履歴が見つかりません。")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(latestRequestResponse{
		Request: toRequestBody(req),
		Body:    body,
	})
}
