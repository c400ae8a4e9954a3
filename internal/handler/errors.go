package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/feednotify/internal/middleware"
)

// writeBadRequest はバリデーションエラーの統一レスポンスを書き込む。
func writeBadRequest(w http.ResponseWriter, message, action string) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, middleware.ErrorResponseBody{
		Code:     "INVALID_REQUEST",
		Message:  message,
		Category: "validation",
		Action:   action,
	})
}

// writeNotFound はリソース未検出の統一レスポンスを書き込む。
func writeNotFound(w http.ResponseWriter, code, message string) {
	middleware.WriteErrorResponse(w, http.StatusNotFound, middleware.ErrorResponseBody{
		Code:     code,
		Message:  message,
		Category: "feed",
		Action:   "指定したリソースを確認してください。",
	})
}

// handleServiceError はサービス層のエラーをログに記録し、500レスポンスを返す。
// エラーの詳細はログのみに記録する。
func handleServiceError(w http.ResponseWriter, err error) {
	slog.Error("ハンドラーでサービスエラーが発生しました",
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}
