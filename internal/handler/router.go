package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/feednotify/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 監査証跡
	AuditStore    AuditStore
	LatestService LatestRequestService

	// 配信メディア
	MediumStore MediumStore
	TestSender  TestSender

	// 運用系
	MetricsHandler http.Handler
	DB             *sql.DB
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → RateLimit
//
// 運用系ルート（/healthz, /metrics）はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	requestHandler := NewRequestHandler(deps.AuditStore, deps.LatestService)
	mediumHandler := NewMediumHandler(deps.MediumStore, deps.TestSender)

	// --- 運用系ルート ---

	r.Get("/healthz", healthzHandler(deps.DB))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- APIルート ---
	// ミドルウェアスタック: RateLimit
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		// フェッチ監査証跡
		r.Route("/api/feeds/requests", func(r chi.Router) {
			r.Get("/", requestHandler.ListRequests)
			r.Get("/count", requestHandler.CountRequests)
			r.Get("/latest", requestHandler.GetLatestRequest)
		})

		// 配信メディア管理
		r.Route("/api/mediums", func(r chi.Router) {
			r.Get("/", mediumHandler.ListMediums)
			r.Post("/", mediumHandler.CreateMedium)
			r.Post("/test", mediumHandler.TestDelivery)
			r.Delete("/{id}", mediumHandler.DeleteMedium)
		})
	})

	return r
}

// healthzHandler はDB接続を確認するヘルスチェックハンドラーを返す。
func healthzHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "unavailable",
				})
				return
			}
		}

		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
