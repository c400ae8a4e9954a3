package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/feednotify/internal/article"
	"github.com/hitoshi/feednotify/internal/broker"
	"github.com/hitoshi/feednotify/internal/cache"
	"github.com/hitoshi/feednotify/internal/config"
	"github.com/hitoshi/feednotify/internal/database"
	"github.com/hitoshi/feednotify/internal/delivery"
	"github.com/hitoshi/feednotify/internal/entitlement"
	"github.com/hitoshi/feednotify/internal/fetcher"
	"github.com/hitoshi/feednotify/internal/handler"
	"github.com/hitoshi/feednotify/internal/logger"
	"github.com/hitoshi/feednotify/internal/metrics"
	"github.com/hitoshi/feednotify/internal/middleware"
	"github.com/hitoshi/feednotify/internal/objectstore"
	"github.com/hitoshi/feednotify/internal/producer"
	"github.com/hitoshi/feednotify/internal/repository"
	"github.com/hitoshi/feednotify/internal/security"
	"github.com/hitoshi/feednotify/internal/worker/cleanup"
	fetchworker "github.com/hitoshi/feednotify/internal/worker/fetch"
	"github.com/hitoshi/feednotify/internal/worker/refresh"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandMigrateDown:
		return runMigrateDown(cfg)
	default:
		return runServe(cfg)
	}
}

// newFetcherService はフェッチサービスとその依存関係を構築する。
// serveとworkerの両モードで共有される。
func newFetcherService(cfg *config.Config, requestRepo repository.RequestRepository, collector metrics.MetricsCollector) (*fetcher.Service, error) {
	cacheStore := cache.NewMemoryStore(cfg.CacheMaxEntries, cfg.CacheTTL)

	objectStore, err := objectstore.NewFilesystemStore(cfg.ObjectStoreDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object store: %w", err)
	}

	ssrfGuard := security.NewSSRFGuard()

	return fetcher.NewService(
		requestRepo, cacheStore, objectStore, ssrfGuard, collector,
		slog.Default(),
		cfg.FetchTimeout, cfg.FetchMaxRedirects, cfg.FetchMaxSize, cfg.FetchUserAgent,
	), nil
}

// newDispatcher は配信ディスパッチャとプロデューサを構築する。
func newDispatcher(cfg *config.Config, collector metrics.MetricsCollector, onResult producer.ResultHandler) (*delivery.Dispatcher, *producer.HTTPProducer) {
	producerCfg := producer.DefaultConfig()
	producerCfg.Workers = cfg.ProducerWorkers
	producerCfg.Rate = rate.Limit(cfg.ProducerRate)
	producerCfg.Burst = cfg.ProducerBurst
	producerCfg.QueueSize = cfg.ProducerQueueSize

	prod := producer.NewHTTPProducer(producerCfg, onResult, slog.Default())

	dispatcher := delivery.NewDispatcher(
		prod,
		delivery.NewPlaceholderRenderer(),
		collector,
		slog.Default(),
		cfg.DeliveryAPIBaseURL,
		cfg.MessageSplitLimit,
	)

	return dispatcher, prod
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、監査証跡APIと配信メディア管理APIをワイヤリングし、
// HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	requestRepo := repository.NewPostgresRequestRepo(db)
	mediumRepo := repository.NewPostgresDeliveryMediumRepo(db)

	// 3. メトリクスとフェッチサービスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	fetcherService, err := newFetcherService(cfg, requestRepo, collector)
	if err != nil {
		return err
	}

	// 4. テスト配信用ディスパッチャの構築
	// serveモードではプロデューサの同期Fetchのみ使用するため、
	// ワーカープールは起動しない。
	dispatcher, _ := newDispatcher(cfg, collector, nil)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		AuditStore:    requestRepo,
		LatestService: fetcherService,

		MediumStore: mediumRepo,
		TestSender:  dispatcher,

		MetricsHandler: metrics.Handler(registry),
		DB:             db,
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// リフレッシュスケジューラ・フェッチコンシューマ・配信プロデューサ・
// クリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	requestRepo := repository.NewPostgresRequestRepo(db)
	subRepo := repository.NewPostgresSubscriberRepo(db)
	feedSubRepo := repository.NewPostgresFeedSubscriptionRepo(db)
	debugRepo := repository.NewPostgresDebugURLRepo(db)
	mediumRepo := repository.NewPostgresDeliveryMediumRepo(db)

	// 3. メトリクスとフェッチサービスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	fetcherService, err := newFetcherService(cfg, requestRepo, collector)
	if err != nil {
		return err
	}

	// 4. 配信側の構築
	dispatcher, prod := newDispatcher(cfg, collector, func(result producer.JobResult) {
		// 非同期ジョブの実行結果はログにのみ記録する
		if result.Error != "" {
			slog.Warn("配信ジョブが失敗しました",
				slog.String("delivery_id", result.Meta.DeliveryID),
				slog.String("target_id", result.Meta.TargetID),
				slog.String("error", result.Error),
			)
			return
		}
		slog.Info("配信ジョブが完了しました",
			slog.String("delivery_id", result.Meta.DeliveryID),
			slog.Int("status_code", result.StatusCode),
		)
	})

	quota := delivery.NewDailyQuota()
	deliveryRouter := delivery.NewRouter(
		mediumRepo, dispatcher, quota, slog.Default(), cfg.MaxDailyArticlesDefault,
	)

	// 5. フェッチコンシューマの構築
	sanitizer := security.NewContentSanitizer()
	extractor := article.NewExtractor(sanitizer)
	consumer := fetchworker.NewConsumer(
		fetcherService, extractor, deliveryRouter, slog.Default(), cfg.FetchMaxConcurrent,
	)

	// 6. ブローカーとスケジューラの構築
	urlBroker := broker.NewInProcessBroker(cfg.ProducerQueueSize, slog.Default())

	benefits := benefitsProviderFor(cfg)
	syncer := entitlement.NewService(
		subRepo, collector, slog.Default(),
		cfg.DefaultRefreshRate, cfg.MaxDailyArticlesDefault,
	)

	scheduler := refresh.NewScheduler(
		benefits, syncer, feedSubRepo, debugRepo, urlBroker,
		collector, slog.Default(), cfg.BatchSize,
	)

	// 7. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())
	cleanupJob.RetentionDays = cfg.RequestRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Any("refresh_rates", cfg.RefreshRates),
		slog.Int("batch_size", cfg.BatchSize),
		slog.Int("max_concurrent", cfg.FetchMaxConcurrent),
	)

	// 配信プロデューサをバックグラウンドで起動
	go prod.Start(ctx)

	// URLバッチコンシューマをバックグラウンドで起動
	go urlBroker.Consume(ctx, consumer.HandleBatch)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// リフレッシュスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.RefreshRates)

	slog.Info("worker stopped gracefully")
	return nil
}

// benefitsProviderFor は設定に応じたエンタイトルメントプロバイダを返す。
// 外部APIが未設定の場合は空の固定プロバイダを使用し、
// 全購読者をデフォルト値に収束させる。
func benefitsProviderFor(cfg *config.Config) entitlement.BenefitsProvider {
	if cfg.EntitlementAPIURL == "" {
		slog.Warn("ENTITLEMENT_API_URL is not set, all subscribers converge to defaults")
		return entitlement.StaticProvider(nil)
	}
	return entitlement.NewHTTPProvider(
		&http.Client{Timeout: 10 * time.Second},
		slog.Default(),
		cfg.EntitlementAPIURL,
	)
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runMigrateDown はマイグレーションを1ステップだけロールバックする。
// 障害時の切り戻し用で、全ロールバックは意図的にサポートしない。
func runMigrateDown(cfg *config.Config) error {
	slog.Info("rolling back one migration step",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RollbackLastMigration(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration rollback failed: %w", err)
	}

	slog.Info("migration rollback completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
