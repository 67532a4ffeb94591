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

	"github.com/hitoshi/unidash/internal/ai"
	"github.com/hitoshi/unidash/internal/auth"
	"github.com/hitoshi/unidash/internal/config"
	"github.com/hitoshi/unidash/internal/cpa"
	"github.com/hitoshi/unidash/internal/database"
	"github.com/hitoshi/unidash/internal/handler"
	"github.com/hitoshi/unidash/internal/lead"
	"github.com/hitoshi/unidash/internal/logger"
	"github.com/hitoshi/unidash/internal/metrics"
	"github.com/hitoshi/unidash/internal/middleware"
	"github.com/hitoshi/unidash/internal/model"
	"github.com/hitoshi/unidash/internal/prop"
	"github.com/hitoshi/unidash/internal/repository"
	"github.com/hitoshi/unidash/internal/security"
	"github.com/hitoshi/unidash/internal/worker/cleanup"
	"github.com/hitoshi/unidash/internal/worker/dbcheck"
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

	// healthcheck / hashpw は軽量サブコマンドのため、フル初期化をスキップする
	switch cmd {
	case CommandHealthcheck:
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	case CommandHashpw:
		return runHashpw(w, args)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// pingAll は3プロジェクト分のデータベース接続を確認する。
// 起動時の設定ミスを早期に検出するため、いずれかの接続失敗は致命的エラーとする。
func pingAll(dbs *database.Databases) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, project := range model.AllProjects() {
		db, err := dbs.Get(project)
		if err != nil {
			return err
		}
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to connect to %s database: %w", project, err)
		}
	}
	return nil
}

// databaseURLs は3プロジェクト分の接続URLマップを構築する。
func databaseURLs(cfg *config.Config) map[model.ProjectType]string {
	return map[model.ProjectType]string{
		model.ProjectLead: cfg.LeadDatabaseURL,
		model.ProjectCPA:  cfg.CPADatabaseURL,
		model.ProjectProp: cfg.PropDatabaseURL,
	}
}

// runServe はAPIサーバーモードで起動する。
// 3プロジェクトのDB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続（プロジェクトごとに独立）
	dbs, err := database.OpenAll(databaseURLs(cfg))
	if err != nil {
		return fmt.Errorf("failed to open databases: %w", err)
	}
	defer dbs.Close()

	if err := pingAll(dbs); err != nil {
		return err
	}

	slog.Info("database connections established")

	leadDB, _ := dbs.Get(model.ProjectLead)
	cpaDB, _ := dbs.Get(model.ProjectCPA)
	propDB, _ := dbs.Get(model.ProjectProp)

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	leadRepo := repository.NewPostgresLeadRepo(leadDB)
	clientRepo := repository.NewPostgresClientRepo(cpaDB)
	txRepo := repository.NewPostgresTransactionRepo(cpaDB)
	brokerRepo := repository.NewPostgresBrokerRepo(propDB)
	walletRepo := repository.NewPostgresWalletRepo(propDB)

	activityRepos := map[model.ProjectType]repository.ActivityLogRepository{
		model.ProjectLead: repository.NewPostgresActivityRepo(leadDB),
		model.ProjectCPA:  repository.NewPostgresActivityRepo(cpaDB),
		model.ProjectProp: repository.NewPostgresActivityRepo(propDB),
	}
	statsRepos := map[model.ProjectType]repository.StatsRepository{
		model.ProjectLead: repository.NewPostgresStatsRepo(leadDB),
		model.ProjectCPA:  repository.NewPostgresStatsRepo(cpaDB),
		model.ProjectProp: repository.NewPostgresStatsRepo(propDB),
	}

	// 4. 認証サービスの初期化
	credStore, err := auth.NewCredentialStore(cfg.Credentials)
	if err != nil {
		return fmt.Errorf("failed to build credential store: %w", err)
	}
	sessionStore := auth.NewSessionStore(time.Duration(cfg.SessionMaxAge) * time.Second)
	defer sessionStore.Stop()
	attemptTracker := auth.NewAttemptTracker(cfg.LoginMaxAttempts, cfg.LoginLockoutWindow)
	defer attemptTracker.Stop()
	authService := auth.NewService(credStore, sessionStore, attemptTracker, collector)

	// 5. ドメインサービスの初期化
	sanitizer := security.NewNoteSanitizer()
	leadService := lead.NewService(leadRepo, activityRepos[model.ProjectLead], sanitizer)
	cpaService := cpa.NewService(clientRepo, txRepo, activityRepos[model.ProjectCPA], sanitizer)
	propService := prop.NewService(brokerRepo, walletRepo, activityRepos[model.ProjectProp], sanitizer)

	// 6. AIアシスタントの初期化（SSRF防止付きHTTPクライアントを使用）
	outboundGuard := security.NewOutboundGuard()
	if err := outboundGuard.ValidateURL(cfg.AIAPIURL); err != nil {
		return fmt.Errorf("unsafe AI API URL: %w", err)
	}
	assistant := ai.NewAssistant(ai.AssistantConfig{
		APIKey:      cfg.AIAPIKey,
		BaseURL:     cfg.AIAPIURL,
		Model:       cfg.AIModel,
		MaxTokens:   cfg.AIMaxTokens,
		Temperature: float32(cfg.AITemperature),
		MaxRetries:  cfg.AIRetryAttempts,
		CacheTTL:    cfg.AICacheTTL,
	}, outboundGuard.NewSafeClient(cfg.AITimeout), collector)
	defer assistant.Stop()

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		AIRate:          rate.Limit(float64(cfg.RateLimitAI) / 60.0),
		AIBurst:         cfg.RateLimitAI,
		CleanupInterval: 5 * time.Minute,
	})
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		SessionFinder:     sessionStore,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		LeadService: leadService,
		CPAService:  cpaService,
		PropService: propService,

		Assistant: assistant,

		StatsHandler: handler.NewStatsHandler(statsRepos, activityRepos),

		Metrics: collector,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// メトリクスサーバーは別ポートで起動
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

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

	if err := metricsServer.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 監査ログクリーンアップジョブとデータベース接続確認ジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続（プロジェクトごとに独立）
	dbs, err := database.OpenAll(databaseURLs(cfg))
	if err != nil {
		return fmt.Errorf("failed to open databases: %w", err)
	}
	defer dbs.Close()

	if err := pingAll(dbs); err != nil {
		return err
	}

	slog.Info("database connections established (worker)")

	leadDB, _ := dbs.Get(model.ProjectLead)
	cpaDB, _ := dbs.Get(model.ProjectCPA)
	propDB, _ := dbs.Get(model.ProjectProp)

	activityRepos := map[model.ProjectType]repository.ActivityLogRepository{
		model.ProjectLead: repository.NewPostgresActivityRepo(leadDB),
		model.ProjectCPA:  repository.NewPostgresActivityRepo(cpaDB),
		model.ProjectProp: repository.NewPostgresActivityRepo(propDB),
	}
	statsRepos := map[model.ProjectType]repository.StatsRepository{
		model.ProjectLead: repository.NewPostgresStatsRepo(leadDB),
		model.ProjectCPA:  repository.NewPostgresStatsRepo(cpaDB),
		model.ProjectProp: repository.NewPostgresStatsRepo(propDB),
	}

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. ジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(activityRepos, slog.Default())
	cleanupJob.RetentionDays = cfg.AuditRetentionDays

	checkJob := dbcheck.NewCheckJob(statsRepos, collector, slog.Default(), dbcheck.CheckConfig{
		Interval:    cfg.DBCheckInterval,
		PingTimeout: 5 * time.Second,
	})

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

	// メトリクスサーバーをバックグラウンドで起動
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		slog.Info("metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	slog.Info("worker starting",
		slog.Int("audit_retention_days", cfg.AuditRetentionDays),
		slog.Duration("db_check_interval", cfg.DBCheckInterval),
	)

	// 監査ログクリーンアップジョブを日次でバックグラウンド実行
	go cleanupJob.Start(ctx, 24*time.Hour)

	// 接続確認ジョブをメインgoroutineで実行（ブロッキング）
	checkJob.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate は全プロジェクトのデータベースマイグレーションを実行する。
// すべての未適用マイグレーションをプロジェクトごとに順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("lead_database_url", maskDatabaseURL(cfg.LeadDatabaseURL)),
		slog.String("cpa_database_url", maskDatabaseURL(cfg.CPADatabaseURL)),
		slog.String("prop_database_url", maskDatabaseURL(cfg.PropDatabaseURL)),
	)

	if err := database.RunAllMigrations(databaseURLs(cfg)); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
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

// runHashpw はパスワードハッシュを生成して出力する。
// 生成されたハッシュはクレデンシャル環境変数にそのまま設定できる。
func runHashpw(w io.Writer, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: hashpw <password>")
	}

	hash, err := auth.HashPassword(args[1])
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	fmt.Fprintln(w, hash)
	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
