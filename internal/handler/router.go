package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/unidash/internal/middleware"
	"github.com/hitoshi/unidash/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// プロジェクト別サービス
	LeadService LeadServiceInterface
	CPAService  CPAServiceInterface
	PropService PropServiceInterface

	// AIアシスタント
	Assistant AIAssistantInterface

	// 統計・監査ログ
	StatsHandler *StatsHandler

	// メトリクス（nilの場合は記録しない）
	Metrics middleware.HTTPStatusRecorder
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics →
//	SessionMiddleware → RateLimitMiddleware(General) → CSRFMiddleware
//
// セッション以降は認証グループのみに適用し、認証ルート（/auth/*）と
// ヘルスチェックはその外に配置する。
// ロールゲート: 参照はviewer以上、作成・更新とAIはmanager以上、削除はadmin以上。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	leadHandler := NewLeadHandler(deps.LeadService)
	clientHandler := NewClientHandler(deps.CPAService)
	brokerHandler := NewBrokerHandler(deps.PropService)
	aiHandler := NewAIHandler(deps.Assistant, deps.LeadService, deps.CPAService, deps.PropService)

	// --- 認証不要のルート ---

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
		r.Put("/project", authHandler.SwitchProject)
	})

	r.Get("/health", deps.StatsHandler.Health)
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		manager := middleware.RequireRole(model.RoleManager)
		admin := middleware.RequireRole(model.RoleAdmin)

		// リード管理
		r.Route("/api/leads", func(r chi.Router) {
			r.Get("/", leadHandler.ListLeads)
			r.Get("/overview", leadHandler.LeadOverview)
			r.With(manager).Post("/", leadHandler.CreateLead)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", leadHandler.GetLead)
				r.With(manager).Patch("/", leadHandler.UpdateLead)
				r.With(admin).Delete("/", leadHandler.DeleteLead)
			})
		})

		// CPAクライアント管理
		r.Route("/api/clients", func(r chi.Router) {
			r.Get("/", clientHandler.ListClients)
			r.Get("/overview", clientHandler.FinancialOverview)
			r.With(manager).Post("/", clientHandler.CreateClient)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", clientHandler.GetClient)
				r.With(manager).Patch("/", clientHandler.UpdateClient)
				r.With(admin).Delete("/", clientHandler.DeleteClient)

				// ウォレット取引
				r.Get("/transactions", clientHandler.ListTransactions)
				r.With(manager).Post("/transactions", clientHandler.RecordTransaction)
			})
		})

		// プロップブローカー管理
		r.Route("/api/brokers", func(r chi.Router) {
			r.Get("/", brokerHandler.ListBrokers)
			r.Get("/overview", brokerHandler.PropOverview)
			r.With(manager).Post("/", brokerHandler.CreateBroker)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", brokerHandler.GetBroker)
				r.With(manager).Patch("/", brokerHandler.UpdateBroker)
				r.With(admin).Delete("/", brokerHandler.DeleteBroker)

				// ウォレット
				r.Get("/wallets", brokerHandler.ListWallets)
				r.With(manager).Post("/wallets", brokerHandler.AddWallet)
			})
		})

		r.Route("/api/wallets/{id}", func(r chi.Router) {
			r.With(manager).Put("/balance", brokerHandler.UpdateWalletBalance)
			r.With(admin).Delete("/", brokerHandler.DeleteWallet)
		})

		// AIアシスタント（manager以上 + AI専用レート制限）
		r.With(manager, deps.RateLimiter.AIMiddleware()).Post("/api/ai/ask", aiHandler.Ask)

		// 統計・監査ログ
		r.Get("/api/stats", deps.StatsHandler.DatabaseStats)
		r.Get("/api/activity", deps.StatsHandler.RecentActivity)
	})

	return r
}
