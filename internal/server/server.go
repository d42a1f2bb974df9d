package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glitchidea/glichflow/internal/authorization"
	catalogdomain "github.com/glitchidea/glichflow/internal/catalog/domain"
	commdomain "github.com/glitchidea/glichflow/internal/communication/domain"
	"github.com/glitchidea/glichflow/internal/config"
	githubdomain "github.com/glitchidea/glichflow/internal/github/domain"
	"github.com/glitchidea/glichflow/internal/observability"
	obsmiddleware "github.com/glitchidea/glichflow/internal/observability/logger"
	obsmetrics "github.com/glitchidea/glichflow/internal/observability/metrics"
	obstracing "github.com/glitchidea/glichflow/internal/observability/tracing"
	"github.com/glitchidea/glichflow/internal/ratelimit"
	saledomain "github.com/glitchidea/glichflow/internal/sale/domain"
	taskdomain "github.com/glitchidea/glichflow/internal/task/domain"
	userdomain "github.com/glitchidea/glichflow/internal/user/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxUploadBytes bounds sale attachments and receipts.
const maxUploadBytes = 20 << 20

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterRoutes()
	}),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// capabilityResolver is satisfied by *authorization.Resolver.
type capabilityResolver interface {
	Resolve(ctx context.Context, userID snowflake.ID) (authorization.CapabilitySet, error)
}

// webhookLimiter is satisfied by *ratelimit.WebhookLimiter.
type webhookLimiter interface {
	AllowRepository(ctx context.Context, owner, name string) (*ratelimit.RateLimitResult, error)
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	log        *zap.Logger
	userSvc    userdomain.Service
	resolver   capabilityResolver
	catalogSvc catalogdomain.Service
	saleSvc    saledomain.Service
	taskSvc    taskdomain.Service
	commSvc    commdomain.Service
	githubSvc  githubdomain.Service
	limiter    webhookLimiter
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	Log        *zap.Logger
	UserSvc    userdomain.Service
	Resolver   *authorization.Resolver
	CatalogSvc catalogdomain.Service
	SaleSvc    saledomain.Service
	TaskSvc    taskdomain.Service
	CommSvc    commdomain.Service
	GitHubSvc  githubdomain.Service
	Limiter    *ratelimit.WebhookLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		log:        p.Log.Named("http.server"),
		userSvc:    p.UserSvc,
		resolver:   p.Resolver,
		catalogSvc: p.CatalogSvc,
		saleSvc:    p.SaleSvc,
		taskSvc:    p.TaskSvc,
		commSvc:    p.CommSvc,
		githubSvc:  p.GitHubSvc,
	}
	if p.Limiter != nil && p.Limiter.Enabled() {
		s.limiter = p.Limiter
	}
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// RegisterRoutes mounts the health probe, the GitHub webhook and the /api
// group.
func (s *Server) RegisterRoutes() {
	s.engine.GET("/health", s.Health)
	s.engine.POST("/webhooks/github", s.WebhookRateLimit(), s.HandleGitHubWebhook)

	// Browser redirect target; GitHub cannot send the bearer token back.
	s.engine.GET("/api/github/oauth/callback", s.GitHubOAuthCallback)

	api := s.engine.Group("/api", s.Authenticated())
	s.registerCatalogRoutes(api)
	s.registerSaleRoutes(api)
	s.registerTaskRoutes(api)
	s.registerCommunicationRoutes(api)
	s.registerGitHubRoutes(api)
	s.registerUserRoutes(api)

	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

func (s *Server) registerCatalogRoutes(api *gin.RouterGroup) {
	view := RequireCapability(authorization.CapCatalogView)
	manage := RequireCapability(authorization.CapCatalogManage)

	api.GET("/package-groups", view, s.ListPackageGroups)
	api.POST("/package-groups", manage, s.CreatePackageGroup)
	api.GET("/package-groups/:id", view, s.GetPackageGroup)
	api.PATCH("/package-groups/:id", manage, s.UpdatePackageGroup)
	api.DELETE("/package-groups/:id", manage, s.DeletePackageGroup)

	api.GET("/package-groups/:id/packages", view, s.ListPackages)
	api.POST("/package-groups/:id/packages", manage, s.CreatePackage)
	api.GET("/packages/:id", view, s.GetPackage)
	api.PATCH("/packages/:id", manage, s.UpdatePackage)
	api.DELETE("/packages/:id", manage, s.DeletePackage)

	api.GET("/package-groups/:id/extra-services", view, s.ListExtraServices)
	api.POST("/package-groups/:id/extra-services", manage, s.CreateExtraService)
	api.GET("/extra-services/:id", view, s.GetExtraService)
	api.PATCH("/extra-services/:id", manage, s.UpdateExtraService)
	api.DELETE("/extra-services/:id", manage, s.DeleteExtraService)

	api.POST("/pricing/quote", view, s.QuotePrice)
}

func (s *Server) registerSaleRoutes(api *gin.RouterGroup) {
	view := RequireCapability(authorization.CapSalesView)
	manage := RequireCapability(authorization.CapSalesManage)
	finance := RequireCapability(authorization.CapFinanceManage)

	api.GET("/sales", view, s.ListSales)
	api.POST("/sales", manage, s.CreateSale)
	api.GET("/sales/:id", view, s.GetSale)
	api.PATCH("/sales/:id", manage, s.UpdateSale)
	api.DELETE("/sales/:id", manage, s.DeleteSale)
	api.POST("/sales/:id/status", manage, s.TransitionSaleStatus)

	api.POST("/sales/:id/extra-services", manage, s.AddSaleExtraService)
	api.PATCH("/sales/:id/extra-services/:itemId", manage, s.UpdateSaleExtraService)
	api.DELETE("/sales/:id/extra-services/:itemId", manage, s.RemoveSaleExtraService)

	api.POST("/sales/:id/costs", manage, s.AddSaleCost)
	api.PATCH("/sales/:id/costs/:costId", manage, s.UpdateSaleCost)
	api.DELETE("/sales/:id/costs/:costId", manage, s.RemoveSaleCost)

	api.POST("/sales/:id/payments", finance, s.RecordSalePayment)
	api.DELETE("/sales/:id/payments/:paymentId", finance, s.RemoveSalePayment)
	api.GET("/sales/:id/payments/:paymentId/receipt.pdf", view, s.SalePaymentReceiptPDF)

	api.POST("/sales/:id/files", manage, s.UploadSaleFile)
	api.DELETE("/sales/:id/files/:fileId", manage, s.RemoveSaleFile)

	api.GET("/sales/:id/quote.pdf", view, s.SaleQuotePDF)
}

func (s *Server) registerTaskRoutes(api *gin.RouterGroup) {
	view := RequireCapability(authorization.CapTasksView)
	manage := RequireCapability(authorization.CapTasksManage)

	api.GET("/projects", view, s.ListProjects)
	api.POST("/projects", manage, s.CreateProject)
	api.GET("/projects/:id", view, s.GetProject)

	api.GET("/tasks", view, s.ListTasks)
	api.POST("/tasks", manage, s.CreateTask)
	api.GET("/tasks/:id", view, s.GetTask)
	api.PATCH("/tasks/:id", manage, s.UpdateTask)
	api.POST("/tasks/:id/status", manage, s.ChangeTaskStatus)
	api.GET("/tasks/:id/thread", view, RequireCapability(authorization.CapMessaging), s.GetTaskThread)
}

func (s *Server) registerCommunicationRoutes(api *gin.RouterGroup) {
	messaging := RequireCapability(authorization.CapMessaging)

	// Every authenticated user has a notification inbox.
	api.GET("/notifications", s.ListNotifications)
	api.GET("/notifications/unread-count", s.UnreadNotificationCount)
	api.POST("/notifications/:id/read", s.MarkNotificationRead)

	api.POST("/threads", messaging, s.CreateThread)
	api.GET("/threads/:id", messaging, s.GetThread)
	api.GET("/threads/:id/messages", messaging, s.ListThreadMessages)
	api.POST("/threads/:id/messages", messaging, s.PostThreadMessage)

	api.POST("/direct-messages", messaging, s.GetOrCreateDirectMessage)
}

func (s *Server) registerGitHubRoutes(api *gin.RouterGroup) {
	sync := RequireCapability(authorization.CapGitHubSync)
	admin := RequireCapability(authorization.CapGitHubAdmin)

	api.POST("/tasks/:id/github/sync", sync, s.SyncTaskWithGitHub)
	api.GET("/github/repositories", sync, s.ListGitHubRepositories)
	api.POST("/github/repositories", admin, s.RegisterGitHubRepository)
	api.POST("/github/repositories/:id/import", sync, s.ImportGitHubIssues)
	api.POST("/github/issues/:id/comments/sync", sync, s.SyncGitHubIssueComments)

	api.GET("/github/oauth/authorize", sync, s.GitHubOAuthAuthorize)
}

func (s *Server) registerUserRoutes(api *gin.RouterGroup) {
	manage := RequireCapability(authorization.CapUsersManage)

	api.GET("/me", s.Me)
	api.GET("/users", manage, s.ListUsers)
	api.POST("/users", manage, s.CreateUser)
	api.POST("/users/:id/token", manage, s.IssueUserToken)
	api.POST("/users/:id/tags", manage, s.AssignUserTag)
	api.DELETE("/users/:id/tags/:tag", manage, s.RemoveUserTag)
}

func (s *Server) Health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		s.log.Warn("health check database ping failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "ok"})
}
