package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	catalogdomain "github.com/smallbiznis/habitquest/internal/catalog/domain"
	"github.com/smallbiznis/habitquest/internal/config"
	"github.com/smallbiznis/habitquest/internal/engine"
	ledgerdomain "github.com/smallbiznis/habitquest/internal/ledger/domain"
	"github.com/smallbiznis/habitquest/internal/observability"
	obsmiddleware "github.com/smallbiznis/habitquest/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/habitquest/internal/observability/metrics"
	obstracing "github.com/smallbiznis/habitquest/internal/observability/tracing"
	profiledomain "github.com/smallbiznis/habitquest/internal/profile/domain"
	questdomain "github.com/smallbiznis/habitquest/internal/quest/domain"
	rewarddomain "github.com/smallbiznis/habitquest/internal/reward/domain"
	snapshotdomain "github.com/smallbiznis/habitquest/internal/snapshot/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log = log.Named("http.server")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("listen failed", zap.String("addr", srv.Addr), zap.Error(err))
				}
			}()
			log.Info("listening", zap.String("addr", srv.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	progression *engine.Engine
	catalogSvc  catalogdomain.Service
	profileSvc  profiledomain.Service
	questSvc    questdomain.Service
	ledgerSvc   ledgerdomain.Service
	rewardSvc   rewarddomain.Service
	snapshotSvc snapshotdomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Engine      *engine.Engine
	CatalogSvc  catalogdomain.Service
	ProfileSvc  profiledomain.Service
	QuestSvc    questdomain.Service
	LedgerSvc   ledgerdomain.Service
	RewardSvc   rewarddomain.Service
	SnapshotSvc snapshotdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		progression: p.Engine,
		catalogSvc:  p.CatalogSvc,
		profileSvc:  p.ProfileSvc,
		questSvc:    p.QuestSvc,
		ledgerSvc:   p.LedgerSvc,
		rewardSvc:   p.RewardSvc,
		snapshotSvc: p.SnapshotSvc,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Catalog --------
	api.GET("/domains", s.ListDomains)
	api.GET("/task-templates", s.ListTaskTemplates)

	// -------- Users --------
	api.POST("/users", s.CreateUser)

	user := api.Group("/users/:user_id")
	{
		user.GET("", s.GetUser)
		user.PATCH("", s.UpdateUser)
		user.GET("/dashboard", s.GetDashboard)
		user.GET("/progression", s.GetProgression)
		user.GET("/domain-settings", s.ListDomainSettings)
		user.PUT("/domain-settings", s.UpdateDomainSettings)

		// -------- Quests --------
		user.GET("/quests", s.ListQuests)
		user.POST("/quests", s.CreateQuest)
		user.GET("/quests/:quest_id", s.GetQuest)
		user.PATCH("/quests/:quest_id", s.UpdateQuest)
		user.DELETE("/quests/:quest_id", s.DeleteQuest)
		user.POST("/quests/:quest_id/complete", s.CompleteQuest)

		user.POST("/templates/:template_id", s.EnableTemplate)
		user.DELETE("/templates/:template_id", s.DisableTemplate)

		// -------- Ledger --------
		user.GET("/logs", s.ListLogs)
		user.POST("/logs", s.CreateLog)

		user.GET("/rewards", s.ListRewards)
	}
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin")

	admin.POST("/snapshots/rebuild", s.RebuildSnapshots)
	admin.GET("/snapshots/rebuild/:request_id", s.GetSnapshotRebuild)
	admin.GET("/snapshots/verify/:user_id", s.VerifySnapshots)
	admin.POST("/rewards/reload", s.ReloadRewards)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
