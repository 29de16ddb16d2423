package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/taxledger/internal/config"
	documentdomain "github.com/smallbiznis/taxledger/internal/document/domain"
	ledgerdomain "github.com/smallbiznis/taxledger/internal/ledger/domain"
	obslogger "github.com/smallbiznis/taxledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/taxledger/internal/observability/metrics"
	obstracing "github.com/smallbiznis/taxledger/internal/observability/tracing"
	"github.com/smallbiznis/taxledger/internal/ratelimit"
	taxdomain "github.com/smallbiznis/taxledger/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

// NewEngine builds the gin engine with request logging, tracing, metrics and
// error mapping installed.
func NewEngine(cfg config.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	shutdownTimeout := cfg.HTTPShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	documentSvc documentdomain.Service
	taxSvc      taxdomain.Service
	ledgerSvc   ledgerdomain.Service
	ledgerStore ledgerdomain.Store
	limiter     *ratelimit.DocumentLimiter
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	DocumentSvc documentdomain.Service
	TaxSvc      taxdomain.Service
	LedgerSvc   ledgerdomain.Service
	LedgerStore ledgerdomain.Store
	Limiter     *ratelimit.DocumentLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http"),
		documentSvc: p.DocumentSvc,
		taxSvc:      p.TaxSvc,
		ledgerSvc:   p.LedgerSvc,
		ledgerStore: p.LedgerStore,
		limiter:     p.Limiter,
	}

	svc.registerAPIRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.OrgContext())

	// -------- Documents --------
	api.POST("/documents/preview", s.PreviewDocument)
	api.POST("/documents", s.DocumentWriteLimit(), s.CreateDocument)
	api.GET("/documents", s.ListDocuments)
	api.GET("/documents/:id", s.GetDocumentByID)

	// -------- Tax rules --------
	api.GET("/tax_rules", s.ListTaxRules)
	api.POST("/tax_rules", s.CreateTaxRule)
	api.PATCH("/tax_rules/:id", s.UpdateTaxRule)
	api.POST("/tax_rules/:id/disable", s.DisableTaxRule)

	// -------- Ledger --------
	api.GET("/ledger/accounts", s.ListLedgerAccounts)
	api.POST("/ledger/accounts", s.CreateLedgerAccount)
	api.GET("/ledger/account_rules", s.ListAccountRules)
	api.PUT("/ledger/account_rules", s.UpsertAccountRule)
	api.POST("/ledger/seed", s.SeedDefaultChart)
	api.GET("/ledger/entries/:id", s.GetLedgerEntry)
	api.GET("/ledger/trial_balance", s.TrialBalance)
}
