package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/panucci/internal/catalog"
	"github.com/smallbiznis/panucci/internal/config"
	"github.com/smallbiznis/panucci/internal/customer"
	customerdomain "github.com/smallbiznis/panucci/internal/customer/domain"
	"github.com/smallbiznis/panucci/internal/idempotency"
	"github.com/smallbiznis/panucci/internal/kitchen"
	kitchendomain "github.com/smallbiznis/panucci/internal/kitchen/domain"
	"github.com/smallbiznis/panucci/internal/migration"
	"github.com/smallbiznis/panucci/internal/observability"
	obsmiddleware "github.com/smallbiznis/panucci/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/panucci/internal/observability/metrics"
	obstracing "github.com/smallbiznis/panucci/internal/observability/tracing"
	"github.com/smallbiznis/panucci/internal/order"
	orderdomain "github.com/smallbiznis/panucci/internal/order/domain"
	"github.com/smallbiznis/panucci/internal/providers/pdf"
	"github.com/smallbiznis/panucci/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	customer.Module,
	catalog.Module,
	idempotency.Module,
	ratelimit.Module,
	pdf.Module,
	kitchen.Module,
	order.Module,
	migration.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware("/metrics", "/v1/health"))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())
	r.Use(LimitBody(maxRequestBodyBytes))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
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
	db          *gorm.DB
	customerSvc customerdomain.Service
	orderSvc    orderdomain.Service
	kitchenSvc  kitchendomain.Service
	catalog     *catalog.Service
	limiter     *ratelimit.OrderIntakeLimiter
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	CustomerSvc customerdomain.Service
	OrderSvc    orderdomain.Service
	KitchenSvc  kitchendomain.Service
	Catalog     *catalog.Service
	Limiter     *ratelimit.OrderIntakeLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		customerSvc: p.CustomerSvc,
		orderSvc:    p.OrderSvc,
		kitchenSvc:  p.KitchenSvc,
		catalog:     p.Catalog,
		limiter:     p.Limiter,
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
	api := s.engine.Group("/v1")

	api.GET("/health", s.Health)

	// -------- Orders --------
	api.POST("/orders", s.OrderRateLimit(), s.CreateOrder)
	api.GET("/orders", s.ListOrders)
	api.GET("/orders/export", s.ExportOrders)
	api.GET("/orders/products", s.ListProducts)
	api.GET("/orders/:orderId", s.GetOrder)
	api.POST("/orders/:orderId/cancel", s.CancelOrder)
	api.PATCH("/orders/:orderId/status", s.UpdateOrderStatus)
	api.GET("/orders/:orderId/receipt", s.GetOrderReceipt)

	// -------- Kitchen --------
	api.GET("/kitchen/orders", s.ListKitchenOrders)
	api.GET("/kitchen/orders/:orderRef", s.GetKitchenOrder)
	api.GET("/kitchen/orders/:orderRef/ticket", s.PrintKitchenTicket)

	// -------- Customers --------
	api.GET("/customers", s.ListCustomers)
	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers/:clienteId", s.GetCustomerByID)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/v1/admin")

	admin.POST("/customers/resync", s.ResyncCustomerCounter)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

func (s *Server) Health(c *gin.Context) {
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
