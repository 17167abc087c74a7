package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkledger/internal/server/handlers"
	"github.com/mamadbah2/milkledger/internal/server/middleware"
)

// Deps groups everything the router mounts.
type Deps struct {
	Yield          *handlers.YieldHandler
	Aggregates     *handlers.AggregateHandler
	AllowedOrigins []string
	// Gatherer backs /metrics; nil uses the default Prometheus registry.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// New wires the Gin engine with required routes and middlewares.
func New(deps Deps) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	if err := handlers.RegisterValidators(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(deps.AllowedOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/", middleware.RequireFarm())
	{
		api.GET("/yield-records", deps.Yield.List)
		api.POST("/yield-records", deps.Yield.Create)
		api.POST("/yield-records/bulk", deps.Yield.BulkCreate)
		api.GET("/yield-records/monthly", deps.Yield.MonthlyHistory)
		api.GET("/yield-records/yearly", deps.Yield.YearlyHistory)
		api.GET("/yield-records/recent", deps.Yield.RecentDays)
		api.GET("/yield-records/years", deps.Yield.YearRange)
		api.PUT("/yield-records/:id", deps.Yield.Update)
		api.DELETE("/yield-records/:id", deps.Yield.Delete)

		api.GET("/session-aggregates", deps.Aggregates.SessionAggregates)
		api.PUT("/session-aggregates/:session/completion", deps.Aggregates.SetCompletion)
		api.GET("/daily-summaries", deps.Aggregates.DailySummaries)
		api.POST("/aggregates/reconcile", deps.Aggregates.Reconcile)
		api.POST("/reports/daily", deps.Aggregates.DailyReport)
	}

	logger.Info("router initialized")
	return r, nil
}
