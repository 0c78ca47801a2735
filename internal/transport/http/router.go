// Package httptransport exposes the engine over HTTP and a websocket
// event stream.
package httptransport

import (
	"context"
	"net/http"
	"runtime"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nhle/tempvortex/internal/event"
	"github.com/nhle/tempvortex/internal/logger"
	"github.com/nhle/tempvortex/internal/monitoring"
	"github.com/nhle/tempvortex/internal/provider"
	"github.com/nhle/tempvortex/internal/session"
	"github.com/nhle/tempvortex/internal/store"
	"github.com/nhle/tempvortex/internal/sync"
)

// RouterDependencies are the components the HTTP layer serves.
type RouterDependencies struct {
	Session  *session.Manager
	Sync     *sync.Synchronizer
	Registry *provider.Registry
	Bus      *event.Bus
	Store    store.Store
	Metrics  *monitoring.Metrics
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger

	AllowedOrigins  []string
	RecoveryBaseURL string
}

// Handler implements the API endpoints.
type Handler struct {
	session      *session.Manager
	sync         *sync.Synchronizer
	registry     *provider.Registry
	bus          *event.Bus
	metrics      *monitoring.Metrics
	logger       *zap.Logger
	recoveryBase string
	origins      []string
}

// NewRouter creates the gin engine with every route registered.
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := logger.Or(deps.Logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsConfig := gincors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	h := &Handler{
		session:      deps.Session,
		sync:         deps.Sync,
		registry:     deps.Registry,
		bus:          deps.Bus,
		metrics:      deps.Metrics,
		logger:       log,
		recoveryBase: deps.RecoveryBaseURL,
		origins:      origins,
	}

	health := newHealth(deps.Store)
	router.GET("/live", gin.WrapF(health.LiveEndpoint))
	router.GET("/ready", gin.WrapF(health.ReadyEndpoint))

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	router.GET("/recover", h.recoverSession)
	router.GET("/ws", h.stream)

	api := router.Group("/api")
	{
		sessions := api.Group("/session")
		{
			sessions.GET("", h.getSession)
			sessions.POST("", h.createSession)
			sessions.POST("/switch", h.switchProvider)
			sessions.GET("/recovery", h.recoveryLink)
		}

		providers := api.Group("/providers")
		{
			providers.GET("", h.listProviders)
			providers.GET("/:id/domains", h.listDomains)
		}

		messages := api.Group("/messages")
		{
			messages.GET("", h.listMessages)
			messages.POST("/refresh", h.refresh)
			messages.GET("/:id", h.getMessage)
			messages.DELETE("/:id", h.deleteMessage)
			messages.GET("/:id/attachments/:attachmentId", h.downloadAttachment)
			messages.GET("/:id/eml", h.exportMessage)
		}
	}

	return router
}

func newHealth(st store.Store) healthcheck.Handler {
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10*runtime.NumCPU()+1000))
	if st != nil {
		health.AddReadinessCheck("store", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return st.Ping(ctx)
		})
	}
	return health
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Debug("request", fields...)
		}
	}
}
