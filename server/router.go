package server

import (
	"strings"
	"time"

	"social-publisher/infrastructure/metrics"
	httpHandler "social-publisher/interfaces/http"
	"social-publisher/interfaces/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups everything InitiateRouter mounts. Nil entries disable their routes.
type Handlers struct {
	Publish    httpHandler.IPublishHandler
	Token      httpHandler.ITokenHandler
	Capability httpHandler.ICapabilityHandler
	Health     httpHandler.IHealthHandler
	// Stream serves the per-user SSE publish status feed.
	Stream gin.HandlerFunc
}

type RouterOptions struct {
	SecretKey      string
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	// MediaDir is served under /media when set (local storage driver).
	MediaDir string
}

var defaultOrigins = []string{"http://localhost:4200", "http://localhost:4201", "https://localhost:4200", "https://localhost:4201"}

func InitiateRouter(h Handlers, opts RouterOptions) *gin.Engine {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if opts.Metrics != nil {
		router.Use(metrics.Middleware(opts.Metrics))
	}
	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) bool {
			_, ok := allowed[origin]
			return ok
		},
		MaxAge: 12 * time.Hour,
	}))

	if h.Health != nil {
		router.GET("/healthz", h.Health.Healthz)
	}
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	if opts.MediaDir != "" {
		router.Static("/media", opts.MediaDir)
	}

	api := router.Group("api")
	api.Use(middleware.Auth(opts.SecretKey))

	if h.Publish != nil {
		publish := api.Group("/publish")
		{
			publish.POST("", h.Publish.Publish)
			publish.POST("/:containerId/resume", h.Publish.Resume)
			publish.POST("/process-jobs", h.Publish.ProcessJobs)
			publish.GET("/attempts", h.Publish.ListAttempts)
			if h.Stream != nil {
				publish.GET("/stream", h.Stream)
			}
		}
	}
	if h.Token != nil {
		api.GET("/tokens/:platform", h.Token.Status)
		api.POST("/tokens/:platform/refresh", h.Token.Refresh)
	}
	if h.Capability != nil {
		api.GET("/capabilities/:platform", h.Capability.Check)
	}

	return router
}
