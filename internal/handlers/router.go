package handlers

import (
	"context"
	"net/http"
	"time"

	"property-listing-api/internal/auth"
	"property-listing-api/internal/config"
	"property-listing-api/internal/middleware"
	"property-listing-api/internal/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether the database is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterDeps struct {
	Config      *config.Config
	DB          Pinger
	Properties  *PropertyHandler
	Images      *ImageHandler
	Search      *SearchHandler
	Admin       *AdminHandler
	RateLimiter *ratelimit.RateLimiter
	// UploadDir is served read-only under Config.Storage.PublicPrefix
	UploadDir string
}

// SetGinMode switches gin to release mode in production
func SetGinMode(cfg *config.ServerConfig) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     dep.Config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", auth.HeaderUserID, auth.HeaderUserRole},
		ExposeHeaders:    []string{middleware.HeaderRequestID},
		AllowCredentials: true,
	}))
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())

	r.GET("/health", healthCheck(dep.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if dep.UploadDir != "" {
		r.Static(dep.Config.Storage.PublicPrefix, dep.UploadDir)
	}

	api := r.Group("/api")
	api.GET("/properties", dep.Properties.ListProperties)
	api.GET("/properties/:id", dep.Properties.GetProperty)
	if dep.Search != nil {
		api.GET("/search", dep.Search.SearchProperties)
	}

	protected := api.Group("")
	protected.Use(auth.Middleware(dep.Config.Auth))
	if dep.RateLimiter != nil {
		protected.Use(dep.RateLimiter.Middleware(actorKey))
	}
	{
		protected.POST("/properties", dep.Properties.CreateProperty)
		protected.PUT("/properties/:id", dep.Properties.UpdateProperty)
		protected.DELETE("/properties/:id", dep.Properties.DeleteProperty)
		protected.POST("/properties/:id/images", dep.Images.UploadImages)
		protected.DELETE("/properties/:id/images/:imageId", dep.Images.DeleteImage)
	}

	if dep.Admin != nil {
		admin := api.Group("/admin")
		admin.Use(auth.Middleware(dep.Config.Auth), auth.RequireAdmin())
		{
			admin.GET("/stats", dep.Admin.GetStats)
			admin.GET("/delete-logs", dep.Admin.GetDeleteLogs)
			admin.POST("/search/reindex", dep.Admin.Reindex)
			admin.POST("/cleanup/run", dep.Admin.RunCleanup)
		}
	}

	return r
}

// actorKey rate limits writes per authenticated user
func actorKey(c *gin.Context) string {
	if actor, ok := auth.ActorFrom(c); ok {
		return "user:" + actor.ID
	}
	return ""
}

func healthCheck(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":   "unavailable",
					"database": err.Error(),
					"time":     time.Now(),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now(),
		})
	}
}
