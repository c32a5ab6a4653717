// Package router assembles the Gin engine from the application's modules.
package router

import (
	"net/http"

	apphttp "leadfunnel_backend/internal/http"
	"leadfunnel_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// New builds the HTTP engine: shared middleware, health endpoint and the
// route groups each module mounts onto.
func New(app *apphttp.App) *gin.Engine {
	cfg := app.Config

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(app))

	limiter := httpkit.NewIPRateLimiter(rate.Limit(20), 40, app.Logger)
	engine.Use(limiter.RateLimit())

	engine.GET("/api/health", func(c *gin.Context) {
		if app.Health != nil {
			if err := app.Health.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")
	public := v1.Group("", httpkit.OptionalAuth(cfg))
	protected := v1.Group("", httpkit.AuthRequired(cfg))
	admin := protected.Group("/admin")

	ctx := &apphttp.RouterContext{
		Engine:    engine,
		V1:        v1,
		Public:    public,
		Protected: protected,
		Admin:     admin,
		Config:    cfg,
	}

	for _, module := range app.Modules {
		module.RegisterRoutes(ctx)
		app.Logger.Info("module routes registered", "module", module.Name())
	}

	return engine
}

func corsMiddleware(app *apphttp.App) gin.HandlerFunc {
	corsCfg := cors.DefaultConfig()
	if app.Config.GetCORSAllowAll() {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = app.Config.GetCORSOrigins()
		corsCfg.AllowCredentials = app.Config.GetCORSAllowCreds()
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	return cors.New(corsCfg)
}
