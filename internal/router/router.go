package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sitskillbridge/skillbridge-backend/internal/config"
	"github.com/sitskillbridge/skillbridge-backend/internal/handler"
	"github.com/sitskillbridge/skillbridge-backend/internal/metrics"
	"github.com/sitskillbridge/skillbridge-backend/internal/middleware"
	"github.com/sitskillbridge/skillbridge-backend/internal/model"
	"github.com/sitskillbridge/skillbridge-backend/internal/response"
	"github.com/sitskillbridge/skillbridge-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Assessment *handler.AssessmentHandler
	WS         *handler.WSHandler
	Analysis   *handler.AnalysisHandler
	Resume     *handler.ResumeHandler
	GitHub     *handler.GitHubHandler
	Document   *handler.DocumentHandler
	System     *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// authLimiter may be nil to disable rate limiting of the auth routes.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	m *metrics.Metrics,
	authLimiter *middleware.RateLimiter,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(m.Middleware())

	// The Prometheus handler negotiates its own encoding.
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:   middleware.DefaultBrotliConfig.Quality,
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		SkipPaths: []string{"/metrics"},
	}))

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", m.Handler())

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/auth")
	auth.Use(middleware.NoStore())
	if authLimiter != nil {
		auth.Use(authLimiter.Middleware())
	}
	{
		auth.POST("/signup", handlers.Auth.Signup)
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/refresh", handlers.Auth.Refresh)

		session := []gin.HandlerFunc{
			middleware.RequireJWT(authService),
			middleware.CheckSingleDeviceSession(authService),
		}
		auth.GET("/me", append(session, handlers.Auth.Me)...)
		auth.POST("/logout", append(session, handlers.Auth.Logout)...)
		auth.POST("/change-password", append(session, handlers.Auth.ChangePassword)...)
	}

	// ─── 2. User API (JWT + Single Device) ─────────────────────────────
	api := router.Group("/api")
	api.Use(
		middleware.NoStore(),
		middleware.RequireJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		api.GET("/mcq/user-test", handlers.Assessment.GetUserTest)
		api.GET("/mcq/active", handlers.Assessment.GetActiveTest)
		api.POST("/mcq/submit", handlers.Assessment.Submit)

		api.POST("/career/match", handlers.Analysis.Run(model.AnalysisCareerMatch))
		api.POST("/skill-gap/calculate", handlers.Analysis.Run(model.AnalysisSkillGap))
		api.POST("/swot/analyze", handlers.Analysis.Run(model.AnalysisSWOT))
		api.POST("/roadmap/generate", handlers.Analysis.Run(model.AnalysisRoadmap))

		api.POST("/resume/parse", handlers.Resume.Parse)
		api.GET("/resume", handlers.Resume.Get)

		api.POST("/github/scrape", handlers.GitHub.Scrape)

		api.GET("/documents/:collection", handlers.Document.Get)

		api.GET("/system/stats", handlers.System.Stats)
	}

	// ─── 3. WebSocket Group (token in query) ───────────────────────────
	ws := router.Group("/ws")
	ws.Use(
		middleware.RequireWSAuth(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		ws.GET("/assessment/stream", handlers.WS.AssessmentStream)
	}

	return router
}
