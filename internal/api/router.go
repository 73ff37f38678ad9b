package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/leadvault/leadvault/internal/auth"
	"github.com/leadvault/leadvault/internal/cache"
	"github.com/leadvault/leadvault/internal/handlers"
	"github.com/leadvault/leadvault/internal/middleware"
	"github.com/leadvault/leadvault/internal/services"
)

// RouterConfig carries the handful of knobs the HTTP surface needs.
type RouterConfig struct {
	// SignInPath is where unauthenticated browser requests are redirected.
	SignInPath string
	// SecureCookies marks the session cookie Secure; enable behind TLS.
	SecureCookies bool
}

// NewRouter builds the Gin engine, wires middleware, and registers all routes.
func NewRouter(db *gorm.DB, sessions *iauth.SessionService, verifications *iauth.VerificationService, store cache.Store, cfg RouterConfig) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session service must be provided")
	}
	if verifications == nil {
		return nil, fmt.Errorf("verification service must be provided")
	}
	if store == nil {
		return nil, fmt.Errorf("cache store must be provided")
	}
	if cfg.SignInPath == "" {
		cfg.SignInPath = "/sign-in"
	}

	users, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	buyers, err := services.NewBuyerService(db)
	if err != nil {
		return nil, err
	}
	csv, err := services.NewCSVService(buyers)
	if err != nil {
		return nil, err
	}

	authHandler, err := handlers.NewAuthHandler(users, sessions, verifications, cfg.SecureCookies)
	if err != nil {
		return nil, err
	}
	buyerHandler, err := handlers.NewBuyerHandler(buyers)
	if err != nil {
		return nil, err
	}
	csvHandler, err := handlers.NewCSVHandler(csv)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	// Public endpoints
	r.GET("/health", handlers.Health())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAuth := middleware.Auth(sessions, cfg.SignInPath)

	// Public auth routes, limited per IP
	auth := r.Group("/api/auth")
	auth.Use(middleware.AuthLimit(store))
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/verify", authHandler.RequestToken)
		auth.GET("/verify", authHandler.Verify)
	}

	// Everything else requires a live session
	api := r.Group("/api")
	api.Use(requireAuth)
	api.Use(middleware.GeneralAPILimit(store))

	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/auth/me", authHandler.Me)

	mutate := middleware.MutationLimit(store)
	leads := api.Group("/buyers")
	{
		leads.GET("", buyerHandler.List)
		leads.POST("", mutate, buyerHandler.Create)
		leads.GET("/export", csvHandler.Export)
		leads.POST("/import", middleware.ImportLimit(store), csvHandler.Import)
		leads.GET("/:id", buyerHandler.Get)
		leads.PUT("/:id", mutate, buyerHandler.Update)
		leads.DELETE("/:id", mutate, buyerHandler.Delete)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
