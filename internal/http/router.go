package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/smallbiznis/decisionlog/internal/config"
	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/decisionlog/internal/http/middleware"
	"github.com/smallbiznis/decisionlog/internal/middleware"
	"github.com/smallbiznis/decisionlog/internal/service"
)

// Handlers groups the route handlers mounted by NewRouter.
type Handlers struct {
	Auth      *handler.AuthHandler
	Decisions *handler.DecisionHandler
	Options   *handler.OptionHandler
	Admin     *handler.AdminHandler
}

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, h Handlers, authMiddleware *httpmiddleware.Auth, guard *service.RoleGuard, rateLimiter *middleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(logger))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/health", handler.Health)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.GET("/me", authMiddleware.ValidateJWT, h.Auth.Me)
		authGroup.POST("/logout", authMiddleware.ValidateJWT, h.Auth.Logout)
	}

	decisions := r.Group("/decisions", authMiddleware.ValidateJWT)
	{
		decisions.POST("/", h.Decisions.Create)
		decisions.GET("/", h.Decisions.List)
		decisions.GET("/:id", h.Decisions.Get)
		decisions.PATCH("/:id", h.Decisions.Update)
		decisions.DELETE("/:id", h.Decisions.Delete)
	}

	options := r.Group("/options", authMiddleware.ValidateJWT)
	{
		options.POST("/", h.Options.Create)
		options.GET("/:id", h.Options.ListByDecision)
		options.PATCH("/:id", h.Options.Update)
		options.DELETE("/:id", h.Options.Delete)
	}

	admin := r.Group("/admin", authMiddleware.ValidateJWT, httpmiddleware.RequireRole(guard, domain.RoleAdmin))
	{
		admin.GET("/users", h.Admin.ListUsers)
		admin.PATCH("/users/:id/role", h.Admin.UpdateRole)
		admin.DELETE("/users/:id", h.Admin.DeleteUser)
		admin.GET("/dashboard", h.Admin.Dashboard)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "detail": "Route not found"})
	})

	return r
}
