package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/princinho/authgate/controllers"
	"github.com/princinho/authgate/dto"
	"github.com/princinho/authgate/metrics"
	"github.com/princinho/authgate/middleware"
	"github.com/princinho/authgate/services"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

type Dependencies struct {
	Identity       *services.IdentityService
	Tokens         middleware.TokenVerifier
	StoreStatus    controllers.StoreStatus
	Metrics        *metrics.Metrics
	Log            *logrus.Entry
	AllowedOrigins []string
	Started        time.Time
}

func NewRouter(deps Dependencies) *gin.Engine {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(services.JSONFieldName)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Log))
	r.Use(middleware.Recovery(deps.Log))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(cors.New(corsConfig(deps.AllowedOrigins, deps.Log)))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Msg: "route not found"})
	})

	r.GET("/", controllers.Welcome())
	r.GET("/api/health", controllers.Health(deps.StoreStatus, deps.Started))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	auth := r.Group("/api/auth")
	auth.Use(middleware.BodyLimit(maxBodyBytes))
	{
		auth.POST("/register", controllers.Register(deps.Identity))
		auth.POST("/login", controllers.Login(deps.Identity))
		auth.POST("/reset-password", controllers.ResetPassword(deps.Identity))

		private := auth.Group("")
		private.Use(middleware.AuthMiddleware(deps.Tokens))
		{
			private.GET("/me", controllers.GetSelf(deps.Identity))
			private.GET("/users", controllers.ListUsers(deps.Identity))
			private.PUT("/users/:id/admin", controllers.ToggleAdmin(deps.Identity))
		}
	}

	return r
}

// corsConfig allows any origin when no allowlist is configured.
func corsConfig(origins []string, log *logrus.Entry) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", middleware.TokenHeader, middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}

	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	log.WithField("origins", origins).Info("CORS allowlist configured")
	cfg.AllowOriginFunc = func(origin string) bool {
		return allowed[origin]
	}
	return cfg
}
