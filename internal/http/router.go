package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/revalidafacil/stations-backend/internal/http/handlers"
	httpMW "github.com/revalidafacil/stations-backend/internal/http/middleware"
	"github.com/revalidafacil/stations-backend/internal/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	HealthHandler  *httpH.HealthHandler
	StationHandler *httpH.StationHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.RequestID())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())
	r.Use(otelgin.Middleware("stations-backend"))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.StationHandler != nil {
			api.POST("/stations/generate", cfg.StationHandler.Generate)
			api.POST("/stations/generate-batch", cfg.StationHandler.GenerateBatch)
			api.POST("/stations/:id/audit", cfg.StationHandler.Audit)
			api.GET("/stations", cfg.StationHandler.List)
			api.GET("/stations/:id", cfg.StationHandler.Get)
		}
	}

	return r
}
