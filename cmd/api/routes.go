package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/handler"
	"github.com/noah-isme/course-enrollment-api/internal/middleware"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/service"
	"github.com/noah-isme/course-enrollment-api/pkg/config"
	"github.com/noah-isme/course-enrollment-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-enrollment-api/pkg/middleware/requestid"
)

type routes struct {
	auth       middleware.TokenValidator
	metrics    *service.MetricsService
	payments   *handler.PaymentHandler
	admissions *handler.AdmissionHandler
	health     *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, h routes) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(middleware.ResponseMeta())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(h.metrics))

	r.GET("/health", h.health.Health)
	r.GET("/ready", h.health.Ready)
	r.GET("/metrics", h.health.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	payments := api.Group("/payments")
	payments.POST("/capture", h.payments.Capture)
	payments.POST("/verify", h.payments.Verify)

	admissions := api.Group("/admission-confirmations",
		middleware.JWT(h.auth),
		middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin),
	)
	admissions.GET("", h.admissions.List)
	admissions.POST("", h.admissions.Create)
	admissions.GET("/stats", h.admissions.Stats)
	admissions.GET("/export", h.admissions.Export)
	admissions.GET("/:id", h.admissions.Get)
	admissions.PUT("/:id/confirm", h.admissions.Confirm)
	admissions.PUT("/:id/reject", h.admissions.Reject)

	return r
}
