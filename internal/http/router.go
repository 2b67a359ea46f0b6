package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/Thomasfairey/compliance-connect-sub003/internal/config"
	"github.com/Thomasfairey/compliance-connect-sub003/internal/db"
	"github.com/Thomasfairey/compliance-connect-sub003/internal/http/handlers"
	"github.com/Thomasfairey/compliance-connect-sub003/internal/http/middleware"
	"github.com/Thomasfairey/compliance-connect-sub003/internal/service"

	_ "github.com/Thomasfairey/compliance-connect-sub003/docs"
)

func Router(cfg config.Config, store *db.Store, allocator *service.Allocator, transitioner *service.Transitioner, planner *service.RoutePlanner, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:        store,
		Allocator:    allocator,
		Transitioner: transitioner,
		Planner:      planner,
		Validator:    validator.New(),
		Logger:       logger,
		AdminKey:     cfg.AdminKey,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/bookings", h.BookingsList)
		api.GET("/bookings/:id", h.BookingDetails)
		api.GET("/engineers", h.EngineersList)
		api.GET("/engineers/:id/route", h.EngineerRoute)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/bookings/:id/allocate", h.Allocate)
		admin.POST("/bookings/:id/quote", h.Quote)
		admin.POST("/bookings/:id/transition", h.Transition)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
