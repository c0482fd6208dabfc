package handlers

import (
	"set_and_wait/internal/logger"
	"set_and_wait/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)

	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Status push over WebSocket, same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.operatorMiddleware)
	{
		api.GET("/status", h.getStatus)
		// Body example: {"line":"G28"}
		api.POST("/gcode", h.sendGcode)
		h.registerWaitRoutes(api)
		h.registerJobRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerWaitRoutes(api *gin.RouterGroup) {
	waits := api.Group("/waits")
	{
		waits.GET("", h.listWaits)
		waits.POST("/abort", h.abortAllWaits)
		waits.POST("/cancel", h.cancelWait)
		waits.POST("/:identifier/abort", h.abortWait)
	}
}

func (h *Handler) registerJobRoutes(api *gin.RouterGroup) {
	jobs := api.Group("/jobs")
	{
		jobs.GET("", h.getJob)
		jobs.POST("", h.startJob)
		jobs.POST("/cancel", h.cancelJob)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("", h.getLogs)
	}
}
