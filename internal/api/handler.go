package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/satindergrewal/stillroom/internal/logger"
	"github.com/satindergrewal/stillroom/internal/noise"
	"github.com/satindergrewal/stillroom/internal/presets"
	"github.com/satindergrewal/stillroom/internal/timer"
)

// Services are the components the HTTP layer drives.
type Services struct {
	Timer     *timer.Scheduler
	Mixer     *noise.Synthesizer
	Autopilot *presets.Autopilot

	// Stream and Offer serve the live mix; either may be nil.
	Stream http.Handler
	Offer  http.Handler
	// Listeners counts connected stream clients, if streaming is enabled.
	Listeners func() int
}

// Handler wires the HTTP layer to services and logging.
type Handler struct {
	services Services
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services Services, log *logger.Logger) *Handler {
	return &Handler{services: services, log: logger.OrNop(log).Named("api")}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger)

	router.GET("/health", h.health)
	router.GET("/api/status", h.status)

	h.registerTimerRoutes(router)
	h.registerMixerRoutes(router)
	h.registerPresetRoutes(router)

	// Live timer updates over WebSocket, same port
	router.GET("/ws", h.wsConnect)

	if h.services.Stream != nil {
		router.GET("/stream", gin.WrapH(h.services.Stream))
	}
	if h.services.Offer != nil {
		router.POST("/offer", gin.WrapH(h.services.Offer))
		router.OPTIONS("/offer", gin.WrapH(h.services.Offer))
	}

	return router
}

func (h *Handler) registerTimerRoutes(r *gin.Engine) {
	t := r.Group("/api/timer")
	{
		t.GET("", h.getTimer)
		t.POST("/start", h.timerAction(actionStart))
		t.POST("/resume", h.timerAction(actionResume))
		t.POST("/pause", h.timerAction(actionPause))
		t.POST("/toggle", h.timerAction(actionToggle))
		t.POST("/reset", h.timerAction(actionReset))
		t.POST("/mode", h.timerAction(actionMode))
	}
}

func (h *Handler) registerMixerRoutes(r *gin.Engine) {
	m := r.Group("/api/mixer")
	{
		m.GET("", h.getMixer)
		// Body example: {"band":"pink","value":0.3}
		m.POST("", h.setVolume)
		m.POST("/:band/stop", h.stopBand)
	}
}

func (h *Handler) registerPresetRoutes(r *gin.Engine) {
	r.GET("/api/presets", h.getPresets)
	r.POST("/api/presets/:name", h.applyPreset)
	r.POST("/api/autopilot", h.setAutopilot)
}

func (h *Handler) requestLogger(c *gin.Context) {
	c.Next()
	if c.Writer.Status() >= http.StatusInternalServerError {
		h.log.Warnw("request failed", "method", c.Request.Method, "path", c.FullPath(), "status", c.Writer.Status())
		return
	}
	h.log.Debugw("request", "method", c.Request.Method, "path", c.FullPath(), "status", c.Writer.Status())
}
