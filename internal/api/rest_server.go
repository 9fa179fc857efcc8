package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/pong-engine/internal/game"
	"github.com/annel0/pong-engine/internal/logging"
	"github.com/annel0/pong-engine/internal/middleware"
	"github.com/annel0/pong-engine/internal/physics"
	"github.com/annel0/pong-engine/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer представляет REST API сервера матчей
type RestServer struct {
	router     *gin.Engine
	httpServer *http.Server
	manager    *game.Manager
	port       string
	metrics    *ServerMetrics
	log        *logging.Logger
	upgrader   websocket.Upgrader
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port     string                // порт для запуска сервера
	Manager  *game.Manager         // менеджер матчей
	Registry prometheus.Registerer // куда регистрировать HTTP-метрики; nil: DefaultRegisterer
	Gatherer prometheus.Gatherer   // откуда отдавать /metrics; nil: DefaultGatherer
	Logger   *logging.Logger       // nil: глобальный логгер
	Tracing  bool                  // добавлять otelgin middleware
	Service  string                // имя сервиса для метрик и трассировки
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}
	if config.Service == "" {
		config.Service = "pong_api"
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	if config.Tracing {
		router.Use(otelgin.Middleware(config.Service))
	}
	router.Use(middleware.NewRequestLogger(config.Logger).Handler())

	promMw := middleware.NewPrometheusMiddleware("pong_api", config.Registry)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	server := &RestServer{
		router:  router,
		manager: config.Manager,
		port:    config.Port,
		metrics: NewServerMetrics(),
		log:     config.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Клиенты-зрители с любых origin
			},
		},
	}
	server.httpServer = &http.Server{
		Addr:              config.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Настраиваем маршруты
	server.setupRoutes()

	return server
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Группа API
	api := rs.router.Group("/api")
	{
		api.GET("/stats", rs.handleStats)
		api.GET("/results", rs.handleResults)

		matches := api.Group("/matches")
		matches.POST("", rs.handleCreateMatch)
		matches.GET("", rs.handleListMatches)
		matches.GET("/:id", rs.handleGetMatch)
		matches.DELETE("/:id", rs.handleDeleteMatch)
		matches.POST("/:id/input", rs.handleInput)
		matches.POST("/:id/pause", rs.handlePause)
		matches.POST("/:id/resume", rs.handleResume)
		matches.GET("/:id/ws", rs.handleStream)
	}

	// Health check
	rs.router.GET("/health", rs.handleHealth)
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// respondError переводит ошибку домена в HTTP-статус
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, game.ErrMatchNotFound),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, physics.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrInvalidInput),
		errors.Is(err, game.ErrInvalidRules),
		errors.Is(err, physics.ErrInvalidConfig):
		status = http.StatusBadRequest
	case errors.Is(err, game.ErrInvalidPhase):
		status = http.StatusConflict
	case errors.Is(err, game.ErrTooManyMatches):
		status = http.StatusTooManyRequests
	}

	c.JSON(status, GenericResponse{
		Success: false,
		Message: err.Error(),
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, GenericResponse{
		Success: false,
		Message: message,
	})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleStats возвращает статистику сервера
func (rs *RestServer) handleStats(c *gin.Context) {
	phases := make(map[string]int)
	for _, snap := range rs.manager.List() {
		phases[snap.Phase.String()]++
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data: gin.H{
			"server":  rs.metrics.Collect(),
			"matches": gin.H{"total": rs.manager.Len(), "by_phase": phases},
		},
	})
}

// Handler HTTP-обработчик сервера (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает REST сервер и блокирует до Stop
func (rs *RestServer) Start() error {
	logging.Info("🌐 REST API слушает %s", rs.port)
	if err := rs.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop плавно останавливает REST сервер
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.httpServer.Shutdown(ctx)
}
