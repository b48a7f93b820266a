package api

import (
	"context"
	"net/http"
	"time"

	"example.com/medifly/services/delivery/config"
	"example.com/medifly/services/delivery/internal/api/handlers"
	"example.com/medifly/services/delivery/internal/api/middleware"
	"example.com/medifly/services/delivery/internal/metrics"
	"example.com/medifly/services/delivery/internal/notifications"
	"example.com/medifly/services/delivery/internal/repositories"
	"example.com/medifly/services/delivery/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
}

// Dependencies carries everything the HTTP handlers need.
type Dependencies struct {
	DeliveryService *services.DeliveryService
	Medicines       *repositories.MedicineRepository
	Notifications   *notifications.Service
	Metrics         *metrics.Metrics
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, deps Dependencies) *Server {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	registerValidations()

	server := &Server{config: cfg}
	server.router = server.setupRouter(deps)
	server.httpServer = &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: server.router,
	}

	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Logger(), gin.Recovery())

	deliveryHandler := handlers.NewDeliveryHandler(deps.DeliveryService)
	deliveryHandler.RegisterRoutes(router)

	if deps.Medicines != nil {
		medicineHandler := handlers.NewMedicineHandler(deps.Medicines)
		medicineHandler.RegisterRoutes(router)
	}

	notificationHandler := handlers.NewNotificationHandler(deps.Notifications)
	notificationHandler.RegisterRoutes(router)

	metricsHandler := handlers.NewMetricsHandler(deps.Metrics)
	metricsHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// registerValidations installs custom binding validations.
func registerValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("urgency", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case "", "routine", "urgent", "emergency":
				return true
			}
			return false
		})
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
