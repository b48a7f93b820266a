package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/medifly/services/delivery/config"
	"example.com/medifly/services/delivery/internal/api"
	"example.com/medifly/services/delivery/internal/metrics"
	"example.com/medifly/services/delivery/internal/models"
	"example.com/medifly/services/delivery/internal/notifications"
	"example.com/medifly/services/delivery/internal/progression"
	"example.com/medifly/services/delivery/internal/repositories"
	"example.com/medifly/services/delivery/internal/services"
	"example.com/medifly/services/delivery/internal/store"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server serving delivery requests, dashboards and tracking`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize the persisted store
	redisStore, err := store.NewRedisStore(cfg.Redis)
	if err != nil {
		return errors.Wrap(err, "failed to connect to the delivery store")
	}
	defer redisStore.Close()

	// Initialize the catalog database
	var medicineRepo *repositories.MedicineRepository
	if db, err := initDatabase(cfg); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize catalog database, continuing without the medicine catalog")
	} else {
		medicineRepo = repositories.NewMedicineRepository(db)
	}

	// Initialize repositories and collaborators
	deliveryRepo := repositories.NewDeliveryRepository(redisStore)
	progressionRepo := repositories.NewProgressionRepository(redisStore)
	notificationService := notifications.NewService(redisStore)
	metricsCollector := metrics.NewMetrics()

	// Initialize the progression scheduler and reconcile persisted
	// schedules before serving traffic.
	scheduler := progression.NewScheduler(deliveryRepo, progressionRepo, notificationService,
		metricsCollector, cfg.Progression.CleanupGrace)
	if err := scheduler.ResumeAll(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to resume delivery progressions")
	}

	deliveryService := services.NewDeliveryService(deliveryRepo, scheduler, notificationService,
		medicineCatalog(medicineRepo), metricsCollector)

	// Initialize and start the server
	server := api.NewServer(cfg, api.Dependencies{
		DeliveryService: deliveryService,
		Medicines:       medicineRepo,
		Notifications:   notificationService,
		Metrics:         metricsCollector,
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// Stop timers first so no transition fires against a closing store;
	// persisted schedules survive for the next ResumeAll.
	scheduler.Shutdown()

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}

func initDatabase(cfg config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to catalog database")
	}

	if err := models.SetupModels(db); err != nil {
		return nil, errors.Wrap(err, "failed to run migrations")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying DB connection")
	}
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	if cfg.DB.ConnMaxLifetime <= 0 {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return db, nil
}

// medicineCatalog adapts an optional repository to the service's catalog
// dependency without handing it a typed nil.
func medicineCatalog(repo *repositories.MedicineRepository) services.Catalog {
	if repo == nil {
		return nil
	}
	return repo
}
