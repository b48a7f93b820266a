package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/medifly/services/delivery/config"
	"example.com/medifly/services/delivery/internal/metrics"
	"example.com/medifly/services/delivery/internal/notifications"
	"example.com/medifly/services/delivery/internal/progression"
	"example.com/medifly/services/delivery/internal/repositories"
	"example.com/medifly/services/delivery/internal/store"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long: `Start the background worker that reconciles persisted delivery
progressions against the wall clock, catching up deliveries that matured
while no process was running`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	// Initialize the persisted store
	redisStore, err := store.NewRedisStore(cfg.Redis)
	if err != nil {
		return errors.Wrap(err, "failed to connect to the delivery store")
	}
	defer redisStore.Close()

	deliveryRepo := repositories.NewDeliveryRepository(redisStore)
	progressionRepo := repositories.NewProgressionRepository(redisStore)
	notificationService := notifications.NewService(redisStore)
	metricsCollector := metrics.NewMetrics()

	scheduler := progression.NewScheduler(deliveryRepo, progressionRepo, notificationService,
		metricsCollector, cfg.Progression.CleanupGrace)

	// Reconcile once at startup, then keep sweeping as a fallback for
	// mutations that were missed while no process was running.
	if err := scheduler.ResumeAll(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to resume delivery progressions")
	}

	g.Go(func() error {
		log.Info().Dur("interval", cfg.Progression.SweepInterval).Msg("Starting progression reconciliation sweep")

		cronScheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = cronScheduler.NewJob(
			gocron.DurationJob(cfg.Progression.SweepInterval),
			gocron.NewTask(func() {
				log.Debug().Msg("Running progression reconciliation sweep")
				if err := scheduler.ResumeAll(ctx); err != nil {
					log.Error().Err(err).Msg("Failed to reconcile progressions in sweep")
				}
			}),
		)
		if err != nil {
			return err
		}

		cronScheduler.Start()

		// Wait for context cancellation
		<-ctx.Done()

		scheduler.Shutdown()
		return cronScheduler.Shutdown()
	})

	// Forward partition change events to the log for operators tailing
	// the worker.
	g.Go(func() error {
		for key := range redisStore.SubscribeChanges(ctx) {
			log.Debug().Str("key", key).Msg("Partition changed")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
