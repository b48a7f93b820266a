package cmd

import (
	"context"
	"os"

	"example.com/medifly/services/delivery/config"
	"example.com/medifly/services/delivery/internal/repositories"
	"example.com/medifly/services/delivery/internal/seed"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo catalog",
	Long:  `Load the demo medicine catalog and hospital/doctor registry into the catalog database`,
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	db, err := initDatabase(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to initialize catalog database")
	}

	medicines := seed.Medicines()
	hospitals := seed.Hospitals()
	doctors := seed.Doctors()

	repo := repositories.NewMedicineRepository(db)
	if err := repo.Seed(context.Background(), medicines, hospitals, doctors); err != nil {
		return errors.Wrap(err, "failed to seed demo catalog")
	}

	log.Info().
		Int("medicines", len(medicines)).
		Int("hospitals", len(hospitals)).
		Int("doctors", len(doctors)).
		Msg("Demo catalog seeded")
	return nil
}
