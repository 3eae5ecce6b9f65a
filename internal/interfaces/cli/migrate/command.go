package migrate

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/civictrack/civictrack/internal/infrastructure/database"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/migrations"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/seeds"
	"github.com/civictrack/civictrack/internal/interfaces/cli/app"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

var (
	env      string
	withSeed bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Create or update the report, task, escalation, officer and notification tables and seed reference data.`,
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	cmd.AddCommand(
		newUpCommand(),
		newSeedCommand(),
		newStatusCommand(),
	)

	return cmd
}

func newUpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Create or update all tables",
		Long:  `Apply the gorm schema for every table the engine owns.`,
		RunE:  runUp,
	}

	cmd.Flags().BoolVar(&withSeed, "seed", true, "Seed the automation actor and default departments")

	return cmd
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed reference data",
		Long:  `Insert the automation actor and the default departments. Existing rows are kept.`,
		RunE:  runSeed,
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which tables exist",
		RunE:  runStatus,
	}
}

func withDatabase(fn func(db *gorm.DB, log logger.Interface) error) error {
	_, log, err := app.InitDatabase(env)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer database.Close()

	return fn(database.Get(), log)
}

func runUp(cmd *cobra.Command, args []string) error {
	return withDatabase(func(db *gorm.DB, log logger.Interface) error {
		log.Infow("running migrations", "environment", env)

		if err := migrations.MigrateAll(db); err != nil {
			log.Errorw("migration failed", "error", err)
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Infow("migrations completed successfully")

		if !withSeed {
			return nil
		}
		return seed(db, log)
	})
}

func runSeed(cmd *cobra.Command, args []string) error {
	return withDatabase(seed)
}

func seed(db *gorm.DB, log logger.Interface) error {
	if err := seeds.SeedAutomationActor(db); err != nil {
		return fmt.Errorf("failed to seed automation actor: %w", err)
	}
	if err := seeds.SeedDepartments(db); err != nil {
		return fmt.Errorf("failed to seed departments: %w", err)
	}
	log.Infow("reference data seeded")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withDatabase(func(db *gorm.DB, log logger.Interface) error {
		fmt.Printf("\nMigration Status:\n")
		fmt.Printf("  Environment: %s\n", env)
		migrator := db.Migrator()
		for _, table := range migrations.Tables() {
			state := "missing"
			if migrator.HasTable(table) {
				state = "present"
			}
			fmt.Printf("  %-24s %s\n", table, state)
		}
		return nil
	})
}
