package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/civictrack/civictrack/internal/interfaces/cli/app"
)

var env string

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the classification workers",
		Long:  `Consume the classification queue and run the pipeline for every new report. Liveness, readiness and metrics are served on the probe address.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	c, err := app.Bootstrap(env)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	log := c.Logger()
	if !c.Config().Classification.Enabled {
		return fmt.Errorf("classification is disabled in configuration")
	}

	stopProbe := c.ServeProbe("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting classification worker", "environment", env)
	if err := c.NewWorkerPool().Run(ctx); err != nil {
		log.Errorw("worker pool stopped with error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := stopProbe(shutdownCtx); err != nil {
		log.Warnw("failed to stop probe server", "error", err)
	}

	log.Infow("classification worker exited gracefully")
	return nil
}
