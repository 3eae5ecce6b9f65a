package monitor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/civictrack/civictrack/internal/infrastructure/scheduler"
	"github.com/civictrack/civictrack/internal/interfaces/cli/app"
)

var (
	env  string
	once bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the SLA, stale task and recovery jobs",
		Long:  `Run the SLA monitor, the stale task monitor and the classification recovery sweep on their configured intervals.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().BoolVar(&once, "once", false, "Run every job once and exit")

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
	jobs := scheduler.MonitorJobs{
		SLA:      c.SLA,
		Stale:    c.Stale,
		Recovery: c.Recovery,
	}

	if once {
		return runOnce(cmd.Context(), jobs)
	}

	manager, err := scheduler.NewSchedulerManager(log)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if err := manager.RegisterMonitorJobs(jobs, c.Config().Monitor); err != nil {
		return fmt.Errorf("failed to register monitor jobs: %w", err)
	}

	stopProbe := c.ServeProbe("monitor")
	manager.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Infow("shutting down monitor")
	if err := manager.Stop(); err != nil {
		log.Errorw("scheduler stopped with error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := stopProbe(shutdownCtx); err != nil {
		log.Warnw("failed to stop probe server", "error", err)
	}

	log.Infow("monitor exited gracefully")
	return nil
}

func runOnce(ctx context.Context, jobs scheduler.MonitorJobs) error {
	if ctx == nil {
		ctx = context.Background()
	}
	steps := []struct {
		name string
		job  scheduler.BatchJob
	}{
		{"sla", jobs.SLA},
		{"stale", jobs.Stale},
		{"recovery", jobs.Recovery},
	}
	for _, step := range steps {
		n, err := step.job.Execute(ctx)
		if err != nil {
			return fmt.Errorf("%s job failed: %w", step.name, err)
		}
		fmt.Fprintf(os.Stdout, "%s: %d\n", step.name, n)
	}
	return nil
}
