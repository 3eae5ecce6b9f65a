package audit

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/civictrack/civictrack/internal/domain/shared/events"
	"github.com/civictrack/civictrack/internal/interfaces/cli/app"
)

var env string

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Follow lifecycle audit events",
		Long:  `Print every audit event published by the lifecycle service, the pipeline and the monitors as JSON lines until interrupted.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	c, err := app.Bootstrap(env)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	err = c.Audit.Subscribe(ctx, func(e events.AuditEvent) {
		if err := enc.Encode(e); err != nil {
			c.Logger().Warnw("failed to print audit event", "error", err)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
