package queue

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/civictrack/civictrack/internal/interfaces/cli/app"
)

var (
	env   string
	limit int64
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the classification queue",
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	failed := &cobra.Command{
		Use:   "failed",
		Short: "List dead-lettered reports",
		RunE:  runFailed,
	}
	failed.Flags().Int64Var(&limit, "limit", 50, "Maximum items to list")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show pending, processing and failed counts",
			RunE:  runStatus,
		},
		failed,
		&cobra.Command{
			Use:   "retry",
			Short: "Move every dead-lettered report back to pending",
			RunE:  runRetry,
		},
	)

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := app.Bootstrap(env)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	depth, err := c.Queue.Depth(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("pending:    %d\nprocessing: %d\nfailed:     %d\n", depth.Pending, depth.Processing, depth.Failed)
	return nil
}

func runFailed(cmd *cobra.Command, args []string) error {
	c, err := app.Bootstrap(env)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	items, err := c.Queue.Failed(cmd.Context(), limit)
	if err != nil {
		return err
	}
	for _, item := range items {
		fmt.Printf("%d\t%s\n", item.ReportID, item.Reason)
	}
	return nil
}

func runRetry(cmd *cobra.Command, args []string) error {
	c, err := app.Bootstrap(env)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	n, err := c.Queue.RetryFailed(cmd.Context())
	if err != nil {
		return err
	}
	c.Logger().Infow("dead-lettered reports requeued", "count", n)
	fmt.Printf("requeued %d reports\n", n)
	return nil
}
