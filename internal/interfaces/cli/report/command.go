package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/civictrack/civictrack/internal/application/intake"
	"github.com/civictrack/civictrack/internal/interfaces/cli/app"
)

var (
	env string

	submitterID uint
	title       string
	description string
	category    string
	severity    string
	latitude    float64
	longitude   float64

	force bool

	limit int
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Submit and process reports",
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	cmd.AddCommand(
		newSubmitCommand(),
		newProcessCommand(),
		newNotificationsCommand(),
	)

	return cmd
}

func newSubmitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Create a report and queue it for classification",
		RunE:  runSubmit,
	}

	cmd.Flags().UintVar(&submitterID, "submitter", 0, "Submitting citizen id (required)")
	cmd.Flags().StringVar(&title, "title", "", "Report title (required)")
	cmd.Flags().StringVar(&description, "description", "", "Report description")
	cmd.Flags().StringVar(&category, "category", "", "Submitted category")
	cmd.Flags().StringVar(&severity, "severity", "", "Submitted severity")
	cmd.Flags().Float64Var(&latitude, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&longitude, "lng", 0, "Longitude")
	cmd.MarkFlagRequired("submitter")
	cmd.MarkFlagRequired("title")

	return cmd
}

func newProcessCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <report-id>",
		Short: "Run the classification pipeline for one report",
		Args:  cobra.ExactArgs(1),
		RunE:  runProcess,
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-run a report that was already processed")

	return cmd
}

func newNotificationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications <user-id>",
		Short: "List unread notifications for a user",
		Args:  cobra.ExactArgs(1),
		RunE:  runNotifications,
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum notifications to list")

	return cmd
}

func runSubmit(cmd *cobra.Command, args []string) error {
	c, err := app.Bootstrap(env)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	command := intake.CreateReportCommand{
		SubmitterID: submitterID,
		Title:       title,
		Description: description,
		Category:    category,
		Severity:    severity,
	}
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
		command.Latitude = &latitude
		command.Longitude = &longitude
	}

	result, err := c.Intake.Execute(cmd.Context(), command)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runProcess(cmd *cobra.Command, args []string) error {
	reportID, err := parseID(args[0])
	if err != nil {
		return err
	}

	c, err := app.Bootstrap(env)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	result, err := c.Pipeline.ProcessReport(cmd.Context(), reportID, force)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runNotifications(cmd *cobra.Command, args []string) error {
	userID, err := parseID(args[0])
	if err != nil {
		return err
	}

	c, err := app.Bootstrap(env)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	items, err := c.Notifier.Unread(cmd.Context(), userID, limit)
	if err != nil {
		return err
	}
	return printJSON(items)
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
