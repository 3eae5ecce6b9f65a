package escalation

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	escapp "github.com/civictrack/civictrack/internal/application/escalation"
	"github.com/civictrack/civictrack/internal/interfaces/cli/app"
)

var (
	env string

	actorID    uint
	reportID   uint
	escType    string
	severity   string
	reason     string
	assigneeID uint
	resolution string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "escalation",
		Short: "Raise and work escalations",
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.PersistentFlags().UintVar(&actorID, "actor", 0, "Acting officer id")

	raise := &cobra.Command{
		Use:   "raise",
		Short: "Raise a manual escalation against a report",
		RunE:  runRaise,
	}
	raise.Flags().UintVar(&reportID, "report", 0, "Report id (required)")
	raise.Flags().StringVar(&escType, "type", "", "Escalation type (default manual)")
	raise.Flags().StringVar(&severity, "severity", "", "Severity (default medium)")
	raise.Flags().StringVar(&reason, "reason", "", "Reason (required)")
	raise.MarkFlagRequired("report")
	raise.MarkFlagRequired("reason")

	assign := &cobra.Command{
		Use:   "assign <escalation-id>",
		Short: "Assign an escalation to an officer",
		Args:  cobra.ExactArgs(1),
		RunE:  runAssign,
	}
	assign.Flags().UintVar(&assigneeID, "to", 0, "Assignee officer id (required)")
	assign.MarkFlagRequired("to")

	resolve := &cobra.Command{
		Use:   "resolve <escalation-id>",
		Short: "Resolve an escalation",
		Args:  cobra.ExactArgs(1),
		RunE:  runResolve,
	}
	resolve.Flags().StringVar(&resolution, "resolution", "", "Resolution note (required)")
	resolve.MarkFlagRequired("resolution")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List open escalations, most severe first",
			RunE:  runList,
		},
		raise,
		assign,
		&cobra.Command{
			Use:   "investigate <escalation-id>",
			Short: "Start investigating an escalation",
			Args:  cobra.ExactArgs(1),
			RunE:  runInvestigate,
		},
		resolve,
	)

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	c, err := app.Bootstrap(env)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	list, err := c.Escalations.ListOpen(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(list)
}

func runRaise(cmd *cobra.Command, args []string) error {
	if actorID == 0 {
		return fmt.Errorf("--actor is required")
	}
	c, err := app.Bootstrap(env)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	res, err := c.Escalations.Raise(cmd.Context(), escapp.RaiseCommand{
		ReportID: reportID,
		Type:     escType,
		Severity: severity,
		Reason:   reason,
		RaisedBy: actorID,
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runAssign(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if actorID == 0 {
		return fmt.Errorf("--actor is required")
	}
	c, err := app.Bootstrap(env)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	res, err := c.Escalations.Assign(cmd.Context(), escapp.AssignCommand{
		EscalationID: id,
		AssigneeID:   assigneeID,
		ActorID:      actorID,
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runInvestigate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if actorID == 0 {
		return fmt.Errorf("--actor is required")
	}
	c, err := app.Bootstrap(env)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	res, err := c.Escalations.StartInvestigation(cmd.Context(), escapp.StartInvestigationCommand{
		EscalationID: id,
		ActorID:      actorID,
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runResolve(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if actorID == 0 {
		return fmt.Errorf("--actor is required")
	}
	c, err := app.Bootstrap(env)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	res, err := c.Escalations.Resolve(cmd.Context(), escapp.ResolveCommand{
		EscalationID: id,
		ResolvedBy:   actorID,
		Resolution:   resolution,
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid escalation id %q", s)
	}
	return uint(id), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
