package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetdispatch/app"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/internal/snapshot"
)

var (
	snapshotPath string
	asJSON       bool
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Assign loads from a fleet snapshot file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSnapshot(func(ctx context.Context, svc *app.Service, snap model.Snapshot) error {
			res, err := svc.Dispatcher.Dispatch(ctx, snap)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			renderDispatch(cmd.OutOrStdout(), res)
			return nil
		})
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Generate advisory suggestions for a fleet snapshot file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSnapshot(func(ctx context.Context, svc *app.Service, snap model.Snapshot) error {
			res, err := svc.Assistant.GenerateSuggestions(ctx, snap)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			renderSuggestions(cmd.OutOrStdout(), res)
			return nil
		})
	},
}

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List optimization backends and their capabilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *app.Service) error {
			infos := svc.Backends.Describe()
			if asJSON {
				return printJSON(cmd.OutOrStdout(), infos)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Backend", "Available", "Default", "Max size", "Types", "Time limit"})
			for _, b := range infos {
				types := make([]string, len(b.Capabilities.SupportedTypes))
				for i, t := range b.Capabilities.SupportedTypes {
					types[i] = string(t)
				}
				tw.AppendRow(table.Row{b.Name, b.Available, b.Default, b.Capabilities.MaxProblemSize, strings.Join(types, ","), b.Capabilities.ExecutionTimeLimit})
			}
			tw.Render()
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{dispatchCmd, suggestCmd} {
		c.Flags().StringVarP(&snapshotPath, "snapshot", "s", "", "fleet snapshot file (yaml or json)")
		_ = c.MarkFlagRequired("snapshot")
	}
	for _, c := range []*cobra.Command{dispatchCmd, suggestCmd, backendsCmd} {
		c.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
		rootCmd.AddCommand(c)
	}
}

func runSnapshot(fn func(context.Context, *app.Service, model.Snapshot) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap, err := snapshot.Load(snapshotPath)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	return withService(func(svc *app.Service) error { return fn(ctx, svc, snap) })
}

func renderDispatch(w io.Writer, res model.DispatchResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Load", "Driver", "Truck", "Rule", "Confidence", "Miles", "Reason"})
	for _, d := range res.Decisions {
		tw.AppendRow(table.Row{d.LoadID, d.DriverID, d.TruckID, d.RuleID, fmt.Sprintf("%.2f", d.Confidence), fmt.Sprintf("%.1f", d.DistanceMiles), d.Reason})
	}
	tw.AppendFooter(table.Row{"", "", "", "assigned", fmt.Sprintf("%d/%d", res.Metadata.AssignedLoads, res.Metadata.TotalLoads)})
	tw.Render()
	if len(res.UnassignedLoads) > 0 {
		fmt.Fprintf(w, "unassigned: %s\n", strings.Join(res.UnassignedLoads, ", "))
	}
	for load, msg := range res.PublishErrors {
		fmt.Fprintf(w, "publish failed for %s: %s\n", load, msg)
	}
}

func renderSuggestions(w io.Writer, res model.AutomationResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Suggestion", "Load", "Driver", "Source", "Score", "Confidence", "Miles"})
	for _, s := range res.Suggestions {
		tw.AppendRow(table.Row{s.ID, s.LoadID, s.DriverID, s.Source, fmt.Sprintf("%.1f", s.Score), fmt.Sprintf("%.2f", s.Confidence), fmt.Sprintf("%.1f", s.DistanceMiles)})
	}
	tw.Render()
	if len(res.UnprocessedLoads) > 0 {
		fmt.Fprintf(w, "unprocessed: %s\n", strings.Join(res.UnprocessedLoads, ", "))
	}
	fmt.Fprintln(w, "suggestions are advisory and require human review")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
