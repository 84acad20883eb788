package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetdispatch/app"
	"github.com/kilianp07/fleetdispatch/core/audit"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/pkg/export"
)

var (
	auditQuery  audit.Query
	auditAction string
	auditSince  time.Duration
	auditFormat string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the persisted audit trail",
	Long:  "Query the audit store configured under audit.store. Without a store the trail of a fresh process is empty.",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := auditQuery
		if auditAction != "" {
			q.Action = model.AuditAction(auditAction)
			if !q.Action.Valid() {
				return fmt.Errorf("unknown audit action %q", auditAction)
			}
		}
		if auditSince > 0 {
			q.Start = time.Now().Add(-auditSince)
		}
		return withService(func(svc *app.Service) error {
			entries, err := svc.Audit.Search(context.Background(), q)
			if err != nil {
				return err
			}
			if auditFormat != "table" {
				return export.Write(cmd.OutOrStdout(), auditFormat, entries)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Seq", "Time", "Action", "Load", "Driver", "User", "Reason"})
			for _, e := range entries {
				tw.AppendRow(table.Row{e.Seq, e.Timestamp.Format(time.RFC3339), e.Action, e.LoadID, e.DriverID, e.UserID, e.Reason})
			}
			tw.Render()
			return nil
		})
	},
}

func init() {
	f := auditCmd.Flags()
	f.StringVar(&auditQuery.LoadID, "load", "", "filter by load ID")
	f.StringVar(&auditQuery.UserID, "user", "", "filter by user ID")
	f.StringVar(&auditQuery.SuggestionID, "suggestion", "", "filter by suggestion ID")
	f.StringVar(&auditAction, "action", "", "filter by action")
	f.DurationVar(&auditSince, "since", 0, "only entries newer than this")
	f.IntVar(&auditQuery.Limit, "limit", 0, "keep only the most recent entries")
	f.StringVar(&auditFormat, "format", "table", "table, csv or json")
	rootCmd.AddCommand(auditCmd)
}
