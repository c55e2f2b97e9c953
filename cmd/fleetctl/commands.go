package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fleetpilot/internal/app/audit"
	"fleetpilot/internal/app/retention"
	"fleetpilot/internal/domain/fleet"
)

func auditCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{Use: "audit", Short: "Query the audit ledger"}
	cmd.PersistentFlags().IntVar(&limit, "limit", audit.DefaultLimit, "maximum records to return")

	run := func(req func(args []string) audit.Request) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			stores, err := openStores(cmd)
			if err != nil {
				return err
			}
			defer stores.Close()
			r := req(args)
			r.Limit = limit
			resp, err := audit.UseCase{Records: stores.Audit}.Execute(cmd.Context(), r)
			if err != nil {
				return err
			}
			return renderAudit(cmd.OutOrStdout(), resp, viper.GetBool("json"))
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "recent",
		Short: "Most recent records",
		Args:  cobra.NoArgs,
		RunE:  run(func([]string) audit.Request { return audit.Request{} }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "operator <email>",
		Short: "Records for one operator",
		Args:  cobra.ExactArgs(1),
		RunE:  run(func(args []string) audit.Request { return audit.Request{Operator: args[0]} }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status <success|failed|pending>",
		Short: "Records with one status",
		Args:  cobra.ExactArgs(1),
		RunE:  run(func(args []string) audit.Request { return audit.Request{Status: args[0]} }),
	})
	return cmd
}

func renderAudit(w io.Writer, resp audit.Response, asJSON bool) error {
	if asJSON {
		return printJSON(w, resp)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Time", "Operator", "Action", "Status", "Reason", "Log ID"})
	for _, r := range resp.Records {
		tw.AppendRow(table.Row{r.Timestamp.Format(time.RFC3339), r.OperatorEmail, r.Action, r.Status, r.Reason, r.LogID})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "Total", resp.Count})
	tw.Render()
	return nil
}

func actionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List the action catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderActions(cmd.OutOrStdout(), fleet.DefaultRegistry().Actions(), viper.GetBool("json"))
		},
	}
}

func renderActions(w io.Writer, actions []fleet.Action, asJSON bool) error {
	if asJSON {
		type row struct {
			Name        string   `json:"name"`
			Destructive bool     `json:"destructive"`
			Mutating    bool     `json:"mutating"`
			Params      []string `json:"parameters"`
		}
		rows := make([]row, 0, len(actions))
		for _, a := range actions {
			rows = append(rows, row{Name: string(a.Name), Destructive: a.Destructive, Mutating: a.Mutating, Params: paramNames(a)})
		}
		return printJSON(w, rows)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Action", "Kind", "Mutating", "Destructive", "Parameters"})
	for _, a := range actions {
		tw.AppendRow(table.Row{a.Name, a.Kind, yesNo(a.Mutating), yesNo(a.Destructive), strings.Join(paramNames(a), ", ")})
	}
	tw.Render()
	return nil
}

// paramNames marks required parameters with a trailing asterisk.
func paramNames(a fleet.Action) []string {
	out := make([]string, 0, len(a.Params))
	for _, p := range a.Params {
		if p.Required {
			out = append(out, p.Name+"*")
			continue
		}
		out = append(out, p.Name)
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func reapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Delete expired confirmation tokens and audit records past retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openStores(cmd)
			if err != nil {
				return err
			}
			defer stores.Close()
			res, err := retention.Reaper{Tokens: stores.Tokens, Audit: stores.Audit}.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s token(s) and %s audit record(s)\n",
				strconv.FormatInt(res.TokensDeleted, 10), strconv.FormatInt(res.RecordsDeleted, 10))
			return nil
		},
	}
}
