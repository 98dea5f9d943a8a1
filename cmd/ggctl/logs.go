package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gateguard/gateguard-api/pkg/client"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Browse the audit log",
}

var listOpts client.ListOptions

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List access logs with their latest analysis",
	Long: `List one page of access logs, newest first by default:

  ggctl logs list --decision BLOCK --host shop --limit 20
  ggctl logs list --sort engine_latency_ms --dir asc`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		page, err := c.ListLogs(context.Background(), listOpts)
		if err != nil {
			return fmt.Errorf("list logs: %w", err)
		}
		if outFormat == "json" {
			return printJSON(page)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIME\tDECISION\tSTAGE\tCLIENT\tHOST\tPATH\tAI")
		for _, it := range page.Items {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				it.LogID, it.DetectTimestamp.Format(time.DateTime), it.Decision, it.DecisionStage,
				deref(it.ClientIP), deref(it.Host), deref(it.Path), aiSummary(it.AIScore, it.AILabel))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d-%d of %d (sort %s %s)\n",
			min(page.Offset+1, page.Total), page.Offset+len(page.Items), page.Total, page.Sort, page.Dir)
		return nil
	},
}

var logsGetCmd = &cobra.Command{
	Use:   "get <log_id>",
	Short: "Show one log and its analysis history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("log_id must be an integer: %w", err)
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		d, err := c.GetLog(context.Background(), id)
		if err != nil {
			return fmt.Errorf("get log %d: %w", id, err)
		}
		if outFormat == "json" {
			return printJSON(d)
		}

		l := d.Log
		fmt.Printf("Log ID:      %d\n", l.LogID)
		fmt.Printf("Request ID:  %s\n", l.RequestID)
		fmt.Printf("Time:        %s\n", l.DetectTimestamp.Format(time.RFC3339))
		fmt.Printf("Client:      %s\n", deref(l.ClientIP))
		fmt.Printf("Request:     %s %s%s\n", deref(l.Method), deref(l.Host), deref(l.Path))
		fmt.Printf("Decision:    %s (%s)\n", l.Decision, l.DecisionStage)
		if l.Reason != nil {
			fmt.Printf("Reason:      %s\n", *l.Reason)
		}
		if d.Geo != nil {
			fmt.Printf("Location:    %s %s (%.4f, %.4f)\n", d.Geo.CountryCode, d.Geo.City, d.Geo.Latitude, d.Geo.Longitude)
		}

		if len(d.Analyses) == 0 {
			fmt.Println("\nNo analyses recorded.")
			return nil
		}
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tANALYZED\tSCORE\tLABEL\tMODEL\tLATENCY\tERROR")
		for _, a := range d.Analyses {
			latency := ""
			if a.LatencyMS != nil {
				latency = strconv.Itoa(*a.LatencyMS) + "ms"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				a.AnalysisSeq, a.AnalyzedAt.Format(time.DateTime), aiSummary(a.Score, nil),
				deref(a.Label), deref(a.ModelVersion), latency, deref(a.ErrorCode))
		}
		return w.Flush()
	},
}

func init() {
	f := logsListCmd.Flags()
	f.StringVar(&listOpts.Decision, "decision", "", "filter by decision (ALLOW, BLOCK, REVIEW, ERROR)")
	f.StringVar(&listOpts.Stage, "stage", "", "filter by decision stage (POLICY_STAGE, AI_STAGE, FAIL_STAGE)")
	f.StringVar(&listOpts.Host, "host", "", "host substring, case-insensitive")
	f.StringVar(&listOpts.ClientIP, "client-ip", "", "client IP substring")
	f.StringVar(&listOpts.Sort, "sort", "", "sort key (timestamp, client_ip, host, path, decision, decision_stage, policy_id, engine_latency_ms)")
	f.StringVar(&listOpts.Dir, "dir", "", "sort direction: asc or desc")
	f.IntVar(&listOpts.Limit, "limit", 0, "page size, 1-500 (server default 50)")
	f.IntVar(&listOpts.Offset, "offset", 0, "rows to skip")

	logsCmd.AddCommand(logsListCmd)
	logsCmd.AddCommand(logsGetCmd)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func aiSummary(score *float64, label *string) string {
	if score == nil {
		return "-"
	}
	if label == nil {
		return fmt.Sprintf("%.4f", *score)
	}
	return fmt.Sprintf("%.4f %s", *score, *label)
}
