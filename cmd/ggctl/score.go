package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gateguard/gateguard-api/pkg/client"
)

// scoreRow holds the outcome of a single scoring call.
type scoreRow struct {
	target string
	result *client.ScoreResult
	err    error
}

var scoreConcurrency int

var scoreCmd = &cobra.Command{
	Use:   "score <host[/path]> [host[/path]] ...",
	Short: "Score one or more hosts",
	Long: `Score sends each target to POST /v1/score. A target is a host with an
optional path, split at the first "/":

  ggctl score example.com/login 198.51.100.23/wp-admin

Targets are scored concurrently and displayed as a table. The reserved
markers timeout_test, error_test and invalid_test trigger the server's
fault modes:

  ggctl score example.com/error_test example.com/invalid_test`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: checkConcurrency,
	RunE:    runScore,
}

func init() {
	scoreCmd.Flags().IntVar(&scoreConcurrency, "concurrency", 8, "maximum requests in flight")
}

func checkConcurrency(cmd *cobra.Command, args []string) error {
	if scoreConcurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1, got %d", scoreConcurrency)
	}
	return nil
}

func splitTarget(target string) (host, path string) {
	if i := strings.Index(target, "/"); i >= 0 {
		return target[:i], target[i:]
	}
	return target, ""
}

func runScore(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	rows := make([]scoreRow, len(args))
	var g errgroup.Group
	g.SetLimit(scoreConcurrency)
	for i, target := range args {
		i, target := i, target
		g.Go(func() error {
			host, path := splitTarget(target)
			res, err := c.Score(context.Background(), client.ScoreRequest{Host: host, Path: path})
			rows[i] = scoreRow{target: target, result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var printErr error
	if outFormat == "json" {
		printErr = printScoreJSON(rows)
	} else {
		printErr = printScoreText(rows)
	}
	if printErr != nil {
		return printErr
	}

	failed := 0
	for _, r := range rows {
		if r.err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(rows))
	}
	return nil
}

func describeScoreErr(err error) string {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrMalformedResponse):
		return "malformed response body"
	case errors.As(err, &apiErr):
		return fmt.Sprintf("HTTP %d: %s", apiErr.StatusCode, apiErr.Message)
	default:
		return err.Error()
	}
}

func printScoreJSON(rows []scoreRow) error {
	type jsonRow struct {
		Target    string  `json:"target"`
		RequestID string  `json:"request_id,omitempty"`
		Score     float64 `json:"score,omitempty"`
		Label     string  `json:"label,omitempty"`
		LatencyMS int64   `json:"latency_ms,omitempty"`
		Error     string  `json:"error,omitempty"`
	}
	out := make([]jsonRow, len(rows))
	for i, r := range rows {
		if r.err != nil {
			out[i] = jsonRow{Target: r.target, Error: describeScoreErr(r.err)}
			continue
		}
		out[i] = jsonRow{
			Target:    r.target,
			RequestID: r.result.RequestID,
			Score:     r.result.Score,
			Label:     r.result.Label,
			LatencyMS: r.result.LatencyMS,
		}
	}
	var v any = out
	if len(out) == 1 {
		v = out[0]
	}
	return printJSON(v)
}

func printScoreText(rows []scoreRow) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tSCORE\tLABEL\tLATENCY\tERROR")
	for _, r := range rows {
		if r.err != nil {
			fmt.Fprintf(w, "%s\t\t\t\t%s\n", r.target, describeScoreErr(r.err))
			continue
		}
		fmt.Fprintf(w, "%s\t%.4f\t%s\t%dms\t\n", r.target, r.result.Score, r.result.Label, r.result.LatencyMS)
	}
	return w.Flush()
}
