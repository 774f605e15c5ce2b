package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsift/internal/output"
	"github.com/Aman-CERP/docsift/internal/telemetry"
)

type statsOptions struct {
	root       string
	recent     int
	reset      bool
	jsonOutput bool
}

func newStatsCmd() *cobra.Command {
	var opts statsOptions

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show query metrics",
		Long: `Display aggregate search metrics: total and successful queries,
success rate, average response time and confidence, and the latency
distribution over the retained query log.

Use --recent N to list the newest log entries and --reset to clear
all metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, opts)
		},
	}

	addRootFlag(cmd, &opts.root)
	cmd.Flags().IntVarP(&opts.recent, "recent", "n", 0, "Also list the N newest queries")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "Clear all query metrics")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// statsJSON is the --json form of the stats command.
type statsJSON struct {
	Stats  telemetry.Stats           `json:"stats"`
	Recent []telemetry.QueryLogEntry `json:"recent,omitempty"`
}

var bucketLabels = map[telemetry.LatencyBucket]string{
	telemetry.BucketP10:   "<10ms",
	telemetry.BucketP50:   "10-50ms",
	telemetry.BucketP100:  "50-100ms",
	telemetry.BucketP500:  "100-500ms",
	telemetry.BucketP1000: ">500ms",
}

func runStats(ctx context.Context, cmd *cobra.Command, opts statsOptions) error {
	a, err := openCorpus(ctx, opts.root, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := output.New(cmd.OutOrStdout())
	if opts.reset {
		if err := a.ResetStats(); err != nil {
			return err
		}
		out.Success("Query metrics reset")
		return nil
	}

	stats := a.Stats()
	var recent []telemetry.QueryLogEntry
	if opts.recent > 0 {
		recent = a.Recent(opts.recent)
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(statsJSON{Stats: stats, Recent: recent})
	}

	printStats(out, stats)
	if len(recent) > 0 {
		out.Newline()
		printRecent(out, recent)
	}
	return nil
}

func printStats(out *output.Writer, s telemetry.Stats) {
	const width = 16

	out.Header("Query Statistics")
	out.Field("Total queries", width, s.TotalQueries)
	out.Field("Successful", width, s.SuccessfulQueries)
	out.Field("Success rate", width, fmt.Sprintf("%.1f%%", s.SuccessRate*100))
	out.Field("Avg response", width, fmt.Sprintf("%.2fms", s.AvgResponseTimeMs))
	out.Field("Avg confidence", width, fmt.Sprintf("%.4f", s.AvgConfidenceScore))
	out.Field("Window", width, s.WindowSize)

	if s.WindowSize == 0 {
		return
	}
	out.Newline()
	out.Header("Latency Distribution")
	for _, b := range telemetry.LatencyBuckets {
		out.Field(bucketLabels[b], width, s.LatencyDistribution[b])
	}
}

func printRecent(out *output.Writer, entries []telemetry.QueryLogEntry) {
	out.Header(fmt.Sprintf("Recent Queries (%d)", len(entries)))
	// Newest first.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		outcome := "miss"
		if e.ResultFound {
			outcome = "hit "
		}
		out.Dim(fmt.Sprintf("%s  %s  %8.2fms  %.4f  %s",
			e.Timestamp.Local().Format(time.DateTime), outcome, e.ResponseTimeMs, e.ConfidenceScore, e.Query))
	}
}
