package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	dserrors "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/output"
	"github.com/Aman-CERP/docsift/internal/validation"
)

type evalOptions struct {
	root       string
	topK       int
	jsonOutput bool
}

func newEvalCmd() *cobra.Command {
	opts := &evalOptions{}

	cmd := &cobra.Command{
		Use:   "eval <queries.yaml>",
		Short: "Run evaluation queries against the index",
		Long: `Run a YAML file of evaluation queries against a built index.

Each query lists the corpus-relative paths it expects as the best document.
Tier 1 and negative queries must all pass; tier 2 queries are reported only.
The command exits non-zero when a tier 1 or negative query fails.`,
		Example: `  docsift eval --root ./docs queries.yaml
  docsift eval --root ./docs queries.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runEval(ctx, cmd, args[0], opts)
		},
	}

	addRootFlag(cmd, &opts.root)
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Candidates per retriever (0 uses the configured default)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the report as JSON")
	return cmd
}

func runEval(ctx context.Context, cmd *cobra.Command, path string, opts *evalOptions) error {
	set, err := validation.LoadQueries(path)
	if err != nil {
		return dserrors.ValidationError("cannot load evaluation queries", err)
	}

	a, err := openCorpus(ctx, opts.root, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	v, err := validation.NewValidator(a, opts.topK)
	if err != nil {
		return err
	}
	report := v.RunAll(ctx, set)

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printEvalReport(output.New(cmd.OutOrStdout()), report)
	}

	if !report.Tier1Passed() {
		return fmt.Errorf("evaluation failed: tier 1 %d/%d, negative %d/%d",
			report.Tier1Pass, report.Tier1Total, report.NegPass, report.NegTotal)
	}
	return nil
}

func printEvalReport(out *output.Writer, r *validation.Report) {
	sections := []struct {
		title   string
		results []validation.QueryResult
		pass    int
		total   int
	}{
		{"Tier 1", r.Tier1, r.Tier1Pass, r.Tier1Total},
		{"Tier 2", r.Tier2, r.Tier2Pass, r.Tier2Total},
		{"Negative", r.Negative, r.NegPass, r.NegTotal},
	}

	for _, s := range sections {
		if s.total == 0 {
			continue
		}
		out.Header(fmt.Sprintf("%s (%d/%d)", s.title, s.pass, s.total))
		for _, q := range s.results {
			label := q.Spec.ID
			if label == "" {
				label = q.Spec.Query
			}
			switch {
			case q.Passed:
				out.Successf("%s  %s (%.4f)", label, q.Document, q.Confidence)
			case q.Error != "":
				out.Errorf("%s  %s", label, q.Error)
			default:
				out.Errorf("%s  got %q, want %v", label, q.Document, q.Spec.Expected)
			}
		}
		out.Newline()
	}
}
