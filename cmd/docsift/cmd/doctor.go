package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsift/internal/config"
	"github.com/Aman-CERP/docsift/internal/embed"
	dserrors "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/output"
	"github.com/Aman-CERP/docsift/internal/preflight"
	"github.com/Aman-CERP/docsift/internal/search"
)

type doctorOptions struct {
	root       string
	jsonOutput bool
}

func newDoctorCmd() *cobra.Command {
	var opts doctorOptions

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that docsift can index and search a folder",
		Long: `Run the pre-flight checks: corpus root readable, data directory
writable with enough free space, open-file limit, and the configured
embedding and reranking providers reachable.

'docsift index' runs the same checks before the first build.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), cmd, opts)
		},
	}

	addRootFlag(cmd, &opts.root)
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// doctorJSON is the --json form of the doctor command.
type doctorJSON struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func runDoctor(ctx context.Context, cmd *cobra.Command, opts doctorOptions) error {
	root, err := resolveRoot(opts.root)
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return dserrors.ConfigError("failed to load configuration", err)
	}

	var results []preflight.CheckResult
	var providers []preflight.Option

	embedder, err := embed.NewEmbedder(ctx, cfg.Embeddings)
	if err != nil {
		results = append(results, providerSetupFailure("embedder", err))
	} else {
		defer func() { _ = embedder.Close() }()
		providers = append(providers, embedderCheck(embedder))
	}

	reranker, err := search.NewReranker(ctx, cfg.Reranker)
	if err != nil {
		results = append(results, providerSetupFailure("reranker", err))
	} else {
		defer func() { _ = reranker.Close() }()
		providers = append(providers, rerankerCheck(reranker))
	}

	checker := preflight.New(providers...)
	results = append(checker.RunAll(ctx, root, cfg.DataDir(root)), results...)
	status := checker.SummaryStatus(results)

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(doctorJSON{Status: status, Checks: results}); err != nil {
			return err
		}
	} else {
		out := output.New(cmd.OutOrStdout())
		out.Header("docsift system check")
		printChecks(out, results)
		out.Newline()
		out.Field("Status", 7, strings.ToUpper(status))
	}

	if checker.HasCriticalFailures(results) {
		return preflightFailed(results)
	}
	return nil
}

func embedderCheck(e embed.Embedder) preflight.Option {
	return preflight.WithProvider("embedder ("+e.ModelName()+")", e, true)
}

func rerankerCheck(r search.Reranker) preflight.Option {
	return preflight.WithProvider("reranker ("+r.Name()+")", r, true)
}

func providerSetupFailure(name string, err error) preflight.CheckResult {
	return preflight.CheckResult{
		Name:     name,
		Status:   preflight.StatusFail,
		Message:  err.Error(),
		Required: true,
	}
}

func printChecks(out *output.Writer, results []preflight.CheckResult) {
	for _, r := range results {
		line := fmt.Sprintf("%-28s %s", r.Name, r.Message)
		switch r.Status {
		case preflight.StatusPass:
			out.Success(line)
		case preflight.StatusWarn:
			out.Warning(line)
		default:
			out.Error(line)
		}
		if r.Details != "" && r.Status != preflight.StatusPass {
			out.Dim(r.Details)
		}
	}
}

func preflightFailed(results []preflight.CheckResult) error {
	var failed []string
	for _, r := range results {
		if r.IsCritical() {
			failed = append(failed, r.Name)
		}
	}
	return dserrors.New(dserrors.ErrCodePreflightFailed,
		"pre-flight checks failed: "+strings.Join(failed, ", "), nil).
		WithSuggestion("Run 'docsift doctor' for details")
}
