package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsift/internal/index"
	"github.com/Aman-CERP/docsift/internal/output"
)

type checkOptions struct {
	root       string
	repair     bool
	jsonOutput bool
}

func newCheckCmd() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the dense and sparse indices agree",
		Long: `Compare the document ids held by the vector index with those in the
BM25 index. After a successful build they are identical.

Use --repair to remove vectors with no BM25 entry. Other problems are
fixed by running 'docsift index' again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), cmd, opts)
		},
	}

	addRootFlag(cmd, &opts.root)
	cmd.Flags().BoolVar(&opts.repair, "repair", false, "Remove orphan vectors")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// checkJSON is the --json form of a consistency check.
type checkJSON struct {
	Consistent      bool                `json:"consistent"`
	DenseCount      int                 `json:"dense_count"`
	SparseCount     int                 `json:"sparse_count"`
	Inconsistencies []inconsistencyJSON `json:"inconsistencies"`
	Repaired        bool                `json:"repaired"`
}

type inconsistencyJSON struct {
	Type       string `json:"type"`
	DocumentID string `json:"document_id"`
}

func runCheck(ctx context.Context, cmd *cobra.Command, opts checkOptions) error {
	a, err := openCorpus(ctx, opts.root, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	result, err := a.Check(ctx)
	if err != nil {
		return err
	}

	repaired := false
	if opts.repair && !result.Consistent() {
		if err := a.Repair(ctx, result); err != nil {
			return err
		}
		repaired = true
	}

	if opts.jsonOutput {
		out := checkJSON{
			Consistent:      result.Consistent(),
			DenseCount:      result.DenseCount,
			SparseCount:     result.SparseCount,
			Inconsistencies: []inconsistencyJSON{},
			Repaired:        repaired,
		}
		for _, inc := range result.Inconsistencies {
			out.Inconsistencies = append(out.Inconsistencies, inconsistencyJSON{
				Type:       inc.Type.String(),
				DocumentID: inc.DocumentID,
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	printCheck(output.New(cmd.OutOrStdout()), a.Root(), result, repaired)
	return nil
}

func printCheck(out *output.Writer, root string, result *index.CheckResult, repaired bool) {
	out.Field("Dense documents", 17, result.DenseCount)
	out.Field("Sparse documents", 17, result.SparseCount)

	if result.Consistent() {
		out.Success("Indices are consistent")
		return
	}

	out.Warningf("%d inconsistencies", len(result.Inconsistencies))
	for _, inc := range result.Inconsistencies {
		out.Dim(fmt.Sprintf("%s: %s", inc.Type, displayPath(root, inc.DocumentID)))
	}
	if repaired {
		out.Success("Removed orphan vectors")
	} else {
		out.Dim("Run with --repair or rebuild with 'docsift index'")
	}
}
