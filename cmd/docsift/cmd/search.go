package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsift/internal/app"
	"github.com/Aman-CERP/docsift/internal/output"
	"github.com/Aman-CERP/docsift/internal/search"
)

// NoMatch is printed when no document matched the query.
const NoMatch = "no match"

type searchOptions struct {
	root       string
	topK       int
	explain    bool
	jsonOutput bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the best document for a query",
		Long: `Search the indexed folder and print the single document that best
answers the query, with the relevance model's confidence.

The folder must have been indexed with 'docsift index' first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	addRootFlag(cmd, &opts.root)
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Candidates per retriever (default from config)")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "List the fused candidates and their scores")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// searchJSON is the --json form of a search.
type searchJSON struct {
	Query      string          `json:"query"`
	Found      bool            `json:"found"`
	DocumentID string          `json:"document_id,omitempty"`
	Confidence float64         `json:"confidence"`
	Candidates []candidateJSON `json:"candidates,omitempty"`
}

type candidateJSON struct {
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
	Source     string  `json:"source"`
	InBoth     bool    `json:"in_both"`
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	a, err := openCorpus(ctx, opts.root, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	res, err := a.Search(ctx, query, opts.topK)
	if err != nil {
		return err
	}

	// The logged confidence is the one recorded for this query.
	confidence := 0.0
	if entry, ok := a.LastEntry(); ok {
		confidence = entry.ConfidenceScore
	}

	if opts.jsonOutput {
		return printSearchJSON(cmd, query, res, confidence)
	}
	printSearchText(output.New(cmd.OutOrStdout()), a, res, confidence, opts.explain)
	return nil
}

func printSearchJSON(cmd *cobra.Command, query string, res *search.Result, confidence float64) error {
	out := searchJSON{Query: query, Confidence: confidence}
	if res != nil {
		out.Found = true
		out.DocumentID = res.DocumentID
		for _, c := range res.Candidates {
			out.Candidates = append(out.Candidates, candidateJSON{
				DocumentID: c.DocumentID,
				Score:      c.Score,
				Source:     string(c.Source),
				InBoth:     c.InBoth,
			})
		}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printSearchText(out *output.Writer, a *app.App, res *search.Result, confidence float64, explain bool) {
	if res == nil {
		out.Warning(NoMatch)
		out.Field("Confidence", 11, fmt.Sprintf("%.4f", confidence))
		return
	}

	out.Success(res.DocumentID)
	out.Field("Confidence", 11, fmt.Sprintf("%.4f", confidence))

	if !explain {
		return
	}
	out.Newline()
	out.Header(fmt.Sprintf("Candidates (%d)", len(res.Candidates)))
	for i, c := range res.Candidates {
		source := string(c.Source)
		if c.InBoth {
			source = "both"
		}
		out.Dim(fmt.Sprintf("%2d. %.4f  %-6s %s", i+1, c.Score, source, displayPath(a.Root(), c.DocumentID)))
	}
}
