// Package preflight checks that docsift can build and query an index
// before any work starts: the corpus root is readable, the data directory
// is writable with enough free space, the open-file limit is adequate,
// and the configured providers answer.
//
//	checker := preflight.New(preflight.WithProvider("embedder", emb, false))
//	results := checker.RunAll(ctx, root, dataDir)
//	if checker.HasCriticalFailures(results) {
//	    // refuse to build
//	}
package preflight
