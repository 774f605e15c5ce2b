//go:build ignore

// Package main generates a synthetic document corpus plus a matching
// evaluation query file.
//
// Usage:
//
//	go run scripts/generate-test-corpus.go -docs 500 -output testdata/corpus
//	docsift index testdata/corpus
//	docsift eval --root testdata/corpus testdata/corpus-queries.yaml
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	numDocs   = flag.Int("docs", 500, "Number of documents to generate")
	outputDir = flag.String("output", "testdata/corpus", "Output directory")
	numEval   = flag.Int("queries", 20, "Number of tier 1 evaluation queries")
	queryFile = flag.String("queries-out", "testdata/corpus-queries.yaml", "Evaluation query file, kept outside the corpus")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var departments = []string{"billing", "shipping", "returns", "warranty", "accounts", "security", "onboarding", "support"}

var subjects = []string{
	"refund", "invoice", "parcel", "exchange", "repair", "password", "contract",
	"subscription", "voucher", "courier", "receipt", "replacement", "audit", "escalation",
}

var filler = []string{
	"Customers should contact the team through the help portal.",
	"Requests are reviewed in the order they arrive.",
	"Agents record every decision in the case history.",
	"Exceptions require approval from a team lead.",
	"The process is reviewed every quarter.",
	"Regional rules may add further requirements.",
}

// doc is one generated document. Its first sentence is unique to it and
// doubles as its evaluation query.
type doc struct {
	path  string
	query string
	body  string
}

type querySpec struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Query    string   `yaml:"query"`
	Expected []string `yaml:"expected,omitempty"`
}

type querySet struct {
	Tier1    []querySpec `yaml:"tier1"`
	Negative []querySpec `yaml:"negative"`
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	docs := make([]doc, 0, *numDocs)
	for i := range *numDocs {
		docs = append(docs, generateDoc(rng, i))
	}

	for _, d := range docs {
		path := filepath.Join(*outputDir, filepath.FromSlash(d.path))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			fail(err)
		}
		if err := os.WriteFile(path, []byte(d.body), 0o644); err != nil {
			fail(err)
		}
	}

	if err := writeQueries(rng, docs); err != nil {
		fail(err)
	}
	fmt.Printf("Generated %d documents in %s and %d queries in %s\n",
		len(docs), *outputDir, min(*numEval, len(docs))+1, *queryFile)
}

func generateDoc(rng *rand.Rand, i int) doc {
	dept := departments[rng.Intn(len(departments))]
	subject := subjects[rng.Intn(len(subjects))]
	days := 2 + rng.Intn(28)
	key := fmt.Sprintf("%s %s case %d", dept, subject, i)
	lead := fmt.Sprintf("The %s team resolves each %s within %d business days.", key, subject, days)

	var b strings.Builder
	ext := []string{".txt", ".md", ".rst"}[i%3]
	if ext == ".md" {
		fmt.Fprintf(&b, "# %s %s\n\n", strings.ToUpper(dept[:1])+dept[1:], subject)
	}
	b.WriteString(lead)
	for range 3 + rng.Intn(4) {
		b.WriteString(" ")
		b.WriteString(filler[rng.Intn(len(filler))])
	}
	b.WriteString("\n")

	return doc{
		path:  fmt.Sprintf("%s/%s-%04d%s", dept, subject, i, ext),
		query: key,
		body:  b.String(),
	}
}

func writeQueries(rng *rand.Rand, docs []doc) error {
	set := querySet{
		Negative: []querySpec{{ID: "N-1", Name: "empty query", Query: ""}},
	}
	for i, idx := range rng.Perm(len(docs))[:min(*numEval, len(docs))] {
		d := docs[idx]
		set.Tier1 = append(set.Tier1, querySpec{
			ID:       fmt.Sprintf("T1-Q%d", i+1),
			Name:     d.query,
			Query:    d.query,
			Expected: []string{d.path},
		})
	}

	data, err := yaml.Marshal(set)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(*queryFile), 0o755); err != nil {
		return err
	}
	return os.WriteFile(*queryFile, data, 0o644)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
