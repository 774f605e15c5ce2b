package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsift/internal/app"
	"github.com/Aman-CERP/docsift/internal/config"
	dserrors "github.com/Aman-CERP/docsift/internal/errors"
)

// addRootFlag binds the --root flag naming the corpus directory.
func addRootFlag(cmd *cobra.Command, root *string) {
	cmd.Flags().StringVarP(root, "root", "r", ".", "Corpus directory")
}

// resolveRoot returns the absolute corpus root, which must be a directory.
func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", dserrors.New(dserrors.ErrCodeInvalidPath, "cannot resolve corpus root", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", dserrors.New(dserrors.ErrCodeFileNotFound, "corpus root does not exist", err).
			WithDetail("root", abs)
	}
	if !info.IsDir() {
		return "", dserrors.New(dserrors.ErrCodeInvalidPath, "corpus root is not a directory", nil).
			WithDetail("root", abs)
	}
	return abs, nil
}

// openCorpus resolves root and opens the application over it. A nil cfg
// loads the configuration from root.
func openCorpus(ctx context.Context, root string, cfg *config.Config, opts ...app.Option) (*app.App, error) {
	abs, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}
	return app.Open(ctx, abs, cfg, opts...)
}

// displayPath shortens an absolute document path to one relative to root.
func displayPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
