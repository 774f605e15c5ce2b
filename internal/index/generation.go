package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"github.com/google/uuid"
)

// GenerationFileName holds the tag of the last completed build. It is
// written after every other index file, so readers that see a new tag can
// reload both indices from the same build.
const GenerationFileName = "generation"

// NewGeneration returns a fresh build tag.
func NewGeneration() string {
	return uuid.NewString()
}

// ReadGeneration returns the tag of the last completed build in dataDir,
// or "" when nothing has been built there yet.
func ReadGeneration(dataDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, GenerationFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read index generation: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func writeGeneration(dataDir, gen string) error {
	if err := renameio.WriteFile(filepath.Join(dataDir, GenerationFileName), []byte(gen+"\n"), 0o644); err != nil {
		return fmt.Errorf("write index generation: %w", err)
	}
	return nil
}
