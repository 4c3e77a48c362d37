package pipeline

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// workspace is the scratch directory for one pipeline invocation. The
// unique name keeps concurrent invocations for the same episode from
// observing each other's temporary files.
type workspace struct {
	root string
}

func newWorkspace(scratchDir string, episodeID uint) (*workspace, error) {
	root := filepath.Join(scratchDir, fmt.Sprintf("episode-%d-%s", episodeID, uuid.NewString()))
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	return &workspace{root: root}, nil
}

// path returns an absolute path for name inside the workspace.
func (w *workspace) path(name string) string {
	return filepath.Join(w.root, name)
}

// subdir creates and returns a child directory.
func (w *workspace) subdir(name string) (string, error) {
	dir := filepath.Join(w.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating workspace subdir: %w", err)
	}
	return dir, nil
}

// cleanup removes the workspace tree. Failures are logged, not returned;
// a leaked scratch directory must never mask the pipeline's own outcome.
func (w *workspace) cleanup() {
	if err := os.RemoveAll(w.root); err != nil {
		log.Printf("[WARN] Failed to remove workspace %s: %v", w.root, err)
	}
}
