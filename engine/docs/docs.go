// Package docs addresses local summary documents on the filesystem,
// one PDF per submission id.
package docs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/halcyon-health/devicekb/engine/domain"
)

// Dir is a directory of {submission_id}.pdf files.
type Dir struct {
	root string
}

// NewDir opens (creating if needed) a document directory.
func NewDir(root string) (Dir, error) {
	if root == "" {
		return Dir{}, fmt.Errorf("docs: %w: empty document dir", domain.ErrConfig)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Dir{}, fmt.Errorf("docs: create %s: %w", root, err)
	}
	return Dir{root: root}, nil
}

// Path returns the local path for a submission's document.
func (d Dir) Path(submissionID string) string {
	return filepath.Join(d.root, submissionID+".pdf")
}

// Exists reports whether the submission's document is present locally.
func (d Dir) Exists(submissionID string) bool {
	info, err := os.Stat(d.Path(submissionID))
	return err == nil && !info.IsDir()
}
