package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"lazyweave/internal/config"
	"lazyweave/internal/logging"
)

// clean removes the stored manifests and diffs of every workspace, so the
// next run of each task is a cache miss. Run history is kept.
func (a *app) clean(s Settings) error {
	cfg, err := config.FromDir(a.env.WorkDir, logging.New(a.env.Stderr, s.LogLevel))
	if err != nil {
		return err
	}
	removed := 0
	for _, w := range cfg.Project.Workspaces() {
		for _, sub := range []string{"manifests", "diffs"} {
			dir := filepath.Join(w.Dir, config.HiddenDir, sub)
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				continue
			}
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("clean %s: %w", w.Name, err)
			}
			removed++
		}
	}
	fmt.Fprintf(a.env.Stdout, "removed %d cache directories\n", removed)
	return nil
}
