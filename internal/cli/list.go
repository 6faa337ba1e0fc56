package cli

import (
	"fmt"
	"sort"
	"strings"

	"lazyweave/internal/config"
	"lazyweave/internal/logging"
)

// list prints every workspace in dependency order with its local
// dependencies and scripts.
func (a *app) list(s Settings) error {
	cfg, err := config.FromDir(a.env.WorkDir, logging.New(a.env.Stderr, s.LogLevel))
	if err != nil {
		return err
	}
	p := cfg.Project
	for _, w := range p.Workspaces() {
		fmt.Fprintf(a.env.Stdout, "%s (%s)\n", w.Name, p.RelDir(w))
		if deps := w.LocalDependencyWorkspaceNames; len(deps) > 0 {
			fmt.Fprintf(a.env.Stdout, "  depends on: %s\n", strings.Join(deps, ", "))
		}
		if len(w.Scripts) > 0 {
			names := make([]string, 0, len(w.Scripts))
			for name := range w.Scripts {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Fprintf(a.env.Stdout, "  scripts: %s\n", strings.Join(names, ", "))
		}
	}
	return nil
}
