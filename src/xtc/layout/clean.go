package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bitswalk/xtc/src/xtc/toolchain"
)

// Workspace tracks which directories this run created so that cleanup only
// ever removes a root it owns outright
type Workspace struct {
	cfg      *toolchain.BuildConfig
	registry *toolchain.Registry
	created  map[string]bool
}

// NewWorkspace returns a Workspace for cfg
func NewWorkspace(cfg *toolchain.BuildConfig, registry *toolchain.Registry) *Workspace {
	return &Workspace{cfg: cfg, registry: registry, created: make(map[string]bool)}
}

// Ensure creates every required directory and remembers which were new
func (w *Workspace) Ensure() error {
	created, err := EnsureDirs(RequiredDirs(w.cfg, w.registry)...)
	for _, dir := range created {
		w.created[dir] = true
	}
	return err
}

// Created reports whether this run created dir
func (w *Workspace) Created(dir string) bool {
	return w.created[filepath.Clean(dir)]
}

// CreatedDirs returns the directories this run created, sorted
func (w *Workspace) CreatedDirs() []string {
	out := make([]string, 0, len(w.created))
	for dir := range w.created {
		out = append(out, dir)
	}
	sort.Strings(out)
	return out
}

// removable reports whether root may be removed whole: this run created it
// and neither of the other roots lives inside it
func (w *Workspace) removable(root string, others ...string) bool {
	if !w.Created(root) {
		return false
	}
	for _, other := range others {
		if within(root, other) {
			return false
		}
	}
	return true
}

// within reports whether path is dir or below it, comparing whole segments
func within(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// CleanSources removes the source root when this run created it and it holds
// neither the build nor the install root. Otherwise only the repository
// checkouts and prerequisite archives this tool fetched are removed.
func (w *Workspace) CleanSources(prerequisites []toolchain.Prerequisite) error {
	root := w.cfg.SourceRoot()
	if w.removable(root, w.cfg.BuildRoot(), w.cfg.InstallRoot()) {
		return removeTree(root)
	}

	var targets []string
	for _, repo := range w.registry.Repositories() {
		targets = append(targets, repo.Dir(root))
	}
	for _, p := range prerequisites {
		targets = append(targets, p.ArchivePath(root), p.ExtractedDir(root))
	}
	return removeAll(targets)
}

// CleanBuild removes the build root when this run created it and it holds
// neither the source nor the install root, otherwise the top-level build
// directory of each registered module
func (w *Workspace) CleanBuild() error {
	root := w.cfg.BuildRoot()
	if w.removable(root, w.cfg.SourceRoot(), w.cfg.InstallRoot()) {
		return removeTree(root)
	}

	seen := make(map[string]bool)
	var targets []string
	for _, m := range w.registry.Modules() {
		if len(m.SourcePath) == 0 {
			continue
		}
		dir := filepath.Join(root, m.SourcePath[0])
		if !seen[dir] {
			seen[dir] = true
			targets = append(targets, dir)
		}
	}
	return removeAll(targets)
}

func removeAll(targets []string) error {
	for _, target := range targets {
		if err := removeTree(target); err != nil {
			return err
		}
	}
	return nil
}

func removeTree(path string) error {
	clean := filepath.Clean(path)
	if clean == "/" || clean == "." || !filepath.IsAbs(clean) {
		return fmt.Errorf("refusing to remove %q", path)
	}
	if home, err := os.UserHomeDir(); err == nil && clean == filepath.Clean(home) {
		return fmt.Errorf("refusing to remove home directory %q", path)
	}
	if _, err := os.Lstat(clean); os.IsNotExist(err) {
		return nil
	}
	log.Info("Removing", "path", clean)
	if err := os.RemoveAll(clean); err != nil {
		return fmt.Errorf("failed to remove %s: %w", clean, err)
	}
	return nil
}
