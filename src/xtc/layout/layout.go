// Package layout derives the on-disk layout of a toolchain build and
// creates or removes the directories in it.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	xerrors "github.com/bitswalk/xtc/src/common/errors"
	"github.com/bitswalk/xtc/src/common/logs"
	"github.com/bitswalk/xtc/src/common/paths"
	"github.com/bitswalk/xtc/src/xtc/toolchain"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the layout package
func SetLogger(l *logs.Logger) {
	log = l
}

// Overrides are the user supplied base directories. Empty fields fall back
// to defaults; relative paths are taken relative to Cwd.
type Overrides struct {
	Cwd        string
	GitDir     string
	BuildDir   string
	InstallDir string
}

// Roots are the resolved absolute base directories of one invocation
type Roots struct {
	Cwd     string
	Source  string
	Build   string
	Install string
}

// Resolve applies the defaults:
//
//	source  = <cwd>
//	build   = <cwd>/build/<host>/<target>
//	install = <cwd>/<host>/<target>
//
// An empty Cwd means the process working directory.
func Resolve(o Overrides, host, target toolchain.Triple) (Roots, error) {
	cwd := o.Cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Roots{}, fmt.Errorf("failed to get working directory: %w", err)
		}
		cwd = wd
	} else {
		wd, err := filepath.Abs(paths.Expand(cwd))
		if err != nil {
			return Roots{}, fmt.Errorf("failed to resolve %s: %w", cwd, err)
		}
		cwd = wd
	}

	r := Roots{
		Cwd:     cwd,
		Source:  paths.Absolute(cwd, o.GitDir),
		Build:   paths.Absolute(cwd, o.BuildDir),
		Install: paths.Absolute(cwd, o.InstallDir),
	}
	if r.Source == "" {
		r.Source = cwd
	}
	if r.Build == "" {
		r.Build = filepath.Join(cwd, "build", string(host), string(target))
	}
	if r.Install == "" {
		r.Install = filepath.Join(cwd, string(host), string(target))
	}
	return r, nil
}

// RequiredDirs lists every directory a build needs: the source root, the
// install root and the build directory of every registered module, whether
// or not the module takes part in the plan
func RequiredDirs(cfg *toolchain.BuildConfig, registry *toolchain.Registry) []string {
	dirs := []string{cfg.SourceRoot(), cfg.InstallRoot()}
	for _, m := range registry.Modules() {
		dirs = append(dirs, m.BuildDir(cfg.BuildRoot()))
	}
	return dirs
}

// EnsureDirs creates each path and its parents when missing. Existing
// directories are reused. A path occupied by anything other than a directory
// fails with ErrNotADirectory. It returns the paths it had to create,
// including missing parents, in creation order.
func EnsureDirs(dirs ...string) ([]string, error) {
	var created []string
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return created, xerrors.ErrNotADirectory.WithMessagef("%s exists but is not a directory", dir)
			}
			continue
		}
		// ENOTDIR means some parent is a file; missingAncestors names it
		if !os.IsNotExist(err) && !errors.Is(err, syscall.ENOTDIR) {
			return created, xerrors.ErrCreateDirectory.WithMessagef("cannot stat %s", dir).WithCause(err)
		}

		missing, err := missingAncestors(dir)
		if err != nil {
			return created, err
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return created, xerrors.ErrCreateDirectory.WithMessagef("failed to create %s", dir).WithCause(err)
		}
		created = append(created, missing...)
		log.Debug("Created directory", "path", dir)
	}
	return created, nil
}

// missingAncestors returns dir and every missing parent, outermost first.
// A parent that exists as a non-directory is reported as ErrNotADirectory.
func missingAncestors(dir string) ([]string, error) {
	var missing []string
	for p := filepath.Clean(dir); ; p = filepath.Dir(p) {
		info, err := os.Stat(p)
		if err == nil {
			if !info.IsDir() {
				return nil, xerrors.ErrNotADirectory.WithMessagef("%s exists but is not a directory", p)
			}
			break
		}
		missing = append([]string{p}, missing...)
		if parent := filepath.Dir(p); parent == p {
			break
		}
	}
	return missing, nil
}
