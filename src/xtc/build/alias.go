package build

import (
	"os"
	"path/filepath"

	xerrors "github.com/bitswalk/xtc/src/common/errors"
	"github.com/bitswalk/xtc/src/xtc/plan"
)

// EstablishAliases creates each alias as a symbolic link. A link already
// pointing at its target is kept, a stale link is replaced, and anything
// else occupying the link path is an error.
func EstablishAliases(aliases []plan.Alias) error {
	for _, a := range aliases {
		if err := establish(a); err != nil {
			return err
		}
	}
	return nil
}

func establish(a plan.Alias) error {
	if info, err := os.Stat(a.Target); err != nil || !info.IsDir() {
		return xerrors.ErrAliasFailed.WithMessagef("alias target %s is not an extracted directory", a.Target)
	}

	info, err := os.Lstat(a.Link)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return xerrors.ErrAliasFailed.WithMessagef("cannot inspect %s", a.Link).WithCause(err)
	case info.Mode()&os.ModeSymlink != 0:
		current, err := os.Readlink(a.Link)
		if err == nil && current == a.Target {
			return nil
		}
		if err := os.Remove(a.Link); err != nil {
			return xerrors.ErrAliasFailed.WithMessagef("cannot replace stale link %s", a.Link).WithCause(err)
		}
	default:
		return xerrors.ErrAliasFailed.WithMessagef("%s exists and is not a symbolic link", a.Link)
	}

	if err := os.MkdirAll(filepath.Dir(a.Link), 0755); err != nil {
		return xerrors.ErrAliasFailed.WithMessagef("cannot create %s", filepath.Dir(a.Link)).WithCause(err)
	}
	if err := os.Symlink(a.Target, a.Link); err != nil {
		return xerrors.ErrAliasFailed.WithMessagef("cannot link %s to %s", a.Link, a.Target).WithCause(err)
	}
	log.Debug("Linked prerequisite", "link", a.Link, "target", a.Target)
	return nil
}
