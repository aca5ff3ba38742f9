package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	xerrors "github.com/bitswalk/xtc/src/common/errors"
	"github.com/bitswalk/xtc/src/xtc/toolchain"
)

// PrepareAll fetches and unpacks every prerequisite into sourceRoot
func (f *Fetcher) PrepareAll(ctx context.Context, prerequisites []toolchain.Prerequisite, sourceRoot string) error {
	for _, p := range prerequisites {
		if err := f.Prepare(ctx, p, sourceRoot); err != nil {
			return err
		}
	}
	return nil
}

// Prepare makes sure p's extracted directory exists under sourceRoot.
// An existing directory is reused. Extraction goes through a staging
// directory so a partially unpacked tree is never mistaken for a complete one.
func (f *Fetcher) Prepare(ctx context.Context, p toolchain.Prerequisite, sourceRoot string) error {
	extracted := p.ExtractedDir(sourceRoot)
	if info, err := os.Stat(extracted); err == nil {
		if !info.IsDir() {
			return xerrors.ErrPathConflict.WithMessagef("%s exists and is not a directory", extracted)
		}
		log.Debug("Prerequisite already extracted", "name", p.Name, "dir", extracted)
		return nil
	}

	res, err := f.Fetch(ctx, p.URL, p.ArchivePath(sourceRoot))
	if err != nil {
		return err
	}

	staging, err := os.MkdirTemp(sourceRoot, ".xtc-extract-")
	if err != nil {
		return xerrors.ErrExtractFailed.WithMessage("failed to create staging directory").WithCause(err)
	}
	defer os.RemoveAll(staging)

	if err := Extract(ctx, res.Path, staging); err != nil {
		return err
	}

	top, err := topLevelDir(staging, p.DirName())
	if err != nil {
		return xerrors.ErrExtractFailed.WithMessagef("unexpected layout in %s", filepath.Base(res.Path)).WithCause(err)
	}
	if err := os.Rename(top, extracted); err != nil {
		return xerrors.ErrExtractFailed.WithMessagef("failed to move %s into place", p.DirName()).WithCause(err)
	}

	log.Info("Extracted prerequisite", "name", p.Name, "dir", extracted)
	return nil
}

// topLevelDir finds the unpacked source directory in staging: the entry
// named want, else a single top-level directory, else staging itself
func topLevelDir(staging, want string) (string, error) {
	if info, err := os.Stat(filepath.Join(staging, want)); err == nil && info.IsDir() {
		return filepath.Join(staging, want), nil
	}

	entries, err := os.ReadDir(staging)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("archive is empty")
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(staging, entries[0].Name()), nil
	}

	// Flat archive: the staging directory itself is the source tree
	return staging, nil
}
