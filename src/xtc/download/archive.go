package download

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"

	xerrors "github.com/bitswalk/xtc/src/common/errors"
)

// decompressor wraps r according to the archive file name. The returned
// close function releases decoder resources.
func decompressor(name string, r io.Reader) (io.Reader, func(), error) {
	noop := func() {}
	switch {
	case strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz"):
		gz, err := pgzip.NewReader(r)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, func() { gz.Close() }, nil

	case strings.HasSuffix(name, ".tar.bz2") || strings.HasSuffix(name, ".tbz2"):
		return bzip2.NewReader(r), noop, nil

	case strings.HasSuffix(name, ".tar.xz") || strings.HasSuffix(name, ".txz"):
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xr, noop, nil

	case strings.HasSuffix(name, ".tar.zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return zr, zr.Close, nil

	case strings.HasSuffix(name, ".tar"):
		return r, noop, nil

	default:
		return nil, noop, fmt.Errorf("unsupported archive format: %s", name)
	}
}

// Extract unpacks the tarball at archivePath into destDir. The compression
// is chosen from the file name. Entries escaping destDir are rejected.
func Extract(ctx context.Context, archivePath, destDir string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return xerrors.ErrExtractFailed.WithMessagef("failed to open %s", archivePath).WithCause(err)
	}
	defer file.Close()

	reader, closeFn, err := decompressor(archivePath, file)
	if err != nil {
		return xerrors.ErrExtractFailed.WithMessagef("cannot read %s", archivePath).WithCause(err)
	}
	defer closeFn()

	if err := untar(ctx, tar.NewReader(reader), destDir); err != nil {
		return xerrors.ErrExtractFailed.WithMessagef("failed to extract %s", filepath.Base(archivePath)).WithCause(err)
	}
	return nil
}

func untar(ctx context.Context, tr *tar.Reader, destDir string) error {
	root := filepath.Clean(destDir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}

		target := filepath.Join(root, header.Name)
		if !within(root, target) {
			return fmt.Errorf("invalid tar path: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, dirMode(header)); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}
			outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode).Perm())
			if err != nil {
				return fmt.Errorf("failed to create file: %w", err)
			}
			if _, err := io.Copy(outFile, tr); err != nil {
				outFile.Close()
				return fmt.Errorf("failed to write file: %w", err)
			}
			if err := outFile.Close(); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}

		case tar.TypeSymlink:
			linkTarget := header.Linkname
			if !filepath.IsAbs(linkTarget) {
				linkTarget = filepath.Join(filepath.Dir(target), linkTarget)
			}
			if !within(root, linkTarget) {
				return fmt.Errorf("symlink %s escapes archive root", header.Name)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("failed to create symlink: %w", err)
			}

		case tar.TypeLink:
			linkTarget := filepath.Join(root, header.Linkname)
			if !within(root, linkTarget) {
				return fmt.Errorf("hard link %s escapes archive root", header.Name)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}
			if err := os.Link(linkTarget, target); err != nil {
				return fmt.Errorf("failed to create hard link: %w", err)
			}

		default:
			log.Debug("Skipping tar entry", "name", header.Name, "type", string(header.Typeflag))
		}
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

func dirMode(h *tar.Header) os.FileMode {
	mode := os.FileMode(h.Mode).Perm()
	// Keep directories writable so their contents can be extracted
	return mode | 0700
}
