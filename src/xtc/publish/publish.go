// Package publish packs a finished install root into a compressed tarball
// and stores it, with its BLAKE3 digest, in a storage backend.
package publish

import (
	"archive/tar"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
	"lukechampine.com/blake3"

	xerrors "github.com/bitswalk/xtc/src/common/errors"
	"github.com/bitswalk/xtc/src/common/logs"
	"github.com/bitswalk/xtc/src/xtc/storage"
	"github.com/bitswalk/xtc/src/xtc/toolchain"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the publish package
func SetLogger(l *logs.Logger) {
	log = l
}

// Format is the archive compression
type Format string

const (
	FormatGzip Format = "tar.gz"
	FormatXz   Format = "tar.xz"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(strings.TrimPrefix(strings.ToLower(s), ".")) {
	case FormatGzip, "gz", "":
		return FormatGzip, nil
	case FormatXz, "xz":
		return FormatXz, nil
	default:
		return "", fmt.Errorf("unsupported archive format %q (expected tar.gz or tar.xz)", s)
	}
}

func (f Format) contentType() string {
	if f == FormatXz {
		return "application/x-xz"
	}
	return "application/gzip"
}

// Artifact describes a published toolchain archive
type Artifact struct {
	Key    string `json:"key"`
	URI    string `json:"uri"`
	Size   int64  `json:"size"`
	Digest string `json:"blake3"`
}

// Name returns the archive file name for a host/target pair
func Name(host, target toolchain.Triple, format Format) string {
	return fmt.Sprintf("xtc-%s-%s.%s", host, target, format)
}

// Key returns the storage key of an archive:
// toolchains/<host>/<target>/<run-id>/<name>
func Key(host, target toolchain.Triple, runID string, format Format) string {
	return path.Join("toolchains", string(host), string(target), runID, Name(host, target, format))
}

// Publisher uploads toolchain archives to a backend
type Publisher struct {
	backend storage.Backend
	format  Format
}

// NewPublisher creates a Publisher
func NewPublisher(backend storage.Backend, format Format) *Publisher {
	if format == "" {
		format = FormatGzip
	}
	return &Publisher{backend: backend, format: format}
}

// Publish packs cfg's install root and uploads it under a key unique to runID.
// The digest is stored next to the archive with a .b3 suffix.
func (p *Publisher) Publish(ctx context.Context, cfg *toolchain.BuildConfig, runID string) (*Artifact, error) {
	key := Key(cfg.Host(), cfg.Target(), runID, p.format)
	topDir := strings.TrimSuffix(Name(cfg.Host(), cfg.Target(), p.format), "."+string(p.format))

	tmp, err := os.CreateTemp("", "xtc-publish-*."+string(p.format))
	if err != nil {
		return nil, xerrors.ErrPublishFailed.WithMessage("failed to create temp file").WithCause(err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	log.Info("Packing toolchain", "root", cfg.InstallRoot(), "format", p.format)
	hash := blake3.New(32, nil)
	if err := Pack(ctx, cfg.InstallRoot(), topDir, io.MultiWriter(tmp, hash), p.format); err != nil {
		return nil, xerrors.ErrPublishFailed.WithMessagef("failed to pack %s", cfg.InstallRoot()).WithCause(err)
	}

	size, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, xerrors.ErrPublishFailed.WithMessage("failed to size archive").WithCause(err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, xerrors.ErrPublishFailed.WithMessage("failed to rewind archive").WithCause(err)
	}

	digest := hex.EncodeToString(hash.Sum(nil))
	if err := p.backend.Upload(ctx, key, tmp, size, p.format.contentType()); err != nil {
		return nil, xerrors.ErrPublishFailed.WithMessagef("failed to upload %s", key).WithCause(err)
	}
	sidecar := digest + "  " + path.Base(key) + "\n"
	if err := p.backend.Upload(ctx, key+".b3", strings.NewReader(sidecar), int64(len(sidecar)), "text/plain"); err != nil {
		return nil, xerrors.ErrPublishFailed.WithMessagef("failed to upload digest for %s", key).WithCause(err)
	}

	artifact := &Artifact{
		Key:    key,
		URI:    p.backend.URI(key),
		Size:   size,
		Digest: digest,
	}
	log.Info("Published toolchain",
		"backend", p.backend.Type(),
		"uri", artifact.URI,
		"size", units.HumanSize(float64(size)),
		"blake3", digest,
	)
	return artifact, nil
}

// List returns the archives published for host and target, digests excluded
func (p *Publisher) List(ctx context.Context, host, target toolchain.Triple) ([]storage.ObjectInfo, error) {
	prefix := path.Join("toolchains", string(host), string(target)) + "/"
	objects, err := p.backend.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var out []storage.ObjectInfo
	for _, o := range objects {
		if !strings.HasSuffix(o.Key, ".b3") {
			out = append(out, o)
		}
	}
	return out, nil
}

// Pack writes srcDir as a compressed tarball to w, with every entry under topDir
func Pack(ctx context.Context, srcDir, topDir string, w io.Writer, format Format) error {
	var compressed io.WriteCloser
	switch format {
	case FormatXz:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create xz writer: %w", err)
		}
		compressed = xw
	default:
		compressed = pgzip.NewWriter(w)
	}

	tw := tar.NewWriter(compressed)
	walkErr := filepath.Walk(srcDir, func(file string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return addEntry(tw, srcDir, topDir, file, info)
	})
	if walkErr != nil {
		tw.Close()
		compressed.Close()
		return walkErr
	}

	if err := tw.Close(); err != nil {
		compressed.Close()
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := compressed.Close(); err != nil {
		return fmt.Errorf("failed to finish compression: %w", err)
	}
	return nil
}

func addEntry(tw *tar.Writer, srcDir, topDir, file string, info os.FileInfo) error {
	rel, err := filepath.Rel(srcDir, file)
	if err != nil {
		return err
	}
	name := path.Join(topDir, filepath.ToSlash(rel))

	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		if link, err = os.Readlink(file); err != nil {
			return fmt.Errorf("failed to read link %s: %w", file, err)
		}
	} else if !info.Mode().IsRegular() && !info.IsDir() {
		log.Debug("Skipping special file", "path", file)
		return nil
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return fmt.Errorf("failed to create header for %s: %w", file, err)
	}
	header.Name = name
	if info.IsDir() {
		header.Name += "/"
	}
	header.Uname, header.Gname = "", ""
	header.Uid, header.Gid = 0, 0

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", file, err)
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("failed to archive %s: %w", file, err)
	}
	return nil
}
