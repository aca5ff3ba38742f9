// Package download fetches the Canadian-cross prerequisite archives over
// HTTP(S) and unpacks them next to the git checkouts.
package download

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
	"lukechampine.com/blake3"

	xerrors "github.com/bitswalk/xtc/src/common/errors"
	"github.com/bitswalk/xtc/src/common/logs"
	"github.com/bitswalk/xtc/src/xtc/runner"
	"github.com/bitswalk/xtc/src/xtc/toolchain"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the download package
func SetLogger(l *logs.Logger) {
	log = l
}

// DigestSuffix is appended to an archive path to name its BLAKE3 sidecar
const DigestSuffix = ".b3"

const userAgent = "xtc/1.0"

// Result describes a fetched archive
type Result struct {
	Path   string
	Size   int64
	Digest string
	Cached bool
}

// Fetcher downloads archives under a retry policy. An archive is only
// kept once fully written, and its digest sidecar lets later runs reuse it.
type Fetcher struct {
	client   *http.Client
	policy   toolchain.RetryPolicy
	sleep    runner.SleepFunc
	progress io.Writer
}

// NewFetcher creates a Fetcher. A nil client uses one without a timeout,
// since archives may be large.
func NewFetcher(client *http.Client, policy toolchain.RetryPolicy, sleep runner.SleepFunc) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 0}
	}
	return &Fetcher{client: client, policy: policy, sleep: sleep}
}

// SetProgressOutput shows a progress bar on w while downloading. Nothing is
// drawn unless w is a terminal.
func (f *Fetcher) SetProgressOutput(w io.Writer) {
	if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		f.progress = w
		return
	}
	f.progress = nil
}

// Fetch downloads url to dest unless dest already holds a complete copy,
// as recorded by its digest sidecar
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) (*Result, error) {
	if res, ok := cached(dest); ok {
		log.Info("Reusing downloaded archive", "file", filepath.Base(dest), "size", units.HumanSize(float64(res.Size)))
		return res, nil
	}

	var res *Result
	err := runner.Do(ctx, f.policy, f.sleep, "download "+url, func(ctx context.Context) error {
		var err error
		res, err = f.fetchOnce(ctx, url, dest)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url, dest string) (*Result, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, xerrors.ErrDownloadFailed.WithMessagef("invalid URL %s", url).WithCause(err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, xerrors.ErrDownloadFailed.WithMessagef("request to %s failed", url).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, xerrors.ErrDownloadFailed.WithMessagef("unexpected status code %d from %s", resp.StatusCode, url)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, xerrors.ErrDownloadFailed.WithMessagef("failed to create %s", filepath.Dir(dest)).WithCause(err)
	}
	tempFile, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return nil, xerrors.ErrDownloadFailed.WithMessage("failed to create temp file").WithCause(err)
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)
	defer tempFile.Close()

	hash := blake3.New(32, nil)
	writers := []io.Writer{tempFile, hash}
	if f.progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(f.progress),
			progressbar.OptionSetDescription(filepath.Base(dest)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Close()
		writers = append(writers, bar)
	}

	size, err := io.Copy(io.MultiWriter(writers...), resp.Body)
	if err != nil {
		return nil, xerrors.ErrDownloadFailed.WithMessagef("failed to read response body from %s", url).WithCause(err)
	}
	if resp.ContentLength >= 0 && size != resp.ContentLength {
		return nil, xerrors.ErrDownloadFailed.WithMessagef("short read from %s: got %d of %d bytes", url, size, resp.ContentLength)
	}
	if err := tempFile.Close(); err != nil {
		return nil, xerrors.ErrDownloadFailed.WithMessage("failed to write temp file").WithCause(err)
	}
	if err := os.Rename(tempPath, dest); err != nil {
		return nil, xerrors.ErrDownloadFailed.WithMessagef("failed to move archive to %s", dest).WithCause(err)
	}

	digest := hex.EncodeToString(hash.Sum(nil))
	if err := os.WriteFile(dest+DigestSuffix, []byte(digest+"\n"), 0644); err != nil {
		log.Warn("Failed to write digest sidecar", "file", dest+DigestSuffix, "error", err)
	}

	log.Info("Downloaded archive",
		"file", filepath.Base(dest),
		"size", units.HumanSize(float64(size)),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return &Result{Path: dest, Size: size, Digest: digest}, nil
}

// cached reports whether dest is present and matches its digest sidecar
func cached(dest string) (*Result, bool) {
	want, err := os.ReadFile(dest + DigestSuffix)
	if err != nil {
		return nil, false
	}
	digest, size, err := FileDigest(dest)
	if err != nil {
		return nil, false
	}
	if digest != strings.TrimSpace(string(want)) {
		log.Warn("Archive does not match its digest, downloading again", "file", dest)
		return nil, false
	}
	return &Result{Path: dest, Size: size, Digest: digest, Cached: true}, true
}

// FileDigest returns the hex BLAKE3-256 digest and size of the file at path
func FileDigest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
