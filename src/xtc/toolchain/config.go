package toolchain

import (
	"fmt"
	"path/filepath"
	"time"

	xerrors "github.com/bitswalk/xtc/src/common/errors"
)

// RetryPolicy bounds network operations (clone, archive download)
type RetryPolicy struct {
	MaxRetries int           // attempts in total, including the first
	Delay      time.Duration // wait between attempts
}

// DefaultRetryPolicy returns the default policy: 10 attempts, 5 seconds apart
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 10,
		Delay:      5 * time.Second,
	}
}

// Options is the raw input NewBuildConfig validates and freezes
type Options struct {
	Build  Triple
	Host   Triple
	Target Triple

	SourceRoot  string
	BuildRoot   string
	InstallRoot string

	WithLib32   bool
	WithPython3 bool
	CleanGit    bool
	CleanBuild  bool
	UpdateEnv   bool
	StrictPull  bool

	Retry   RetryPolicy
	ShellRC string
}

// BuildConfig is the resolved configuration of one invocation. It is built
// once by NewBuildConfig and only exposes read accessors, so the derived
// cross/Canadian flags cannot drift from the triples they came from.
type BuildConfig struct {
	opts     Options
	cross    bool
	canadian bool
}

// NewBuildConfig validates opts and computes the derived flags
func NewBuildConfig(opts Options) (*BuildConfig, error) {
	if opts.Build == "" {
		opts.Build = TripleLinux
	}
	for _, t := range []Triple{opts.Build, opts.Host, opts.Target} {
		if _, err := ParseTriple(string(t)); err != nil {
			return nil, err
		}
	}

	for name, dir := range map[string]string{
		"source root":  opts.SourceRoot,
		"build root":   opts.BuildRoot,
		"install root": opts.InstallRoot,
	} {
		if dir == "" || !filepath.IsAbs(dir) {
			return nil, xerrors.ErrInternal.WithMessage(fmt.Sprintf("%s must be an absolute path, got %q", name, dir))
		}
	}

	if opts.Retry.MaxRetries <= 0 {
		opts.Retry.MaxRetries = DefaultRetryPolicy().MaxRetries
	}
	if opts.Retry.Delay < 0 {
		opts.Retry.Delay = 0
	}

	return &BuildConfig{
		opts:     opts,
		cross:    opts.Host != opts.Target,
		canadian: opts.Build != opts.Host,
	}, nil
}

func (c *BuildConfig) Build() Triple  { return c.opts.Build }
func (c *BuildConfig) Host() Triple   { return c.opts.Host }
func (c *BuildConfig) Target() Triple { return c.opts.Target }

func (c *BuildConfig) SourceRoot() string  { return c.opts.SourceRoot }
func (c *BuildConfig) BuildRoot() string   { return c.opts.BuildRoot }
func (c *BuildConfig) InstallRoot() string { return c.opts.InstallRoot }

func (c *BuildConfig) WithLib32() bool   { return c.opts.WithLib32 }
func (c *BuildConfig) WithPython3() bool { return c.opts.WithPython3 }
func (c *BuildConfig) CleanGit() bool    { return c.opts.CleanGit }
func (c *BuildConfig) CleanBuild() bool  { return c.opts.CleanBuild }
func (c *BuildConfig) UpdateEnv() bool   { return c.opts.UpdateEnv }
func (c *BuildConfig) StrictPull() bool  { return c.opts.StrictPull }

func (c *BuildConfig) Retry() RetryPolicy { return c.opts.Retry }
func (c *BuildConfig) ShellRC() string    { return c.opts.ShellRC }

// IsCrossCompiling reports host != target
func (c *BuildConfig) IsCrossCompiling() bool { return c.cross }

// IsCanadianCompiling reports build != host
func (c *BuildConfig) IsCanadianCompiling() bool { return c.canadian }

// NeedsTargetRuntime reports whether the mingw-w64 headers and runtime are
// part of this toolchain: only for a cross or Canadian build targeting Windows
func (c *BuildConfig) NeedsTargetRuntime() bool {
	return (c.cross || c.canadian) && c.opts.Target.IsWindows()
}

// InstallBin returns the bin directory of the install root
func (c *BuildConfig) InstallBin() string {
	return filepath.Join(c.opts.InstallRoot, "bin")
}

// TargetPrefix returns the sysroot-style prefix the mingw-w64 modules install into
func (c *BuildConfig) TargetPrefix() string {
	return filepath.Join(c.opts.InstallRoot, string(c.opts.Target))
}

// LibDirs returns the library directories of the install root in search
// order: lib32 (multilib only), lib64, lib
func (c *BuildConfig) LibDirs() []string {
	var dirs []string
	if c.opts.WithLib32 {
		dirs = append(dirs, filepath.Join(c.opts.InstallRoot, "lib32"))
	}
	return append(dirs,
		filepath.Join(c.opts.InstallRoot, "lib64"),
		filepath.Join(c.opts.InstallRoot, "lib"),
	)
}
