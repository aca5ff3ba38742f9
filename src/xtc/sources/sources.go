// Package sources keeps the git checkouts under the source root current:
// shallow clones for missing repositories, fast-forward pulls for present ones.
package sources

import (
	"context"
	"fmt"
	"os"

	xerrors "github.com/bitswalk/xtc/src/common/errors"
	"github.com/bitswalk/xtc/src/common/logs"
	"github.com/bitswalk/xtc/src/xtc/environ"
	"github.com/bitswalk/xtc/src/xtc/runner"
	"github.com/bitswalk/xtc/src/xtc/toolchain"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the sources package
func SetLogger(l *logs.Logger) {
	log = l
}

// PullPolicy decides what a failed fast-forward pull does to the run
type PullPolicy int

const (
	// PullLenient logs a failed pull and keeps the existing checkout
	PullLenient PullPolicy = iota
	// PullStrict aborts the run on a failed pull
	PullStrict
)

func (p PullPolicy) String() string {
	if p == PullStrict {
		return "strict"
	}
	return "lenient"
}

// Manager ensures repositories are present under the source root
type Manager struct {
	sourceRoot string
	runner     runner.Runner
	policy     toolchain.RetryPolicy
	sleep      runner.SleepFunc
	pull       PullPolicy
	env        *environ.Environment
}

// NewManager creates a Manager for cfg. Clones go through r under cfg's
// retry policy; pulls run once. A nil sleep uses runner.SleepContext.
func NewManager(cfg *toolchain.BuildConfig, r runner.Runner, sleep runner.SleepFunc) *Manager {
	pull := PullLenient
	if cfg.StrictPull() {
		pull = PullStrict
	}
	return &Manager{
		sourceRoot: cfg.SourceRoot(),
		runner:     r,
		policy:     cfg.Retry(),
		sleep:      sleep,
		pull:       pull,
	}
}

// SetEnvironment makes git run with env instead of the process environment
func (m *Manager) SetEnvironment(env *environ.Environment) {
	m.env = env
}

func (m *Manager) commandEnv() []string {
	if m.env == nil {
		return nil
	}
	return m.env.Environ()
}

// Ensure clones repo when its directory is absent and pulls it otherwise.
// Anything other than a directory at the checkout path is ErrPathConflict,
// detected before any network I/O.
func (m *Manager) Ensure(ctx context.Context, repo toolchain.Repository) error {
	dir := repo.Dir(m.sourceRoot)

	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return m.update(ctx, repo, dir)
	case err == nil:
		return xerrors.ErrPathConflict.WithMessagef("%s exists and is not a directory, cannot check out %s", dir, repo.Name)
	case os.IsNotExist(err):
		if _, lerr := os.Lstat(dir); lerr == nil {
			return xerrors.ErrPathConflict.WithMessagef("%s is a dangling link, cannot check out %s", dir, repo.Name)
		}
		return m.clone(ctx, repo, dir)
	default:
		return fmt.Errorf("failed to stat %s: %w", dir, err)
	}
}

// EnsureAll runs Ensure for each repository in order, stopping at the first failure
func (m *Manager) EnsureAll(ctx context.Context, repos []toolchain.Repository) error {
	for _, repo := range repos {
		if err := m.Ensure(ctx, repo); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) clone(ctx context.Context, repo toolchain.Repository, dir string) error {
	log.Info("Cloning repository", "repo", repo.Name, "url", repo.URL)

	cmd := runner.Command{
		Name: "git",
		Args: []string{"clone", "--depth=1", repo.URL, string(repo.Name)},
		Dir:  m.sourceRoot,
		Env:  m.commandEnv(),
	}
	return runner.Do(ctx, m.policy, m.sleep, cmd.String(), func(ctx context.Context) error {
		// The directory was absent before the first attempt, so anything
		// here now is a partial clone from a failed one
		if _, err := os.Lstat(dir); err == nil {
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("failed to remove partial clone %s: %w", dir, err)
			}
		}
		return m.runner.Run(ctx, cmd)
	})
}

func (m *Manager) update(ctx context.Context, repo toolchain.Repository, dir string) error {
	log.Info("Updating repository", "repo", repo.Name, "dir", dir)

	cmd := runner.Command{
		Name: "git",
		Args: []string{"-C", string(repo.Name), "pull", "--ff-only"},
		Dir:  m.sourceRoot,
		Env:  m.commandEnv(),
	}
	err := m.runner.Run(ctx, cmd)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if m.pull == PullStrict {
		return xerrors.ErrPullFailed.WithMessagef("fast-forward pull of %s failed", repo.Name).WithCause(err)
	}
	log.Warn("Fast-forward pull failed, continuing with existing checkout",
		"repo", repo.Name,
		"policy", m.pull,
		"error", err,
	)
	return nil
}
