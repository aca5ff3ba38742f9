package sources

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	xerrors "github.com/bitswalk/xtc/src/common/errors"
	"github.com/bitswalk/xtc/src/xtc/environ"
	"github.com/bitswalk/xtc/src/xtc/runner"
	"github.com/bitswalk/xtc/src/xtc/toolchain"
)

// scriptedRunner returns the queued results in order, then nil
type scriptedRunner struct {
	results []error
	calls   []runner.Command
	onRun   func(cmd runner.Command)
}

func (s *scriptedRunner) Run(ctx context.Context, cmd runner.Command) error {
	s.calls = append(s.calls, cmd)
	if s.onRun != nil {
		s.onRun(cmd)
	}
	if len(s.results) == 0 {
		return nil
	}
	err := s.results[0]
	s.results = s.results[1:]
	return err
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func newConfig(t *testing.T, strict bool, maxRetries int) *toolchain.BuildConfig {
	t.Helper()
	dir := t.TempDir()
	cfg, err := toolchain.NewBuildConfig(toolchain.Options{
		Host:        toolchain.TripleLinux,
		Target:      toolchain.TripleWindows,
		SourceRoot:  dir,
		BuildRoot:   filepath.Join(dir, "build"),
		InstallRoot: filepath.Join(dir, "install"),
		StrictPull:  strict,
		Retry:       toolchain.RetryPolicy{MaxRetries: maxRetries, Delay: time.Second},
	})
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

var gccRepo = toolchain.Repository{Name: toolchain.RepoGCC, URL: "git://gcc.gnu.org/git/gcc.git"}

func TestEnsure_ClonesMissingRepository(t *testing.T) {
	cfg := newConfig(t, false, 3)
	fr := &scriptedRunner{}
	m := NewManager(cfg, fr, noSleep)

	if err := m.Ensure(context.Background(), gccRepo); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if len(fr.calls) != 1 {
		t.Fatalf("expected 1 command, got %d", len(fr.calls))
	}
	got := fr.calls[0]
	want := "git clone --depth=1 git://gcc.gnu.org/git/gcc.git gcc"
	if got.String() != want {
		t.Errorf("expected %q, got %q", want, got.String())
	}
	if got.Dir != cfg.SourceRoot() {
		t.Errorf("expected clone in source root, got %s", got.Dir)
	}
}

func TestEnsure_CloneRetriesAndRemovesPartialCheckout(t *testing.T) {
	cfg := newConfig(t, false, 3)
	dir := gccRepo.Dir(cfg.SourceRoot())

	fr := &scriptedRunner{results: []error{errors.New("connection reset"), nil}}
	fr.onRun = func(cmd runner.Command) {
		if _, err := os.Stat(dir); err == nil {
			t.Error("partial checkout should be removed before retrying")
		}
		_ = os.MkdirAll(dir, 0755)
	}

	m := NewManager(cfg, fr, noSleep)
	if err := m.Ensure(context.Background(), gccRepo); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if len(fr.calls) != 2 {
		t.Errorf("expected 2 clone attempts, got %d", len(fr.calls))
	}
}

func TestEnsure_CloneExhaustsRetries(t *testing.T) {
	cfg := newConfig(t, false, 4)
	fail := errors.New("unreachable")
	fr := &scriptedRunner{results: []error{fail, fail, fail, fail, fail}}
	m := NewManager(cfg, fr, noSleep)

	err := m.Ensure(context.Background(), gccRepo)
	if !xerrors.Is(err, xerrors.ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if len(fr.calls) != 4 {
		t.Errorf("expected exactly 4 attempts, got %d", len(fr.calls))
	}
}

func TestEnsure_PullsExistingRepository(t *testing.T) {
	cfg := newConfig(t, false, 3)
	if err := os.MkdirAll(gccRepo.Dir(cfg.SourceRoot()), 0755); err != nil {
		t.Fatal(err)
	}

	fr := &scriptedRunner{}
	m := NewManager(cfg, fr, noSleep)
	if err := m.Ensure(context.Background(), gccRepo); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if len(fr.calls) != 1 || fr.calls[0].String() != "git -C gcc pull --ff-only" {
		t.Errorf("expected a single fast-forward pull, got %v", fr.calls)
	}
}

func TestEnsure_PullFailurePolicy(t *testing.T) {
	tests := []struct {
		name    string
		strict  bool
		wantErr bool
	}{
		{"lenient swallows failure", false, false},
		{"strict aborts", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newConfig(t, tt.strict, 3)
			if err := os.MkdirAll(gccRepo.Dir(cfg.SourceRoot()), 0755); err != nil {
				t.Fatal(err)
			}

			fr := &scriptedRunner{results: []error{errors.New("Not possible to fast-forward")}}
			m := NewManager(cfg, fr, noSleep)
			err := m.Ensure(context.Background(), gccRepo)

			if tt.wantErr {
				if !xerrors.Is(err, xerrors.ErrPullFailed) {
					t.Errorf("expected ErrPullFailed, got %v", err)
				}
			} else if err != nil {
				t.Errorf("expected lenient policy to continue, got %v", err)
			}
			if len(fr.calls) != 1 {
				t.Errorf("pulls must not be retried, got %d calls", len(fr.calls))
			}
		})
	}
}

func TestEnsure_PathConflictWithoutNetwork(t *testing.T) {
	cfg := newConfig(t, false, 3)
	if err := os.WriteFile(gccRepo.Dir(cfg.SourceRoot()), []byte("not a repo"), 0644); err != nil {
		t.Fatal(err)
	}

	fr := &scriptedRunner{}
	m := NewManager(cfg, fr, noSleep)
	err := m.Ensure(context.Background(), gccRepo)
	if !xerrors.Is(err, xerrors.ErrPathConflict) {
		t.Fatalf("expected ErrPathConflict, got %v", err)
	}
	if len(fr.calls) != 0 {
		t.Errorf("expected no commands to run, got %v", fr.calls)
	}
}

func TestEnsureAll_StopsAtFirstFailure(t *testing.T) {
	cfg := newConfig(t, false, 1)
	registry := toolchain.DefaultRegistry()
	repos := registry.Repositories()

	// Block the second repository
	if err := os.WriteFile(repos[1].Dir(cfg.SourceRoot()), nil, 0644); err != nil {
		t.Fatal(err)
	}

	fr := &scriptedRunner{}
	m := NewManager(cfg, fr, noSleep)
	err := m.EnsureAll(context.Background(), repos)
	if !xerrors.Is(err, xerrors.ErrPathConflict) {
		t.Fatalf("expected ErrPathConflict, got %v", err)
	}
	if len(fr.calls) != 1 {
		t.Errorf("expected only the first repository to be cloned, got %d calls", len(fr.calls))
	}
}

func TestEnsure_IdempotentOnExistingCheckout(t *testing.T) {
	cfg := newConfig(t, false, 3)
	dir := gccRepo.Dir(cfg.SourceRoot())

	fr := &scriptedRunner{}
	fr.onRun = func(cmd runner.Command) {
		if cmd.Args[0] == "clone" {
			_ = os.MkdirAll(dir, 0755)
		}
	}
	m := NewManager(cfg, fr, noSleep)

	for i := 0; i < 2; i++ {
		if err := m.Ensure(context.Background(), gccRepo); err != nil {
			t.Fatalf("Ensure #%d failed: %v", i+1, err)
		}
	}
	if len(fr.calls) != 2 || fr.calls[0].Args[0] != "clone" || fr.calls[1].Args[2] != "pull" {
		t.Errorf("expected clone then pull, got %v", fr.calls)
	}
}

func TestEnsure_UsesLiveEnvironment(t *testing.T) {
	cfg := newConfig(t, false, 1)
	env := environ.New([]string{"PATH=/opt/xtc/bin:/usr/bin", "GIT_TERMINAL_PROMPT=0"})

	fr := &scriptedRunner{onRun: func(cmd runner.Command) {
		_ = os.MkdirAll(filepath.Join(cmd.Dir, cmd.Args[len(cmd.Args)-1]), 0755)
	}}
	m := NewManager(cfg, fr, noSleep)
	m.SetEnvironment(env)

	// first call clones, second pulls
	for i := 0; i < 2; i++ {
		if err := m.Ensure(context.Background(), gccRepo); err != nil {
			t.Fatalf("Ensure failed: %v", err)
		}
	}
	if len(fr.calls) != 2 {
		t.Fatalf("expected clone and pull, got %d commands", len(fr.calls))
	}
	for _, cmd := range fr.calls {
		if !reflect.DeepEqual(cmd.Env, env.Environ()) {
			t.Errorf("%s ran with %v, want %v", cmd, cmd.Env, env.Environ())
		}
	}
}
