package core

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	xerrors "github.com/bitswalk/xtc/src/common/errors"
	"github.com/bitswalk/xtc/src/xtc/plan"
	"github.com/bitswalk/xtc/src/xtc/publish"
	"github.com/bitswalk/xtc/src/xtc/storage"
	"github.com/bitswalk/xtc/src/xtc/toolchain"
)

// =============================================================================
// Test Helpers
// =============================================================================

// resetFlags restores every flag of cmd and its subcommands to its default
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// executeCommand runs a cobra command with the given args and returns stdout/stderr
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	resetFlags(root)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// =============================================================================
// Command Registration Tests
// =============================================================================

func TestRootCommand_HasSubcommands(t *testing.T) {
	expected := []string{"version", "plan", "published"}

	commands := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		commands[cmd.Name()] = true
	}
	for _, name := range expected {
		if !commands[name] {
			t.Errorf("expected subcommand %q not found on root", name)
		}
	}
}

func TestRootCommand_Flags(t *testing.T) {
	persistent := []string{
		"cwd", "git-dir", "build-dir", "install-dir", "host", "target",
		"with-lib32", "with-python3", "binutils-gdb-git-repo-url",
		"gcc-git-repo-url", "mingw-w64-git-repo-url", "config",
		"log-level", "log-output", "output", "storage-type",
	}
	for _, name := range persistent {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected persistent flag --%s", name)
		}
	}

	local := []string{
		"clean-git", "clean-build", "update-env", "shell-rc", "strict-pull",
		"skip-packages", "max-retries", "retry-delay", "jobs", "publish", "publish-format",
	}
	for _, name := range local {
		if rootCmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag --%s", name)
		}
	}
}

// =============================================================================
// Version Command Tests
// =============================================================================

func TestVersionCommand(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		out, err := executeCommand(rootCmd, "version")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(out, "xtc ") || !strings.Contains(out, "Go Version:") {
			t.Errorf("unexpected output: %s", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		out, err := executeCommand(rootCmd, "version", "-o", "json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var info map[string]string
		if err := json.Unmarshal([]byte(out), &info); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if info["version"] != VersionInfo.Version {
			t.Errorf("expected version %q, got %q", VersionInfo.Version, info["version"])
		}
	})
}

// =============================================================================
// Plan Command Tests
// =============================================================================

func TestPlanCommand_JSON(t *testing.T) {
	tests := []struct {
		name      string
		target    toolchain.Triple
		wantSteps []string
		wantCross bool
	}{
		{
			name:      "native",
			target:    toolchain.TripleLinux,
			wantSteps: []string{"binutils-gdb", "gcc"},
			wantCross: false,
		},
		{
			name:   "linux to windows",
			target: toolchain.TripleWindows,
			wantSteps: []string{
				"binutils-gdb", "gcc-driver", "mingw-w64-headers", "mingw-w64-crt", "gcc",
			},
			wantCross: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cwd := t.TempDir()
			out, err := executeCommand(rootCmd, "plan", "-o", "json", "--cwd", cwd, "--target", string(tt.target))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var p plan.Plan
			if err := json.Unmarshal([]byte(out), &p); err != nil {
				t.Fatalf("invalid JSON: %v\n%s", err, out)
			}
			if p.Cross != tt.wantCross {
				t.Errorf("expected cross=%t, got %t", tt.wantCross, p.Cross)
			}
			var names []string
			for _, s := range p.Steps {
				names = append(names, s.Name)
			}
			if strings.Join(names, ",") != strings.Join(tt.wantSteps, ",") {
				t.Errorf("expected steps %v, got %v", tt.wantSteps, names)
			}

			// plan never touches the filesystem
			if matches, _ := filepath.Glob(filepath.Join(cwd, "*")); len(matches) != 0 {
				t.Errorf("plan created files: %v", matches)
			}
		})
	}
}

func TestPlanCommand_Table(t *testing.T) {
	out, err := executeCommand(rootCmd, "plan", "--args", "--cwd", t.TempDir(),
		"--target", string(toolchain.TripleWindows), "--with-lib32")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"x86_64-linux-gnu -> x86_64-w64-mingw32",
		"gcc-driver",
		"install-strip-gcc",
		"--disable-sjlj-exceptions",
		"--with-multilib-list=m64,m32",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q\n%s", want, out)
		}
	}
}

func TestPlanCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  error
		wantExit int
	}{
		{
			name:     "unsupported target",
			args:     []string{"plan", "--target", "arm-none-eabi"},
			wantErr:  xerrors.ErrInvalidTriple,
			wantExit: xerrors.ExitUsage,
		},
		{
			name:     "unsupported output format",
			args:     []string{"plan", "-o", "yaml"},
			wantErr:  xerrors.ErrInvalidConfig,
			wantExit: xerrors.ExitUsage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(rootCmd, tt.args...)
			if !xerrors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if code := xerrors.GetExitCode(err); code != tt.wantExit {
				t.Errorf("expected exit code %d, got %d", tt.wantExit, code)
			}
		})
	}
}

// =============================================================================
// Published Command Tests
// =============================================================================

func TestPublishedCommand(t *testing.T) {
	base := t.TempDir()
	backend, err := storage.NewLocal(storage.LocalConfig{BasePath: base})
	if err != nil {
		t.Fatal(err)
	}
	key := publish.Key(toolchain.TripleLinux, toolchain.TripleWindows, "run-1", publish.FormatGzip)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	for _, k := range []string{key, key + ".b3"} {
		if err := backend.Upload(ctx, k, strings.NewReader("data"), 4, "application/gzip"); err != nil {
			t.Fatal(err)
		}
	}

	out, err := executeCommand(rootCmd, "published", "-o", "json",
		"--storage-path", base, "--target", string(toolchain.TripleWindows))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var objects []storage.ObjectInfo
	if err := json.Unmarshal([]byte(out), &objects); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(objects) != 1 || objects[0].Key != key {
		t.Errorf("expected only %s, got %+v", key, objects)
	}

	out, err = executeCommand(rootCmd, "published", "--storage-path", base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No published archives") {
		t.Errorf("expected empty listing for the native pair, got %s", out)
	}
}
