package toolchain

import (
	"path/filepath"
	"testing"

	xerrors "github.com/bitswalk/xtc/src/common/errors"
)

func testOptions(host, target Triple) Options {
	return Options{
		Host:        host,
		Target:      target,
		SourceRoot:  "/work",
		BuildRoot:   filepath.Join("/work/build", string(host), string(target)),
		InstallRoot: filepath.Join("/work", string(host), string(target)),
	}
}

func TestParseTriple(t *testing.T) {
	tests := []struct {
		input   string
		want    Triple
		wantErr bool
	}{
		{"x86_64-linux-gnu", TripleLinux, false},
		{"x86_64-w64-mingw32", TripleWindows, false},
		{" x86_64-linux-gnu ", TripleLinux, false},
		{"aarch64-linux-gnu", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseTriple(tt.input)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseTriple(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if tt.wantErr && !xerrors.Is(err, xerrors.ErrInvalidTriple) {
			t.Errorf("ParseTriple(%q) expected ErrInvalidTriple, got %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseTriple(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNewBuildConfig_DerivedFlags(t *testing.T) {
	tests := []struct {
		name         string
		host, target Triple
		cross        bool
		canadian     bool
		runtime      bool
	}{
		{"native linux", TripleLinux, TripleLinux, false, false, false},
		{"linux to windows", TripleLinux, TripleWindows, true, false, true},
		{"windows to linux", TripleWindows, TripleLinux, true, true, false},
		{"windows native", TripleWindows, TripleWindows, false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewBuildConfig(testOptions(tt.host, tt.target))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.IsCrossCompiling() != tt.cross {
				t.Errorf("IsCrossCompiling() = %v, want %v", cfg.IsCrossCompiling(), tt.cross)
			}
			if cfg.IsCrossCompiling() != (tt.host != tt.target) {
				t.Errorf("IsCrossCompiling() must equal host != target")
			}
			if cfg.IsCanadianCompiling() != tt.canadian {
				t.Errorf("IsCanadianCompiling() = %v, want %v", cfg.IsCanadianCompiling(), tt.canadian)
			}
			if cfg.NeedsTargetRuntime() != tt.runtime {
				t.Errorf("NeedsTargetRuntime() = %v, want %v", cfg.NeedsTargetRuntime(), tt.runtime)
			}
			if cfg.Build() != TripleLinux {
				t.Errorf("expected build triple to default to %s, got %s", TripleLinux, cfg.Build())
			}
		})
	}
}

func TestNewBuildConfig_Validation(t *testing.T) {
	opts := testOptions(TripleLinux, "arm-none-eabi")
	if _, err := NewBuildConfig(opts); !xerrors.Is(err, xerrors.ErrInvalidTriple) {
		t.Errorf("expected ErrInvalidTriple, got %v", err)
	}

	opts = testOptions(TripleLinux, TripleLinux)
	opts.InstallRoot = "relative/install"
	if _, err := NewBuildConfig(opts); err == nil {
		t.Error("expected error for relative install root")
	}
}

func TestNewBuildConfig_RetryDefaults(t *testing.T) {
	cfg, err := NewBuildConfig(testOptions(TripleLinux, TripleLinux))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retry().MaxRetries != 10 {
		t.Errorf("expected 10 retries by default, got %d", cfg.Retry().MaxRetries)
	}
}

func TestBuildConfig_LibDirs(t *testing.T) {
	opts := testOptions(TripleLinux, TripleLinux)
	cfg, _ := NewBuildConfig(opts)
	dirs := cfg.LibDirs()
	if len(dirs) != 2 || filepath.Base(dirs[0]) != "lib64" || filepath.Base(dirs[1]) != "lib" {
		t.Errorf("unexpected lib dirs without lib32: %v", dirs)
	}

	opts.WithLib32 = true
	cfg, _ = NewBuildConfig(opts)
	dirs = cfg.LibDirs()
	if len(dirs) != 3 || filepath.Base(dirs[0]) != "lib32" {
		t.Errorf("expected lib32 first with multilib, got %v", dirs)
	}
}

func TestModulePaths(t *testing.T) {
	reg := DefaultRegistry()
	crt, err := reg.Module(ModuleMingwCRT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := crt.ConfigureScript("/src"); got != "/src/mingw-w64/mingw-w64-crt/configure" {
		t.Errorf("ConfigureScript() = %q", got)
	}
	if got := crt.BuildDir("/build"); got != "/build/mingw-w64/mingw-w64-crt" {
		t.Errorf("BuildDir() = %q", got)
	}
	if crt.Repo != RepoMingw {
		t.Errorf("expected crt to live in %s, got %s", RepoMingw, crt.Repo)
	}
}

func TestRegistry_WithRepoURLs(t *testing.T) {
	reg := DefaultRegistry()
	over, err := reg.WithRepoURLs(map[RepoName]string{
		RepoGCC:         "https://example.com/gcc.git",
		RepoBinutilsGDB: "",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gcc, _ := over.Repository(RepoGCC)
	if gcc.URL != "https://example.com/gcc.git" {
		t.Errorf("expected override URL, got %q", gcc.URL)
	}
	binutils, _ := over.Repository(RepoBinutilsGDB)
	if binutils.URL != DefaultRepoURLs[RepoBinutilsGDB] {
		t.Errorf("empty override must keep default, got %q", binutils.URL)
	}

	orig, _ := reg.Repository(RepoGCC)
	if orig.URL != DefaultRepoURLs[RepoGCC] {
		t.Error("WithRepoURLs must not modify the receiver")
	}

	if _, err := reg.WithRepoURLs(map[RepoName]string{"llvm": "x"}); err == nil {
		t.Error("expected error for unknown repository")
	}
}

func TestRegistry_RepositoriesFor(t *testing.T) {
	reg := DefaultRegistry()

	repos := reg.RepositoriesFor([]ModuleName{ModuleGCC, ModuleBinutilsGDB})
	if len(repos) != 2 || repos[0].Name != RepoBinutilsGDB || repos[1].Name != RepoGCC {
		t.Errorf("unexpected repositories: %+v", repos)
	}

	repos = reg.RepositoriesFor([]ModuleName{ModuleBinutilsGDB, ModuleGCC, ModuleMingwHeaders, ModuleMingwCRT})
	if len(repos) != 3 {
		t.Fatalf("expected mingw modules to share one repository, got %+v", repos)
	}
	if repos[2].Name != RepoMingw {
		t.Errorf("expected %s last, got %s", RepoMingw, repos[2].Name)
	}
}

func TestPrerequisite_Names(t *testing.T) {
	tests := []struct {
		url     string
		archive string
		dir     string
	}{
		{"https://ftp.gnu.org/gnu/gmp/gmp-6.2.1.tar.bz2", "gmp-6.2.1.tar.bz2", "gmp-6.2.1"},
		{"https://ftp.gnu.org/gnu/mpc/mpc-1.2.1.tar.gz", "mpc-1.2.1.tar.gz", "mpc-1.2.1"},
		{"https://example.com/isl-0.24.tar.xz", "isl-0.24.tar.xz", "isl-0.24"},
		{"https://example.com/blob", "blob", "blob"},
	}
	for _, tt := range tests {
		p := Prerequisite{Name: "x", URL: tt.url}
		if got := p.ArchiveName(); got != tt.archive {
			t.Errorf("ArchiveName(%q) = %q, want %q", tt.url, got, tt.archive)
		}
		if got := p.DirName(); got != tt.dir {
			t.Errorf("DirName(%q) = %q, want %q", tt.url, got, tt.dir)
		}
	}
}
