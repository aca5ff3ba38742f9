package plan

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/bitswalk/xtc/src/xtc/toolchain"
)

func newConfig(t *testing.T, host, target toolchain.Triple, mutate func(*toolchain.Options)) *toolchain.BuildConfig {
	t.Helper()
	opts := toolchain.Options{
		Host:        host,
		Target:      target,
		SourceRoot:  "/work",
		BuildRoot:   filepath.Join("/work/build", string(host), string(target)),
		InstallRoot: filepath.Join("/work", string(host), string(target)),
	}
	if mutate != nil {
		mutate(&opts)
	}
	cfg, err := toolchain.NewBuildConfig(opts)
	if err != nil {
		t.Fatalf("NewBuildConfig failed: %v", err)
	}
	return cfg
}

func derive(t *testing.T, cfg *toolchain.BuildConfig) *Plan {
	t.Helper()
	p, err := Derive(cfg, toolchain.DefaultRegistry())
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	return p
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func stepModules(p *Plan) []toolchain.ModuleName {
	out := make([]toolchain.ModuleName, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Module.Name
	}
	return out
}

func TestDerive_MingwInclusion(t *testing.T) {
	for _, build := range toolchain.SupportedTriples {
		for _, host := range toolchain.SupportedTriples {
			for _, target := range toolchain.SupportedTriples {
				name := string(build) + "/" + string(host) + "/" + string(target)
				t.Run(name, func(t *testing.T) {
					cfg := newConfig(t, host, target, func(o *toolchain.Options) { o.Build = build })
					p := derive(t, cfg)

					if p.Cross != (host != target) {
						t.Errorf("cross = %v, want %v", p.Cross, host != target)
					}
					if p.Canadian != (build != host) {
						t.Errorf("canadian = %v, want %v", p.Canadian, build != host)
					}

					wantMingw := (host != target || build != host) && target == toolchain.TripleWindows
					for _, m := range []toolchain.ModuleName{toolchain.ModuleMingwHeaders, toolchain.ModuleMingwCRT} {
						if p.Includes(m) != wantMingw {
							t.Errorf("includes %s = %v, want %v", m, p.Includes(m), wantMingw)
						}
					}

					hasMingwRepo := false
					for _, r := range p.Repositories() {
						if r.Name == toolchain.RepoMingw {
							hasMingwRepo = true
						}
					}
					if hasMingwRepo != wantMingw {
						t.Errorf("mingw-w64 repository required = %v, want %v", hasMingwRepo, wantMingw)
					}
				})
			}
		}
	}
}

func TestDerive_NativeEndToEnd(t *testing.T) {
	cfg := newConfig(t, toolchain.TripleLinux, toolchain.TripleLinux, nil)
	p := derive(t, cfg)

	if p.Cross {
		t.Error("expected native build not to be cross compiling")
	}
	want := []toolchain.ModuleName{toolchain.ModuleBinutilsGDB, toolchain.ModuleGCC}
	if got := p.Modules(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected modules %v, got %v", want, got)
	}
	if len(p.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(p.Steps))
	}

	gcc := p.Steps[1]
	if contains(gcc.ConfigureArgs, "--disable-sjlj-exceptions") {
		t.Error("native gcc must not disable sjlj exceptions")
	}
	if gcc.BuildTarget != TargetDefault || gcc.InstallTarget != TargetInstallStrip {
		t.Errorf("expected full gcc build, got %q/%q", gcc.BuildTarget, gcc.InstallTarget)
	}
	if !contains(p.Steps[0].ConfigureArgs, "--enable-gold") {
		t.Error("expected gold for a Linux target")
	}
	if len(p.Repositories()) != 2 {
		t.Errorf("expected 2 repositories, got %v", p.Repositories())
	}
}

func TestDerive_LinuxToWindowsEndToEnd(t *testing.T) {
	cfg := newConfig(t, toolchain.TripleLinux, toolchain.TripleWindows, nil)
	p := derive(t, cfg)

	want := []toolchain.ModuleName{
		toolchain.ModuleBinutilsGDB,
		toolchain.ModuleGCC,
		toolchain.ModuleMingwHeaders,
		toolchain.ModuleMingwCRT,
		toolchain.ModuleGCC,
	}
	if got := stepModules(p); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected step order %v, got %v", want, got)
	}
	if len(p.Modules()) != 4 {
		t.Errorf("expected 4 distinct modules, got %v", p.Modules())
	}

	binutils, driver, headers, crt, full := p.Steps[0], p.Steps[1], p.Steps[2], p.Steps[3], p.Steps[4]

	if contains(binutils.ConfigureArgs, "--enable-gold") {
		t.Error("gold must be absent for a Windows target")
	}
	if !contains(driver.ConfigureArgs, "--disable-sjlj-exceptions") {
		t.Error("expected --disable-sjlj-exceptions for a Windows target")
	}

	if driver.BuildTarget != TargetAllGCC || driver.InstallTarget != TargetInstallStripGCC || !driver.ExportBin {
		t.Errorf("unexpected driver step %+v", driver)
	}
	for _, s := range []Step{headers, crt} {
		if !s.Configures() || s.InstallTarget != TargetInstallStrip {
			t.Errorf("unexpected runtime step %+v", s)
		}
	}
	if full.Configures() {
		t.Error("the full gcc build must reuse the driver's configuration")
	}
	if full.BuildTarget != TargetDefault || full.InstallTarget != TargetInstallStrip {
		t.Errorf("unexpected full gcc step %+v", full)
	}
}

func TestDerive_MultilibMutualExclusion(t *testing.T) {
	for _, lib32 := range []bool{false, true} {
		for _, target := range toolchain.SupportedTriples {
			cfg := newConfig(t, toolchain.TripleLinux, target, func(o *toolchain.Options) { o.WithLib32 = lib32 })
			p := derive(t, cfg)

			for _, s := range p.Steps {
				if s.Module.Name != toolchain.ModuleBinutilsGDB && s.Module.Name != toolchain.ModuleGCC {
					continue
				}
				if !s.Configures() {
					continue
				}
				enable := contains(s.ConfigureArgs, "--enable-multilib")
				disable := contains(s.ConfigureArgs, "--disable-multilib")
				if enable == disable {
					t.Errorf("lib32=%v %s: exactly one multilib flag expected, got %v", lib32, s.Name, s.ConfigureArgs)
				}
				if enable != lib32 {
					t.Errorf("lib32=%v %s: wrong multilib setting", lib32, s.Name)
				}
				if lib32 && !contains(s.ConfigureArgs, "--with-multilib-list=m64,m32") {
					t.Errorf("%s: missing multilib list", s.Name)
				}
			}
		}
	}
}

func TestBinutilsArgs_Python(t *testing.T) {
	tests := []struct {
		name   string
		host   toolchain.Triple
		python bool
		want   bool
	}{
		{"linux host", toolchain.TripleLinux, false, true},
		{"windows host without flag", toolchain.TripleWindows, false, false},
		{"windows host with flag", toolchain.TripleWindows, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newConfig(t, tt.host, toolchain.TripleWindows, func(o *toolchain.Options) { o.WithPython3 = tt.python })
			if got := contains(BinutilsArgs(cfg), "--with-python3"); got != tt.want {
				t.Errorf("--with-python3 present = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBaseArgs(t *testing.T) {
	cfg := newConfig(t, toolchain.TripleLinux, toolchain.TripleWindows, nil)
	args := GCCArgs(cfg)
	want := []string{
		"--prefix=/work/x86_64-linux-gnu/x86_64-w64-mingw32",
		"--build=x86_64-linux-gnu",
		"--host=x86_64-linux-gnu",
		"--target=x86_64-w64-mingw32",
		"--disable-nls",
		"--disable-werror",
		"--disable-libstdcxx-verbose",
		"--disable-bootstrap",
		"--enable-languages=c,c++",
	}
	if !reflect.DeepEqual(args[:len(want)], want) {
		t.Errorf("unexpected gcc args:\n%v\nwant prefix:\n%v", args, want)
	}
}

func TestMingwArgs(t *testing.T) {
	cfg := newConfig(t, toolchain.TripleLinux, toolchain.TripleWindows, nil)
	want := []string{
		"--prefix=/work/x86_64-linux-gnu/x86_64-w64-mingw32/x86_64-w64-mingw32",
		"--build=x86_64-linux-gnu",
		"--host=x86_64-w64-mingw32",
		"--target=x86_64-w64-mingw32",
	}
	if got := MingwArgs(cfg); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDerive_CanadianAliases(t *testing.T) {
	cfg := newConfig(t, toolchain.TripleWindows, toolchain.TripleWindows, nil)
	p := derive(t, cfg)

	if !p.Canadian || p.Cross {
		t.Fatalf("expected Canadian, non-cross plan, got canadian=%v cross=%v", p.Canadian, p.Cross)
	}

	binutils := p.Steps[0]
	if len(binutils.Aliases) != len(toolchain.DefaultPrerequisites) {
		t.Fatalf("expected %d aliases, got %d", len(toolchain.DefaultPrerequisites), len(binutils.Aliases))
	}
	gmp := binutils.Aliases[0]
	if gmp.Link != "/work/binutils-gdb/gmp" || gmp.Target != "/work/gmp-6.2.1" {
		t.Errorf("unexpected gmp alias %+v", gmp)
	}
	for _, s := range p.Steps[1:] {
		if len(s.Aliases) != 0 {
			t.Errorf("only binutils-gdb carries aliases, %s has %v", s.Name, s.Aliases)
		}
	}

	// Headers and runtime follow the full gcc build
	want := []toolchain.ModuleName{
		toolchain.ModuleBinutilsGDB,
		toolchain.ModuleGCC,
		toolchain.ModuleMingwHeaders,
		toolchain.ModuleMingwCRT,
	}
	if got := stepModules(p); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDerive_NonCanadianHasNoAliases(t *testing.T) {
	p := derive(t, newConfig(t, toolchain.TripleLinux, toolchain.TripleWindows, nil))
	for _, s := range p.Steps {
		if len(s.Aliases) != 0 {
			t.Errorf("unexpected aliases on %s", s.Name)
		}
	}
}

func TestDerive_IsPure(t *testing.T) {
	cfg := newConfig(t, toolchain.TripleLinux, toolchain.TripleWindows, nil)
	a := derive(t, cfg)
	b := derive(t, cfg)
	if !reflect.DeepEqual(a, b) {
		t.Error("deriving twice from the same config must yield equal plans")
	}
	a.Steps[0].ConfigureArgs[0] = "--mutated"
	if strings.HasPrefix(b.Steps[0].ConfigureArgs[0], "--mutated") {
		t.Error("plans must not share argument slices")
	}
}
