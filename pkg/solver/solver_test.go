package solver

import (
	"context"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/gelm-lang/gelm/pkg/cache"
	"github.com/gelm-lang/gelm/pkg/core"
	"github.com/gelm-lang/gelm/pkg/outline"
	"github.com/gelm-lang/gelm/pkg/problem"
	"github.com/gelm-lang/gelm/pkg/registry"
)

func pkg(t *testing.T, s string) core.PkgName {
	t.Helper()
	p, err := core.ParsePkgName(s)
	require.NoError(t, err)
	return p
}

func vsn(t *testing.T, s string) core.Version {
	t.Helper()
	v, err := core.ParseVersion(s)
	require.NoError(t, err)
	return v
}

func cons(t *testing.T, s string) core.Constraint {
	t.Helper()
	c, err := core.ParseConstraint(s)
	require.NoError(t, err)
	return c
}

// fixture builds a registry plus unpacked manifests for every release, so
// the solver can run "online" without a network.
type fixture struct {
	fs  afero.Fs
	reg *registry.Registry
}

func newFixture() *fixture {
	return &fixture{
		fs:  afero.NewMemMapFs(),
		reg: &registry.Registry{Packages: map[core.PkgName]registry.KnownVersions{}},
	}
}

// release registers pkg@vsn with the given dependency constraints and
// writes its manifest into the package cache.
func (f *fixture) release(t *testing.T, name, version string, deps map[string]string) {
	t.Helper()
	p := pkg(t, name)
	v := vsn(t, version)

	kv, ok := f.reg.Packages[p]
	if !ok {
		kv = registry.KnownVersions{Newest: v}
	} else {
		if kv.Newest.Less(v) {
			kv.Previous = append([]core.Version{kv.Newest}, kv.Previous...)
			kv.Newest = v
		} else {
			kv.Previous = append(kv.Previous, v)
		}
	}
	f.reg.Packages[p] = kv
	f.reg.Count++

	depsJSON := "{"
	first := true
	for dep, c := range deps {
		if !first {
			depsJSON += ","
		}
		first = false
		depsJSON += fmt.Sprintf("%q:%q", dep, c)
	}
	depsJSON += "}"

	manifest := fmt.Sprintf(`{
		"type": "package",
		"name": %q,
		"summary": "test fixture",
		"license": "MIT",
		"version": %q,
		"exposed-modules": ["Main"],
		"elm-version": "0.19.0 <= v < 0.20.0",
		"dependencies": %s,
		"test-dependencies": {}
	}`, name, version, depsJSON)

	path := fmt.Sprintf("/home/packages/%s/%s/elm.json", name, version)
	require.NoError(t, afero.WriteFile(f.fs, path, []byte(manifest), 0o644))
}

func (f *fixture) env() *Env {
	return &Env{
		Fs:       f.fs,
		Home:     "/home",
		Registry: f.reg,
		Client:   registry.NewClient("http://unused", cache.NewNullCache(), 0),
	}
}

func (f *fixture) offlineEnv() *Env {
	return &Env{Fs: f.fs, Home: "/home", Registry: nil, Client: nil}
}

func TestSolvePicksNewest(t *testing.T) {
	f := newFixture()
	f.release(t, "a/x", "1.0.0", nil)
	f.release(t, "a/x", "2.0.0", nil)
	f.release(t, "a/x", "2.1.0", nil)

	solution, err := Solve(context.Background(), f.env(), map[core.PkgName]core.Constraint{
		pkg(t, "a/x"): cons(t, "1.0.0 <= v < 3.0.0"),
	})
	require.NoError(t, err)
	require.Equal(t, vsn(t, "2.1.0"), solution[pkg(t, "a/x")].Version)
}

func TestSolveFollowsTransitiveDeps(t *testing.T) {
	f := newFixture()
	f.release(t, "a/x", "1.0.0", map[string]string{"b/y": "1.0.0 <= v < 2.0.0"})
	f.release(t, "b/y", "1.2.0", nil)

	solution, err := Solve(context.Background(), f.env(), map[core.PkgName]core.Constraint{
		pkg(t, "a/x"): cons(t, "1.0.0 <= v < 2.0.0"),
	})
	require.NoError(t, err)
	require.Len(t, solution, 2)
	require.Equal(t, vsn(t, "1.2.0"), solution[pkg(t, "b/y")].Version)
}

func TestSolveBacktracks(t *testing.T) {
	f := newFixture()
	// Newest a/x needs a b/y that does not exist; older a/x works.
	f.release(t, "a/x", "2.0.0", map[string]string{"b/y": "9.0.0 <= v < 10.0.0"})
	f.release(t, "a/x", "1.0.0", map[string]string{"b/y": "1.0.0 <= v < 2.0.0"})
	f.release(t, "b/y", "1.0.0", nil)

	solution, err := Solve(context.Background(), f.env(), map[core.PkgName]core.Constraint{
		pkg(t, "a/x"): cons(t, "1.0.0 <= v < 3.0.0"),
	})
	require.NoError(t, err)
	require.Equal(t, vsn(t, "1.0.0"), solution[pkg(t, "a/x")].Version)
}

func TestSolveNoSolution(t *testing.T) {
	f := newFixture()
	f.release(t, "a/x", "1.0.0", nil)

	_, err := Solve(context.Background(), f.env(), map[core.PkgName]core.Constraint{
		pkg(t, "a/x"): cons(t, "2.0.0 <= v < 3.0.0"),
	})
	var noSolution *problem.NoSolution
	require.ErrorAs(t, err, &noSolution)
}

func TestSolveSkipsWrongCompiler(t *testing.T) {
	f := newFixture()
	f.release(t, "a/x", "1.0.0", nil)
	f.release(t, "a/x", "2.0.0", nil)

	// Rewrite the newest manifest to demand an old compiler.
	old := `{
		"type": "package", "name": "a/x", "summary": "s", "license": "MIT",
		"version": "2.0.0", "exposed-modules": ["Main"],
		"elm-version": "0.18.0 <= v < 0.19.0",
		"dependencies": {}, "test-dependencies": {}
	}`
	require.NoError(t, afero.WriteFile(f.fs, "/home/packages/a/x/2.0.0/elm.json", []byte(old), 0o644))

	solution, err := Solve(context.Background(), f.env(), map[core.PkgName]core.Constraint{
		pkg(t, "a/x"): cons(t, "1.0.0 <= v < 3.0.0"),
	})
	require.NoError(t, err)
	require.Equal(t, vsn(t, "1.0.0"), solution[pkg(t, "a/x")].Version)
}

func TestSolveOffline(t *testing.T) {
	f := newFixture()
	f.release(t, "elm/core", "1.0.0", nil)

	// Satisfiable from the cache.
	solution, err := Solve(context.Background(), f.offlineEnv(), map[core.PkgName]core.Constraint{
		pkg(t, "elm/core"): cons(t, "1.0.0 <= v < 2.0.0"),
	})
	require.NoError(t, err)
	require.Equal(t, vsn(t, "1.0.0"), solution[pkg(t, "elm/core")].Version)

	// Needs a version the cache does not have.
	_, err = Solve(context.Background(), f.offlineEnv(), map[core.PkgName]core.Constraint{
		pkg(t, "elm/core"): cons(t, "2.0.0 <= v < 3.0.0"),
	})
	var offline *problem.NoOfflineSolution
	require.ErrorAs(t, err, &offline)
}

func TestAddToApp(t *testing.T) {
	f := newFixture()
	f.release(t, "a/x", "1.0.0", map[string]string{"b/y": "1.0.0 <= v < 2.0.0"})
	f.release(t, "b/y", "1.0.0", nil)

	app := &outline.AppOutline{
		Compiler: core.Compiler,
		SrcDirs:  []string{"src"},
		Direct:   map[core.PkgName]core.Version{pkg(t, "a/x"): vsn(t, "1.0.0")},
		Indirect: map[core.PkgName]core.Version{pkg(t, "b/y"): vsn(t, "1.0.0")},
	}

	solution, err := AddToApp(context.Background(), f.env(), app)
	require.NoError(t, err)
	require.Len(t, solution, 2)
}

func TestAddToAppHandEdited(t *testing.T) {
	f := newFixture()
	f.release(t, "a/x", "1.0.0", nil)

	// Spec scenario: a direct dep moved into indirect by hand. The solve
	// finds nothing to do, but the declared set says one package.
	app := &outline.AppOutline{
		Compiler: core.Compiler,
		SrcDirs:  []string{"src"},
		Indirect: map[core.PkgName]core.Version{pkg(t, "a/x"): vsn(t, "1.0.0")},
	}
	_, err := AddToApp(context.Background(), f.env(), app)
	var handEdited *problem.HandEditedDependencies
	require.ErrorAs(t, err, &handEdited)
}

func TestAddToAppConflictingDuplicate(t *testing.T) {
	f := newFixture()
	f.release(t, "a/x", "1.0.0", nil)
	f.release(t, "a/x", "1.1.0", nil)

	app := &outline.AppOutline{
		Compiler:   core.Compiler,
		SrcDirs:    []string{"src"},
		Direct:     map[core.PkgName]core.Version{pkg(t, "a/x"): vsn(t, "1.0.0")},
		TestDirect: map[core.PkgName]core.Version{pkg(t, "a/x"): vsn(t, "1.1.0")},
	}
	_, err := AddToApp(context.Background(), f.env(), app)
	var handEdited *problem.HandEditedDependencies
	require.ErrorAs(t, err, &handEdited)
}

func TestAddToAppEqualDuplicateAllowed(t *testing.T) {
	f := newFixture()
	f.release(t, "a/x", "1.0.0", nil)

	app := &outline.AppOutline{
		Compiler:   core.Compiler,
		SrcDirs:    []string{"src"},
		Direct:     map[core.PkgName]core.Version{pkg(t, "a/x"): vsn(t, "1.0.0")},
		TestDirect: map[core.PkgName]core.Version{pkg(t, "a/x"): vsn(t, "1.0.0")},
	}
	solution, err := AddToApp(context.Background(), f.env(), app)
	require.NoError(t, err)
	require.Len(t, solution, 1)
}

func TestAddToPkg(t *testing.T) {
	f := newFixture()
	f.release(t, "b/y", "1.5.0", nil)

	pkgOutline := &outline.PkgOutline{
		Name:     pkg(t, "a/x"),
		Version:  vsn(t, "1.0.0"),
		Exposed:  []core.ModuleName{"Main"},
		Deps:     map[core.PkgName]core.Constraint{pkg(t, "b/y"): cons(t, "1.0.0 <= v < 2.0.0")},
		TestDeps: map[core.PkgName]core.Constraint{},
	}
	solution, err := AddToPkg(context.Background(), f.env(), pkgOutline)
	require.NoError(t, err)
	require.Equal(t, vsn(t, "1.5.0"), solution[pkg(t, "b/y")].Version)
}

func TestAddToPkgRejectsDuplicates(t *testing.T) {
	f := newFixture()
	f.release(t, "b/y", "1.0.0", nil)

	pkgOutline := &outline.PkgOutline{
		Name:     pkg(t, "a/x"),
		Version:  vsn(t, "1.0.0"),
		Exposed:  []core.ModuleName{"Main"},
		Deps:     map[core.PkgName]core.Constraint{pkg(t, "b/y"): cons(t, "1.0.0 <= v < 2.0.0")},
		TestDeps: map[core.PkgName]core.Constraint{pkg(t, "b/y"): cons(t, "1.0.0 <= v < 2.0.0")},
	}
	_, err := AddToPkg(context.Background(), f.env(), pkgOutline)
	var bad *problem.BadOutline
	require.ErrorAs(t, err, &bad)
}
