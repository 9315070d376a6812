package details

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/gelm-lang/gelm/pkg/compiler"
	"github.com/gelm-lang/gelm/pkg/core"
	"github.com/gelm-lang/gelm/pkg/outline"
	"github.com/gelm-lang/gelm/pkg/registry"
)

// fakeCompiler mirrors the stand-in used by the build tests: enough
// parsing to follow imports, interfaces invented per module.
type fakeCompiler struct{}

func (f *fakeCompiler) Parse(pkg core.PkgName, src []byte) (*compiler.Module, error) {
	var m compiler.Module
	for _, line := range strings.Split(string(src), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "module "):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return nil, fmt.Errorf("bad module line")
			}
			m.Name = core.ModuleName(fields[1])
		case strings.HasPrefix(line, "import "):
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				m.Imports = append(m.Imports, core.ModuleName(fields[1]))
			}
		}
	}
	if m.Name == "" {
		return nil, fmt.Errorf("no module declaration")
	}
	return &m, nil
}

func (f *fakeCompiler) Compile(pkg core.PkgName, ifaces map[core.ModuleName]*compiler.Interface, m *compiler.Module, withDocs bool) (*compiler.Compiled, error) {
	objects := compiler.NewGlobalGraph()
	objects.Nodes[compiler.Global{
		Module: core.Canonical{Pkg: pkg, Module: m.Name},
		Name:   "v",
	}] = compiler.Node{Body: []byte("code")}

	compiled := &compiler.Compiled{
		Iface:   &compiler.Interface{Home: pkg, Values: map[string]string{"v": string(m.Name)}},
		Objects: objects,
	}
	if withDocs {
		compiled.Docs = &compiler.ModuleDocs{Name: m.Name, Comment: "docs"}
	}
	return compiled, nil
}

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

// world is a fully primed environment: registry.dat on disk and packages
// unpacked, so verifies run without any network.
type world struct {
	fs  afero.Fs
	env *Env
	reg *registry.Registry
}

func newWorld(t *testing.T) *world {
	t.Helper()
	fs := afero.NewMemMapFs()
	w := &world{
		fs:  fs,
		reg: &registry.Registry{Packages: map[core.PkgName]registry.KnownVersions{}},
		env: &Env{
			Fs:       fs,
			Home:     "/home",
			Compiler: &fakeCompiler{},
		},
	}
	require.NoError(t, fs.MkdirAll("/home/packages", 0o755))
	return w
}

func (w *world) flushRegistry(t *testing.T) {
	t.Helper()
	require.NoError(t, registry.Write(w.fs, "/home", w.reg))
}

// release unpacks a package and registers it.
func (w *world) release(t *testing.T, name, version string, deps map[string]string, exposed []string, files map[string]string) {
	t.Helper()
	p := pkg(t, name)
	v := vsn(t, version)

	kv := w.reg.Packages[p]
	if kv.Newest == (core.Version{}) {
		kv = registry.KnownVersions{Newest: v}
	} else if kv.Newest.Less(v) {
		kv.Previous = append([]core.Version{kv.Newest}, kv.Previous...)
		kv.Newest = v
	} else {
		kv.Previous = append(kv.Previous, v)
	}
	w.reg.Packages[p] = kv
	w.reg.Count++

	var depList, exposedList []string
	for dep, c := range deps {
		depList = append(depList, fmt.Sprintf("%q:%q", dep, c))
	}
	for _, e := range exposed {
		exposedList = append(exposedList, fmt.Sprintf("%q", e))
	}
	manifest := fmt.Sprintf(`{
		"type": "package", "name": %q, "summary": "fixture", "license": "MIT",
		"version": %q, "exposed-modules": [%s],
		"elm-version": "0.19.0 <= v < 0.20.0",
		"dependencies": {%s}, "test-dependencies": {}
	}`, name, version, strings.Join(exposedList, ","), strings.Join(depList, ","))

	base := fmt.Sprintf("/home/packages/%s/%s", name, version)
	require.NoError(t, afero.WriteFile(w.fs, base+"/elm.json", []byte(manifest), 0o644))
	require.NoError(t, w.fs.MkdirAll(base+"/src", 0o755))
	for path, content := range files {
		require.NoError(t, afero.WriteFile(w.fs, base+"/src/"+path, []byte(content), 0o644))
	}
}

func (w *world) writeApp(t *testing.T, root string, direct map[string]string, indirect map[string]string) {
	t.Helper()
	section := func(m map[string]string) string {
		var parts []string
		for name, version := range m {
			parts = append(parts, fmt.Sprintf("%q:%q", name, version))
		}
		return strings.Join(parts, ",")
	}
	manifest := fmt.Sprintf(`{
		"type": "application",
		"source-directories": ["src"],
		"elm-version": "0.19.1",
		"dependencies": {"direct": {%s}, "indirect": {%s}},
		"test-dependencies": {"direct": {}, "indirect": {}}
	}`, section(direct), section(indirect))
	require.NoError(t, afero.WriteFile(w.fs, root+"/elm.json", []byte(manifest), 0o644))
}

func TestFreshGenerate(t *testing.T) {
	w := newWorld(t)
	w.release(t, "elm/core", "1.0.0", nil, []string{"Basics"}, map[string]string{
		"Basics.elm": "module Basics exposing (..)\n",
	})
	w.flushRegistry(t)
	w.writeApp(t, "/project", map[string]string{"elm/core": "1.0.0"}, nil)

	d, perr := Load(context.Background(), w.env, "/project")
	require.Nil(t, perr)

	require.Equal(t, uint64(0), d.BuildID)
	fresh, ok := d.Extras.(*Fresh)
	require.True(t, ok, "first load should return fresh extras")
	require.NotEmpty(t, fresh.Ifaces)
	require.Empty(t, d.Locals)

	// The persisted time equals the manifest mtime at time of write.
	info, err := w.fs.Stat("/project/elm.json")
	require.NoError(t, err)
	require.Equal(t, info.ModTime().UnixNano(), d.OldTime)

	for _, f := range []string{"d.dat", "i.dat", "o.dat"} {
		ok, _ := afero.Exists(w.fs, "/project/elm-stuff/0.19.1/"+f)
		require.True(t, ok, "%s should exist", f)
	}
}

func TestWarmReload(t *testing.T) {
	w := newWorld(t)
	w.release(t, "elm/core", "1.0.0", nil, []string{"Basics"}, map[string]string{
		"Basics.elm": "module Basics exposing (..)\n",
	})
	w.flushRegistry(t)
	w.writeApp(t, "/project", map[string]string{"elm/core": "1.0.0"}, nil)

	first, perr := Load(context.Background(), w.env, "/project")
	require.Nil(t, perr)

	second, perr := Load(context.Background(), w.env, "/project")
	require.Nil(t, perr)
	require.Equal(t, uint64(1), second.BuildID)
	_, cached := second.Extras.(*Cached)
	require.True(t, cached, "reload should be cached")
	require.Equal(t, first.Outline, second.Outline)
	require.Equal(t, first.Locals, second.Locals)
	require.Equal(t, first.Foreigns, second.Foreigns)

	third, perr := Load(context.Background(), w.env, "/project")
	require.Nil(t, perr)
	require.Equal(t, uint64(2), third.BuildID, "build id strictly increases")
}

func TestTouchedManifestRegenerates(t *testing.T) {
	w := newWorld(t)
	w.release(t, "elm/core", "1.0.0", nil, []string{"Basics"}, map[string]string{
		"Basics.elm": "module Basics exposing (..)\n",
	})
	w.flushRegistry(t)
	w.writeApp(t, "/project", map[string]string{"elm/core": "1.0.0"}, nil)

	_, perr := Load(context.Background(), w.env, "/project")
	require.Nil(t, perr)

	artifactsBefore, err := afero.ReadFile(w.fs, "/home/packages/elm/core/1.0.0/artifacts.json")
	require.NoError(t, err)
	ifacesBefore, err := afero.ReadFile(w.fs, "/project/elm-stuff/0.19.1/i.dat")
	require.NoError(t, err)
	objectsBefore, err := afero.ReadFile(w.fs, "/project/elm-stuff/0.19.1/o.dat")
	require.NoError(t, err)

	// Touch without changing content: mtime-only difference.
	touched := time.Now().Add(time.Hour)
	require.NoError(t, w.fs.Chtimes("/project/elm.json", touched, touched))

	d, perr := Load(context.Background(), w.env, "/project")
	require.Nil(t, perr)
	_, fresh := d.Extras.(*Fresh)
	require.True(t, fresh, "touched manifest takes the generate path")

	// The regeneration resolved identically, so every package hit its
	// fingerprint and artifacts.json is byte-identical.
	artifactsAfter, err := afero.ReadFile(w.fs, "/home/packages/elm/core/1.0.0/artifacts.json")
	require.NoError(t, err)
	require.Equal(t, artifactsBefore, artifactsAfter)

	// Persisted interfaces and objects regenerate byte-identically.
	ifacesAfter, err := afero.ReadFile(w.fs, "/project/elm-stuff/0.19.1/i.dat")
	require.NoError(t, err)
	require.Equal(t, ifacesBefore, ifacesAfter)
	objectsAfter, err := afero.ReadFile(w.fs, "/project/elm-stuff/0.19.1/o.dat")
	require.NoError(t, err)
	require.Equal(t, objectsBefore, objectsAfter)
}

func TestCorruptDetailsRegenerates(t *testing.T) {
	w := newWorld(t)
	w.release(t, "elm/core", "1.0.0", nil, []string{"Basics"}, map[string]string{
		"Basics.elm": "module Basics exposing (..)\n",
	})
	w.flushRegistry(t)
	w.writeApp(t, "/project", map[string]string{"elm/core": "1.0.0"}, nil)

	require.NoError(t, afero.WriteFile(w.fs, "/project/elm-stuff/0.19.1/d.dat", []byte("junk"), 0o644))

	d, perr := Load(context.Background(), w.env, "/project")
	require.Nil(t, perr)
	require.Equal(t, uint64(0), d.BuildID)
}

func TestAmbiguousForeignTolerated(t *testing.T) {
	w := newWorld(t)
	w.release(t, "b/y", "1.0.0", nil, []string{"Url"}, map[string]string{
		"Url.elm": "module Url exposing (..)\n",
	})
	w.release(t, "c/z", "1.0.0", nil, []string{"Url"}, map[string]string{
		"Url.elm": "module Url exposing (..)\n",
	})
	w.flushRegistry(t)
	w.writeApp(t, "/project", map[string]string{"b/y": "1.0.0", "c/z": "1.0.0"}, nil)

	d, perr := Load(context.Background(), w.env, "/project")
	require.Nil(t, perr, "dependency build itself succeeds")

	foreign, ok := d.Foreigns["Url"]
	require.True(t, ok)
	require.True(t, foreign.Ambiguous())
	require.Equal(t, pkg(t, "b/y"), foreign.Primary)
	require.Equal(t, []core.PkgName{pkg(t, "c/z")}, foreign.Rest)
}

func TestIndirectDepsPrivatized(t *testing.T) {
	w := newWorld(t)
	w.release(t, "b/y", "1.0.0", nil, []string{"Inner"}, map[string]string{
		"Inner.elm": "module Inner exposing (..)\n",
	})
	w.release(t, "a/x", "1.0.0", map[string]string{"b/y": "1.0.0 <= v < 2.0.0"}, []string{"Outer"}, map[string]string{
		"Outer.elm": "module Outer exposing (..)\nimport Inner\n",
	})
	w.flushRegistry(t)
	w.writeApp(t, "/project", map[string]string{"a/x": "1.0.0"}, map[string]string{"b/y": "1.0.0"})

	d, perr := Load(context.Background(), w.env, "/project")
	require.Nil(t, perr)

	fresh := d.Extras.(*Fresh)
	outer := fresh.Ifaces[core.Canonical{Pkg: pkg(t, "a/x"), Module: "Outer"}]
	require.True(t, outer.IsPublic(), "direct dep exposed module stays public")

	inner := fresh.Ifaces[core.Canonical{Pkg: pkg(t, "b/y"), Module: "Inner"}]
	require.False(t, inner.IsPublic(), "indirect dep module is privatized")

	// Foreigns only cover direct deps.
	_, hasInner := d.Foreigns["Inner"]
	require.False(t, hasInner)
}

func TestVerifyInstallDiscards(t *testing.T) {
	w := newWorld(t)
	w.release(t, "elm/core", "1.0.0", nil, []string{"Basics"}, map[string]string{
		"Basics.elm": "module Basics exposing (..)\n",
	})
	w.flushRegistry(t)
	w.writeApp(t, "/project", map[string]string{"elm/core": "1.0.0"}, nil)

	perr := VerifyInstall(context.Background(), w.env, "/project")
	require.Nil(t, perr)

	ok, _ := afero.Exists(w.fs, "/project/elm-stuff/0.19.1/d.dat")
	require.False(t, ok, "verifyInstall must not persist details")
}

func TestMissingDependencyFails(t *testing.T) {
	w := newWorld(t)
	// Declared in the registry but never unpacked, and no network.
	p := pkg(t, "a/missing")
	w.reg.Packages[p] = registry.KnownVersions{Newest: vsn(t, "1.0.0")}
	w.reg.Count++
	w.release(t, "elm/core", "1.0.0", nil, []string{"Basics"}, map[string]string{
		"Basics.elm": "module Basics exposing (..)\n",
	})
	w.flushRegistry(t)
	w.writeApp(t, "/project", map[string]string{"elm/core": "1.0.0", "a/missing": "1.0.0"}, nil)

	// Manifest fetch for the missing package must fail: nothing served.
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()
	w.env.RegistryBase = server.URL

	_, perr := Load(context.Background(), w.env, "/project")
	require.NotNil(t, perr)
}

func TestDetailsRoundTrip(t *testing.T) {
	d := &Details{
		OldTime: 12345,
		Outline: &outline.ValidApp{SrcDirs: []string{"src"}},
		BuildID: 7,
		Locals: map[core.ModuleName]Local{
			"Main": {Path: "src/Main.elm", Time: 99, Deps: []core.ModuleName{"Util"}, HasMain: true, LastChange: 3, LastCompile: 3},
		},
		Foreigns: map[core.ModuleName]Foreign{
			"Url": {Primary: core.PkgName{Author: "elm", Project: "url"}},
		},
		Extras: &Fresh{},
	}

	data, err := Encode(d)
	require.NoError(t, err)

	back, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, d.OldTime, back.OldTime)
	require.Equal(t, d.Outline, back.Outline)
	require.Equal(t, d.BuildID, back.BuildID)
	require.Equal(t, d.Locals, back.Locals)
	require.Equal(t, d.Foreigns, back.Foreigns)
	_, cached := back.Extras.(*Cached)
	require.True(t, cached, "decoded details always start cached")

	// Unchanged state encodes identically.
	again, err := Encode(d)
	require.NoError(t, err)
	require.Equal(t, data, again)
}

func TestLocalNeedsCompile(t *testing.T) {
	l := Local{Time: 100, LastChange: 5, LastCompile: 5}

	require.False(t, l.NeedsCompile(100, 5))
	require.True(t, l.NeedsCompile(101, 5), "file time changed")
	require.True(t, l.NeedsCompile(100, 6), "an import changed after last compile")
}
