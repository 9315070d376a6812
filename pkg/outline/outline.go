// Package outline loads and validates project manifests (elm.json).
//
// A manifest is either an application outline or a package outline,
// discriminated by its "type" field. [Read] loads the manifest of a project
// root; [Decode] parses manifest bytes directly (the solver uses it for
// dependency manifests fetched from the registry or the package cache).
//
// Outlines reject any compiler version other than the running compiler's
// own at decode time, so nothing downstream ever sees a manifest written
// for a different compiler.
package outline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/gelm-lang/gelm/pkg/core"
	"github.com/gelm-lang/gelm/pkg/problem"
)

// FileName is the manifest file name at every project and package root.
const FileName = "elm.json"

// Outline is a decoded manifest: either *[AppOutline] or *[PkgOutline].
// Closed sum.
type Outline interface {
	isOutline()
}

// AppOutline is the manifest of an application: pinned exact versions for
// every dependency, split into direct/indirect and test halves.
type AppOutline struct {
	Compiler     core.Version
	SrcDirs      []string
	Direct       map[core.PkgName]core.Version
	Indirect     map[core.PkgName]core.Version
	TestDirect   map[core.PkgName]core.Version
	TestIndirect map[core.PkgName]core.Version
}

func (*AppOutline) isOutline() {}

// PkgOutline is the manifest of a published package: ranged constraints
// instead of exact versions, plus the exposed-module listing.
type PkgOutline struct {
	Name     core.PkgName
	Summary  string
	License  string
	Version  core.Version
	Exposed  []core.ModuleName
	Deps     map[core.PkgName]core.Constraint
	TestDeps map[core.PkgName]core.Constraint
	Compiler core.Constraint
}

func (*PkgOutline) isOutline() {}

// Read loads and decodes `<root>/elm.json`.
func Read(fs afero.Fs, root string) (Outline, problem.Problem) {
	data, err := afero.ReadFile(fs, filepath.Join(root, FileName))
	if err != nil {
		return nil, &problem.BadOutline{Reason: err.Error()}
	}
	return Decode(data)
}

// maxSummaryLength bounds package summaries shown on the package website.
const maxSummaryLength = 80

type rawOutline struct {
	Type     string          `json:"type"`
	Compiler string          `json:"elm-version"`
	SrcDirs  []string        `json:"source-directories"`
	Deps     json.RawMessage `json:"dependencies"`
	TestDeps json.RawMessage `json:"test-dependencies"`

	Name    string          `json:"name"`
	Summary string          `json:"summary"`
	License string          `json:"license"`
	Version string          `json:"version"`
	Exposed json.RawMessage `json:"exposed-modules"`
}

type appDeps struct {
	Direct   map[core.PkgName]core.Version `json:"direct"`
	Indirect map[core.PkgName]core.Version `json:"indirect"`
}

// Decode parses manifest bytes into an [Outline], rejecting structural
// problems with [problem.BadOutline] and foreign compiler versions with
// [problem.BadCompilerInApp] or [problem.BadCompilerInPkg].
func Decode(data []byte) (Outline, problem.Problem) {
	var raw rawOutline
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, &problem.BadOutline{Reason: err.Error()}
	}

	switch raw.Type {
	case "application":
		return decodeApp(&raw)
	case "package":
		return decodePkg(&raw)
	default:
		return nil, &problem.BadOutline{Reason: fmt.Sprintf("unknown project type %q", raw.Type)}
	}
}

func decodeApp(raw *rawOutline) (Outline, problem.Problem) {
	compiler, err := core.ParseVersion(raw.Compiler)
	if err != nil {
		return nil, &problem.BadOutline{Reason: "invalid elm-version: " + err.Error()}
	}
	if compiler != core.Compiler {
		return nil, &problem.BadCompilerInApp{Found: compiler}
	}
	if len(raw.SrcDirs) == 0 {
		return nil, &problem.BadOutline{Reason: "source-directories must not be empty"}
	}

	var deps, testDeps appDeps
	if err := unmarshalSection(raw.Deps, &deps); err != nil {
		return nil, &problem.BadOutline{Reason: "invalid dependencies: " + err.Error()}
	}
	if err := unmarshalSection(raw.TestDeps, &testDeps); err != nil {
		return nil, &problem.BadOutline{Reason: "invalid test-dependencies: " + err.Error()}
	}

	return &AppOutline{
		Compiler:     compiler,
		SrcDirs:      raw.SrcDirs,
		Direct:       orEmptyV(deps.Direct),
		Indirect:     orEmptyV(deps.Indirect),
		TestDirect:   orEmptyV(testDeps.Direct),
		TestIndirect: orEmptyV(testDeps.Indirect),
	}, nil
}

func decodePkg(raw *rawOutline) (Outline, problem.Problem) {
	compiler, err := core.ParseConstraint(raw.Compiler)
	if err != nil {
		return nil, &problem.BadOutline{Reason: "invalid elm-version: " + err.Error()}
	}
	if !compiler.GoodCompiler() {
		return nil, &problem.BadCompilerInPkg{Found: compiler}
	}

	name, err := core.ParsePkgName(raw.Name)
	if err != nil {
		return nil, &problem.BadOutline{Reason: err.Error()}
	}
	version, err := core.ParseVersion(raw.Version)
	if err != nil {
		return nil, &problem.BadOutline{Reason: "invalid version: " + err.Error()}
	}
	if len(raw.Summary) > maxSummaryLength {
		return nil, &problem.BadOutline{Reason: "summary must be at most 80 characters"}
	}

	exposed, perr := decodeExposed(raw.Exposed)
	if perr != nil {
		return nil, perr
	}

	var deps, testDeps map[core.PkgName]core.Constraint
	if err := unmarshalSection(raw.Deps, &deps); err != nil {
		return nil, &problem.BadOutline{Reason: "invalid dependencies: " + err.Error()}
	}
	if err := unmarshalSection(raw.TestDeps, &testDeps); err != nil {
		return nil, &problem.BadOutline{Reason: "invalid test-dependencies: " + err.Error()}
	}

	return &PkgOutline{
		Name:     name,
		Summary:  raw.Summary,
		License:  raw.License,
		Version:  version,
		Exposed:  exposed,
		Deps:     orEmptyC(deps),
		TestDeps: orEmptyC(testDeps),
		Compiler: compiler,
	}, nil
}

// decodeExposed accepts both manifest shapes: a flat list of module names,
// or a map of category headings to lists (used by large packages to group
// their docs). The categorized form flattens in sorted category-name order.
func decodeExposed(raw json.RawMessage) ([]core.ModuleName, problem.Problem) {
	if len(raw) == 0 {
		return nil, &problem.BadOutline{Reason: "exposed-modules is required"}
	}

	var flat []string
	if err := json.Unmarshal(raw, &flat); err == nil {
		return checkExposed(flat)
	}

	var grouped map[string][]string
	if err := json.Unmarshal(raw, &grouped); err != nil {
		return nil, &problem.BadOutline{Reason: "invalid exposed-modules"}
	}
	keys := sortedKeys(grouped)
	var all []string
	for _, k := range keys {
		all = append(all, grouped[k]...)
	}
	return checkExposed(all)
}

func checkExposed(names []string) ([]core.ModuleName, problem.Problem) {
	if len(names) == 0 {
		return nil, &problem.BadOutline{Reason: "exposed-modules must not be empty"}
	}
	out := make([]core.ModuleName, len(names))
	seen := make(map[string]bool, len(names))
	for i, n := range names {
		if !core.ValidModuleName(n) {
			return nil, &problem.BadOutline{Reason: fmt.Sprintf("invalid exposed module name %q", n)}
		}
		if seen[n] {
			return nil, &problem.BadOutline{Reason: fmt.Sprintf("module %q exposed twice", n)}
		}
		seen[n] = true
		out[i] = core.ModuleName(n)
	}
	return out, nil
}

func unmarshalSection(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func orEmptyV(m map[core.PkgName]core.Version) map[core.PkgName]core.Version {
	if m == nil {
		return map[core.PkgName]core.Version{}
	}
	return m
}

func orEmptyC(m map[core.PkgName]core.Constraint) map[core.PkgName]core.Constraint {
	if m == nil {
		return map[core.PkgName]core.Constraint{}
	}
	return m
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON encodes the application outline in manifest form.
func (a *AppOutline) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string   `json:"type"`
		SrcDirs  []string `json:"source-directories"`
		Compiler string   `json:"elm-version"`
		Deps     appDeps  `json:"dependencies"`
		TestDeps appDeps  `json:"test-dependencies"`
	}{
		Type:     "application",
		SrcDirs:  a.SrcDirs,
		Compiler: a.Compiler.String(),
		Deps:     appDeps{Direct: a.Direct, Indirect: a.Indirect},
		TestDeps: appDeps{Direct: a.TestDirect, Indirect: a.TestIndirect},
	})
}

// MarshalJSON encodes the package outline in manifest form. The exposed
// list always encodes flat; category groupings are a docs-site affordance
// and are not round-tripped.
func (p *PkgOutline) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string                             `json:"type"`
		Name     string                             `json:"name"`
		Summary  string                             `json:"summary"`
		License  string                             `json:"license"`
		Version  string                             `json:"version"`
		Exposed  []core.ModuleName                  `json:"exposed-modules"`
		Compiler string                             `json:"elm-version"`
		Deps     map[core.PkgName]core.Constraint   `json:"dependencies"`
		TestDeps map[core.PkgName]core.Constraint   `json:"test-dependencies"`
	}{
		Type:     "package",
		Name:     p.Name.String(),
		Summary:  p.Summary,
		License:  p.License,
		Version:  p.Version.String(),
		Exposed:  p.Exposed,
		Compiler: p.Compiler.String(),
		Deps:     p.Deps,
		TestDeps: p.TestDeps,
	})
}
