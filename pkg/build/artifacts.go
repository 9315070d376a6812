// Package build is the per-package build orchestrator: the dependency
// fanout, the intra-package module crawl, the compile scheduling, and the
// fingerprint-keyed artifact store.
//
// # Shape of a run
//
// [Dependencies] launches one task per package of the solver's solution.
// Each task either reuses the package's cached artifacts (when the cached
// fingerprint set contains the current fingerprint) or builds: it waits
// for its direct dependencies' artifacts, resolves its foreign namespace,
// crawls its exposed modules concurrently, compiles each module once its
// imports have compiled, and persists the result back into the package
// cache. Tasks coordinate only through write-once cells; a failure in one
// package never stops its siblings.
package build

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/gelm-lang/gelm/pkg/compiler"
	"github.com/gelm-lang/gelm/pkg/core"
	"github.com/gelm-lang/gelm/pkg/solver"
	"github.com/gelm-lang/gelm/pkg/stuff"
)

// Fingerprint records the exact version picked for every direct dependency
// of a package during one solve. Artifacts are reusable iff the fingerprint
// they were built under matches the current solve.
type Fingerprint map[core.PkgName]core.Version

// MakeFingerprint derives the fingerprint of one package from the overall
// solution: the solved versions of its direct dependencies.
func MakeFingerprint(solution solver.Solution, deps map[core.PkgName]core.Constraint) Fingerprint {
	fp := make(Fingerprint, len(deps))
	for dep := range deps {
		if pick, ok := solution[dep]; ok {
			fp[dep] = pick.Version
		}
	}
	return fp
}

// Key returns a canonical string form ("a/x@1.0.0;b/y@2.0.0") used for
// set membership and deterministic ordering.
func (f Fingerprint) Key() string {
	parts := make([]string, 0, len(f))
	for pkg, vsn := range f {
		parts = append(parts, pkg.String()+"@"+vsn.String())
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// Artifacts is the full build product of one dependency package: the
// interface of every module it contains (public for exposed modules,
// private otherwise) and the union of their compiled object graphs.
type Artifacts struct {
	Ifaces  map[core.ModuleName]compiler.DependencyInterface `json:"ifaces"`
	Objects compiler.GlobalGraph                             `json:"objects"`
}

// ArtifactCache is the persisted form of a package's artifacts, annotated
// with every fingerprint they were successfully built under. A package may
// be buildable under multiple fingerprints; they accumulate monotonically.
type ArtifactCache struct {
	Fingerprints []Fingerprint `json:"fingerprints"`
	Artifacts    Artifacts     `json:"artifacts"`
}

// HasFingerprint reports whether the cache was built under fp.
func (c *ArtifactCache) HasFingerprint(fp Fingerprint) bool {
	key := fp.Key()
	for _, existing := range c.Fingerprints {
		if existing.Key() == key {
			return true
		}
	}
	return false
}

// AddFingerprint records fp, keeping the set deduplicated and sorted so
// the persisted file is byte-reproducible.
func (c *ArtifactCache) AddFingerprint(fp Fingerprint) {
	if c.HasFingerprint(fp) {
		return
	}
	c.Fingerprints = append(c.Fingerprints, fp)
	sort.Slice(c.Fingerprints, func(i, j int) bool {
		return c.Fingerprints[i].Key() < c.Fingerprints[j].Key()
	})
}

// readArtifactCache loads `artifacts.json` for one package version. The
// second result is false when the file is absent or unrecognized; callers
// rebuild in that case.
func readArtifactCache(fs afero.Fs, home string, pkg core.PkgName, vsn core.Version) (*ArtifactCache, bool) {
	data, err := afero.ReadFile(fs, stuff.ArtifactsPath(home, pkg, vsn))
	if err != nil {
		return nil, false
	}
	var cache ArtifactCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, false
	}
	if cache.Artifacts.Ifaces == nil {
		return nil, false
	}
	return &cache, true
}

// writeArtifactCache persists `artifacts.json` for one package version.
func writeArtifactCache(fs afero.Fs, home string, pkg core.PkgName, vsn core.Version, cache *ArtifactCache) error {
	data, err := json.Marshal(cache)
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, stuff.ArtifactsPath(home, pkg, vsn), data, 0o644)
}
