// Package solver produces exact version assignments for a project's
// declared dependency constraints.
//
// # Strategy
//
// Candidate versions come from the registry (online) or from whatever is
// already unpacked in the package cache (offline) and are tried newest
// first. Each candidate's own manifest contributes constraints that are
// intersected into the working set; a contradiction backtracks to the
// next candidate. The search is depth-first over packages in name order,
// so a given registry state always solves to the same assignment.
//
// # Failure modes
//
// Exhaustion online is [problem.NoSolution]. Exhaustion offline is
// [problem.NoOfflineSolution]: a version outside the cache might have
// worked. A manifest that cannot be read or parsed mid-search aborts with
// [problem.SolverProblem].
package solver

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/afero"

	"github.com/gelm-lang/gelm/pkg/core"
	"github.com/gelm-lang/gelm/pkg/outline"
	"github.com/gelm-lang/gelm/pkg/problem"
	"github.com/gelm-lang/gelm/pkg/registry"
	"github.com/gelm-lang/gelm/pkg/stuff"
)

// Details is the solver's output for one package: the exact version
// picked and the direct dependency constraints of that version.
type Details struct {
	Version core.Version
	Deps    map[core.PkgName]core.Constraint
}

// Solution maps every package in the solved set to its pick.
type Solution = map[core.PkgName]Details

// Env is everything the solver needs to discover candidates: the local
// package cache, the registry snapshot, and (online only) the client for
// manifests not yet on disk. Client nil means offline.
type Env struct {
	Fs       afero.Fs
	Home     string
	Registry *registry.Registry
	Client   *registry.Client
}

// Online reports whether the env can reach the registry.
func (e *Env) Online() bool { return e.Client != nil }

// Solve finds an exact version for every package reachable from the given
// constraints. The returned error, when non-nil, is a [problem.Problem].
func Solve(ctx context.Context, env *Env, cons map[core.PkgName]core.Constraint) (Solution, error) {
	s := &search{ctx: ctx, env: env, manifests: make(map[pkgVersion]*outline.PkgOutline)}

	solution, ok, err := s.explore(cons, Solution{})
	if err != nil {
		return nil, err
	}
	if !ok {
		if !env.Online() {
			return nil, &problem.NoOfflineSolution{}
		}
		return nil, &problem.NoSolution{}
	}
	return solution, nil
}

type pkgVersion struct {
	pkg core.PkgName
	vsn core.Version
}

type search struct {
	ctx       context.Context
	env       *Env
	manifests map[pkgVersion]*outline.PkgOutline
}

// explore satisfies one pending package and recurses. cons holds the
// narrowed constraint for every package seen so far; picked the versions
// committed on this branch.
func (s *search) explore(cons map[core.PkgName]core.Constraint, picked Solution) (Solution, bool, error) {
	next, ok := s.nextUnpicked(cons, picked)
	if !ok {
		return picked, true, nil
	}

	candidates, err := s.candidates(next, cons[next])
	if err != nil {
		return nil, false, err
	}

	for _, vsn := range candidates {
		manifest, err := s.manifest(next, vsn)
		if err != nil {
			return nil, false, err
		}
		if manifest == nil {
			// Candidate unusable (e.g. wants a different compiler).
			continue
		}

		newCons, ok := s.narrow(cons, picked, manifest.Deps)
		if !ok {
			continue
		}

		newPicked := make(Solution, len(picked)+1)
		for k, v := range picked {
			newPicked[k] = v
		}
		newPicked[next] = Details{Version: vsn, Deps: manifest.Deps}

		if solution, ok, err := s.explore(newCons, newPicked); err != nil || ok {
			return solution, ok, err
		}
	}
	return nil, false, nil
}

// nextUnpicked returns the name-smallest constrained package without a
// pick, keeping the exploration order deterministic.
func (s *search) nextUnpicked(cons map[core.PkgName]core.Constraint, picked Solution) (core.PkgName, bool) {
	var best core.PkgName
	found := false
	for pkg := range cons {
		if _, done := picked[pkg]; done {
			continue
		}
		if !found || pkg.Compare(best) < 0 {
			best = pkg
			found = true
		}
	}
	return best, found
}

// narrow intersects the candidate's dependency constraints into cons.
// Fails if any intersection is empty or contradicts a committed pick.
func (s *search) narrow(cons map[core.PkgName]core.Constraint, picked Solution, deps map[core.PkgName]core.Constraint) (map[core.PkgName]core.Constraint, bool) {
	out := make(map[core.PkgName]core.Constraint, len(cons)+len(deps))
	for k, v := range cons {
		out[k] = v
	}
	for dep, c := range deps {
		merged := c
		if existing, ok := out[dep]; ok {
			var overlaps bool
			merged, overlaps = existing.Intersect(c)
			if !overlaps {
				return nil, false
			}
		}
		if pick, done := picked[dep]; done && !merged.SatisfiedBy(pick.Version) {
			return nil, false
		}
		out[dep] = merged
	}
	return out, true
}

// candidates lists the versions of pkg worth trying, newest first,
// already filtered by the working constraint. Online they come from the
// registry; offline from the unpacked package cache.
func (s *search) candidates(pkg core.PkgName, c core.Constraint) ([]core.Version, error) {
	var all []core.Version
	if s.env.Online() {
		kv, ok := s.env.Registry.Versions(pkg)
		if !ok {
			return nil, nil
		}
		all = kv.All()
	} else {
		cached, err := s.cachedVersions(pkg)
		if err != nil {
			return nil, &problem.SolverProblem{Err: err}
		}
		all = cached
	}

	var out []core.Version
	for _, v := range all {
		if c.SatisfiedBy(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Less(out[i]) })
	return out, nil
}

// cachedVersions lists the versions of pkg unpacked under the package
// cache, the only candidates available offline.
func (s *search) cachedVersions(pkg core.PkgName) ([]core.Version, error) {
	dir := fmt.Sprintf("%s/%s/%s", stuff.PackageCache(s.env.Home), pkg.Author, pkg.Project)
	infos, err := afero.ReadDir(s.env.Fs, dir)
	if err != nil {
		if ok, _ := afero.DirExists(s.env.Fs, dir); !ok {
			return nil, nil
		}
		return nil, err
	}
	var out []core.Version
	for _, info := range infos {
		if !info.IsDir() {
			continue
		}
		v, err := core.ParseVersion(info.Name())
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// manifest loads the package outline of one candidate version: from the
// package cache when unpacked, otherwise from the registry. A nil result
// with nil error means the candidate cannot participate in any solution
// (wrong compiler) and should be skipped.
func (s *search) manifest(pkg core.PkgName, vsn core.Version) (*outline.PkgOutline, error) {
	key := pkgVersion{pkg: pkg, vsn: vsn}
	if m, ok := s.manifests[key]; ok {
		return m, nil
	}

	data, err := afero.ReadFile(s.env.Fs, stuff.PackageManifest(s.env.Home, pkg, vsn))
	if err != nil {
		if !s.env.Online() {
			return nil, &problem.SolverProblem{Err: fmt.Errorf("missing manifest for cached %s %s", pkg, vsn)}
		}
		data, err = s.env.Client.Manifest(s.ctx, pkg, vsn)
		if err != nil {
			return nil, &problem.SolverProblem{Err: err}
		}
	}

	out, perr := outline.Decode(data)
	if perr != nil {
		if _, wrongCompiler := perr.(*problem.BadCompilerInPkg); wrongCompiler {
			s.manifests[key] = nil
			return nil, nil
		}
		return nil, &problem.SolverProblem{Err: perr}
	}
	pkgOutline, ok := out.(*outline.PkgOutline)
	if !ok {
		return nil, &problem.SolverProblem{Err: fmt.Errorf("%s %s is not a package", pkg, vsn)}
	}

	s.manifests[key] = pkgOutline
	return pkgOutline, nil
}
