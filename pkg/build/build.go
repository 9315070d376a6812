package build

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/gelm-lang/gelm/pkg/cell"
	"github.com/gelm-lang/gelm/pkg/compiler"
	"github.com/gelm-lang/gelm/pkg/core"
	"github.com/gelm-lang/gelm/pkg/fetch"
	"github.com/gelm-lang/gelm/pkg/observability"
	"github.com/gelm-lang/gelm/pkg/problem"
	"github.com/gelm-lang/gelm/pkg/registry"
	"github.com/gelm-lang/gelm/pkg/solver"
	"github.com/gelm-lang/gelm/pkg/stuff"
)

// Env carries everything a build fanout needs. Client may be nil when
// offline; a missing package then fails as a download error.
type Env struct {
	Fs       afero.Fs
	Home     string
	Client   *registry.Client
	Compiler compiler.Compiler
	Logger   *log.Logger
}

func (e *Env) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

// errOffline explains a download that cannot even start: the run has no
// network client, yet the solver demanded a package that is not unpacked.
var errOffline = errors.New("package is not in the local cache and the registry is unreachable")

// depResult is what one package task publishes through its cell. A nil
// Artifacts with a nil Err means the package was skipped because one of
// its dependencies failed; the root cause carries the error.
type depResult struct {
	Artifacts *Artifacts
	Err       problem.BadDep
}

// Dependencies builds every package of the solution, reusing cached
// artifacts where fingerprints match. All packages run concurrently; each
// awaits only its own direct dependencies. On failure the returned problem
// is a [problem.BadDeps] aggregating every root cause; siblings always
// run to completion first.
func Dependencies(ctx context.Context, env *Env, solution solver.Solution) (map[core.PkgName]*Artifacts, problem.Problem) {
	cells := make(map[core.PkgName]*cell.Cell[depResult], len(solution))
	for pkg := range solution {
		cells[pkg] = cell.New[depResult]()
	}

	for pkg, details := range solution {
		go func(pkg core.PkgName, details solver.Details) {
			cells[pkg].Write(buildOne(ctx, env, solution, cells, pkg, details))
		}(pkg, details)
	}

	artifacts := make(map[core.PkgName]*Artifacts, len(solution))
	var bad []problem.BadDep
	for _, pkg := range sortedPackages(solution) {
		res, err := cells[pkg].Read(ctx)
		if err != nil {
			return nil, &problem.SolverProblem{Err: err}
		}
		if res.Err != nil {
			bad = append(bad, res.Err)
			continue
		}
		if res.Artifacts != nil {
			artifacts[pkg] = res.Artifacts
		}
	}

	if len(bad) > 0 {
		deps := &problem.BadDeps{Home: stuff.PackageCache(env.Home), Deps: bad}
		deps.Sort()
		return nil, deps
	}
	return artifacts, nil
}

// buildOne is one package task: probe the artifact cache, otherwise fetch
// and/or build.
func buildOne(ctx context.Context, env *Env, solution solver.Solution, cells map[core.PkgName]*cell.Cell[depResult], pkg core.PkgName, details solver.Details) depResult {
	fp := MakeFingerprint(solution, details.Deps)

	srcExists, _ := afero.DirExists(env.Fs, stuff.PackageSrc(env.Home, pkg, details.Version))
	if !srcExists {
		if env.Client == nil {
			err := &fetch.BadEndpointRequest{Err: errOffline}
			return depResult{Err: &problem.BadDownload{Pkg: pkg, Version: details.Version, Err: err}}
		}
		if err := fetch.Fetch(ctx, env.Fs, env.Home, env.Client, pkg, details.Version); err != nil {
			return depResult{Err: &problem.BadDownload{Pkg: pkg, Version: details.Version, Err: err}}
		}
		env.logger().Debug("fetched package", "package", pkg, "version", details.Version)
	} else if cached, ok := readArtifactCache(env.Fs, env.Home, pkg, details.Version); ok && cached.HasFingerprint(fp) {
		env.logger().Debug("reusing cached artifacts", "package", pkg, "version", details.Version)
		observability.Build().OnPackageReuse(ctx, pkg.String(), details.Version.String())
		return depResult{Artifacts: &cached.Artifacts}
	}

	// Build path: wait for the direct dependencies' artifacts.
	depArtifacts := make(map[core.PkgName]*Artifacts, len(details.Deps))
	for _, dep := range sortedDeps(details.Deps) {
		depCell, ok := cells[dep]
		if !ok {
			return depResult{}
		}
		res, err := depCell.Read(ctx)
		if err != nil {
			return depResult{}
		}
		if res.Artifacts == nil {
			// The dependency failed or was itself skipped; it carries the
			// root cause, so this package steps aside quietly.
			return depResult{}
		}
		depArtifacts[dep] = res.Artifacts
	}

	env.logger().Debug("building package", "package", pkg, "version", details.Version)
	observability.Build().OnPackageStart(ctx, pkg.String(), details.Version.String())
	start := time.Now()
	artifacts, buildErr := buildPackage(ctx, env, pkg, details.Version, depArtifacts)
	observability.Build().OnPackageComplete(ctx, pkg.String(), details.Version.String(), time.Since(start), buildErr)
	if buildErr != nil {
		return depResult{Err: &problem.BadBuild{Pkg: pkg, Version: details.Version, Fingerprint: fp}}
	}

	cache, ok := readArtifactCache(env.Fs, env.Home, pkg, details.Version)
	if !ok {
		cache = &ArtifactCache{Artifacts: *artifacts}
	} else {
		cache.Artifacts = *artifacts
	}
	cache.AddFingerprint(fp)
	if err := writeArtifactCache(env.Fs, env.Home, pkg, details.Version, cache); err != nil {
		return depResult{Err: &problem.BadBuild{Pkg: pkg, Version: details.Version, Fingerprint: fp}}
	}

	return depResult{Artifacts: artifacts}
}

func sortedPackages(solution solver.Solution) []core.PkgName {
	out := make([]core.PkgName, 0, len(solution))
	for pkg := range solution {
		out = append(out, pkg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}

func sortedDeps(deps map[core.PkgName]core.Constraint) []core.PkgName {
	out := make([]core.PkgName, 0, len(deps))
	for pkg := range deps {
		out = append(out, pkg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}
