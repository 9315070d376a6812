// Package problem defines the closed error taxonomy of the details engine.
//
// Every failure a verify run can surface is one of the variants below; the
// driver returns exactly one [Problem] per run and the CLI formats it. The
// taxonomy is a closed sum: each variant is a struct implementing the
// unexported marker method, so a switch over variants is exhaustive by
// construction. Do not add variants outside this package.
package problem

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gelm-lang/gelm/pkg/core"
)

// Problem is the closed sum of engine failures.
type Problem interface {
	error
	isProblem()
}

// BadOutline reports a malformed or structurally invalid project manifest.
type BadOutline struct {
	Reason string
}

func (p *BadOutline) isProblem() {}
func (p *BadOutline) Error() string {
	return fmt.Sprintf("invalid elm.json: %s", p.Reason)
}

// BadCompilerInApp reports an application manifest pinned to a compiler
// version other than the running one.
type BadCompilerInApp struct {
	Found core.Version
}

func (p *BadCompilerInApp) isProblem() {}
func (p *BadCompilerInApp) Error() string {
	return fmt.Sprintf("elm.json wants compiler %s, but this is compiler %s", p.Found, core.Compiler)
}

// BadCompilerInPkg reports a package manifest whose compiler constraint
// excludes the running compiler.
type BadCompilerInPkg struct {
	Found core.Constraint
}

func (p *BadCompilerInPkg) isProblem() {}
func (p *BadCompilerInPkg) Error() string {
	return fmt.Sprintf("elm.json requires compiler in %q, but this is compiler %s", p.Found, core.Compiler)
}

// CannotGetRegistry reports that the version registry is unavailable both
// on disk and over the network.
type CannotGetRegistry struct {
	Err error
}

func (p *CannotGetRegistry) isProblem()    {}
func (p *CannotGetRegistry) Unwrap() error { return p.Err }
func (p *CannotGetRegistry) Error() string {
	return fmt.Sprintf("cannot load the package registry: %v", p.Err)
}

// NoSolution reports that exhaustive search found no version assignment
// satisfying the declared constraints.
type NoSolution struct{}

func (p *NoSolution) isProblem()    {}
func (p *NoSolution) Error() string { return "no version solution satisfies the constraints" }

// NoOfflineSolution reports that a solution may exist, but would need a
// package version that is not in the local cache while offline.
type NoOfflineSolution struct{}

func (p *NoOfflineSolution) isProblem() {}
func (p *NoOfflineSolution) Error() string {
	return "no solution found with the locally cached packages (try again online)"
}

// SolverProblem wraps an internal solver failure, such as a parse error in
// a cached dependency manifest.
type SolverProblem struct {
	Err error
}

func (p *SolverProblem) isProblem()    {}
func (p *SolverProblem) Unwrap() error { return p.Err }
func (p *SolverProblem) Error() string {
	return fmt.Sprintf("the dependency solver hit an internal problem: %v", p.Err)
}

// HandEditedDependencies reports an application manifest whose dependency
// sections violate the invariants the tooling maintains (duplicate entries
// with conflicting versions, missing transitive entries, and so on).
type HandEditedDependencies struct{}

func (p *HandEditedDependencies) isProblem() {}
func (p *HandEditedDependencies) Error() string {
	return "the dependencies in elm.json appear to be hand-edited into an inconsistent state"
}

// BadDeps aggregates every per-package failure of a build fanout. Home is
// the package cache root the run was using.
type BadDeps struct {
	Home string
	Deps []BadDep
}

func (p *BadDeps) isProblem() {}
func (p *BadDeps) Error() string {
	msgs := make([]string, len(p.Deps))
	for i, d := range p.Deps {
		msgs[i] = d.Error()
	}
	return fmt.Sprintf("%d dependencies failed:\n  %s", len(p.Deps), strings.Join(msgs, "\n  "))
}

// Sort orders the aggregated failures by package then version so reports
// are deterministic across runs.
func (p *BadDeps) Sort() {
	sort.Slice(p.Deps, func(i, j int) bool {
		a, av := p.Deps[i].dep()
		b, bv := p.Deps[j].dep()
		if c := a.Compare(b); c != 0 {
			return c < 0
		}
		return av.Less(bv)
	})
}

// BadDep is one failed dependency package: either its download or its
// build went wrong. Closed sum.
type BadDep interface {
	error
	isBadDep()
	dep() (core.PkgName, core.Version)
}

// BadDownload reports a failed package download.
type BadDownload struct {
	Pkg     core.PkgName
	Version core.Version
	Err     error
}

func (d *BadDownload) isBadDep()      {}
func (d *BadDownload) Unwrap() error  { return d.Err }
func (d *BadDownload) dep() (core.PkgName, core.Version) { return d.Pkg, d.Version }
func (d *BadDownload) Error() string {
	return fmt.Sprintf("could not download %s %s: %v", d.Pkg, d.Version, d.Err)
}

// BadBuild reports a failed package build under a particular fingerprint.
type BadBuild struct {
	Pkg         core.PkgName
	Version     core.Version
	Fingerprint map[core.PkgName]core.Version
}

func (d *BadBuild) isBadDep()      {}
func (d *BadBuild) dep() (core.PkgName, core.Version) { return d.Pkg, d.Version }
func (d *BadBuild) Error() string {
	return fmt.Sprintf("could not build %s %s", d.Pkg, d.Version)
}
