package solver

import (
	"context"

	"github.com/gelm-lang/gelm/pkg/core"
	"github.com/gelm-lang/gelm/pkg/outline"
	"github.com/gelm-lang/gelm/pkg/problem"
)

// AddToApp solves an application outline. Application manifests pin exact
// versions, so the solve both confirms the pins are mutually consistent
// and pulls in the constraints of every pinned version.
//
// The tooling maintains several invariants over the four dependency
// sections; any violation means the manifest was edited by hand into an
// inconsistent state and surfaces as [problem.HandEditedDependencies]:
//
//   - direct and test-direct may only repeat a package at the same version
//   - indirect and test-direct never overlap
//   - direct and test-indirect never overlap
//   - the solved set has as many packages as the declared set (only the
//     sizes are compared)
func AddToApp(ctx context.Context, env *Env, app *outline.AppOutline) (Solution, error) {
	if overlaps(app.Indirect, app.TestDirect) || overlaps(app.Direct, app.TestIndirect) {
		return nil, &problem.HandEditedDependencies{}
	}

	roots, ok := allowEqualDups(app.Direct, app.TestDirect)
	if !ok {
		return nil, &problem.HandEditedDependencies{}
	}

	cons := make(map[core.PkgName]core.Constraint, len(roots))
	for pkg, vsn := range roots {
		cons[pkg] = core.Exactly(vsn)
	}

	solution, err := Solve(ctx, env, cons)
	if err != nil {
		return nil, err
	}

	declared := declaredSet(app)
	if len(solution) != len(declared) {
		return nil, &problem.HandEditedDependencies{}
	}
	return solution, nil
}

// AddToPkg solves a package outline. Package manifests declare ranges;
// the same package may not appear in both dependencies and
// test-dependencies at all.
func AddToPkg(ctx context.Context, env *Env, pkg *outline.PkgOutline) (Solution, error) {
	cons, ok := noDups(pkg.Deps, pkg.TestDeps)
	if !ok {
		return nil, &problem.BadOutline{Reason: "a package appears in both dependencies and test-dependencies"}
	}
	return Solve(ctx, env, cons)
}

// allowEqualDups merges two exact-version maps, permitting a package in
// both only when the pinned versions agree.
func allowEqualDups(a, b map[core.PkgName]core.Version) (map[core.PkgName]core.Version, bool) {
	out := make(map[core.PkgName]core.Version, len(a)+len(b))
	for pkg, vsn := range a {
		out[pkg] = vsn
	}
	for pkg, vsn := range b {
		if existing, ok := out[pkg]; ok && existing != vsn {
			return nil, false
		}
		out[pkg] = vsn
	}
	return out, true
}

// noDups merges two constraint maps, rejecting any shared key.
func noDups(a, b map[core.PkgName]core.Constraint) (map[core.PkgName]core.Constraint, bool) {
	out := make(map[core.PkgName]core.Constraint, len(a)+len(b))
	for pkg, c := range a {
		out[pkg] = c
	}
	for pkg, c := range b {
		if _, ok := out[pkg]; ok {
			return nil, false
		}
		out[pkg] = c
	}
	return out, true
}

func overlaps(a, b map[core.PkgName]core.Version) bool {
	for pkg := range a {
		if _, ok := b[pkg]; ok {
			return true
		}
	}
	return false
}

func declaredSet(app *outline.AppOutline) map[core.PkgName]bool {
	out := make(map[core.PkgName]bool)
	for _, section := range []map[core.PkgName]core.Version{
		app.Direct, app.Indirect, app.TestDirect, app.TestIndirect,
	} {
		for pkg := range section {
			out[pkg] = true
		}
	}
	return out
}
