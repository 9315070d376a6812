package build

import (
	"context"
	"errors"
	"sort"

	"github.com/gelm-lang/gelm/pkg/cell"
	"github.com/gelm-lang/gelm/pkg/compiler"
	"github.com/gelm-lang/gelm/pkg/core"
	"github.com/gelm-lang/gelm/pkg/outline"
	"github.com/gelm-lang/gelm/pkg/stuff"
)

// dresult is the outcome of compiling one crawled module. Closed sum: the
// compile phase maps every status to one of these.
type dresult interface {
	isDResult()
}

// rLocal is a compiled in-package module.
type rLocal struct {
	iface   *compiler.Interface
	objects compiler.GlobalGraph
	docs    *compiler.ModuleDocs
}

// rForeign passes a dependency's interface through unchanged.
type rForeign struct {
	iface *compiler.Interface
}

// rKernelLocal passes loaded kernel content through unchanged.
type rKernelLocal struct {
	content compiler.KernelContent
}

// rKernelForeign marks a kernel module owned by a dependency.
type rKernelForeign struct{}

// rBroken marks a module that failed to crawl or compile.
type rBroken struct{}

func (*rLocal) isDResult()         {}
func (*rForeign) isDResult()       {}
func (*rKernelLocal) isDResult()   {}
func (*rKernelForeign) isDResult() {}
func (*rBroken) isDResult()        {}

// errBuildFailed is the internal signal that at least one module of a
// package is broken; the caller wraps it into the user-facing BadBuild.
var errBuildFailed = errors.New("package build failed")

// buildPackage runs the crawl-compile-gather pipeline for one package and
// persists its docs if they were needed. Dependencies' artifacts must
// already be complete.
func buildPackage(ctx context.Context, env *Env, pkg core.PkgName, vsn core.Version, deps map[core.PkgName]*Artifacts) (*Artifacts, error) {
	manifest, perr := outline.Read(env.Fs, stuff.PackageDir(env.Home, pkg, vsn))
	if perr != nil {
		return nil, perr
	}
	pkgOutline, ok := manifest.(*outline.PkgOutline)
	if !ok {
		return nil, errBuildFailed
	}

	foreigns := foreignNamespace(deps)

	// An exposed module that resolves ambiguously is itself a build error,
	// and the crawler marks it broken.
	c := newCrawler(env, pkg, vsn, foreigns)
	statuses := c.crawl(pkgOutline.Exposed)

	docsNeeded := docsMissing(env, pkg, vsn)
	results := compileAll(ctx, env, pkg, statuses, exposedSet(pkgOutline.Exposed), docsNeeded)

	artifacts, docs, err := gather(pkg, pkgOutline.Exposed, results)
	if err != nil {
		return nil, err
	}

	if docsNeeded {
		if err := writeDocs(env, pkg, vsn, docs); err != nil {
			return nil, err
		}
	}
	return artifacts, nil
}

// compileAll launches one compile task per crawled module. Each local task
// awaits the results of its imports through their cells; everything else
// resolves immediately. Cells guarantee the orderings, the earlier cycle
// break guarantees termination.
func compileAll(ctx context.Context, env *Env, pkg core.PkgName, statuses map[core.ModuleName]status, exposed map[core.ModuleName]bool, withDocs bool) map[core.ModuleName]dresult {
	cells := make(map[core.ModuleName]*cell.Cell[dresult], len(statuses))
	for name := range statuses {
		cells[name] = cell.New[dresult]()
	}

	for name, st := range statuses {
		go func(name core.ModuleName, st status) {
			cells[name].Write(compileOne(ctx, env, pkg, st, cells, withDocs && exposed[name]))
		}(name, st)
	}

	results := make(map[core.ModuleName]dresult, len(statuses))
	for name, c := range cells {
		res, err := c.Read(ctx)
		if err != nil {
			res = &rBroken{}
		}
		results[name] = res
	}
	return results
}

// compileOne turns one status into a result, awaiting imports as needed.
func compileOne(ctx context.Context, env *Env, pkg core.PkgName, st status, cells map[core.ModuleName]*cell.Cell[dresult], withDocs bool) dresult {
	switch s := st.(type) {
	case *sForeign:
		return &rForeign{iface: s.iface}
	case *sKernelLocal:
		return &rKernelLocal{content: s.content}
	case *sKernelForeign:
		return &rKernelForeign{}
	case *sBroken:
		return &rBroken{}
	case *sLocal:
		ifaces := make(map[core.ModuleName]*compiler.Interface, len(s.module.Imports))
		for _, imp := range s.module.Imports {
			impCell, ok := cells[imp]
			if !ok {
				return &rBroken{}
			}
			res, err := impCell.Read(ctx)
			if err != nil {
				return &rBroken{}
			}
			switch r := res.(type) {
			case *rLocal:
				ifaces[imp] = r.iface
			case *rForeign:
				ifaces[imp] = r.iface
			case *rKernelLocal, *rKernelForeign:
				// Kernel modules export no interface.
			default:
				return &rBroken{}
			}
		}

		compiled, err := env.Compiler.Compile(pkg, ifaces, s.module, withDocs)
		if err != nil {
			return &rBroken{}
		}
		return &rLocal{iface: compiled.Iface, objects: compiled.Objects, docs: compiled.Docs}
	default:
		return &rBroken{}
	}
}

// gather folds per-module results into the package's artifacts: interfaces
// keyed by raw name (public iff exposed), one merged object graph, and the
// docs of exposed modules. Any broken module fails the whole package.
func gather(pkg core.PkgName, exposed []core.ModuleName, results map[core.ModuleName]dresult) (*Artifacts, []compiler.ModuleDocs, error) {
	isExposed := exposedSet(exposed)

	ifaces := make(map[core.ModuleName]compiler.DependencyInterface)
	objects := compiler.NewGlobalGraph()
	var docs []compiler.ModuleDocs

	for _, name := range sortedModuleNames(results) {
		switch r := results[name].(type) {
		case *rBroken:
			return nil, nil, errBuildFailed
		case *rLocal:
			di := compiler.DependencyInterface{Public: r.iface}
			if !isExposed[name] {
				di = di.Privatize()
			}
			ifaces[name] = di
			objects.Merge(r.objects)
			if r.docs != nil {
				docs = append(docs, *r.docs)
			}
		case *rForeign:
			if isExposed[name] {
				ifaces[name] = compiler.DependencyInterface{Public: r.iface}
			}
		case *rKernelLocal:
			objects.Kernels[core.Canonical{Pkg: pkg, Module: name}] = r.content
		case *rKernelForeign:
			// Owned elsewhere; nothing to record.
		}
	}

	return &Artifacts{Ifaces: ifaces, Objects: objects}, docs, nil
}

func exposedSet(exposed []core.ModuleName) map[core.ModuleName]bool {
	out := make(map[core.ModuleName]bool, len(exposed))
	for _, name := range exposed {
		out[name] = true
	}
	return out
}

func sortedModuleNames(m map[core.ModuleName]dresult) []core.ModuleName {
	out := make([]core.ModuleName, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
