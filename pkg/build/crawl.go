package build

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"github.com/gelm-lang/gelm/pkg/compiler"
	"github.com/gelm-lang/gelm/pkg/core"
	"github.com/gelm-lang/gelm/pkg/stuff"
)

// foreignInterface resolves one imported module name against the direct
// dependencies' public interfaces. Closed sum: specific (exactly one dep
// exports it) or ambiguous (more than one does). Names exported by no dep
// are absent from the namespace entirely.
type foreignInterface interface {
	isForeign()
}

type fSpecific struct {
	home  core.PkgName
	iface *compiler.Interface
}

type fAmbiguous struct{}

func (*fSpecific) isForeign()  {}
func (*fAmbiguous) isForeign() {}

// foreignNamespace maps every module name exported by a direct dependency
// to its resolution. Iteration over dep packages is sorted so a tie always
// resolves the same way.
func foreignNamespace(deps map[core.PkgName]*Artifacts) map[core.ModuleName]foreignInterface {
	out := make(map[core.ModuleName]foreignInterface)
	for _, pkg := range sortedArtifactKeys(deps) {
		for name, di := range deps[pkg].Ifaces {
			if !di.IsPublic() {
				continue
			}
			if _, taken := out[name]; taken {
				out[name] = &fAmbiguous{}
				continue
			}
			out[name] = &fSpecific{home: pkg, iface: di.Public}
		}
	}
	return out
}

// status is the result of crawling one module. Closed sum mirroring the
// module state machine: a crawl ends in one of these or in broken.
type status interface {
	isStatus()
}

// sLocal is a module with a source file in this package.
type sLocal struct {
	module *compiler.Module
}

// sForeign is a module this package reaches through one of its direct
// dependencies.
type sForeign struct {
	home  core.PkgName
	iface *compiler.Interface
}

// sKernelLocal is a kernel module with a host-language source file here.
type sKernelLocal struct {
	content compiler.KernelContent
}

// sKernelForeign is a kernel module defined by a dependency.
type sKernelForeign struct{}

// sBroken marks a module that cannot participate in the build: missing
// file, parse error, declared-name mismatch, ambiguous foreign reference,
// or membership in an import cycle.
type sBroken struct{}

func (*sLocal) isStatus()         {}
func (*sForeign) isStatus()       {}
func (*sKernelLocal) isStatus()   {}
func (*sKernelForeign) isStatus() {}
func (*sBroken) isStatus()        {}

// crawler walks the import graph of one package concurrently. Each module
// name is claimed exactly once in the shared status map; the claiming task
// crawls it and spawns crawls for its imports.
type crawler struct {
	env      *Env
	pkg      core.PkgName
	srcDir   string
	foreigns map[core.ModuleName]foreignInterface
	interner *core.Interner

	mu       sync.Mutex
	statuses map[core.ModuleName]status
	wg       sync.WaitGroup
}

// crawl resolves every module reachable from the roots and returns the
// final status map. Import cycles are detected afterwards over the
// completed map and demote their members to broken.
func (c *crawler) crawl(roots []core.ModuleName) map[core.ModuleName]status {
	for _, root := range roots {
		c.spawn(root)
	}
	c.wg.Wait()
	c.breakCycles()
	return c.statuses
}

// spawn claims name and crawls it on a fresh task. Names already claimed
// are skipped: first claim wins, later importers just read the result.
func (c *crawler) spawn(name core.ModuleName) {
	name = c.interner.Module(name)

	c.mu.Lock()
	if _, claimed := c.statuses[name]; claimed {
		c.mu.Unlock()
		return
	}
	c.statuses[name] = nil // claimed, in flight
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		st := c.crawlOne(name)
		c.mu.Lock()
		c.statuses[name] = st
		c.mu.Unlock()

		if local, ok := st.(*sLocal); ok {
			for _, imp := range local.module.Imports {
				c.spawn(imp)
			}
		}
	}()
}

// crawlOne determines the status of a single module.
func (c *crawler) crawlOne(name core.ModuleName) status {
	foreign := c.foreigns[name]
	if _, ambiguous := foreign.(*fAmbiguous); ambiguous {
		return &sBroken{}
	}

	path := filepath.Join(c.srcDir, name.Path()+".elm")
	src, err := afero.ReadFile(c.env.Fs, path)
	if err != nil {
		if specific, ok := foreign.(*fSpecific); ok {
			return &sForeign{home: specific.home, iface: specific.iface}
		}
		if c.pkg.IsKernel() && isKernelName(name) {
			return c.crawlKernel(name)
		}
		return &sBroken{}
	}

	module, err := c.env.Compiler.Parse(c.pkg, src)
	if err != nil {
		return &sBroken{}
	}
	if module.Name != name {
		return &sBroken{}
	}
	for i, imp := range module.Imports {
		module.Imports[i] = c.interner.Module(imp)
	}
	return &sLocal{module: module}
}

// crawlKernel loads the host-language source of a kernel module. A kernel
// name with no local file belongs to a dependency.
func (c *crawler) crawlKernel(name core.ModuleName) status {
	path := filepath.Join(c.srcDir, name.Path()+".js")
	src, err := afero.ReadFile(c.env.Fs, path)
	if err != nil {
		return &sKernelForeign{}
	}
	content := parseKernel(src)
	for _, imp := range content.Imports {
		c.spawn(imp)
	}
	return &sKernelLocal{content: content}
}

// breakCycles demotes every module on an import cycle to broken. The crawl
// itself cannot deadlock on cycles (statuses are claimed, not awaited),
// but the compile phase awaits import results, so cycles must be cut here.
// Classic three-color depth-first search over the completed status map.
func (c *crawler) breakCycles() {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // done
	)
	color := make(map[core.ModuleName]int, len(c.statuses))
	cyclic := make(map[core.ModuleName]bool)

	var visit func(name core.ModuleName) bool
	visit = func(name core.ModuleName) bool {
		switch color[name] {
		case gray:
			return true
		case black:
			return cyclic[name]
		}
		color[name] = gray
		local, ok := c.statuses[name].(*sLocal)
		onCycle := false
		if ok {
			for _, imp := range local.module.Imports {
				if visit(imp) {
					onCycle = true
				}
			}
		}
		color[name] = black
		if onCycle {
			cyclic[name] = true
		}
		return onCycle
	}

	for name := range c.statuses {
		visit(name)
	}
	for name := range cyclic {
		c.statuses[name] = &sBroken{}
	}
}

func sortedArtifactKeys(m map[core.PkgName]*Artifacts) []core.PkgName {
	out := make([]core.PkgName, 0, len(m))
	for pkg := range m {
		out = append(out, pkg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}

// newCrawler wires a crawler for one package build.
func newCrawler(env *Env, pkg core.PkgName, vsn core.Version, foreigns map[core.ModuleName]foreignInterface) *crawler {
	return &crawler{
		env:      env,
		pkg:      pkg,
		srcDir:   stuff.PackageSrc(env.Home, pkg, vsn),
		foreigns: foreigns,
		interner: core.NewInterner(),
		statuses: make(map[core.ModuleName]status),
	}
}
