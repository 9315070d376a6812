package details

import (
	"sort"

	"github.com/gelm-lang/gelm/pkg/build"
	"github.com/gelm-lang/gelm/pkg/compiler"
	"github.com/gelm-lang/gelm/pkg/core"
)

// gatherInterfaces merges per-dependency interfaces into the project-level
// map. Direct dependencies contribute their interfaces as-is; indirect
// dependencies are privatized so the project's own modules cannot import
// from them.
func gatherInterfaces(artifacts map[core.PkgName]*build.Artifacts, direct map[core.PkgName]bool) Interfaces {
	out := make(Interfaces)
	for pkg, arts := range artifacts {
		for name, di := range arts.Ifaces {
			key := core.Canonical{Pkg: pkg, Module: name}
			if direct[pkg] {
				out[key] = di
			} else {
				out[key] = di.Privatize()
			}
		}
	}
	return out
}

// gatherForeigns records, per importable module name, which direct
// dependencies export it. Exporters sort by package name, so the primary
// is deterministic; ambiguity is tolerated here and becomes a user error
// only when a local import resolves to it.
func gatherForeigns(artifacts map[core.PkgName]*build.Artifacts, direct map[core.PkgName]bool) map[core.ModuleName]Foreign {
	exporters := make(map[core.ModuleName][]core.PkgName)
	for pkg, arts := range artifacts {
		if !direct[pkg] {
			continue
		}
		for name, di := range arts.Ifaces {
			if di.IsPublic() {
				exporters[name] = append(exporters[name], pkg)
			}
		}
	}

	out := make(map[core.ModuleName]Foreign, len(exporters))
	for name, pkgs := range exporters {
		sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Compare(pkgs[j]) < 0 })
		f := Foreign{Primary: pkgs[0]}
		if len(pkgs) > 1 {
			f.Rest = pkgs[1:]
		}
		out[name] = f
	}
	return out
}

// gatherObjects merges every dependency's object graph into the single
// graph persisted as o.dat. Packages merge in name order so the encoded
// graph is byte-reproducible.
func gatherObjects(artifacts map[core.PkgName]*build.Artifacts) compiler.GlobalGraph {
	names := make([]core.PkgName, 0, len(artifacts))
	for pkg := range artifacts {
		names = append(names, pkg)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Compare(names[j]) < 0 })

	graph := compiler.NewGlobalGraph()
	for _, pkg := range names {
		graph.Merge(artifacts[pkg].Objects)
	}
	return graph
}
