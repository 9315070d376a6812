// Package stuff owns the on-disk layout of build products and the
// background writer that persists them.
//
// Everything the engine writes lives either under the project's
// `elm-stuff/<compiler-version>/` directory (details, interfaces, object
// graph) or under the shared package cache `<home>/packages/` (sources,
// artifacts, docs). The path helpers here are the single source of truth
// for that layout; no other package spells these names.
package stuff

import (
	"path/filepath"

	"github.com/gelm-lang/gelm/pkg/core"
)

// stuffDir is the per-project scratch directory name.
const stuffDir = "elm-stuff"

// ProjectManifest returns `<root>/elm.json`.
func ProjectManifest(root string) string {
	return filepath.Join(root, "elm.json")
}

// Dir returns `<root>/elm-stuff/<compiler-version>`.
func Dir(root string) string {
	return filepath.Join(root, stuffDir, core.Compiler.String())
}

// DetailsPath returns the persisted details record location (d.dat).
func DetailsPath(root string) string {
	return filepath.Join(Dir(root), "d.dat")
}

// InterfacesPath returns the persisted interfaces location (i.dat).
func InterfacesPath(root string) string {
	return filepath.Join(Dir(root), "i.dat")
}

// ObjectsPath returns the persisted object graph location (o.dat).
func ObjectsPath(root string) string {
	return filepath.Join(Dir(root), "o.dat")
}

// PackageCache returns `<home>/packages`, the shared package cache root.
func PackageCache(home string) string {
	return filepath.Join(home, "packages")
}

// PackageDir returns `<home>/packages/<author>/<project>/<version>`.
func PackageDir(home string, pkg core.PkgName, vsn core.Version) string {
	return filepath.Join(PackageCache(home), pkg.Author, pkg.Project, vsn.String())
}

// PackageSrc returns the source directory of an unpacked package.
func PackageSrc(home string, pkg core.PkgName, vsn core.Version) string {
	return filepath.Join(PackageDir(home, pkg, vsn), "src")
}

// PackageManifest returns the manifest of an unpacked package.
func PackageManifest(home string, pkg core.PkgName, vsn core.Version) string {
	return filepath.Join(PackageDir(home, pkg, vsn), "elm.json")
}

// ArtifactsPath returns the fingerprint-keyed artifact cache of a package.
func ArtifactsPath(home string, pkg core.PkgName, vsn core.Version) string {
	return filepath.Join(PackageDir(home, pkg, vsn), "artifacts.json")
}

// DocsPath returns the emitted documentation of a package.
func DocsPath(home string, pkg core.PkgName, vsn core.Version) string {
	return filepath.Join(PackageDir(home, pkg, vsn), "docs.json")
}
