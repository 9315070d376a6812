// Package registry maintains the local copy of the package version
// registry and the advisory lock guarding the package cache.
//
// # Overview
//
// The registry is the cumulative set of known (package, version) pairs,
// persisted at `<home>/registry.dat`. [Read] loads it, [Fetch] builds it
// from scratch over the network, and [Update] applies the incremental
// `/all-packages/since` feed. The engine reads the registry once per run
// (see the details driver) and solves against it.
//
// # Locking
//
// The package cache under `<home>/packages/` is exclusively owned by one
// verify run at a time. [AcquireLock] takes a registry-scoped advisory
// lock for the lifetime of the run; see [Lock].
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/gelm-lang/gelm/pkg/core"
)

// FileName is the name of the persisted registry inside the home directory.
const FileName = "registry.dat"

// KnownVersions records every released version of one package: the newest,
// plus all previous versions in descending order.
type KnownVersions struct {
	Newest   core.Version   `json:"newest"`
	Previous []core.Version `json:"previous"`
}

// All returns every known version in descending order (newest first).
func (kv KnownVersions) All() []core.Version {
	out := make([]core.Version, 0, 1+len(kv.Previous))
	out = append(out, kv.Newest)
	out = append(out, kv.Previous...)
	return out
}

// Registry is the cumulative set of known (package, version) pairs.
// Count is the total number of released versions across all packages; the
// incremental update endpoint is keyed on it.
type Registry struct {
	Count    int                            `json:"count"`
	Packages map[core.PkgName]KnownVersions `json:"packages"`
}

// Versions looks up the known versions of one package.
func (r *Registry) Versions(pkg core.PkgName) (KnownVersions, bool) {
	kv, ok := r.Packages[pkg]
	return kv, ok
}

// Latest returns the newest known version of pkg.
func (r *Registry) Latest(pkg core.PkgName) (core.Version, bool) {
	kv, ok := r.Packages[pkg]
	return kv.Newest, ok
}

// path returns the registry file location inside home.
func path(home string) string {
	return filepath.Join(home, FileName)
}

// Read loads the persisted registry from `<home>/registry.dat`. The second
// result is false when no registry has been persisted yet. Unrecognized
// file shapes are rejected as errors so callers refresh from the network.
func Read(fs afero.Fs, home string) (*Registry, bool, error) {
	data, err := afero.ReadFile(fs, path(home))
	if err != nil {
		if exists, _ := afero.Exists(fs, path(home)); !exists {
			return nil, false, nil
		}
		return nil, false, err
	}

	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, false, fmt.Errorf("corrupt registry.dat: %w", err)
	}
	if reg.Packages == nil {
		return nil, false, fmt.Errorf("corrupt registry.dat: missing packages")
	}
	return &reg, true, nil
}

// Write persists the registry to `<home>/registry.dat`. Map keys serialize
// in sorted order, so the file is byte-reproducible for a given state.
func Write(fs afero.Fs, home string, reg *Registry) error {
	data, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(home, 0o755); err != nil {
		return err
	}
	return afero.WriteFile(fs, path(home), data, 0o644)
}

// Fetch downloads the complete version listing and persists it. Used when
// no registry.dat exists yet.
func Fetch(ctx context.Context, client *Client, fs afero.Fs, home string) (*Registry, error) {
	listing, err := client.AllPackages(ctx)
	if err != nil {
		return nil, err
	}

	reg := &Registry{Packages: make(map[core.PkgName]KnownVersions, len(listing))}
	for pkg, versions := range listing {
		if len(versions) == 0 {
			continue
		}
		sorted := append([]core.Version(nil), versions...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[j].Less(sorted[i]) })
		reg.Packages[pkg] = KnownVersions{Newest: sorted[0], Previous: sorted[1:]}
		reg.Count += len(sorted)
	}

	if err := Write(fs, home, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// Update applies the incremental `/all-packages/since/<count>` feed to an
// existing registry and persists the result. New releases arrive newest
// first; a release of an unknown package introduces it.
func Update(ctx context.Context, client *Client, fs afero.Fs, home string, reg *Registry) (*Registry, error) {
	releases, err := client.Since(ctx, reg.Count)
	if err != nil {
		return nil, err
	}
	if len(releases) == 0 {
		return reg, nil
	}

	// Apply oldest first so Newest ends up correct.
	for i := len(releases) - 1; i >= 0; i-- {
		rel := releases[i]
		kv, ok := reg.Packages[rel.Pkg]
		if ok {
			kv.Previous = append([]core.Version{kv.Newest}, kv.Previous...)
			kv.Newest = rel.Version
		} else {
			kv = KnownVersions{Newest: rel.Version}
		}
		reg.Packages[rel.Pkg] = kv
		reg.Count++
	}

	if err := Write(fs, home, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// Release is one entry of the incremental feed: "author/project@1.0.0".
type Release struct {
	Pkg     core.PkgName
	Version core.Version
}

// parseRelease parses "author/project@1.0.0".
func parseRelease(s string) (Release, error) {
	name, version, ok := strings.Cut(s, "@")
	if !ok {
		return Release{}, fmt.Errorf("invalid release %q", s)
	}
	pkg, err := core.ParsePkgName(name)
	if err != nil {
		return Release{}, err
	}
	v, err := core.ParseVersion(version)
	if err != nil {
		return Release{}, err
	}
	return Release{Pkg: pkg, Version: v}, nil
}
