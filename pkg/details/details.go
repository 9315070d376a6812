// Package details owns the top-level persisted record of a verified
// project and the incremental driver that decides between reusing it and
// regenerating it.
//
// # The record
//
// [Details] ties together the manifest modification time it was built
// against, the validated outline, a monotonically increasing build id,
// per-module metadata for the project's own modules, the foreign-module
// map derived from direct dependencies, and - after a fresh build - the
// aggregated interfaces and object graph in memory.
//
// # Persistence
//
// `d.dat` holds the record itself, `i.dat` the aggregated interfaces,
// `o.dat` the merged object graph, all under `elm-stuff/<compiler>/`.
// Decoders reject shapes they do not recognize; the driver treats that as
// absence and regenerates, so stale formats self-heal.
package details

import (
	"encoding/json"
	"fmt"

	"github.com/gelm-lang/gelm/pkg/compiler"
	"github.com/gelm-lang/gelm/pkg/core"
	"github.com/gelm-lang/gelm/pkg/outline"
)

// Local is the persisted metadata of one in-project source module.
//
// A module must be recompiled when either its file time differs from the
// recorded Time, or any transitive import changed after this module last
// compiled; see [Local.NeedsCompile].
type Local struct {
	Path        string            `json:"path"`
	Time        int64             `json:"time"`
	Deps        []core.ModuleName `json:"deps,omitempty"`
	HasMain     bool              `json:"has-main"`
	LastChange  uint64            `json:"last-change"`
	LastCompile uint64            `json:"last-compile"`
}

// NeedsCompile applies the staleness rule given the module's current file
// time and the highest LastChange among its transitive imports.
func (l Local) NeedsCompile(currentTime int64, latestImportChange uint64) bool {
	return l.Time != currentTime || latestImportChange > l.LastCompile
}

// Foreign records which dependency packages export one importable module
// name. The primary alone defines ambiguity: a name is ambiguous iff Rest
// is non-empty, and importing an ambiguous name is a compile-time error.
type Foreign struct {
	Primary core.PkgName   `json:"primary"`
	Rest    []core.PkgName `json:"rest,omitempty"`
}

// Ambiguous reports whether more than one dependency exports the name.
func (f Foreign) Ambiguous() bool { return len(f.Rest) > 0 }

// Interfaces is the project-level interface map: every module of every
// dependency, keyed canonically, privatized for indirect dependencies.
type Interfaces map[core.Canonical]compiler.DependencyInterface

// Extras distinguishes a freshly generated record from a reloaded one.
// Closed sum: *[Cached] or *[Fresh].
type Extras interface {
	isExtras()
}

// Cached means artifacts must be re-read from disk on demand.
type Cached struct{}

// Fresh carries the aggregated build products in memory, directly after a
// rebuild.
type Fresh struct {
	Ifaces  Interfaces
	Objects compiler.GlobalGraph
}

func (*Cached) isExtras() {}
func (*Fresh) isExtras()  {}

// Details is the fully validated, persisted product of the engine.
type Details struct {
	OldTime  int64
	Outline  outline.Valid
	BuildID  uint64
	Locals   map[core.ModuleName]Local
	Foreigns map[core.ModuleName]Foreign
	Extras   Extras
}

// persistedDetails is the on-disk shape of d.dat. Extras never persists:
// a reloaded record always starts out Cached.
type persistedDetails struct {
	OldTime  int64                        `json:"old-time"`
	Outline  json.RawMessage              `json:"outline"`
	BuildID  uint64                       `json:"build-id"`
	Locals   map[core.ModuleName]Local    `json:"locals"`
	Foreigns map[core.ModuleName]Foreign  `json:"foreigns"`
}

// Encode serializes the record for d.dat. Map keys serialize sorted, so
// unchanged state always encodes to identical bytes.
func Encode(d *Details) ([]byte, error) {
	outlineData, err := outline.EncodeValid(d.Outline)
	if err != nil {
		return nil, err
	}
	return json.Marshal(persistedDetails{
		OldTime:  d.OldTime,
		Outline:  outlineData,
		BuildID:  d.BuildID,
		Locals:   d.Locals,
		Foreigns: d.Foreigns,
	})
}

// Decode restores a record written by [Encode]. The result always carries
// [Cached] extras.
func Decode(data []byte) (*Details, error) {
	var p persistedDetails
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if len(p.Outline) == 0 {
		return nil, fmt.Errorf("corrupt details: missing outline")
	}
	valid, err := outline.DecodeValid(p.Outline)
	if err != nil {
		return nil, err
	}
	locals := p.Locals
	if locals == nil {
		locals = map[core.ModuleName]Local{}
	}
	foreigns := p.Foreigns
	if foreigns == nil {
		foreigns = map[core.ModuleName]Foreign{}
	}
	return &Details{
		OldTime:  p.OldTime,
		Outline:  valid,
		BuildID:  p.BuildID,
		Locals:   locals,
		Foreigns: foreigns,
		Extras:   &Cached{},
	}, nil
}

// EncodeInterfaces serializes the aggregated interface map for i.dat.
func EncodeInterfaces(ifaces Interfaces) ([]byte, error) {
	return json.Marshal(ifaces)
}

// DecodeInterfaces restores an interface map written by
// [EncodeInterfaces].
func DecodeInterfaces(data []byte) (Interfaces, error) {
	var out Interfaces
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeObjects serializes the merged object graph for o.dat.
func EncodeObjects(graph *compiler.GlobalGraph) ([]byte, error) {
	return json.Marshal(graph)
}

// DecodeObjects restores an object graph written by [EncodeObjects].
func DecodeObjects(data []byte) (*compiler.GlobalGraph, error) {
	var out compiler.GlobalGraph
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
