package compiler

import (
	"fmt"
	"strings"

	"github.com/gelm-lang/gelm/pkg/core"
)

// Global names one top-level value in the whole build: the canonical
// module that defines it plus the value name.
type Global struct {
	Module core.Canonical
	Name   string
}

// String formats the global as "author/project:Module.Name#value".
func (g Global) String() string {
	return g.Module.String() + "#" + g.Name
}

// MarshalText implements encoding.TextMarshaler so globals can key
// persisted JSON maps.
func (g Global) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Global) UnmarshalText(text []byte) error {
	module, name, ok := strings.Cut(string(text), "#")
	if !ok || name == "" {
		return fmt.Errorf("invalid global name %q", text)
	}
	var canonical core.Canonical
	if err := canonical.UnmarshalText([]byte(module)); err != nil {
		return err
	}
	*g = Global{Module: canonical, Name: name}
	return nil
}

// Node is one compiled top-level value: its opaque compiled body plus the
// globals it references. The body's shape is fixed by the code generator's
// release; the engine only stores and merges it.
type Node struct {
	Body []byte   `json:"body"`
	Deps []Global `json:"deps,omitempty"`
}

// GlobalGraph is the union of every compiled value reachable from a set of
// modules, plus the kernel content of any kernel modules involved. The
// code generator walks it to emit output.
type GlobalGraph struct {
	Nodes   map[Global]Node                     `json:"nodes,omitempty"`
	Kernels map[core.Canonical]KernelContent    `json:"kernels,omitempty"`
}

// NewGlobalGraph creates an empty graph.
func NewGlobalGraph() GlobalGraph {
	return GlobalGraph{
		Nodes:   make(map[Global]Node),
		Kernels: make(map[core.Canonical]KernelContent),
	}
}

// Merge unions other into g. Node sets of distinct modules are disjoint,
// so collisions cannot happen between well-formed package artifacts.
func (g *GlobalGraph) Merge(other GlobalGraph) {
	if g.Nodes == nil {
		g.Nodes = make(map[Global]Node, len(other.Nodes))
	}
	for k, v := range other.Nodes {
		g.Nodes[k] = v
	}
	if len(other.Kernels) > 0 && g.Kernels == nil {
		g.Kernels = make(map[core.Canonical]KernelContent, len(other.Kernels))
	}
	for k, v := range other.Kernels {
		g.Kernels[k] = v
	}
}

// KernelContent is the loaded body of a kernel module: the host-language
// chunks to splice into generated output, plus the modules the kernel
// code reaches back into.
type KernelContent struct {
	Chunks  []Chunk           `json:"chunks,omitempty"`
	Imports []core.ModuleName `json:"imports,omitempty"`
}

// Chunk is one piece of kernel output: either raw host-language source or
// a reference to a compiled value that must be spliced in. Exactly one
// field is set.
type Chunk struct {
	JS  []byte `json:"js,omitempty"`
	Var string `json:"var,omitempty"`
}
