package compiler

import (
	"github.com/gelm-lang/gelm/pkg/core"
)

// Module is a parsed source module, as returned by [Compiler.Parse]. The
// engine only needs the declared name (to verify it matches the file
// path), the import list (to schedule compilation), and whether the module
// defines a main value.
type Module struct {
	Name    core.ModuleName
	Imports []core.ModuleName
	HasMain bool
}

// Compiled is the result of compiling one module: its interface, the
// compiled bodies of its top-level values as a graph fragment, and the
// extracted documentation when the build asked for it.
type Compiled struct {
	Iface   *Interface
	Objects GlobalGraph
	Docs    *ModuleDocs
}

// ModuleDocs is the documentation of one exposed module, emitted into a
// package's docs.json.
type ModuleDocs struct {
	Name    core.ModuleName   `json:"name"`
	Comment string            `json:"comment"`
	Values  map[string]string `json:"values,omitempty"`
}

// Compiler is the external module compiler the engine drives. Parse is a
// pure function over source bytes; Compile type-checks and canonicalizes a
// parsed module against the interfaces of its imports.
//
// Implementations must be safe for concurrent use: the builder compiles
// independent modules in parallel.
type Compiler interface {
	// Parse reads a source module. Errors are user problems (syntax
	// errors); the build marks the module broken and carries on.
	Parse(pkg core.PkgName, src []byte) (*Module, error)

	// Compile type-checks m given the interfaces of every module it
	// imports, keyed by raw import name. withDocs asks for extracted
	// documentation (only requested for exposed modules of packages
	// missing their docs.json).
	Compile(pkg core.PkgName, ifaces map[core.ModuleName]*Interface, m *Module, withDocs bool) (*Compiled, error)
}
