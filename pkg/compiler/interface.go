// Package compiler defines the data exchanged with the module compiler:
// compiled interfaces, object graphs, kernel content, and the collaborator
// interface the build engine drives.
//
// The engine never parses or type-checks source itself. It hands module
// bytes to [Compiler.Parse], feeds parsed modules and their imported
// interfaces to [Compiler.Compile], and persists what comes back. The
// types here are the persistence contract: they all carry canonical JSON
// encodings with deterministic key order.
package compiler

import (
	"github.com/gelm-lang/gelm/pkg/core"
)

// Interface is the compiled API of one module: its exported values, union
// types, type aliases, and infix operators, all with canonical types.
type Interface struct {
	Home    core.PkgName      `json:"home"`
	Values  map[string]string `json:"values,omitempty"`
	Unions  map[string]Union  `json:"unions,omitempty"`
	Aliases map[string]Alias  `json:"aliases,omitempty"`
	Binops  map[string]Binop  `json:"binops,omitempty"`
}

// Union is an exported union type: its type variables and constructors.
// Constructors map constructor names to their argument types in canonical
// form; an opaque type exports no constructors.
type Union struct {
	Vars  []string            `json:"vars,omitempty"`
	Ctors map[string][]string `json:"ctors,omitempty"`
}

// Alias is an exported type alias.
type Alias struct {
	Vars []string `json:"vars,omitempty"`
	Type string   `json:"type"`
}

// Binop is an exported infix operator: the function it names, its
// canonical type, and its parse behavior.
type Binop struct {
	Func          string `json:"func"`
	Annotation    string `json:"annotation"`
	Associativity string `json:"associativity"`
	Precedence    int    `json:"precedence"`
}

// PrivateInterface is the type-only residue of a privatized interface:
// enough for the type checker to name the types flowing out of an
// indirect dependency, without re-exposing any values.
type PrivateInterface struct {
	Home    core.PkgName     `json:"home"`
	Unions  map[string]Union `json:"unions,omitempty"`
	Aliases map[string]Alias `json:"aliases,omitempty"`
}

// DependencyInterface is a tagged union: exactly one of Public or Private
// is set. Public interfaces come from modules a package exposes and may be
// imported downstream; private interfaces exist only so compilation inside
// the owning scope can see the types.
type DependencyInterface struct {
	Public  *Interface        `json:"public,omitempty"`
	Private *PrivateInterface `json:"private,omitempty"`
}

// IsPublic reports whether the interface may be imported downstream.
func (d DependencyInterface) IsPublic() bool { return d.Public != nil }

// Privatize demotes a public interface to its type-only residue. Already
// private interfaces pass through unchanged.
func (d DependencyInterface) Privatize() DependencyInterface {
	if d.Public == nil {
		return d
	}
	return DependencyInterface{
		Private: &PrivateInterface{
			Home:    d.Public.Home,
			Unions:  d.Public.Unions,
			Aliases: d.Public.Aliases,
		},
	}
}
