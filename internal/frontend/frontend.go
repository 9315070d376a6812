// Package frontend bundles the module compiler the CLI links against the
// details engine.
//
// The engine treats parsing and type checking as collaborators behind the
// [compiler.Compiler] interface. This frontend implements that interface
// with a header-level reader: enough to crawl import graphs and schedule
// builds. The interfaces it produces record only a module's `main`; the
// engine does not change when a full type checker takes its place.
package frontend

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/gelm-lang/gelm/pkg/compiler"
	"github.com/gelm-lang/gelm/pkg/core"
)

// Frontend implements [compiler.Compiler].
type Frontend struct{}

// New creates the bundled frontend.
func New() *Frontend {
	return &Frontend{}
}

// Parse reads the module header: the declaration line, the import list,
// and whether a top-level main exists.
func (f *Frontend) Parse(pkg core.PkgName, src []byte) (*compiler.Module, error) {
	var m compiler.Module

	scanner := bufio.NewScanner(bytes.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "module ") || strings.HasPrefix(line, "port module ") || strings.HasPrefix(line, "effect module "):
			name, err := declaredName(line)
			if err != nil {
				return nil, err
			}
			m.Name = name
		case strings.HasPrefix(line, "import "):
			fields := strings.Fields(line)
			if len(fields) >= 2 && core.ValidModuleName(fields[1]) {
				m.Imports = append(m.Imports, core.ModuleName(fields[1]))
			}
		case strings.HasPrefix(line, "main ") || line == "main =":
			m.HasMain = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if m.Name == "" {
		return nil, fmt.Errorf("missing module declaration")
	}
	return &m, nil
}

// declaredName pulls the module name out of a declaration line, skipping
// the `port`/`effect` qualifiers.
func declaredName(line string) (core.ModuleName, error) {
	fields := strings.Fields(line)
	for i, field := range fields {
		if field == "module" && i+1 < len(fields) {
			if !core.ValidModuleName(fields[i+1]) {
				return "", fmt.Errorf("invalid module name %q", fields[i+1])
			}
			return core.ModuleName(fields[i+1]), nil
		}
	}
	return "", fmt.Errorf("malformed module declaration %q", line)
}

// Compile produces an interface and a graph node for `main` when the module
// defines one; no other top-level values are recorded, and the imported
// interfaces are not consulted.
func (f *Frontend) Compile(pkg core.PkgName, ifaces map[core.ModuleName]*compiler.Interface, m *compiler.Module, withDocs bool) (*compiler.Compiled, error) {
	iface := &compiler.Interface{Home: pkg, Values: map[string]string{}}
	objects := compiler.NewGlobalGraph()

	canonical := core.Canonical{Pkg: pkg, Module: m.Name}
	if m.HasMain {
		iface.Values["main"] = "Program"
		objects.Nodes[compiler.Global{Module: canonical, Name: "main"}] = compiler.Node{}
	}

	compiled := &compiler.Compiled{Iface: iface, Objects: objects}
	if withDocs {
		compiled.Docs = &compiler.ModuleDocs{Name: m.Name}
	}
	return compiled, nil
}

var _ compiler.Compiler = (*Frontend)(nil)
