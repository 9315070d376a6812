package core

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PkgName identifies a published package as an (author, project) pair,
// written "author/project". Comparison is case-sensitive, author first.
type PkgName struct {
	Author  string
	Project string
}

// ParsePkgName parses "author/project". Both halves must be non-empty and
// the name must contain exactly one slash.
func ParsePkgName(s string) (PkgName, error) {
	author, project, ok := strings.Cut(s, "/")
	if !ok || author == "" || project == "" || strings.Contains(project, "/") {
		return PkgName{}, fmt.Errorf("invalid package name %q: want author/project", s)
	}
	return PkgName{Author: author, Project: project}, nil
}

// String formats the name as "author/project".
func (p PkgName) String() string { return p.Author + "/" + p.Project }

// Compare orders names by author, then project (case-sensitive).
func (p PkgName) Compare(q PkgName) int {
	if c := strings.Compare(p.Author, q.Author); c != 0 {
		return c
	}
	return strings.Compare(p.Project, q.Project)
}

// IsKernel reports whether the package author is trusted to ship kernel
// modules written in the host runtime's language.
func (p PkgName) IsKernel() bool {
	return p.Author == "elm" || p.Author == "elm-explorations"
}

// MarshalText implements encoding.TextMarshaler.
func (p PkgName) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PkgName) UnmarshalText(text []byte) error {
	parsed, err := ParsePkgName(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ModuleName is a raw dotted module path such as "Json.Decode". It names a
// module relative to whichever package it appears in; see [Canonical] for
// the globally unique form.
type ModuleName string

// ValidModuleName reports whether s is a well-formed dotted module path:
// non-empty segments, each starting with an uppercase ASCII letter.
func ValidModuleName(s string) bool {
	if s == "" {
		return false
	}
	for _, seg := range strings.Split(s, ".") {
		if seg == "" || seg[0] < 'A' || seg[0] > 'Z' {
			return false
		}
		for _, r := range seg[1:] {
			if !isIdentChar(r) {
				return false
			}
		}
	}
	return true
}

func isIdentChar(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

// Path converts the dotted module name to a relative file path without
// extension: "Json.Decode" becomes "Json/Decode".
func (m ModuleName) Path() string {
	return filepath.Join(strings.Split(string(m), ".")...)
}

// Canonical is a globally unique module name: the package that defines the
// module plus its raw name within that package.
type Canonical struct {
	Pkg    PkgName
	Module ModuleName
}

// String formats the canonical name as "author/project:Module.Name".
func (c Canonical) String() string {
	return c.Pkg.String() + ":" + string(c.Module)
}

// Compare orders canonical names by package, then module.
func (c Canonical) Compare(d Canonical) int {
	if cmp := c.Pkg.Compare(d.Pkg); cmp != 0 {
		return cmp
	}
	return strings.Compare(string(c.Module), string(d.Module))
}

// MarshalText implements encoding.TextMarshaler, so canonical names can key
// persisted JSON maps.
func (c Canonical) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Canonical) UnmarshalText(text []byte) error {
	pkg, module, ok := strings.Cut(string(text), ":")
	if !ok {
		return fmt.Errorf("invalid canonical module name %q", text)
	}
	parsed, err := ParsePkgName(pkg)
	if err != nil {
		return err
	}
	if !ValidModuleName(module) {
		return fmt.Errorf("invalid canonical module name %q", text)
	}
	*c = Canonical{Pkg: parsed, Module: ModuleName(module)}
	return nil
}
