package build

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/gelm-lang/gelm/pkg/compiler"
	"github.com/gelm-lang/gelm/pkg/core"
)

// kernelPrefix marks module names that load through the kernel path.
const kernelPrefix = "Elm.Kernel."

// isKernelName reports whether name is a kernel module name.
func isKernelName(name core.ModuleName) bool {
	return strings.HasPrefix(string(name), kernelPrefix)
}

// kernelVarPattern matches references to compiled values inside kernel
// source: a double underscore, a module nickname, another underscore, and
// the value name ("__List_fromArray").
var kernelVarPattern = regexp.MustCompile(`__([A-Z][A-Za-z0-9]*)_([a-z][A-Za-z0-9_]*)`)

// parseKernel extracts the import header and the output chunks of a
// kernel source file.
//
// Kernel files open with a block comment listing the modules the code
// reaches back into:
//
//	/*
//	import Elm.Kernel.Utils exposing (cmp)
//	import List exposing (fromArray)
//	*/
//
// The body is split on compiled-value references so the code generator
// can splice real symbols in between raw host-language chunks.
func parseKernel(src []byte) compiler.KernelContent {
	imports := parseKernelImports(src)

	var chunks []compiler.Chunk
	rest := src
	for {
		loc := kernelVarPattern.FindIndex(rest)
		if loc == nil {
			break
		}
		if loc[0] > 0 {
			chunks = append(chunks, compiler.Chunk{JS: append([]byte(nil), rest[:loc[0]]...)})
		}
		chunks = append(chunks, compiler.Chunk{Var: string(rest[loc[0]:loc[1]])})
		rest = rest[loc[1]:]
	}
	if len(rest) > 0 {
		chunks = append(chunks, compiler.Chunk{JS: append([]byte(nil), rest...)})
	}

	return compiler.KernelContent{Chunks: chunks, Imports: imports}
}

// parseKernelImports reads `import X.Y.Z ...` lines from the leading
// block comment. Scanning stops at the comment terminator; anything after
// it is code.
func parseKernelImports(src []byte) []core.ModuleName {
	var imports []core.ModuleName
	scanner := bufio.NewScanner(bytes.NewReader(src))
	inHeader := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "/*":
			inHeader = true
		case strings.HasPrefix(line, "*/"):
			return imports
		case inHeader && strings.HasPrefix(line, "import "):
			fields := strings.Fields(line)
			if len(fields) >= 2 && core.ValidModuleName(fields[1]) {
				imports = append(imports, core.ModuleName(fields[1]))
			}
		}
	}
	return imports
}
