package build

import (
	"encoding/json"
	"sort"

	"github.com/spf13/afero"

	"github.com/gelm-lang/gelm/pkg/compiler"
	"github.com/gelm-lang/gelm/pkg/core"
	"github.com/gelm-lang/gelm/pkg/stuff"
)

// docsMissing implements the docs decision: a package needs docs iff its
// docs.json has not been emitted yet. Docs are computed only during the
// compile of exposed modules, so reused artifacts never regenerate them.
func docsMissing(env *Env, pkg core.PkgName, vsn core.Version) bool {
	exists, _ := afero.Exists(env.Fs, stuff.DocsPath(env.Home, pkg, vsn))
	return !exists
}

// writeDocs emits docs.json, modules in name order.
func writeDocs(env *Env, pkg core.PkgName, vsn core.Version, docs []compiler.ModuleDocs) error {
	if docs == nil {
		docs = []compiler.ModuleDocs{}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	data, err := json.Marshal(docs)
	if err != nil {
		return err
	}
	return afero.WriteFile(env.Fs, stuff.DocsPath(env.Home, pkg, vsn), data, 0o644)
}
