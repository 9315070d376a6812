package outline

import (
	"encoding/json"
	"fmt"

	"github.com/gelm-lang/gelm/pkg/core"
)

// Valid is the typed, validated outline persisted inside the details
// record: either *[ValidApp] or *[ValidPkg]. Closed sum.
type Valid interface {
	isValid()
}

// ValidApp retains only what the build needs from an application manifest:
// where to look for source files.
type ValidApp struct {
	SrcDirs []string `json:"source-directories"`
}

func (*ValidApp) isValid() {}

// ValidPkg retains the package identity, its exposed modules, and the exact
// versions the solver picked for its dependencies. ExactDeps is kept for
// documentation tooling only; builds consult the solution, not this map.
type ValidPkg struct {
	Name      core.PkgName                  `json:"name"`
	Exposed   []core.ModuleName             `json:"exposed-modules"`
	ExactDeps map[core.PkgName]core.Version `json:"exact-dependencies"`
}

func (*ValidPkg) isValid() {}

// validEnvelope tags the persisted form so decoding can restore the
// concrete variant.
type validEnvelope struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

// EncodeValid serializes a [Valid] outline with its variant tag.
func EncodeValid(v Valid) ([]byte, error) {
	var tag string
	switch v.(type) {
	case *ValidApp:
		tag = "app"
	case *ValidPkg:
		tag = "pkg"
	default:
		return nil, fmt.Errorf("unknown valid outline variant %T", v)
	}
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(validEnvelope{Type: tag, Body: body})
}

// DecodeValid restores a [Valid] outline written by [EncodeValid],
// rejecting unrecognized tags so stale formats force regeneration.
func DecodeValid(data []byte) (Valid, error) {
	var env validEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case "app":
		var app ValidApp
		if err := json.Unmarshal(env.Body, &app); err != nil {
			return nil, err
		}
		return &app, nil
	case "pkg":
		var pkg ValidPkg
		if err := json.Unmarshal(env.Body, &pkg); err != nil {
			return nil, err
		}
		return &pkg, nil
	default:
		return nil, fmt.Errorf("unknown valid outline variant %q", env.Type)
	}
}
