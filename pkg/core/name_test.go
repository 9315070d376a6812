package core

import "testing"

func TestParsePkgName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"elm/core", false},
		{"elm-explorations/test", false},
		{"noslash", true},
		{"too/many/slashes", true},
		{"/project", true},
		{"author/", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePkgName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePkgName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && p.String() != tt.input {
				t.Errorf("round-trip = %q, want %q", p.String(), tt.input)
			}
		})
	}
}

func TestPkgNameIsKernel(t *testing.T) {
	kernel, _ := ParsePkgName("elm/core")
	if !kernel.IsKernel() {
		t.Error("elm/core should be a kernel package")
	}
	exploration, _ := ParsePkgName("elm-explorations/webgl")
	if !exploration.IsKernel() {
		t.Error("elm-explorations/webgl should be a kernel package")
	}
	user, _ := ParsePkgName("someone/core")
	if user.IsKernel() {
		t.Error("someone/core should not be a kernel package")
	}
}

func TestValidModuleName(t *testing.T) {
	valid := []string{"Main", "Json.Decode", "Elm.Kernel.Utils", "A1.B_c"}
	for _, s := range valid {
		if !ValidModuleName(s) {
			t.Errorf("ValidModuleName(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "lower.Case", "Json..Decode", "Trailing.", "Has Space"}
	for _, s := range invalid {
		if ValidModuleName(s) {
			t.Errorf("ValidModuleName(%q) = true, want false", s)
		}
	}
}

func TestModuleNamePath(t *testing.T) {
	if got := ModuleName("Json.Decode").Path(); got != "Json/Decode" {
		t.Errorf("Path() = %q, want Json/Decode", got)
	}
}

func TestCanonicalText(t *testing.T) {
	c := Canonical{Pkg: PkgName{"elm", "core"}, Module: "List"}
	text, err := c.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(text) != "elm/core:List" {
		t.Errorf("marshal = %q", text)
	}

	var back Canonical
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != c {
		t.Errorf("round-trip = %v, want %v", back, c)
	}
}

func TestInterner(t *testing.T) {
	in := NewInterner()
	a := in.Intern("Json.Decode")
	b := in.Intern("Json" + ".Decode")
	if a != b {
		t.Error("interned strings should be equal")
	}
}
