package core

import (
	"encoding/json"
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input   string
		want    Version
		wantErr bool
	}{
		{"1.0.0", Version{1, 0, 0}, false},
		{"0.19.1", Version{0, 19, 1}, false},
		{"12.345.6", Version{12, 345, 6}, false},
		{"1.0", Version{}, true},
		{"1.0.0.0", Version{}, true},
		{"1.-1.0", Version{}, true},
		{"a.b.c", Version{}, true},
		{"", Version{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVersion(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseVersion(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		a, b Version
		want int
	}{
		{Version{1, 0, 0}, Version{1, 0, 0}, 0},
		{Version{1, 0, 0}, Version{2, 0, 0}, -1},
		{Version{2, 0, 0}, Version{1, 9, 9}, 1},
		{Version{1, 2, 0}, Version{1, 10, 0}, -1},
		{Version{1, 0, 2}, Version{1, 0, 10}, -1},
	}

	for _, tt := range tests {
		if got := tt.a.Compare(tt.b); got != tt.want {
			t.Errorf("%v.Compare(%v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestVersionJSONMapKey(t *testing.T) {
	m := map[Version]string{
		{2, 0, 1}: "b",
		{1, 0, 0}: "a",
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// encoding/json sorts text-marshaled keys, keeping output canonical.
	want := `{"1.0.0":"a","2.0.1":"b"}`
	if string(data) != want {
		t.Errorf("marshal = %s, want %s", data, want)
	}

	var back map[Version]string
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back[Version{2, 0, 1}] != "b" {
		t.Errorf("round-trip lost entry: %v", back)
	}
}
