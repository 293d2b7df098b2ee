package countries

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"country-marbles/internal/game"
)

func TestParse(t *testing.T) {
	got, err := Parse([]byte(`{"br": "Brazil", "AR": " Argentina ", "cl": "", " ": "Nowhere"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []game.Country{
		{Code: "ar", Name: "Argentina"},
		{Code: "br", Name: "Brazil"},
		{Code: "cl", Name: "CL"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		empty bool
	}{
		{"not json", `{`, false},
		{"wrong shape", `["ar", "br"]`, false},
		{"empty object", `{}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.empty != errors.Is(err, ErrEmpty) {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "countries.json")
	if err := os.WriteFile(path, []byte(`{"ar": "Argentina", "br": "Brazil"}`), 0644); err != nil {
		t.Fatal(err)
	}

	list, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if idx := Index(list); idx["br"].Name != "Brazil" {
		t.Errorf("Index = %v", idx)
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("missing file accepted")
	}
}
