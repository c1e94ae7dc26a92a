package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProfileFor(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"www.doordash.com", "doordash"},
		{"doordash.com", "doordash"},
		{"www.ubereats.com", "ubereats"},
		{"order.grubhub.com", "grubhub"},
		{"www.seamless.com", "grubhub"},
		{"notdoordash.com", GenericProfileID},
		{"example.org", GenericProfileID},
		{"", GenericProfileID},
	}
	for _, tt := range tests {
		if got := ProfileFor(tt.host).ID; got != tt.want {
			t.Errorf("ProfileFor(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestDefaultProfilesHavePatterns(t *testing.T) {
	ps := DefaultProfiles()
	want := []string{"doordash", "generic", "grubhub", "ubereats"}
	if got := strings.Join(ps.IDs(), ","); got != strings.Join(want, ",") {
		t.Fatalf("IDs = %s", got)
	}
	for _, id := range want {
		p, _ := ps.Get(id)
		if len(p.CardPatterns) == 0 {
			t.Errorf("profile %s has no card patterns", id)
		}
	}
}

func TestLoadProfilesValidation(t *testing.T) {
	if _, err := LoadProfiles(strings.NewReader("- hosts: [x.com]\n  card_patterns: [a]\n")); err == nil {
		t.Error("expected error for profile without id")
	}
	if _, err := LoadProfiles(strings.NewReader("- id: x\n")); err == nil {
		t.Error("expected error for profile without card patterns")
	}
	if _, err := LoadProfiles(strings.NewReader("{not: [a list")); err == nil {
		t.Error("expected decode error")
	}
}

func TestLoadProfilesFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	const extra = `- id: doordash
  hosts: [doordash.com]
  card_patterns: ['div.custom-card']
- id: localeats
  hosts: [localeats.test]
  card_patterns: ['li.restaurant']
  hints:
    price: ['.cost']
`
	if err := os.WriteFile(path, []byte(extra), 0o644); err != nil {
		t.Fatal(err)
	}
	ps, err := LoadProfilesFile(path)
	if err != nil {
		t.Fatalf("LoadProfilesFile: %v", err)
	}

	dd := ps.For("www.doordash.com")
	if len(dd.CardPatterns) != 1 || dd.CardPatterns[0] != "div.custom-card" {
		t.Errorf("doordash not overridden: %v", dd.CardPatterns)
	}
	le := ps.For("www.localeats.test")
	if le.ID != "localeats" || len(le.Hints.Price) != 1 {
		t.Errorf("localeats = %+v", le)
	}
	if _, ok := ps.Get("ubereats"); !ok {
		t.Error("built-in profiles lost after merge")
	}
	if _, err := LoadProfilesFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
