package parser

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// GenericProfileID names the profile used for hosts no other profile claims.
const GenericProfileID = "generic"

//go:embed profiles.yaml
var builtinProfiles []byte

// Hints are extra CSS selectors a site is known to use for each field.
// They are tried before the generic heuristics.
type Hints struct {
	Name        []string `yaml:"name"         json:"name,omitempty"`
	Price       []string `yaml:"price"        json:"price,omitempty"`
	DeliveryFee []string `yaml:"delivery_fee" json:"delivery_fee,omitempty"`
	ETA         []string `yaml:"eta"          json:"eta,omitempty"`
	Rating      []string `yaml:"rating"       json:"rating,omitempty"`
	RatingCount []string `yaml:"rating_count" json:"rating_count,omitempty"`
}

// Profile describes how cards are discovered on one delivery site.
type Profile struct {
	ID           string   `yaml:"id"            json:"id"`
	Hosts        []string `yaml:"hosts"         json:"hosts"`
	CardPatterns []string `yaml:"card_patterns" json:"card_patterns"`
	Hints        Hints    `yaml:"hints"         json:"hints"`
}

// Matches reports whether host is one of the profile's hosts or a subdomain.
func (p *Profile) Matches(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, h := range p.Hosts {
		h = strings.ToLower(h)
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// ProfileSet is an ordered collection of profiles keyed by ID.
type ProfileSet struct {
	profiles []*Profile
}

// LoadProfiles decodes a YAML list of profiles.
func LoadProfiles(r io.Reader) (*ProfileSet, error) {
	var list []*Profile
	if err := yaml.NewDecoder(r).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	for i, p := range list {
		if p.ID == "" {
			return nil, fmt.Errorf("profile %d: missing id", i)
		}
		if len(p.CardPatterns) == 0 {
			return nil, fmt.Errorf("profile %q: no card_patterns", p.ID)
		}
	}
	return &ProfileSet{profiles: list}, nil
}

// DefaultProfiles returns the built-in profiles.
func DefaultProfiles() *ProfileSet {
	ps, err := LoadProfiles(strings.NewReader(string(builtinProfiles)))
	if err != nil {
		panic(fmt.Sprintf("built-in profiles: %v", err))
	}
	return ps
}

// LoadProfilesFile reads extra profiles from path and layers them over
// the built-in set.
func LoadProfilesFile(path string) (*ProfileSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profiles file: %w", err)
	}
	defer f.Close()

	extra, err := LoadProfiles(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ps := DefaultProfiles()
	ps.Merge(extra)
	return ps, nil
}

// Merge adds the profiles of other, replacing any with the same ID.
// Added profiles take precedence in host matching.
func (ps *ProfileSet) Merge(other *ProfileSet) {
	for _, p := range other.profiles {
		ps.remove(p.ID)
	}
	ps.profiles = append(append([]*Profile{}, other.profiles...), ps.profiles...)
}

func (ps *ProfileSet) remove(id string) {
	kept := ps.profiles[:0]
	for _, p := range ps.profiles {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	ps.profiles = kept
}

// Get returns the profile with the given ID.
func (ps *ProfileSet) Get(id string) (*Profile, bool) {
	for _, p := range ps.profiles {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// For returns the profile whose hosts include host, or the generic one.
func (ps *ProfileSet) For(host string) *Profile {
	for _, p := range ps.profiles {
		if p.Matches(host) {
			return p
		}
	}
	if p, ok := ps.Get(GenericProfileID); ok {
		return p
	}
	return &Profile{ID: GenericProfileID, CardPatterns: []string{`a[href*="/store/"]`}}
}

// IDs returns the profile IDs in sorted order.
func (ps *ProfileSet) IDs() []string {
	ids := make([]string, 0, len(ps.profiles))
	for _, p := range ps.profiles {
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	return ids
}

// ProfileFor looks up the built-in profile for host.
func ProfileFor(host string) *Profile {
	return DefaultProfiles().For(host)
}
