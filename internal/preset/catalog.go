package preset

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultStyle = "Warm Lifestyle"

type Preset struct {
	Name        string `yaml:"-"`
	Description string `yaml:"description"`
	Lighting    string `yaml:"lighting"`
	Background  string `yaml:"background"`
	Mood        string `yaml:"mood"`
}

var builtin = []Preset{
	{
		Name:        "Minimal Studio",
		Description: "Clean, simple background with strong product focus.",
		Lighting:    "bright, even lighting",
		Background:  "white or light grey seamless paper",
		Mood:        "professional, minimalist",
	},
	{
		Name:        "Warm Lifestyle",
		Description: "Cozy, inviting scenes that tell a story.",
		Lighting:    "warm, soft lighting, possibly golden hour",
		Background:  "kitchen counter, living room, cozy blanket",
		Mood:        "comfortable, inviting, homely",
	},
	{
		Name:        "Outdoor Natural",
		Description: "Natural settings with outdoor lighting.",
		Lighting:    "natural daylight",
		Background:  "park, garden, patio, trail",
		Mood:        "fresh, energetic, adventurous",
	},
}

// Catalog is an ordered, case-insensitive lookup of presets by name.
type Catalog struct {
	order  []string
	byName map[string]Preset
}

func Builtin() *Catalog {
	c := &Catalog{byName: make(map[string]Preset, len(builtin))}
	for _, p := range builtin {
		c.put(p)
	}
	return c
}

type presetFile struct {
	Presets map[string]Preset `yaml:"presets"`
}

// LoadFile returns the built-in catalog overlaid with the presets declared in
// a YAML file. Entries with a known name replace the built-in; new names are
// appended in sorted order. An empty path yields the built-ins.
func LoadFile(path string) (*Catalog, error) {
	c := Builtin()
	path = strings.TrimSpace(path)
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets file: %w", err)
	}

	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse presets file: %w", err)
	}

	names := make([]string, 0, len(file.Presets))
	for name := range file.Presets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := file.Presets[name]
		p.Name = strings.TrimSpace(name)
		if p.Name == "" {
			continue
		}
		if p.Lighting == "" || p.Background == "" || p.Mood == "" {
			return nil, fmt.Errorf("preset %q: lighting, background and mood are required", p.Name)
		}
		c.put(p)
	}
	return c, nil
}

func (c *Catalog) put(p Preset) {
	key := normalize(p.Name)
	if existing, ok := c.byName[key]; ok {
		p.Name = existing.Name
	} else {
		c.order = append(c.order, p.Name)
	}
	c.byName[key] = p
}

// Lookup resolves a style name. ok is false for unknown names.
func (c *Catalog) Lookup(name string) (Preset, bool) {
	p, ok := c.byName[normalize(name)]
	return p, ok
}

// Resolve returns the named preset or the default one when the name is unknown.
func (c *Catalog) Resolve(name string) Preset {
	if p, ok := c.Lookup(name); ok {
		return p
	}
	if p, ok := c.Lookup(DefaultStyle); ok {
		return p
	}
	return c.byName[normalize(c.order[0])]
}

func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

func (c *Catalog) All() []Preset {
	out := make([]Preset, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[normalize(name)])
	}
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
