package storyboard

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"storyforge/internal/brief"
)

const PanelCount = 6

type PresetDetails struct {
	Lighting    string `json:"lighting"`
	Background  string `json:"background"`
	Mood        string `json:"mood"`
	Description string `json:"description"`
}

// Plan is the persisted shot plan document.
type Plan struct {
	OriginalBrief       string           `json:"original_brief"`
	SelectedStyle       string           `json:"selected_style"`
	InferredProductType string           `json:"inferred_product_type"`
	ParsedComponents    brief.Components `json:"parsed_components"`
	PresetDetails       PresetDetails    `json:"preset_details"`
	ProductImagePath    string           `json:"product_image_path,omitempty"`
	BrandColor          string           `json:"brand_color,omitempty"`
	Panels              map[int]*Panel   `json:"panels"`
}

type Panel struct {
	ID                 int      `json:"id"`
	Goal               string   `json:"goal"`
	SceneDescription   string   `json:"scene_description"`
	ConsistentElements string   `json:"consistent_elements"`
	CompositionNotes   string   `json:"composition_notes"`
	GeneratedImagePath string   `json:"generated_image_path,omitempty"`
	EditHistory        []string `json:"edit_history"`
}

// PanelIDs returns the panel ids in ascending order.
func (p *Plan) PanelIDs() []int {
	ids := make([]int, 0, len(p.Panels))
	for id := range p.Panels {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// OrderedPanels returns the panels sorted by id.
func (p *Plan) OrderedPanels() []*Panel {
	ids := p.PanelIDs()
	out := make([]*Panel, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.Panels[id])
	}
	return out
}

func (p *Plan) Panel(id int) (*Panel, bool) {
	panel, ok := p.Panels[id]
	return panel, ok && panel != nil
}

var brandColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ErrInvalidBrandColor is returned for colors that are not #RGB or #RRGGBB.
var ErrInvalidBrandColor = errors.New("brand color must be #RGB or #RRGGBB")

// NormalizeBrandColor validates a hex color and returns it upper-cased.
// An empty value is allowed and means no brand color.
func NormalizeBrandColor(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if !brandColorPattern.MatchString(value) {
		return "", fmt.Errorf("%w: %q", ErrInvalidBrandColor, value)
	}
	return strings.ToUpper(value), nil
}
