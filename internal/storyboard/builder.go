package storyboard

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode"

	"storyforge/internal/brief"
	"storyforge/internal/preset"
)

const aspectRatio = "16:9"

type Options struct {
	Presets *preset.Catalog
	Logger  *slog.Logger
}

// Planner turns a brief and a style into a complete six-panel plan.
type Planner struct {
	presets *preset.Catalog
	logger  *slog.Logger
}

func NewPlanner(opts Options) *Planner {
	presets := opts.Presets
	if presets == nil {
		presets = preset.Builtin()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Planner{
		presets: presets,
		logger:  logger.With("component", "planner"),
	}
}

func (p *Planner) Plan(sentence, style string) *Plan {
	components := brief.Parse(sentence)
	productType := brief.InferProductType(sentence)
	selected := p.presets.Resolve(style)

	p.logger.Info("planning storyboard",
		"style", selected.Name,
		"product_type", productType,
		"main_idea", components.MainIdea,
	)

	panels := BuildPanels(components, selected, productType)
	plan := &Plan{
		OriginalBrief:       sentence,
		SelectedStyle:       selected.Name,
		InferredProductType: productType,
		ParsedComponents:    components,
		PresetDetails: PresetDetails{
			Lighting:    selected.Lighting,
			Background:  selected.Background,
			Mood:        selected.Mood,
			Description: selected.Description,
		},
		Panels: make(map[int]*Panel, len(panels)),
	}
	for i := range panels {
		panel := panels[i]
		plan.Panels[panel.ID] = &panel
	}
	return plan
}

// ConsistentElements is the identity block shared by every panel of a plan.
func ConsistentElements(productType, mood, lighting, background string) string {
	return fmt.Sprintf(
		"%s: specific shape, color, logo visible. "+
			"Protagonist: unseen or implied presence. "+
			"Consistent visual style: %s, %s, %s. "+
			"Maintain consistent aspect ratio (%s) and camera perspective.",
		titleCase(productType), mood, lighting, background, aspectRatio,
	)
}

// BuildPanels fills the six fixed shot templates. The order is establishing,
// in use, feature close-up, lifestyle, CTA/packaging, closing brand shot.
func BuildPanels(c brief.Components, p preset.Preset, productType string) []Panel {
	mood := CombineMood(c.Mood, p.Mood)
	consistent := ConsistentElements(productType, mood, p.Lighting, p.Background)
	product := productType
	productTitle := titleCase(productType)

	panels := []Panel{
		{
			ID:   1,
			Goal: "Establish setting, mood, and introduce the product.",
			SceneDescription: fmt.Sprintf(
				"Establishing shot for a %s. Setting: %s. Lighting: %s, creating a %s atmosphere. "+
					"Product: A %s placed prominently, showing its shape and logo. "+
					"Details: Subtle elements suggesting %s context. Camera: Wide shot, %s aspect ratio.",
				c.MainIdea, p.Background, p.Lighting, mood, product, c.Target, aspectRatio),
			CompositionNotes: "Rule of thirds, product slightly off-center.",
		},
		{
			ID:   2,
			Goal: "Show the product in use within the target context.",
			SceneDescription: fmt.Sprintf(
				"Mid-shot showing the %s using the %s. Action: Holding, wearing, or interacting with the %s. "+
					"Setting: Part of the %s. Lighting: %s, emphasizing the texture and details. "+
					"Product Details: %s shape, color, and logo clearly visible. Camera: Medium shot, %s.",
				c.Target, product, product, p.Background, p.Lighting, productTitle, aspectRatio),
			CompositionNotes: "Focus on hands/product interaction, background slightly blurred.",
		},
		{
			ID:   3,
			Goal: "Highlight a key product feature.",
			SceneDescription: fmt.Sprintf(
				"Close-up shot focusing on a key feature of the %s. "+
					"Example Feature: Logo detail, fabric texture, material quality. Lighting: %s, highlighting the feature. "+
					"Product Details: Clear view of the %s's design. Setting: Continuation of %s. Camera: Close-up, %s.",
				product, p.Lighting, product, p.Background, aspectRatio),
			CompositionNotes: "Center focus on feature/detail, shallow depth of field.",
		},
		{
			ID:   4,
			Goal: "Imply social context or lifestyle benefit.",
			SceneDescription: fmt.Sprintf(
				"Wider lifestyle shot showing the %s benefiting from the %s. "+
					"Scene: %s using/wearing the %s in %s. Elements: Contextual items suggesting %s lifestyle. "+
					"Lighting: %s, creating an inviting scene. Product: %s visible and integrated naturally. "+
					"Camera: Wide/Medium shot, %s.",
				c.Target, product, c.Target, product, p.Background, c.Target, p.Lighting, product, aspectRatio),
			CompositionNotes: "Show environment and implied use, product integrated naturally.",
		},
		{
			ID:   5,
			Goal: "Present the CTA and potentially the product packaging.",
			SceneDescription: fmt.Sprintf(
				"Flat lay or angled shot of the %s, possibly next to its packaging. "+
					"Focus: Product packaging design, prominently displaying the CTA '%s'. Setting: Clean section of %s. "+
					"Lighting: %s, ensuring product and text are well-lit. Product: %s and packaging shown clearly. "+
					"Text: '%s' visible and readable. Camera: Top-down or slight angle, %s.",
				product, c.CTA, p.Background, p.Lighting, product, c.CTA, aspectRatio),
			CompositionNotes: "Clear view of packaging/CTA, product centered.",
		},
		{
			ID:   6,
			Goal: "Leave a strong final impression of the brand/product.",
			SceneDescription: fmt.Sprintf(
				"Artistic or symbolic closing shot. Idea: The %s alone, perhaps with subtle light rays or context. "+
					"Mood: Reinforce the %s feeling. Lighting: %s, creating a sense of satisfaction. "+
					"Product: Strong, clear view of the %s and its logo. Background: Simplified version of %s. "+
					"Camera: Tight composition, %s.",
				product, mood, p.Lighting, product, p.Background, aspectRatio),
			CompositionNotes: "Strong visual impact, focus on brand/product essence.",
		},
	}

	for i := range panels {
		panels[i].ConsistentElements = consistent
		panels[i].EditHistory = []string{}
	}
	return panels
}

// CombineMood joins the brief mood and the preset mood as a comma list,
// dropping empty and repeated entries.
func CombineMood(briefMood, presetMood string) string {
	seen := make(map[string]struct{})
	var out []string
	for _, source := range []string{briefMood, presetMood} {
		for _, item := range strings.Split(source, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			key := strings.ToLower(item)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, item)
		}
	}
	return strings.Join(out, ", ")
}

func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	atWordStart := true
	for _, r := range s {
		if unicode.IsLetter(r) {
			if atWordStart {
				r = unicode.ToUpper(r)
			} else {
				r = unicode.ToLower(r)
			}
			atWordStart = false
		} else {
			atWordStart = true
		}
		b.WriteRune(r)
	}
	return b.String()
}
