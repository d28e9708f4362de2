package edit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"storyforge/internal/storyboard"
)

var ErrUnknownPanel = errors.New("panel not found in shot plan")

// Renderer renders a single panel and returns the image path.
type Renderer interface {
	Render(ctx context.Context, panel *storyboard.Panel, productImagePath, brandColor string) (string, error)
}

type Options struct {
	Renderer Renderer
	Logger   *slog.Logger
}

type Engine struct {
	renderer Renderer
	logger   *slog.Logger
}

func New(opts Options) (*Engine, error) {
	if opts.Renderer == nil {
		return nil, errors.New("renderer is nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Engine{
		renderer: opts.Renderer,
		logger:   logger.With("component", "editor"),
	}, nil
}

// BuildPrompt rewrites a panel's scene around an instruction while pinning
// its consistent elements.
func BuildPrompt(sceneDescription, instruction, consistentElements string) string {
	current := "Scene Description:\n" + sceneDescription + "\n\nConsistent Elements:\n" + consistentElements

	var b strings.Builder
	b.WriteString("Revise the following image generation prompt based on the instruction. ")
	b.WriteString("IMPORTANT: Ensure the elements listed under 'Consistent Elements' remain unchanged.\n\n")
	b.WriteString("Original Prompt:\n" + current + "\n\n")
	b.WriteString("Edit Instruction:\n" + instruction + "\n\n")
	b.WriteString("Consistent Elements (DO NOT CHANGE):\n" + consistentElements + "\n\n")
	b.WriteString("Revised Prompt (incorporating the edit while preserving consistency):")
	return b.String()
}

// Apply re-renders one panel with the instruction folded into its scene.
// The plan is mutated only after the render succeeds.
func (e *Engine) Apply(ctx context.Context, plan *storyboard.Plan, panelID int, instruction string) error {
	if plan == nil {
		return errors.New("plan is nil")
	}
	if strings.TrimSpace(instruction) == "" {
		return errors.New("edit instruction is empty")
	}

	panel, ok := plan.Panel(panelID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPanel, panelID)
	}

	e.logger.Info("editing panel", "panel", panelID, "goal", panel.Goal, "instruction", instruction)

	revised := BuildPrompt(panel.SceneDescription, instruction, panel.ConsistentElements)
	draft := *panel
	draft.SceneDescription = revised

	path, err := e.renderer.Render(ctx, &draft, plan.ProductImagePath, plan.BrandColor)
	if err != nil {
		return fmt.Errorf("render edited panel %d: %w", panelID, err)
	}

	panel.SceneDescription = revised
	panel.GeneratedImagePath = path
	panel.EditHistory = append(panel.EditHistory, instruction)

	e.logger.Info("panel edited", "panel", panelID, "edits", len(panel.EditHistory))
	return nil
}
