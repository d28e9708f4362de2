package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"storyforge/internal/edit"
	"storyforge/internal/export"
	"storyforge/internal/imagegen"
	"storyforge/internal/planstore"
	"storyforge/internal/storyboard"
)

type PlanStore interface {
	Load() (*storyboard.Plan, error)
	Save(plan *storyboard.Plan) error
}

type Renderer interface {
	Render(ctx context.Context, panel *storyboard.Panel, productImagePath, brandColor string) (string, error)
}

type Exporter interface {
	Export(ctx context.Context, plan *storyboard.Plan, req export.Request) (export.Result, error)
}

type Publisher interface {
	SendText(text string) error
	SendVideo(path, caption string) error
	SendDocument(path, caption string) error
}

type Options struct {
	Planner  *storyboard.Planner
	Store    PlanStore
	Renderer Renderer
	Exporter Exporter

	// Publisher is optional; Publish fails without it.
	Publisher  Publisher
	ExportsDir string

	Logger *slog.Logger
}

// Orchestrator sequences the components. Every operation reloads state from
// the plan document and reports a plain success flag.
type Orchestrator struct {
	planner    *storyboard.Planner
	store      PlanStore
	renderer   Renderer
	editor     *edit.Engine
	exporter   Exporter
	publisher  Publisher
	exportsDir string
	logger     *slog.Logger
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, errors.New("plan store is nil")
	}
	if opts.Renderer == nil {
		return nil, errors.New("renderer is nil")
	}
	if opts.Exporter == nil {
		return nil, errors.New("exporter is nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	planner := opts.Planner
	if planner == nil {
		planner = storyboard.NewPlanner(storyboard.Options{Logger: logger})
	}

	editor, err := edit.New(edit.Options{Renderer: opts.Renderer, Logger: logger})
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		planner:    planner,
		store:      opts.Store,
		renderer:   opts.Renderer,
		editor:     editor,
		exporter:   opts.Exporter,
		publisher:  opts.Publisher,
		exportsDir: opts.ExportsDir,
		logger:     logger.With("component", "orchestrator"),
	}, nil
}

type GenerateRequest struct {
	Brief      string
	ImagePath  string
	Style      string
	BrandColor string
}

// Generate builds a fresh plan and renders all panels in id order, saving the
// document after each one.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) bool {
	return o.run("generate", func() error {
		o.logger.Info("generate requested",
			"brief", req.Brief,
			"image", req.ImagePath,
			"style", req.Style,
			"color", req.BrandColor,
		)

		if strings.TrimSpace(req.Brief) == "" {
			return errors.New("brief is empty")
		}
		color, err := storyboard.NormalizeBrandColor(req.BrandColor)
		if err != nil {
			return err
		}

		o.logger.Info("stage 1: planning")
		plan := o.planner.Plan(req.Brief, req.Style)
		plan.ProductImagePath = req.ImagePath
		plan.BrandColor = color
		if err := o.store.Save(plan); err != nil {
			return fmt.Errorf("save initial plan: %w", err)
		}

		o.logger.Info("stage 2: rendering panels")
		plan, err = o.store.Load()
		if err != nil {
			return fmt.Errorf("reload plan: %w", err)
		}

		productImage := plan.ProductImagePath
		if productImage != "" && !fileExists(productImage) {
			o.logger.Warn("product image missing, rendering without fusion", "path", productImage)
			productImage = ""
		}

		for _, panel := range plan.OrderedPanels() {
			if err := ctx.Err(); err != nil {
				return err
			}
			o.logger.Info("generating panel", "panel", panel.ID)
			path, err := o.renderer.Render(ctx, panel, productImage, plan.BrandColor)
			if err != nil {
				return err
			}
			panel.GeneratedImagePath = path
			if err := o.store.Save(plan); err != nil {
				return fmt.Errorf("save plan after panel %d: %w", panel.ID, err)
			}
		}

		o.logger.Info("storyboard generated", "panels", len(plan.Panels))
		return nil
	})
}

// Edit applies one instruction to one panel. The document is written only
// when the edit succeeded.
func (o *Orchestrator) Edit(ctx context.Context, panelID int, instruction string) bool {
	return o.run("edit", func() error {
		o.logger.Info("edit requested", "panel", panelID, "instruction", instruction)

		plan, err := o.store.Load()
		if err != nil {
			return fmt.Errorf("load plan: %w", err)
		}
		if err := o.editor.Apply(ctx, plan, panelID, instruction); err != nil {
			return err
		}
		if err := o.store.Save(plan); err != nil {
			return fmt.Errorf("save plan: %w", err)
		}

		o.logger.Info("panel updated", "panel", panelID)
		return nil
	})
}

// Export writes the slideshow and shot list. Narration is accepted and
// passed through; no audio is produced.
func (o *Orchestrator) Export(ctx context.Context, includeNarration bool, voiceID string) bool {
	return o.run("export", func() error {
		o.logger.Info("export requested", "narration", includeNarration, "voice_id", voiceID)

		plan, err := o.store.Load()
		if err != nil {
			return fmt.Errorf("load plan: %w", err)
		}

		res, err := o.exporter.Export(ctx, plan, export.Request{IncludeNarration: includeNarration, VoiceID: voiceID})
		if err != nil {
			return err
		}

		o.logger.Info("export finished", "video", res.VideoPath, "shot_list", res.ShotListPath, "duration", res.Duration.String())
		return nil
	})
}

// Publish posts the exported artifacts through the configured publisher.
func (o *Orchestrator) Publish(ctx context.Context) bool {
	return o.run("publish", func() error {
		if o.publisher == nil {
			return errors.New("publisher is not configured")
		}

		videoPath := filepath.Join(o.exportsDir, export.VideoFilename)
		shotListPath := filepath.Join(o.exportsDir, export.ShotListFilename)
		for _, p := range []string{videoPath, shotListPath} {
			if !fileExists(p) {
				return fmt.Errorf("missing export %s: run export first", p)
			}
		}

		caption := "Storyboard"
		if plan, err := o.store.Load(); err == nil {
			caption = fmt.Sprintf("Storyboard: %s (%s)", plan.OriginalBrief, plan.SelectedStyle)
		} else {
			o.logger.Warn("plan unavailable for caption", "err", err)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.publisher.SendText(caption); err != nil {
			return err
		}
		if err := o.publisher.SendVideo(videoPath, "Storyboard video"); err != nil {
			return err
		}
		if err := o.publisher.SendDocument(shotListPath, "Shot list"); err != nil {
			return err
		}

		o.logger.Info("storyboard published")
		return nil
	})
}

var expected = []error{
	planstore.ErrNotFound,
	planstore.ErrInvalid,
	edit.ErrUnknownPanel,
	export.ErrIncompletePlan,
	imagegen.ErrStatus,
	imagegen.ErrNoImage,
	storyboard.ErrInvalidBrandColor,
	context.Canceled,
	context.DeadlineExceeded,
}

// run converts errors and panics from fn into false. Unclassified failures
// are logged with a stack trace.
func (o *Orchestrator) run(op string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("operation panicked", "op", op, "panic", r, "stack", string(debug.Stack()))
			ok = false
		}
	}()

	err := fn()
	if err == nil {
		return true
	}

	for _, target := range expected {
		if errors.Is(err, target) {
			o.logger.Error("operation failed", "op", op, "err", err)
			return false
		}
	}
	o.logger.Error("operation failed", "op", op, "err", err, "stack", string(debug.Stack()))
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
