package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"storyforge/internal/storyboard"
)

const (
	VideoFilename    = "storyboard.mp4"
	ShotListFilename = "shot_list.txt"
)

var ErrIncompletePlan = errors.New("shot plan has panels without a rendered image")

type Options struct {
	Encoder            Encoder
	ExportsDir         string
	PanelDuration      time.Duration
	TransitionDuration time.Duration
	Logger             *slog.Logger
}

type Request struct {
	IncludeNarration bool
	VoiceID          string
}

type Result struct {
	VideoPath    string
	ShotListPath string
	Duration     time.Duration
}

type Exporter struct {
	encoder    Encoder
	exportsDir string
	panel      time.Duration
	transition time.Duration
	logger     *slog.Logger
}

func New(opts Options) (*Exporter, error) {
	if opts.Encoder == nil {
		return nil, errors.New("encoder is nil")
	}
	if strings.TrimSpace(opts.ExportsDir) == "" {
		return nil, errors.New("exports dir is empty")
	}

	panel := opts.PanelDuration
	if panel <= 0 {
		panel = 6 * time.Second
	}
	transition := opts.TransitionDuration
	if transition < 0 {
		transition = 0
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Exporter{
		encoder:    opts.Encoder,
		exportsDir: opts.ExportsDir,
		panel:      panel,
		transition: transition,
		logger:     logger.With("component", "exporter"),
	}, nil
}

// Export writes the slideshow and the shot list. Both land under their final
// names only when both were produced.
func (e *Exporter) Export(ctx context.Context, plan *storyboard.Plan, req Request) (Result, error) {
	if plan == nil {
		return Result{}, errors.New("plan is nil")
	}

	if req.IncludeNarration {
		e.logger.Warn("narration requested but no voice pipeline is configured; exporting without audio", "voice_id", req.VoiceID)
	}

	panels := plan.OrderedPanels()
	if len(panels) == 0 {
		return Result{}, fmt.Errorf("%w: no panels", ErrIncompletePlan)
	}

	paths := make([]string, 0, len(panels))
	durations := make([]time.Duration, 0, len(panels))
	for _, p := range panels {
		if strings.TrimSpace(p.GeneratedImagePath) == "" {
			return Result{}, fmt.Errorf("%w: panel %d", ErrIncompletePlan, p.ID)
		}
		paths = append(paths, p.GeneratedImagePath)
		durations = append(durations, e.panel)
	}

	if err := checkImages(ctx, paths); err != nil {
		return Result{}, err
	}

	tl, err := NewTimeline(paths, durations, e.transition)
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(e.exportsDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create exports dir: %w", err)
	}

	videoPath := filepath.Join(e.exportsDir, VideoFilename)
	shotListPath := filepath.Join(e.exportsDir, ShotListFilename)
	videoTmp := videoPath + ".tmp"
	shotListTmp := shotListPath + ".tmp"
	defer os.Remove(videoTmp)
	defer os.Remove(shotListTmp)

	e.logger.Info("encoding slideshow", "clips", len(tl.Clips), "duration", tl.Total.String())
	if err := e.encoder.Encode(ctx, tl, videoTmp); err != nil {
		return Result{}, fmt.Errorf("encode video: %w", err)
	}

	if err := os.WriteFile(shotListTmp, []byte(ShotList(plan)), 0o644); err != nil {
		return Result{}, fmt.Errorf("write shot list: %w", err)
	}

	if err := os.Rename(videoTmp, videoPath); err != nil {
		return Result{}, fmt.Errorf("replace %s: %w", videoPath, err)
	}
	if err := os.Rename(shotListTmp, shotListPath); err != nil {
		return Result{}, fmt.Errorf("replace %s: %w", shotListPath, err)
	}

	e.logger.Info("export complete", "video", videoPath, "shot_list", shotListPath)
	return Result{VideoPath: videoPath, ShotListPath: shotListPath, Duration: tl.Total}, nil
}

// checkImages confirms every rendered panel is a readable image before
// ffmpeg gets involved.
func checkImages(ctx context.Context, paths []string) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for _, path := range paths {
		path := path
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("panel image: %w", err)
			}
			defer f.Close()
			if _, _, err := image.DecodeConfig(f); err != nil {
				return fmt.Errorf("panel image %s: %w", path, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

// ShotList renders the plain-text companion of the video.
func ShotList(plan *storyboard.Plan) string {
	var b strings.Builder
	b.WriteString("--- Storyforge Storyboard Shot List ---\n\n")
	if plan.OriginalBrief != "" {
		b.WriteString("Brief: " + plan.OriginalBrief + "\n")
	}
	if plan.SelectedStyle != "" {
		b.WriteString("Style: " + plan.SelectedStyle + "\n")
	}
	if plan.OriginalBrief != "" || plan.SelectedStyle != "" {
		b.WriteString("\n")
	}

	for _, p := range plan.OrderedPanels() {
		fmt.Fprintf(&b, "--- Panel %d ---\n", p.ID)
		b.WriteString("Goal: " + orNA(p.Goal) + "\n")
		b.WriteString("Scene: " + orNA(p.SceneDescription) + "\n")
		b.WriteString("\n")
	}
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
