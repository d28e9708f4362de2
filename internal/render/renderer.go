package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/gen2brain/webp"

	"storyforge/internal/imagegen"
	"storyforge/internal/storyboard"
)

// Generator is the external image API.
type Generator interface {
	Generate(ctx context.Context, req imagegen.Request) ([]byte, error)
}

type Options struct {
	Generator Generator
	PanelsDir string
	Logger    *slog.Logger
}

// Renderer turns one panel into panels/panel_<id>.png.
type Renderer struct {
	generator Generator
	panelsDir string
	logger    *slog.Logger
}

func New(opts Options) (*Renderer, error) {
	if opts.Generator == nil {
		return nil, errors.New("generator is nil")
	}
	if strings.TrimSpace(opts.PanelsDir) == "" {
		return nil, errors.New("panels dir is empty")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Renderer{
		generator: opts.Generator,
		panelsDir: opts.PanelsDir,
		logger:    logger.With("component", "renderer"),
	}, nil
}

// Render generates the panel image and returns the written path. A missing
// or unreadable product image downgrades the call to text-only.
func (r *Renderer) Render(ctx context.Context, panel *storyboard.Panel, productImagePath, brandColor string) (string, error) {
	if panel == nil {
		return "", errors.New("panel is nil")
	}
	r.logger.Info("rendering panel", "panel", panel.ID, "goal", panel.Goal)

	req := imagegen.Request{Prompt: BuildPrompt(panel, brandColor)}
	if productImagePath != "" {
		img, err := LoadProductImage(productImagePath)
		if err != nil {
			r.logger.Warn("product image unavailable, rendering without fusion", "path", productImagePath, "err", err)
		} else {
			req.Image = img
		}
	}

	data, err := r.generator.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("panel %d: %w", panel.ID, err)
	}

	path := r.PanelPath(panel.ID)
	if err := savePNG(data, path); err != nil {
		return "", fmt.Errorf("panel %d: %w", panel.ID, err)
	}

	r.logger.Info("panel rendered", "panel", panel.ID, "path", path)
	return path, nil
}

func (r *Renderer) PanelPath(id int) string {
	return filepath.Join(r.panelsDir, fmt.Sprintf("panel_%d.png", id))
}

// LoadProductImage reads a reference photo and sniffs its MIME type.
func LoadProductImage(path string) (*imagegen.InlineImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("product image is empty")
	}

	mimeType := http.DetectContentType(data)
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}
	return &imagegen.InlineImage{MimeType: mimeType, Data: data}, nil
}

// savePNG decodes any registered format and re-encodes it as PNG, replacing
// the destination atomically.
func savePNG(data []byte, path string) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode generated image: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create panels dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
