package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyforge/internal/export"
	"storyforge/internal/planstore"
	"storyforge/internal/storyboard"
)

const testBrief = "Cozy autumn t-shirt launch; target: students; mood: warm; cta: 'wear your focus'."

type fakeRenderer struct {
	t        *testing.T
	dir      string
	store    *planstore.Store
	failAt   int
	panicAt  int
	rendered []int
	products []string
	colors   []string
	// renderedBefore records how many panels the saved document already
	// had images for at the start of each call.
	renderedBefore []int
}

func (f *fakeRenderer) Render(_ context.Context, panel *storyboard.Panel, productImagePath, brandColor string) (string, error) {
	if f.store != nil {
		plan, err := f.store.Load()
		require.NoError(f.t, err)
		n := 0
		for _, p := range plan.Panels {
			if p.GeneratedImagePath != "" {
				n++
			}
		}
		f.renderedBefore = append(f.renderedBefore, n)
	}

	if panel.ID == f.panicAt {
		panic("renderer blew up")
	}
	if panel.ID == f.failAt {
		return "", errors.New("image API exhausted retries")
	}

	f.rendered = append(f.rendered, panel.ID)
	f.products = append(f.products, productImagePath)
	f.colors = append(f.colors, brandColor)

	path := filepath.Join(f.dir, fmt.Sprintf("panel_%d.png", panel.ID))
	out, err := os.Create(path)
	require.NoError(f.t, err)
	require.NoError(f.t, png.Encode(out, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	require.NoError(f.t, out.Close())
	return path, nil
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(_ context.Context, _ export.Timeline, outPath string) error {
	return os.WriteFile(outPath, []byte("mp4"), 0o644)
}

type fakePublisher struct {
	sent []string
}

func (f *fakePublisher) SendText(text string) error {
	f.sent = append(f.sent, "text:"+text)
	return nil
}

func (f *fakePublisher) SendVideo(path, _ string) error {
	f.sent = append(f.sent, "video:"+filepath.Base(path))
	return nil
}

func (f *fakePublisher) SendDocument(path, _ string) error {
	f.sent = append(f.sent, "document:"+filepath.Base(path))
	return nil
}

type fixture struct {
	dir        string
	exportsDir string
	store      *planstore.Store
	renderer   *fakeRenderer
	publisher  *fakePublisher
	orch       *Orchestrator
	product    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	panelsDir := filepath.Join(dir, "panels")
	exportsDir := filepath.Join(dir, "exports")
	require.NoError(t, os.MkdirAll(panelsDir, 0o755))

	product := filepath.Join(dir, "inputs", "shirt.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(product), 0o755))
	require.NoError(t, os.WriteFile(product, []byte("\x89PNG\r\n\x1a\n"), 0o644))

	store := planstore.New(planstore.Options{Path: filepath.Join(dir, "shot_plan.json")})
	renderer := &fakeRenderer{t: t, dir: panelsDir, store: store}

	exporter, err := export.New(export.Options{Encoder: fakeEncoder{}, ExportsDir: exportsDir})
	require.NoError(t, err)

	publisher := &fakePublisher{}
	orch, err := New(Options{
		Store:      store,
		Renderer:   renderer,
		Exporter:   exporter,
		Publisher:  publisher,
		ExportsDir: exportsDir,
	})
	require.NoError(t, err)

	return &fixture{
		dir:        dir,
		exportsDir: exportsDir,
		store:      store,
		renderer:   renderer,
		publisher:  publisher,
		orch:       orch,
		product:    product,
	}
}

func (f *fixture) generate(t *testing.T) {
	t.Helper()
	ok := f.orch.Generate(context.Background(), GenerateRequest{
		Brief:      testBrief,
		ImagePath:  f.product,
		Style:      "Warm Lifestyle",
		BrandColor: "#ff5733",
	})
	require.True(t, ok)
}

func TestGenerateRendersAllPanelsInOrder(t *testing.T) {
	f := newFixture(t)
	f.generate(t)

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, f.renderer.rendered)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, f.renderer.renderedBefore)
	for _, p := range f.renderer.products {
		assert.Equal(t, f.product, p)
	}
	assert.Equal(t, "#FF5733", f.renderer.colors[0])

	plan, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "Warm Lifestyle", plan.SelectedStyle)
	assert.Equal(t, "t-shirt", plan.InferredProductType)
	assert.Equal(t, "#FF5733", plan.BrandColor)
	assert.Equal(t, f.product, plan.ProductImagePath)
	for _, p := range plan.OrderedPanels() {
		assert.NotEmpty(t, p.GeneratedImagePath, "panel %d", p.ID)
	}
}

func TestGenerateStopsAtFailedPanelAndKeepsProgress(t *testing.T) {
	f := newFixture(t)
	f.renderer.failAt = 3

	ok := f.orch.Generate(context.Background(), GenerateRequest{Brief: testBrief, ImagePath: f.product, Style: "Warm Lifestyle"})
	require.False(t, ok)
	assert.Equal(t, []int{1, 2}, f.renderer.rendered)

	plan, err := f.store.Load()
	require.NoError(t, err)
	assert.NotEmpty(t, plan.Panels[1].GeneratedImagePath)
	assert.NotEmpty(t, plan.Panels[2].GeneratedImagePath)
	for _, id := range []int{3, 4, 5, 6} {
		assert.Empty(t, plan.Panels[id].GeneratedImagePath)
	}
}

func TestGenerateRecoversFromPanic(t *testing.T) {
	f := newFixture(t)
	f.renderer.panicAt = 1

	ok := f.orch.Generate(context.Background(), GenerateRequest{Brief: testBrief, Style: "Warm Lifestyle"})
	assert.False(t, ok)
}

func TestGenerateRejectsBadBrandColor(t *testing.T) {
	f := newFixture(t)

	ok := f.orch.Generate(context.Background(), GenerateRequest{Brief: testBrief, Style: "Warm Lifestyle", BrandColor: "orange"})
	require.False(t, ok)

	_, err := f.store.Load()
	assert.ErrorIs(t, err, planstore.ErrNotFound)
}

func TestGenerateWithMissingProductImageRendersTextOnly(t *testing.T) {
	f := newFixture(t)
	missing := filepath.Join(f.dir, "inputs", "gone.jpg")

	ok := f.orch.Generate(context.Background(), GenerateRequest{Brief: testBrief, ImagePath: missing, Style: "Minimal Studio"})
	require.True(t, ok)
	for _, p := range f.renderer.products {
		assert.Empty(t, p)
	}

	plan, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, missing, plan.ProductImagePath)
}

func TestEditKnownPanel(t *testing.T) {
	f := newFixture(t)
	f.generate(t)

	before, err := f.store.Load()
	require.NoError(t, err)

	require.True(t, f.orch.Edit(context.Background(), 2, "make it nighttime"))

	after, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"make it nighttime"}, after.Panels[2].EditHistory)
	assert.Equal(t, before.Panels[2].ConsistentElements, after.Panels[2].ConsistentElements)
	assert.NotEqual(t, before.Panels[2].SceneDescription, after.Panels[2].SceneDescription)
	assert.Equal(t, before.Panels[3], after.Panels[3])
}

func TestEditUnknownPanelLeavesDocumentUntouched(t *testing.T) {
	f := newFixture(t)
	f.generate(t)

	raw, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)

	assert.False(t, f.orch.Edit(context.Background(), 7, "make it nighttime"))

	after, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, raw, after)
}

func TestEditRenderFailureLeavesDocumentUntouched(t *testing.T) {
	f := newFixture(t)
	f.generate(t)

	raw, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)

	f.renderer.failAt = 4
	assert.False(t, f.orch.Edit(context.Background(), 4, "add rain"))

	after, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, raw, after)
}

func TestEditWithoutPlan(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.orch.Edit(context.Background(), 1, "anything"))
}

func TestExportAndPublish(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.orch.Publish(context.Background()))

	f.generate(t)
	require.True(t, f.orch.Export(context.Background(), true, "narrator"))

	_, err := os.Stat(filepath.Join(f.exportsDir, export.VideoFilename))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(f.exportsDir, export.ShotListFilename))
	require.NoError(t, err)

	require.True(t, f.orch.Publish(context.Background()))
	require.Len(t, f.publisher.sent, 3)
	assert.Contains(t, f.publisher.sent[0], "Warm Lifestyle")
	assert.Equal(t, "video:storyboard.mp4", f.publisher.sent[1])
	assert.Equal(t, "document:shot_list.txt", f.publisher.sent[2])
}

func TestExportIncompletePlanFails(t *testing.T) {
	f := newFixture(t)
	f.renderer.failAt = 4
	require.False(t, f.orch.Generate(context.Background(), GenerateRequest{Brief: testBrief, Style: "Warm Lifestyle"}))

	assert.False(t, f.orch.Export(context.Background(), false, "default"))
	_, err := os.Stat(filepath.Join(f.exportsDir, export.VideoFilename))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestPublishWithoutPublisher(t *testing.T) {
	f := newFixture(t)
	orch, err := New(Options{Store: f.store, Renderer: f.renderer, Exporter: f.orch.exporter, ExportsDir: f.exportsDir})
	require.NoError(t, err)
	assert.False(t, orch.Publish(context.Background()))
}
