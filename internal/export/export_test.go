package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyforge/internal/storyboard"
)

type fakeEncoder struct {
	err      error
	timeline Timeline
	out      string
}

func (f *fakeEncoder) Encode(_ context.Context, tl Timeline, outPath string) error {
	f.timeline = tl
	f.out = outPath
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outPath, []byte("mp4"), 0o644)
}

func renderedPlan(t *testing.T, dir string) *storyboard.Plan {
	t.Helper()
	plan := storyboard.NewPlanner(storyboard.Options{}).Plan(
		"Trail sneaker drop; target: hikers; mood: bold; cta: 'go further'",
		"Outdoor Natural",
	)
	for _, id := range plan.PanelIDs() {
		path := filepath.Join(dir, fmt.Sprintf("panel_%d.png", id))
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 16, 9))))
		require.NoError(t, f.Close())
		plan.Panels[id].GeneratedImagePath = path
	}
	return plan
}

func TestTimelineSixPanels(t *testing.T) {
	paths := make([]string, 6)
	durations := make([]time.Duration, 6)
	for i := range paths {
		paths[i] = fmt.Sprintf("panel_%d.png", i+1)
		durations[i] = 6 * time.Second
	}

	tl, err := NewTimeline(paths, durations, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 31*time.Second, tl.Total)
	assert.Equal(t, []time.Duration{
		5 * time.Second, 10 * time.Second, 15 * time.Second, 20 * time.Second, 25 * time.Second,
	}, tl.Offsets())

	assert.False(t, tl.Clips[0].FadeIn)
	assert.True(t, tl.Clips[0].FadeOut)
	for _, c := range tl.Clips[1:5] {
		assert.True(t, c.FadeIn)
		assert.True(t, c.FadeOut)
	}
	assert.True(t, tl.Clips[5].FadeIn)
	assert.False(t, tl.Clips[5].FadeOut)
}

func TestTimelineRejectsBadInput(t *testing.T) {
	_, err := NewTimeline(nil, nil, time.Second)
	require.Error(t, err)

	_, err = NewTimeline([]string{"a"}, []time.Duration{time.Second, time.Second}, 0)
	require.Error(t, err)

	_, err = NewTimeline([]string{"a", "b"}, []time.Duration{time.Second, time.Second}, time.Second)
	require.Error(t, err)
}

func TestTimelineWithoutTransition(t *testing.T) {
	tl, err := NewTimeline([]string{"a", "b"}, []time.Duration{2 * time.Second, 3 * time.Second}, 0)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, tl.Total)
	assert.False(t, tl.Clips[0].FadeOut)
	assert.False(t, tl.Clips[1].FadeIn)
}

func TestFFmpegArgs(t *testing.T) {
	paths := []string{"p1.png", "p2.png", "p3.png"}
	durations := []time.Duration{6 * time.Second, 6 * time.Second, 6 * time.Second}
	tl, err := NewTimeline(paths, durations, time.Second)
	require.NoError(t, err)

	enc := NewFFmpegEncoder(FFmpegOptions{FPS: 24, Width: 1280, Height: 720})
	args := enc.Args(tl, "out.mp4")
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-loop 1 -t 6 -i p1.png")
	assert.Contains(t, joined, "-loop 1 -t 6 -i p3.png")
	assert.Contains(t, joined, "[v0][v1]xfade=transition=fade:duration=1:offset=5[x1]")
	assert.Contains(t, joined, "[x1][v2]xfade=transition=fade:duration=1:offset=10[out]")
	assert.Contains(t, joined, "scale=1280:720")
	assert.Contains(t, args, "-an")
	assert.Contains(t, args, "libx264")
	assert.Equal(t, "out.mp4", args[len(args)-1])
}

func TestFFmpegArgsSingleClip(t *testing.T) {
	tl, err := NewTimeline([]string{"only.png"}, []time.Duration{6 * time.Second}, time.Second)
	require.NoError(t, err)

	joined := strings.Join(NewFFmpegEncoder(FFmpegOptions{}).Args(tl, "o.mp4"), " ")
	assert.Contains(t, joined, "[v0]null[out]")
	assert.NotContains(t, joined, "xfade")
}

func TestExportWritesBothArtifacts(t *testing.T) {
	dir := t.TempDir()
	plan := renderedPlan(t, dir)
	exportsDir := filepath.Join(dir, "exports")

	enc := &fakeEncoder{}
	ex, err := New(Options{Encoder: enc, ExportsDir: exportsDir, PanelDuration: 6 * time.Second, TransitionDuration: time.Second})
	require.NoError(t, err)

	res, err := ex.Export(context.Background(), plan, Request{IncludeNarration: true, VoiceID: "default"})
	require.NoError(t, err)
	assert.Equal(t, 31*time.Second, res.Duration)
	assert.Equal(t, filepath.Join(exportsDir, VideoFilename), res.VideoPath)
	assert.Len(t, enc.timeline.Clips, 6)
	assert.Equal(t, plan.Panels[1].GeneratedImagePath, enc.timeline.Clips[0].Path)

	_, err = os.Stat(res.VideoPath)
	require.NoError(t, err)

	text, err := os.ReadFile(res.ShotListPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(text), "--- Storyforge Storyboard Shot List ---\n\n"))
	assert.Contains(t, string(text), "--- Panel 1 ---\nGoal: "+plan.Panels[1].Goal+"\nScene: ")
	assert.Less(t, strings.Index(string(text), "--- Panel 2 ---"), strings.Index(string(text), "--- Panel 6 ---"))

	entries, err := os.ReadDir(exportsDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestExportIncompletePlanWritesNothing(t *testing.T) {
	dir := t.TempDir()
	plan := renderedPlan(t, dir)
	plan.Panels[4].GeneratedImagePath = ""
	exportsDir := filepath.Join(dir, "exports")

	enc := &fakeEncoder{}
	ex, err := New(Options{Encoder: enc, ExportsDir: exportsDir})
	require.NoError(t, err)

	_, err = ex.Export(context.Background(), plan, Request{})
	require.ErrorIs(t, err, ErrIncompletePlan)
	assert.Contains(t, err.Error(), "panel 4")
	assert.Empty(t, enc.out)

	_, err = os.Stat(filepath.Join(exportsDir, VideoFilename))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(filepath.Join(exportsDir, ShotListFilename))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestExportEncoderFailureKeepsPreviousArtifacts(t *testing.T) {
	dir := t.TempDir()
	plan := renderedPlan(t, dir)
	exportsDir := filepath.Join(dir, "exports")
	require.NoError(t, os.MkdirAll(exportsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(exportsDir, ShotListFilename), []byte("old"), 0o644))

	ex, err := New(Options{Encoder: &fakeEncoder{err: errors.New("ffmpeg exploded")}, ExportsDir: exportsDir})
	require.NoError(t, err)

	_, err = ex.Export(context.Background(), plan, Request{})
	require.Error(t, err)

	old, err := os.ReadFile(filepath.Join(exportsDir, ShotListFilename))
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))

	entries, err := os.ReadDir(exportsDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestExportRejectsMissingImageFile(t *testing.T) {
	dir := t.TempDir()
	plan := renderedPlan(t, dir)
	require.NoError(t, os.Remove(plan.Panels[2].GeneratedImagePath))

	ex, err := New(Options{Encoder: &fakeEncoder{}, ExportsDir: filepath.Join(dir, "exports")})
	require.NoError(t, err)

	_, err = ex.Export(context.Background(), plan, Request{})
	require.Error(t, err)
}

func TestFFmpegEncoderRunsBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in for ffmpeg")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nfor a; do last=$a; done\necho 'frame=1 time=00:00:01.00' >&2\nprintf video > \"$last\"\n"), 0o755))

	tl, err := NewTimeline([]string{"a.png", "b.png"}, []time.Duration{2 * time.Second, 2 * time.Second}, time.Second)
	require.NoError(t, err)

	out := filepath.Join(dir, "out.mp4")
	require.NoError(t, NewFFmpegEncoder(FFmpegOptions{Path: script}).Encode(context.Background(), tl, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "video", string(data))
}

func TestFFmpegEncoderReportsStderrOnFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in for ffmpeg")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'No such filter: xfade' >&2\nexit 1\n"), 0o755))

	tl, err := NewTimeline([]string{"a.png"}, []time.Duration{2 * time.Second}, 0)
	require.NoError(t, err)

	err = NewFFmpegEncoder(FFmpegOptions{Path: script}).Encode(context.Background(), tl, filepath.Join(dir, "o.mp4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No such filter: xfade")
}
