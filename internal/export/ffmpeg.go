package export

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Encoder renders a timeline into a video file.
type Encoder interface {
	Encode(ctx context.Context, tl Timeline, outPath string) error
}

type FFmpegOptions struct {
	Path   string
	FPS    int
	Width  int
	Height int
	Logger *slog.Logger
}

// FFmpegEncoder shells out to ffmpeg: looped stills, scaled and padded to a
// fixed frame, chained through xfade, libx264 with no audio track.
type FFmpegEncoder struct {
	path   string
	fps    int
	width  int
	height int
	logger *slog.Logger
}

func NewFFmpegEncoder(opts FFmpegOptions) *FFmpegEncoder {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = "ffmpeg"
	}
	fps := opts.FPS
	if fps < 1 {
		fps = 24
	}
	width, height := opts.Width, opts.Height
	if width < 2 || height < 2 {
		width, height = 1920, 1080
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &FFmpegEncoder{
		path:   path,
		fps:    fps,
		width:  width,
		height: height,
		logger: logger.With("component", "ffmpeg"),
	}
}

// Args builds the ffmpeg command line for tl.
func (e *FFmpegEncoder) Args(tl Timeline, outPath string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "info"}
	for _, c := range tl.Clips {
		args = append(args, "-loop", "1", "-t", seconds(c.Duration), "-i", c.Path)
	}

	args = append(args,
		"-filter_complex", e.filterGraph(tl),
		"-map", "[out]",
		"-an",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(e.fps),
		"-movflags", "+faststart",
		"-f", "mp4",
		outPath,
	)
	return args
}

func (e *FFmpegEncoder) filterGraph(tl Timeline) string {
	var b strings.Builder
	for i := range tl.Clips {
		fmt.Fprintf(&b,
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d,format=yuv420p[v%d];",
			i, e.width, e.height, e.width, e.height, e.fps, i)
	}

	n := len(tl.Clips)
	switch {
	case n == 1:
		b.WriteString("[v0]null[out]")
	case tl.Transition == 0:
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "[v%d]", i)
		}
		fmt.Fprintf(&b, "concat=n=%d:v=1:a=0[out]", n)
	default:
		prev := "v0"
		for k, offset := range tl.Offsets() {
			next := fmt.Sprintf("x%d", k+1)
			if k == n-2 {
				next = "out"
			}
			fmt.Fprintf(&b, "[%s][v%d]xfade=transition=fade:duration=%s:offset=%s[%s]",
				prev, k+1, seconds(tl.Transition), seconds(offset), next)
			if next != "out" {
				b.WriteByte(';')
			}
			prev = next
		}
	}
	return b.String()
}

var progressPattern = regexp.MustCompile(`time=(\d{2}:\d{2}:\d{2}\.\d{2})`)

const stderrTailLines = 20

func (e *FFmpegEncoder) Encode(ctx context.Context, tl Timeline, outPath string) error {
	args := e.Args(tl, outPath)
	e.logger.Debug("running ffmpeg", "path", e.path, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, e.path, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	var tail []string
	eg, _ := errgroup.WithContext(ctx)
	eg.Go(func() error {
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		scanner.Split(scanCRLF)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if m := progressPattern.FindStringSubmatch(line); len(m) == 2 {
				e.logger.Debug("ffmpeg progress", "time", m[1], "total", tl.Total.String())
			}
			tail = append(tail, line)
			if len(tail) > stderrTailLines {
				tail = tail[1:]
			}
		}
		return scanner.Err()
	})

	pumpErr := eg.Wait()
	waitErr := cmd.Wait()
	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", waitErr, strings.Join(tail, " | "))
	}
	if pumpErr != nil && !errors.Is(pumpErr, io.EOF) {
		e.logger.Warn("reading ffmpeg output failed", "err", pumpErr)
	}
	return nil
}

// scanCRLF splits on \n and on the bare \r ffmpeg uses for progress lines.
func scanCRLF(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, c := range data {
		if c == '\n' || c == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
