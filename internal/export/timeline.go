package export

import (
	"errors"
	"fmt"
	"time"
)

// Clip is one still image placed on the output timeline.
type Clip struct {
	Path     string
	Start    time.Duration
	Duration time.Duration
	FadeIn   bool
	FadeOut  bool
}

// Timeline lays clips end to end with each adjacent pair overlapping by
// Transition. The first clip only fades out and the last only fades in.
type Timeline struct {
	Clips      []Clip
	Transition time.Duration
	Total      time.Duration
}

func NewTimeline(paths []string, durations []time.Duration, transition time.Duration) (Timeline, error) {
	if len(paths) == 0 {
		return Timeline{}, errors.New("timeline needs at least one clip")
	}
	if len(paths) != len(durations) {
		return Timeline{}, fmt.Errorf("timeline has %d paths but %d durations", len(paths), len(durations))
	}
	if transition < 0 {
		return Timeline{}, errors.New("transition must not be negative")
	}

	tl := Timeline{
		Clips:      make([]Clip, len(paths)),
		Transition: transition,
	}

	var start time.Duration
	last := len(paths) - 1
	for i, path := range paths {
		d := durations[i]
		if d <= transition {
			return Timeline{}, fmt.Errorf("clip %d lasts %s, not longer than the %s transition", i+1, d, transition)
		}
		tl.Clips[i] = Clip{
			Path:     path,
			Start:    start,
			Duration: d,
			FadeIn:   i > 0 && transition > 0,
			FadeOut:  i < last && transition > 0,
		}
		start += d - transition
	}
	tl.Total = start + transition
	return tl, nil
}

// Offsets returns the xfade offset of every clip after the first, measured
// on the output timeline.
func (t Timeline) Offsets() []time.Duration {
	if len(t.Clips) < 2 {
		return nil
	}
	out := make([]time.Duration, 0, len(t.Clips)-1)
	for _, c := range t.Clips[1:] {
		out = append(out, c.Start)
	}
	return out
}
