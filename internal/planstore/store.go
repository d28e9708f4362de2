package planstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"storyforge/internal/storyboard"
)

var (
	ErrNotFound = errors.New("shot plan not found")
	ErrInvalid  = errors.New("shot plan is not valid JSON")
)

type Options struct {
	Path   string
	Logger *slog.Logger
}

// Store persists a single shot plan document. Every Save replaces the whole
// file through a rename so readers never observe a partial write.
type Store struct {
	path   string
	logger *slog.Logger
}

func New(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		path:   opts.Path,
		logger: logger.With("component", "planstore"),
	}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load() (*storyboard.Plan, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("shot plan file not found", "path", s.path)
			return nil, ErrNotFound
		}
		s.logger.Error("read shot plan failed", "path", s.path, "err", err)
		return nil, fmt.Errorf("read shot plan: %w", err)
	}

	var plan storyboard.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		s.logger.Error("decode shot plan failed", "path", s.path, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if plan.Panels == nil {
		plan.Panels = make(map[int]*storyboard.Panel)
	}
	for id, panel := range plan.Panels {
		if panel == nil {
			delete(plan.Panels, id)
			continue
		}
		if panel.EditHistory == nil {
			panel.EditHistory = []string{}
		}
	}
	return &plan, nil
}

func (s *Store) Save(plan *storyboard.Plan) error {
	if plan == nil {
		return errors.New("shot plan is nil")
	}

	buf, err := json.MarshalIndent(plan, "", "    ")
	if err != nil {
		s.logger.Error("encode shot plan failed", "err", err)
		return fmt.Errorf("encode shot plan: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Error("create shot plan directory failed", "path", s.path, "err", err)
		return fmt.Errorf("create shot plan directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(buf, '\n'), 0o644); err != nil {
		s.logger.Error("write shot plan failed", "path", tmp, "err", err)
		return fmt.Errorf("write shot plan: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		s.logger.Error("replace shot plan failed", "path", s.path, "err", err)
		return fmt.Errorf("replace shot plan: %w", err)
	}

	s.logger.Debug("shot plan saved", "path", s.path)
	return nil
}
