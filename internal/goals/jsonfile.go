package goals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"posto-dashboard/internal/models"
)

type document struct {
	Goals         []Goal   `json:"goals"`
	MonthlyTarget *float64 `json:"monthly_target,omitempty"`
}

// JSONFile keeps every goal in one JSON document, rewritten on each change.
type JSONFile struct {
	filename string

	mu  sync.RWMutex
	doc document
}

func OpenJSONFile(filename string) (*JSONFile, error) {
	f := &JSONFile{filename: filename}

	data, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("goals: read %s: %w", filename, err)
	}

	if len(data) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(data, &f.doc); err != nil {
		return nil, fmt.Errorf("goals: parse %s: %w", filename, err)
	}
	return f, nil
}

func (f *JSONFile) List(_ context.Context, view models.View) ([]Goal, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []Goal
	for _, g := range f.doc.Goals {
		if g.View == view {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *JSONFile) Get(_ context.Context, id string) (Goal, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, g := range f.doc.Goals {
		if g.ID == id {
			return g, nil
		}
	}
	return Goal{}, ErrNotFound
}

func (f *JSONFile) Put(_ context.Context, g Goal) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := document{Goals: make([]Goal, 0, len(f.doc.Goals)+1), MonthlyTarget: f.doc.MonthlyTarget}
	replaced := false
	for _, cur := range f.doc.Goals {
		if cur.ID == g.ID {
			next.Goals = append(next.Goals, g)
			replaced = true
			continue
		}
		next.Goals = append(next.Goals, cur)
	}
	if !replaced {
		next.Goals = append(next.Goals, g)
	}
	return f.commit(next)
}

func (f *JSONFile) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := document{Goals: make([]Goal, 0, len(f.doc.Goals)), MonthlyTarget: f.doc.MonthlyTarget}
	for _, cur := range f.doc.Goals {
		if cur.ID != id {
			next.Goals = append(next.Goals, cur)
		}
	}
	if len(next.Goals) == len(f.doc.Goals) {
		return ErrNotFound
	}
	return f.commit(next)
}

func (f *JSONFile) MonthlyTarget(context.Context) (float64, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.doc.MonthlyTarget == nil {
		return 0, false, nil
	}
	return *f.doc.MonthlyTarget, true, nil
}

func (f *JSONFile) SetMonthlyTarget(_ context.Context, v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := document{Goals: f.doc.Goals, MonthlyTarget: &v}
	return f.commit(next)
}

func (f *JSONFile) Close() error { return nil }

// commit writes doc through a temp file and rename, then adopts it. The
// caller holds the write lock.
func (f *JSONFile) commit(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("goals: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".goals-*.json")
	if err != nil {
		return fmt.Errorf("goals: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("goals: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("goals: write: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.filename); err != nil {
		return fmt.Errorf("goals: replace %s: %w", f.filename, err)
	}

	f.doc = doc
	return nil
}
