// Package memory is the in-process canvas repository used by default and in tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"walkypainty/internal/canvas"
)

type Store struct {
	mu       sync.RWMutex
	canvases map[string]canvas.Canvas
	order    []string
	strokes  map[string][]canvas.Stroke
}

func New() *Store {
	return &Store{
		canvases: make(map[string]canvas.Canvas),
		strokes:  make(map[string][]canvas.Stroke),
	}
}

var _ canvas.Repository = (*Store)(nil)

func (s *Store) CreateCanvas(ctx context.Context, c canvas.Canvas) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.canvases[c.ID]; exists {
		return fmt.Errorf("canvas %s already exists", c.ID)
	}
	s.canvases[c.ID] = cloneCanvas(c)
	s.order = append(s.order, c.ID)
	return nil
}

func (s *Store) GetCanvas(ctx context.Context, id string) (canvas.Canvas, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.canvases[id]
	if !ok {
		return canvas.Canvas{}, canvas.ErrCanvasNotFound
	}
	return cloneCanvas(c), nil
}

func (s *Store) FindDefault(ctx context.Context) (canvas.Canvas, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if c := s.canvases[id]; c.IsDefault {
			return cloneCanvas(c), nil
		}
	}
	return canvas.Canvas{}, canvas.ErrCanvasNotFound
}

func (s *Store) UpdateCanvas(ctx context.Context, c canvas.Canvas) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.canvases[c.ID]; !ok {
		return canvas.ErrCanvasNotFound
	}
	s.canvases[c.ID] = cloneCanvas(c)
	return nil
}

func (s *Store) DeleteCanvas(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.canvases[id]; !ok {
		return canvas.ErrCanvasNotFound
	}
	delete(s.canvases, id)
	delete(s.strokes, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

// ListCanvases returns canvases in creation order.
func (s *Store) ListCanvases(ctx context.Context) ([]canvas.Canvas, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]canvas.Canvas, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneCanvas(s.canvases[id]))
	}
	return out, nil
}

func (s *Store) SaveStroke(ctx context.Context, st canvas.Stroke) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.canvases[st.CanvasID]; !ok {
		return canvas.ErrCanvasNotFound
	}
	st.Points = slices.Clone(st.Points)
	s.strokes[st.CanvasID] = append(s.strokes[st.CanvasID], st)
	return nil
}

func (s *Store) ListStrokes(ctx context.Context, canvasID string) ([]canvas.Stroke, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.canvases[canvasID]; !ok {
		return nil, canvas.ErrCanvasNotFound
	}

	src := s.strokes[canvasID]
	out := make([]canvas.Stroke, len(src))
	for i, st := range src {
		st.Points = slices.Clone(st.Points)
		out[i] = st
	}
	canvas.SortStrokes(out)
	return out, nil
}

func cloneCanvas(c canvas.Canvas) canvas.Canvas {
	c.Contributors = slices.Clone(c.Contributors)
	return c
}
