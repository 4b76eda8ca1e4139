// Package tomlstore keeps canvases and strokes in a single TOML file,
// rewritten atomically on every change.
package tomlstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"walkypainty/internal/canvas"
	"walkypainty/internal/geometry"
	"walkypainty/internal/identity"
)

const (
	fileMode        = 0o600
	dirMode         = 0o700
	tempFilePattern = ".canvases-*.toml.tmp"
)

type Store struct {
	path string
	mu   sync.RWMutex
}

var _ canvas.Repository = (*Store)(nil)

func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}
	return &Store{path: filepath.Clean(abs)}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) CreateCanvas(ctx context.Context, c canvas.Canvas) error {
	return s.mutate(ctx, func(file *fileSchema) error {
		for _, existing := range file.Canvases {
			if existing.ID == c.ID {
				return fmt.Errorf("canvas %s already exists", c.ID)
			}
		}
		file.Canvases = append(file.Canvases, toCanvasSchema(c))
		return nil
	})
}

func (s *Store) GetCanvas(ctx context.Context, id string) (canvas.Canvas, error) {
	file, err := s.load(ctx)
	if err != nil {
		return canvas.Canvas{}, err
	}
	for _, entry := range file.Canvases {
		if entry.ID == id {
			return fromCanvasSchema(entry), nil
		}
	}
	return canvas.Canvas{}, canvas.ErrCanvasNotFound
}

func (s *Store) FindDefault(ctx context.Context) (canvas.Canvas, error) {
	file, err := s.load(ctx)
	if err != nil {
		return canvas.Canvas{}, err
	}
	for _, entry := range file.Canvases {
		if entry.IsDefault {
			return fromCanvasSchema(entry), nil
		}
	}
	return canvas.Canvas{}, canvas.ErrCanvasNotFound
}

func (s *Store) UpdateCanvas(ctx context.Context, c canvas.Canvas) error {
	return s.mutate(ctx, func(file *fileSchema) error {
		for i := range file.Canvases {
			if file.Canvases[i].ID == c.ID {
				file.Canvases[i] = toCanvasSchema(c)
				return nil
			}
		}
		return canvas.ErrCanvasNotFound
	})
}

func (s *Store) DeleteCanvas(ctx context.Context, id string) error {
	return s.mutate(ctx, func(file *fileSchema) error {
		before := len(file.Canvases)
		file.Canvases = slices.DeleteFunc(file.Canvases, func(c canvasSchema) bool { return c.ID == id })
		if len(file.Canvases) == before {
			return canvas.ErrCanvasNotFound
		}
		file.Strokes = slices.DeleteFunc(file.Strokes, func(st strokeSchema) bool { return st.CanvasID == id })
		return nil
	})
}

func (s *Store) ListCanvases(ctx context.Context) ([]canvas.Canvas, error) {
	file, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]canvas.Canvas, 0, len(file.Canvases))
	for _, entry := range file.Canvases {
		out = append(out, fromCanvasSchema(entry))
	}
	return out, nil
}

func (s *Store) SaveStroke(ctx context.Context, st canvas.Stroke) error {
	return s.mutate(ctx, func(file *fileSchema) error {
		if !slices.ContainsFunc(file.Canvases, func(c canvasSchema) bool { return c.ID == st.CanvasID }) {
			return canvas.ErrCanvasNotFound
		}
		file.Strokes = append(file.Strokes, toStrokeSchema(st))
		return nil
	})
}

func (s *Store) ListStrokes(ctx context.Context, canvasID string) ([]canvas.Stroke, error) {
	file, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if !slices.ContainsFunc(file.Canvases, func(c canvasSchema) bool { return c.ID == canvasID }) {
		return nil, canvas.ErrCanvasNotFound
	}

	var out []canvas.Stroke
	for _, entry := range file.Strokes {
		if entry.CanvasID == canvasID {
			out = append(out, fromStrokeSchema(entry))
		}
	}
	canvas.SortStrokes(out)
	return out, nil
}

func (s *Store) load(ctx context.Context) (fileSchema, error) {
	if err := ctx.Err(); err != nil {
		return fileSchema{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readSchema()
}

// mutate: read, apply fn, write back under the write lock
func (s *Store) mutate(ctx context.Context, fn func(*fileSchema) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return err
	}
	if err := fn(&file); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.writeSchema(file)
}

func (s *Store) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{Version: currentSchemaVersion}, nil
		}
		return fileSchema{}, fmt.Errorf("read canvas file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode canvas file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()
	return file, nil
}

func (s *Store) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(s.path), dirMode); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode canvas file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp canvas file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp canvas file: %w", err)
	}
	if err := tempFile.Chmod(fileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp canvas file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp canvas file: %w", err)
	}
	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace canvas file: %w", err)
	}
	cleanup = false
	return nil
}

func toIdentitySchema(i identity.Identity) identitySchema {
	return identitySchema{Kind: string(i.Kind), ID: i.ID, Name: i.DisplayName}
}

func fromIdentitySchema(i identitySchema) identity.Identity {
	return identity.Identity{Kind: identity.Kind(i.Kind), ID: i.ID, DisplayName: i.Name}
}

func toCanvasSchema(c canvas.Canvas) canvasSchema {
	out := canvasSchema{
		ID:           c.ID,
		Name:         c.Name,
		ImageData:    c.ImageData,
		Contributors: make([]identitySchema, 0, len(c.Contributors)),
		IsPublic:     c.IsPublic,
		IsDefault:    c.IsDefault,
		CreatedAt:    formatTime(c.CreatedAt),
		UpdatedAt:    formatTime(c.UpdatedAt),
	}
	if !c.Creator.IsZero() {
		creator := toIdentitySchema(c.Creator)
		out.Creator = &creator
	}
	for _, who := range c.Contributors {
		out.Contributors = append(out.Contributors, toIdentitySchema(who))
	}
	return out
}

func fromCanvasSchema(c canvasSchema) canvas.Canvas {
	out := canvas.Canvas{
		ID:           c.ID,
		Name:         c.Name,
		ImageData:    c.ImageData,
		Contributors: make([]identity.Identity, 0, len(c.Contributors)),
		IsPublic:     c.IsPublic,
		IsDefault:    c.IsDefault,
		CreatedAt:    parseTime(c.CreatedAt),
		UpdatedAt:    parseTime(c.UpdatedAt),
	}
	if c.Creator != nil {
		out.Creator = fromIdentitySchema(*c.Creator)
	}
	for _, who := range c.Contributors {
		out.Contributors = append(out.Contributors, fromIdentitySchema(who))
	}
	return out
}

func toStrokeSchema(st canvas.Stroke) strokeSchema {
	points := make([]pointSchema, len(st.Points))
	for i, p := range st.Points {
		points[i] = pointSchema{X: p.X, Y: p.Y}
	}
	return strokeSchema{
		ID:        st.ID,
		CanvasID:  st.CanvasID,
		Author:    toIdentitySchema(st.Author),
		Points:    points,
		Color:     st.Color,
		Width:     st.Width,
		Tool:      string(st.Tool),
		CreatedAt: formatTime(st.CreatedAt),
	}
}

func fromStrokeSchema(st strokeSchema) canvas.Stroke {
	points := make([]geometry.Point, len(st.Points))
	for i, p := range st.Points {
		points[i] = geometry.Pt(p.X, p.Y)
	}
	return canvas.Stroke{
		ID:        st.ID,
		CanvasID:  st.CanvasID,
		Author:    fromIdentitySchema(st.Author),
		Points:    points,
		Color:     st.Color,
		Width:     st.Width,
		Tool:      geometry.Tool(st.Tool),
		CreatedAt: parseTime(st.CreatedAt),
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339Nano)
}
