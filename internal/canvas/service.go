package canvas

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"walkypainty/internal/geometry"
	"walkypainty/internal/identity"
	"walkypainty/internal/metrics"
)

const (
	DefaultStrokeColor = "#000000"
	DefaultStrokeWidth = 5.0
	DefaultStrokeTool  = geometry.Brush
)

// Service applies ownership rules on top of a Repository. Read-modify-write
// sequences are serialized so concurrent updates cannot lose contributors.
type Service struct {
	repo      Repository
	validator *Validator
	logger    *zap.Logger
	metrics   *metrics.Metrics

	mu        sync.Mutex
	defaultMu sync.Mutex
	now       func() time.Time
	newID     func() string
}

func NewService(repo Repository, logger *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:      repo,
		validator: NewValidator(),
		logger:    logger.Named("canvas"),
		metrics:   m,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (s *Service) observe(op string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveStore(op, err)
	}
}

// List returns public canvases, plus the private ones who may read when
// publicOnly is false.
func (s *Service) List(ctx context.Context, who identity.Identity, publicOnly bool) ([]Canvas, error) {
	all, err := s.repo.ListCanvases(ctx)
	s.observe("list_canvases", err)
	if err != nil {
		return nil, fmt.Errorf("list canvases: %w", err)
	}

	out := make([]Canvas, 0, len(all))
	for _, c := range all {
		if c.IsPublic || (!publicOnly && c.CanRead(who)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, who identity.Identity, req CreateCanvasRequest) (Canvas, error) {
	if err := s.validator.Struct(req); err != nil {
		return Canvas{}, err
	}
	name, err := s.validator.SanitizeName(req.Name)
	if err != nil {
		return Canvas{}, err
	}

	now := s.now()
	c := Canvas{
		ID:           s.newID(),
		Name:         name,
		ImageData:    req.ImageData,
		Creator:      who,
		Contributors: []identity.Identity{},
		IsPublic:     req.IsPublic == nil || *req.IsPublic,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.repo.CreateCanvas(ctx, c)
	s.observe("create_canvas", err)
	if err != nil {
		return Canvas{}, fmt.Errorf("create canvas: %w", err)
	}

	s.logger.Info("canvas created", zap.String("canvasID", c.ID), zap.Stringer("creator", who))
	return c, nil
}

// Get loads a canvas. The id "default" resolves to the shared default
// canvas, creating it on first use.
func (s *Service) Get(ctx context.Context, who identity.Identity, id string) (Canvas, error) {
	c, err := s.resolve(ctx, id)
	if err != nil {
		return Canvas{}, err
	}
	if !c.CanRead(who) {
		return Canvas{}, ErrForbidden
	}
	return c, nil
}

func (s *Service) resolve(ctx context.Context, id string) (Canvas, error) {
	if id == DefaultID {
		return s.Default(ctx)
	}

	c, err := s.repo.GetCanvas(ctx, id)
	s.observe("get_canvas", err)
	if err != nil {
		return Canvas{}, fmt.Errorf("get canvas %s: %w", id, err)
	}
	return c, nil
}

// Default returns the singleton public canvas, creating it if missing.
func (s *Service) Default(ctx context.Context) (Canvas, error) {
	c, err := s.repo.FindDefault(ctx)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCanvasNotFound) {
		return Canvas{}, fmt.Errorf("find default canvas: %w", err)
	}

	s.defaultMu.Lock()
	defer s.defaultMu.Unlock()

	// another request may have created it while we waited
	if c, err := s.repo.FindDefault(ctx); err == nil {
		return c, nil
	}

	now := s.now()
	c = Canvas{
		ID:           s.newID(),
		Name:         DefaultName,
		ImageData:    geometry.BlankDataURL,
		Contributors: []identity.Identity{},
		IsPublic:     true,
		IsDefault:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.repo.CreateCanvas(ctx, c)
	s.observe("create_canvas", err)
	if err != nil {
		return Canvas{}, fmt.Errorf("create default canvas: %w", err)
	}

	s.logger.Info("default canvas created", zap.String("canvasID", c.ID))
	return c, nil
}

// Update replaces the snapshot and optionally the name. Only the creator may
// change visibility, and the default canvas always stays public.
func (s *Service) Update(ctx context.Context, who identity.Identity, id string, req UpdateCanvasRequest) (Canvas, error) {
	if err := s.validator.Struct(req); err != nil {
		return Canvas{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.resolve(ctx, id)
	if err != nil {
		return Canvas{}, err
	}
	if !c.CanUpdate(who) {
		return Canvas{}, ErrForbidden
	}

	if req.Name != nil {
		name, err := s.validator.SanitizeName(*req.Name)
		if err != nil {
			return Canvas{}, err
		}
		c.Name = name
	}
	if req.ImageData != nil {
		c.ImageData = *req.ImageData
	}
	if req.IsPublic != nil && *req.IsPublic != c.IsPublic {
		if c.IsDefault || !c.Creator.Same(who) {
			return Canvas{}, ErrForbidden
		}
		c.IsPublic = *req.IsPublic
	}
	c.AddContributor(who)
	c.UpdatedAt = s.now()

	err = s.repo.UpdateCanvas(ctx, c)
	s.observe("update_canvas", err)
	if err != nil {
		return Canvas{}, fmt.Errorf("update canvas %s: %w", c.ID, err)
	}
	return c, nil
}

// Delete removes a canvas and its strokes. Creator only; the default canvas
// cannot be deleted.
func (s *Service) Delete(ctx context.Context, who identity.Identity, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}
	if !c.CanDelete(who) {
		return ErrForbidden
	}

	err = s.repo.DeleteCanvas(ctx, c.ID)
	s.observe("delete_canvas", err)
	if err != nil {
		return fmt.Errorf("delete canvas %s: %w", c.ID, err)
	}

	s.logger.Info("canvas deleted", zap.String("canvasID", c.ID), zap.Stringer("by", who))
	return nil
}

// SaveStroke persists a completed stroke and records its author as a
// contributor of the canvas.
func (s *Service) SaveStroke(ctx context.Context, who identity.Identity, req SaveStrokeRequest) (Stroke, error) {
	if err := s.validator.Struct(req); err != nil {
		return Stroke{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.resolve(ctx, req.Canvas)
	if err != nil {
		return Stroke{}, err
	}
	if !c.CanRead(who) {
		return Stroke{}, ErrForbidden
	}

	st := Stroke{
		ID:        s.newID(),
		CanvasID:  c.ID,
		Author:    who,
		Points:    make([]geometry.Point, len(req.Points)),
		Color:     req.Color,
		Width:     req.Width,
		Tool:      req.Tool,
		CreatedAt: s.now(),
	}
	for i, p := range req.Points {
		st.Points[i] = geometry.Pt(p.X, p.Y)
	}
	if st.Color == "" {
		st.Color = DefaultStrokeColor
	}
	if st.Width == 0 {
		st.Width = DefaultStrokeWidth
	}
	if st.Tool == "" {
		st.Tool = DefaultStrokeTool
	}

	err = s.repo.SaveStroke(ctx, st)
	s.observe("save_stroke", err)
	if err != nil {
		return Stroke{}, fmt.Errorf("save stroke: %w", err)
	}

	if c.AddContributor(who) {
		c.UpdatedAt = s.now()
		err = s.repo.UpdateCanvas(ctx, c)
		s.observe("update_canvas", err)
		if err != nil {
			s.logger.Warn("add contributor", zap.String("canvasID", c.ID), zap.Error(err))
		}
	}
	return st, nil
}

// Strokes lists the strokes of a canvas in creation order.
func (s *Service) Strokes(ctx context.Context, who identity.Identity, canvasID string) ([]Stroke, error) {
	c, err := s.resolve(ctx, canvasID)
	if err != nil {
		return nil, err
	}
	if !c.CanRead(who) {
		return nil, ErrForbidden
	}

	strokes, err := s.repo.ListStrokes(ctx, c.ID)
	s.observe("list_strokes", err)
	if err != nil {
		return nil, fmt.Errorf("list strokes: %w", err)
	}
	return strokes, nil
}
