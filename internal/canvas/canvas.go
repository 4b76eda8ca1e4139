package canvas

import (
	"context"
	"errors"
	"slices"
	"time"

	"walkypainty/internal/geometry"
	"walkypainty/internal/identity"
)

var (
	ErrCanvasNotFound = errors.New("canvas not found")
	ErrForbidden      = errors.New("not allowed")
	ErrInvalid        = errors.New("invalid request")
)

const (
	// DefaultID is the alias clients use for the shared default canvas
	DefaultID   = "default"
	DefaultName = "Default Canvas"
)

// Canvas is a named, persisted raster snapshot
type Canvas struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	ImageData    string              `json:"imageData"`
	Creator      identity.Identity   `json:"creator"`
	Contributors []identity.Identity `json:"contributors"`
	IsPublic     bool                `json:"isPublic"`
	IsDefault    bool                `json:"defaultCanvas"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// IsContributor: who has saved a stroke or updated the canvas
func (c Canvas) IsContributor(who identity.Identity) bool {
	return slices.ContainsFunc(c.Contributors, who.Same)
}

// CanRead: public canvases are readable by anyone, private ones by their
// creator and contributors
func (c Canvas) CanRead(who identity.Identity) bool {
	return c.IsPublic || c.Creator.Same(who) || c.IsContributor(who)
}

// CanUpdate: the default canvas has no owner and is open to everyone
func (c Canvas) CanUpdate(who identity.Identity) bool {
	return c.IsDefault || c.Creator.Same(who) || c.IsContributor(who)
}

func (c Canvas) CanDelete(who identity.Identity) bool {
	return !c.IsDefault && c.Creator.Same(who)
}

// AddContributor appends who unless they are the creator or already listed.
func (c *Canvas) AddContributor(who identity.Identity) bool {
	if who.IsZero() || c.Creator.Same(who) || c.IsContributor(who) {
		return false
	}
	c.Contributors = append(c.Contributors, who)
	return true
}

// Stroke is one completed gesture saved against a canvas
type Stroke struct {
	ID        string            `json:"id"`
	CanvasID  string            `json:"canvas"`
	Author    identity.Identity `json:"user"`
	Points    []geometry.Point  `json:"points"`
	Color     string            `json:"color"`
	Width     float64           `json:"width"`
	Tool      geometry.Tool     `json:"tool"`
	CreatedAt time.Time         `json:"timestamp"`
}

// Repository persists canvases and strokes. Implementations return
// ErrCanvasNotFound for unknown ids and must be safe for concurrent use.
type Repository interface {
	CreateCanvas(ctx context.Context, c Canvas) error
	GetCanvas(ctx context.Context, id string) (Canvas, error)
	// FindDefault returns the canvas flagged IsDefault
	FindDefault(ctx context.Context) (Canvas, error)
	UpdateCanvas(ctx context.Context, c Canvas) error
	// DeleteCanvas removes the canvas and every stroke saved against it
	DeleteCanvas(ctx context.Context, id string) error
	ListCanvases(ctx context.Context) ([]Canvas, error)

	SaveStroke(ctx context.Context, s Stroke) error
	// ListStrokes returns strokes of a canvas ordered by CreatedAt
	ListStrokes(ctx context.Context, canvasID string) ([]Stroke, error)
}

// SortStrokes orders strokes by creation time, keeping insertion order on ties.
func SortStrokes(strokes []Stroke) {
	slices.SortStableFunc(strokes, func(a, b Stroke) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
