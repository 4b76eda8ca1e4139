package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"walkypainty/internal/canvas"
	"walkypainty/internal/draw"
	"walkypainty/internal/geometry"
)

// StrokeSaver receives completed local strokes
type StrokeSaver interface {
	SaveStroke(ctx context.Context, s draw.Stroke) error
}

// ErrUnavailable: the breaker is refusing calls after repeated failures
var ErrUnavailable = errors.New("canvas service unavailable")

// StatusError is a non-2xx answer from the canvas API
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("canvas api: status %d", e.Status)
	}
	return fmt.Sprintf("canvas api: %s (status %d)", e.Message, e.Status)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type strokeRequest struct {
	Canvas string           `json:"canvas"`
	Points []geometry.Point `json:"points"`
	Color  string           `json:"color"`
	Width  float64          `json:"width"`
	Tool   geometry.Tool    `json:"tool"`
}

// APIClient talks to the canvas HTTP API through a circuit breaker.
// Rejections (4xx) do not count toward tripping it.
type APIClient struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewAPIClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "canvas-api",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			var status *StatusError
			if errors.As(err, &status) {
				return status.Status < http.StatusInternalServerError
			}
			return err == nil
		},
	})
	return c
}

// SaveStroke posts a completed stroke to /api/strokes.
func (c *APIClient) SaveStroke(ctx context.Context, s draw.Stroke) error {
	body := strokeRequest{
		Canvas: s.CanvasID,
		Points: s.Points,
		Color:  s.Color,
		Width:  s.Width,
		Tool:   s.Tool,
	}
	return c.do(ctx, http.MethodPost, "/api/strokes", body, nil)
}

// Canvas fetches one canvas, "default" included.
func (c *APIClient) Canvas(ctx context.Context, id string) (canvas.Canvas, error) {
	var out canvas.Canvas
	err := c.do(ctx, http.MethodGet, "/api/canvas/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Strokes lists the saved strokes of a canvas in creation order.
func (c *APIClient) Strokes(ctx context.Context, canvasID string) ([]canvas.Stroke, error) {
	var out []canvas.Stroke
	err := c.do(ctx, http.MethodGet, "/api/strokes/"+url.PathEscape(canvasID), nil, &out)
	return out, err
}

func (c *APIClient) do(ctx context.Context, method, path string, in, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, method, path, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (c *APIClient) roundTrip(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 32<<20)).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		if resp.StatusCode >= 300 {
			return &StatusError{Status: resp.StatusCode}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return &StatusError{Status: resp.StatusCode, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
