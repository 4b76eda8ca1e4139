package cmd

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"walkypainty/internal/canvas"
	"walkypainty/internal/canvas/tomlstore"
	"walkypainty/internal/config"
	"walkypainty/internal/geometry"
	"walkypainty/internal/identity"
	"walkypainty/internal/version"
)

func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", stdout)
}

func seedStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "canvases.toml")
	store, err := tomlstore.New(path)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.CreateCanvas(ctx, canvas.Canvas{
		ID:        "cv-1",
		Name:      "Sketch",
		ImageData: geometry.BlankDataURL,
		Creator:   identity.NewGuest(),
		IsPublic:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}))
	require.NoError(t, store.SaveStroke(ctx, canvas.Stroke{
		ID:        "s-1",
		CanvasID:  "cv-1",
		Author:    identity.NewGuest(),
		Points:    []geometry.Point{{X: 4, Y: 4}, {X: 60, Y: 30}},
		Color:     "#000000",
		Width:     3,
		Tool:      geometry.Pencil,
		CreatedAt: now,
	}))
	return path
}

func TestRenderCommandWritesPNG(t *testing.T) {
	storePath := seedStore(t)
	out := filepath.Join(t.TempDir(), "out.png")

	stdout, _, err := executeCLI(t, "render",
		"--store", storePath,
		"--canvas", "cv-1",
		"--out", out,
		"--width", "64",
		"--height", "48",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "rendered 1 strokes")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())
}

func TestRenderCommandBackground(t *testing.T) {
	storePath := seedStore(t)
	dir := t.TempDir()

	corner := func(background string) (uint32, uint32, uint32) {
		t.Helper()
		out := filepath.Join(dir, background[1:]+".png")
		_, _, err := executeCLI(t, "render",
			"--store", storePath,
			"--canvas", "cv-1",
			"--out", out,
			"--width", "64",
			"--height", "48",
			"--background", background,
		)
		require.NoError(t, err)

		f, err := os.Open(out)
		require.NoError(t, err)
		defer f.Close()
		img, err := png.Decode(f)
		require.NoError(t, err)
		r, g, b, _ := img.At(63, 47).RGBA()
		return r >> 8, g >> 8, b >> 8
	}

	r, g, b := corner("#000000")
	assert.Equal(t, [3]uint32{0, 0, 0}, [3]uint32{r, g, b})
	r, g, b = corner("#ff0000")
	assert.Equal(t, [3]uint32{255, 0, 0}, [3]uint32{r, g, b})

	_, _, err := executeCLI(t, "render", "--store", storePath, "--background", "blue")
	assert.Error(t, err)
}

func TestRenderCommandErrors(t *testing.T) {
	storePath := seedStore(t)

	_, _, err := executeCLI(t, "render", "--store", storePath, "--canvas", "missing", "--out", filepath.Join(t.TempDir(), "x.png"))
	assert.ErrorIs(t, err, canvas.ErrCanvasNotFound)

	_, _, err = executeCLI(t, "render", "--store", storePath, "--width", "0")
	assert.Error(t, err)
}

func TestRenderCanvasReplaysOntoSurface(t *testing.T) {
	store, err := tomlstore.New(seedStore(t))
	require.NoError(t, err)

	surface := geometry.NewSurface(64, 64)
	blank, err := surface.DataURL()
	require.NoError(t, err)

	n, err := renderCanvas(context.Background(), store, "cv-1", surface)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := surface.DataURL()
	require.NoError(t, err)
	assert.NotEqual(t, blank, got)
}

func TestServeRejectsMissingConfig(t *testing.T) {
	_, _, err := executeCLI(t, "serve", "--config", filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Addr: ":0", ShutdownTimeout: time.Second},
		Rooms:  config.RoomsConfig{Default: "default", MaxRooms: 10, MaxRoomSize: 10, SendBuffer: 16},
		Limits: config.LimitsConfig{
			MaxMessageSize:         4096,
			MessagesPerSecond:      100,
			Burst:                  100,
			CursorInterval:         30 * time.Millisecond,
			IPConnectionsPerMinute: 60,
			IPBurst:                10,
		},
		Store:  config.StoreConfig{Driver: "memory"},
		Client: config.ClientConfig{ReconnectDelay: time.Second, MaxReconnectAttempts: 1},
	}
}

func TestNewServerServesAPI(t *testing.T) {
	srv, err := newServer(testConfig(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.start(ctx)

	ts := httptest.NewServer(srv.handler)
	defer ts.Close()

	for _, path := range []string{"/health", "/api/canvas/default", "/api/presence", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err, path)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestOpenRepository(t *testing.T) {
	repo, err := openRepository(config.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.NotNil(t, repo)

	repo, err = openRepository(config.StoreConfig{Driver: "toml", Path: filepath.Join(t.TempDir(), "c.toml")})
	require.NoError(t, err)
	assert.IsType(t, &tomlstore.Store{}, repo)

	_, err = openRepository(config.StoreConfig{Driver: "postgres"})
	assert.Error(t, err)
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://localhost:8080", want: "ws://localhost:8080/ws"},
		{in: "https://paint.example/", want: "wss://paint.example/ws"},
		{in: "ftp://paint.example", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := socketURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMirrorWritesSnapshot(t *testing.T) {
	srv, err := newServer(testConfig(), zap.NewNop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.start(ctx)

	ts := httptest.NewServer(srv.handler)
	defer ts.Close()

	out := filepath.Join(t.TempDir(), "mirror.png")
	stdout, _, err := executeCLI(t, "mirror",
		"--server", ts.URL,
		"--canvas", "default",
		"--duration", "300ms",
		"--out", out,
		"--width", "40",
		"--height", "30",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote "+out)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
}
