package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"walkypainty/internal/client"
	"walkypainty/internal/config"
	"walkypainty/internal/geometry"
	"walkypainty/internal/logging"
)

type mirrorOptions struct {
	configPath string
	server     string
	room       string
	name       string
	canvasID   string
	out        string
	width      int
	height     int
	background string
	duration   time.Duration
}

func newMirrorCmd() *cobra.Command {
	var opts mirrorOptions

	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Join a room as a headless client and write what it sees to a PNG",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.width <= 0 || opts.height <= 0 {
				return errors.New("--width and --height must be positive")
			}
			if _, ok := geometry.ParseColor(opts.background); !ok {
				return fmt.Errorf("--background %q is not a hex color", opts.background)
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if opts.duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.duration)
				defer cancel()
			}

			return mirror(ctx, cmd, opts, cfg.Client, logger)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Config file (toml or yaml)")
	cmd.Flags().StringVar(&opts.server, "server", "http://localhost:8080", "Server base URL")
	cmd.Flags().StringVar(&opts.room, "room", client.DefaultRoom, "Room to join")
	cmd.Flags().StringVar(&opts.name, "name", "", "Display name")
	cmd.Flags().StringVar(&opts.canvasID, "canvas", "", "Load this saved canvas before mirroring")
	cmd.Flags().StringVar(&opts.out, "out", "mirror.png", "Output PNG path")
	cmd.Flags().IntVar(&opts.width, "width", 1280, "Surface width in pixels")
	cmd.Flags().IntVar(&opts.height, "height", 720, "Surface height in pixels")
	cmd.Flags().StringVar(&opts.background, "background", geometry.DefaultBackground, "Paper color behind the strokes")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Stop after this long (0 waits for a signal)")
	return cmd
}

// socketURL maps http(s)://host to ws(s)://host/ws
func socketURL(server string) (string, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	return u.String(), nil
}

func mirror(ctx context.Context, cmd *cobra.Command, opts mirrorOptions, cc config.ClientConfig, logger *zap.Logger) error {
	wsURL, err := socketURL(opts.server)
	if err != nil {
		return err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}

	api := client.NewAPIClient(opts.server, &http.Client{Jar: jar, Timeout: 10 * time.Second}, logger.Named("api"))
	c := client.New(geometry.NewSurface(opts.width, opts.height, geometry.WithBackground(opts.background)), client.Options{
		Dialer:         client.WebSocketDialer{URL: wsURL, Jar: jar},
		Room:           opts.room,
		Name:           opts.name,
		ReconnectDelay: cc.ReconnectDelay,
		MaxAttempts:    cc.MaxReconnectAttempts,
		Logger:         logger.Named("client"),
		OnNotice: func(msg string) {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "notice:", msg)
		},
		OnStatus: func(s client.Status) {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "status:", s)
		},
	})

	if opts.canvasID != "" {
		if err := c.LoadCanvas(ctx, api, opts.canvasID); err != nil {
			return err
		}
	}

	runErr := c.Run(ctx)
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		runErr = nil
	}

	if err := writePNG(opts.out, c); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", opts.out, c.Status())
	return runErr
}
