package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sluice/cli/config"
	"github.com/pithecene-io/sluice/cli/render"
	"github.com/pithecene-io/sluice/codec"
	"github.com/pithecene-io/sluice/log"
	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/source/redis"
)

// env carries per-invocation dependencies shared by commands.
type env struct {
	cfg    *config.Config
	logger *log.Logger
}

// setup loads the optional config file and builds the logger.
func setup(c *cli.Context) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	level, err := log.ParseLevel(resolveString(c, "log-level", configVal(cfg, func(c *config.Config) string { return c.Log.Level })))
	if err != nil {
		return nil, cli.Exit(err.Error(), exitConfigError)
	}

	name := "sluice"
	if c.Command != nil && c.Command.Name != "" {
		name = "sluice-" + c.Command.Name
	}
	return &env{
		cfg:    cfg,
		logger: log.NewWithWriter(name, level, errWriter(c)),
	}, nil
}

// loadConfig loads --config when set. A nil config means none was given.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return nil, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitConfigError)
	}
	return cfg, nil
}

func errWriter(c *cli.Context) io.Writer {
	if c.App != nil && c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

func newRenderer(c *cli.Context) (*render.Renderer, error) {
	r, err := render.NewRenderer(c)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitConfigError)
	}
	return r, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// withTimeout bounds ctx when timeout is positive.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// streamSettings holds resolved subscription options.
type streamSettings struct {
	codec       codec.Kind
	count       int
	timeout     time.Duration
	skipInvalid bool
}

func resolveStream(c *cli.Context, cfg *config.Config) (streamSettings, error) {
	kind, err := codec.Parse(resolveString(c, "codec", configVal(cfg, func(c *config.Config) string { return c.Stream.Codec })))
	if err != nil {
		return streamSettings{}, cli.Exit(err.Error(), exitConfigError)
	}
	st := streamSettings{
		codec:       kind,
		count:       resolveInt(c, "count", configVal(cfg, func(c *config.Config) int { return c.Stream.Count })),
		timeout:     resolveDuration(c, "timeout", configVal(cfg, func(c *config.Config) time.Duration { return c.Stream.Timeout.Duration })),
		skipInvalid: resolveBool(c, "skip-invalid", configVal(cfg, func(c *config.Config) bool { return c.Stream.SkipInvalid })),
	}
	if st.count < 0 {
		return st, cli.Exit(fmt.Sprintf("--count must be >= 0, got %d", st.count), exitConfigError)
	}
	return st, nil
}

// redisConfig resolves connection settings from flags and config.
func redisConfig(c *cli.Context, cfg *config.Config) (redis.Config, error) {
	rc := redis.Config{
		URL:       resolveString(c, "url", configVal(cfg, func(c *config.Config) string { return c.Redis.URL })),
		Channel:   resolveString(c, "channel", configVal(cfg, func(c *config.Config) string { return c.Redis.Channel })),
		EndMarker: resolveString(c, "end-marker", configVal(cfg, func(c *config.Config) string { return c.Redis.EndMarker })),
		Timeout:   resolveDuration(c, "publish-timeout", configVal(cfg, func(c *config.Config) time.Duration { return c.Redis.Timeout.Duration })),
		Retries:   redis.DefaultRetries,
	}
	if cfg != nil && cfg.Redis.Retries != nil {
		rc.Retries = *cfg.Redis.Retries
	}
	if c.IsSet("retries") {
		rc.Retries = c.Int("retries")
	}
	if rc.URL == "" {
		return rc, cli.Exit("redis URL required: set --url, SLUICE_REDIS_URL, or redis.url in config", exitConfigError)
	}
	if rc.Channel == "" {
		rc.Channel = redis.DefaultChannel
	}
	return rc, nil
}

// streamExit maps a stream outcome to an exit error.
func streamExit(err error) error {
	if err == nil {
		return nil
	}
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		return err
	}
	return cli.Exit(err.Error(), exitStreamError)
}

// printStats renders the metrics snapshot to stderr when --stats is set.
func printStats(c *cli.Context, collector *metrics.Collector) {
	if !c.Bool("stats") {
		return
	}
	r := render.NewRendererWithWriter(render.FormatTable, true, errWriter(c))
	_ = r.Render(collector.Snapshot())
}
