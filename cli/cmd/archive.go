package cmd

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sluice/bridge"
	"github.com/pithecene-io/sluice/cli/config"
	"github.com/pithecene-io/sluice/codec"
	"github.com/pithecene-io/sluice/iox"
	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/sink"
	"github.com/pithecene-io/sluice/source/redis"
)

// DefaultFlushCount applies when neither flush trigger is configured.
const DefaultFlushCount = 100

// ArchiveCommand returns the archive command.
// Archive tails a channel into a Lode dataset partitioned by source and day.
func ArchiveCommand() *cli.Command {
	return &cli.Command{
		Name:  "archive",
		Usage: "Persist values published to a Redis channel into a Lode dataset",
		Flags: slices.Concat(OutputFlags(), RedisFlags(), StreamFlags(), []cli.Flag{
			&cli.StringFlag{Name: "dataset", Usage: "Lode dataset ID (default: \"sluice\")"},
			&cli.StringFlag{Name: "backend", Usage: "Storage backend: fs or s3 (default: fs)"},
			&cli.StringFlag{Name: "path", Usage: "Storage path (fs: directory, s3: bucket/prefix)"},
			&cli.StringFlag{Name: "region", Usage: "AWS region for s3"},
			&cli.StringFlag{Name: "endpoint", Usage: "Custom S3 endpoint (R2, MinIO)"},
			&cli.BoolFlag{Name: "s3-path-style", Usage: "Force path-style S3 addressing"},
			&cli.StringFlag{Name: "source", Usage: "Source partition value (default: channel name)"},
			&cli.IntFlag{Name: "flush-count", Usage: "Flush after this many records"},
			&cli.DurationFlag{Name: "flush-interval", Usage: "Flush at least this often"},
			StatsFlag,
		}),
		Action: archiveAction,
	}
}

// archiveSettings holds resolved storage options.
type archiveSettings struct {
	dataset       string
	backend       string
	path          string
	region        string
	endpoint      string
	pathStyle     bool
	source        string
	flushCount    int
	flushInterval time.Duration
}

func resolveArchive(c *cli.Context, cfg *config.Config, channel string) (archiveSettings, error) {
	a := archiveSettings{
		dataset:       resolveString(c, "dataset", configVal(cfg, func(c *config.Config) string { return c.Archive.Dataset })),
		backend:       resolveString(c, "backend", configVal(cfg, func(c *config.Config) string { return c.Archive.Backend })),
		path:          resolveString(c, "path", configVal(cfg, func(c *config.Config) string { return c.Archive.Path })),
		region:        resolveString(c, "region", configVal(cfg, func(c *config.Config) string { return c.Archive.Region })),
		endpoint:      resolveString(c, "endpoint", configVal(cfg, func(c *config.Config) string { return c.Archive.Endpoint })),
		pathStyle:     resolveBool(c, "s3-path-style", configVal(cfg, func(c *config.Config) bool { return c.Archive.S3PathStyle })),
		source:        resolveString(c, "source", configVal(cfg, func(c *config.Config) string { return c.Archive.Source })),
		flushCount:    resolveInt(c, "flush-count", configVal(cfg, func(c *config.Config) int { return c.Archive.FlushCount })),
		flushInterval: resolveDuration(c, "flush-interval", configVal(cfg, func(c *config.Config) time.Duration { return c.Archive.FlushInterval.Duration })),
	}
	if a.backend == "" {
		a.backend = "fs"
	}
	if a.source == "" {
		a.source = channel
	}
	if a.flushCount == 0 && a.flushInterval == 0 {
		a.flushCount = DefaultFlushCount
	}

	if a.backend != "fs" && a.backend != "s3" {
		return a, cli.Exit(fmt.Sprintf("unknown backend: %s (must be fs or s3)", a.backend), exitConfigError)
	}
	if a.path == "" {
		return a, cli.Exit("--path is required (or archive.path in config)", exitConfigError)
	}
	if a.flushCount < 0 || a.flushInterval < 0 {
		return a, cli.Exit("flush-count and flush-interval must be >= 0", exitConfigError)
	}
	return a, nil
}

// openSink builds the storage sink for the resolved backend.
func openSink(ctx context.Context, a archiveSettings, collector *metrics.Collector) (sink.Sink, error) {
	cfg := sink.Config{
		Dataset:   a.dataset,
		Source:    a.source,
		Collector: collector,
	}
	switch a.backend {
	case "s3":
		bucket, prefix := sink.ParseS3Path(a.path)
		return sink.NewS3Sink(ctx, cfg, sink.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       a.region,
			Endpoint:     a.endpoint,
			UsePathStyle: a.pathStyle,
		})
	default:
		return sink.NewFSSink(cfg, a.path)
	}
}

// ArchiveSummary is the archive command's result.
type ArchiveSummary struct {
	Channel   string `json:"channel"`
	Dataset   string `json:"dataset"`
	Backend   string `json:"backend"`
	Received  int64  `json:"received"`
	Persisted int64  `json:"persisted"`
	Buffered  int64  `json:"buffered"`
	Flushes   int64  `json:"flushes"`
	Errors    int64  `json:"errors"`
}

func archiveAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for archive command", exitConfigError)
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	defer iox.DiscardErr(e.logger.Sync)

	st, err := resolveStream(c, e.cfg)
	if err != nil {
		return err
	}
	rc, err := redisConfig(c, e.cfg)
	if err != nil {
		return err
	}
	a, err := resolveArchive(c, e.cfg, rc.Channel)
	if err != nil {
		return err
	}
	r, err := newRenderer(c)
	if err != nil {
		return err
	}

	sigCtx, stop := signalContext(c)
	defer stop()

	collector := metrics.NewCollector(rc.Channel, string(st.codec), a.backend)
	snk, err := openSink(sigCtx, a, collector)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open %s storage: %v", a.backend, err), exitConfigError)
	}
	drainer, err := sink.NewDrainer(snk, sink.DrainConfig{
		FlushCount:    a.flushCount,
		FlushInterval: a.flushInterval,
		Logger:        e.logger,
	})
	if err != nil {
		iox.DiscardClose(snk)
		return cli.Exit(err.Error(), exitConfigError)
	}

	rc.Logger, rc.Collector = e.logger, collector
	src, err := redis.NewSource(rc)
	if err != nil {
		iox.DiscardClose(drainer)
		return cli.Exit(err.Error(), exitConfigError)
	}

	ctx, cancel := withTimeout(sigCtx, st.timeout)
	defer cancel()

	seq := limit(bridge.EnumerateFrom(ctx,
		decodeMessages(src.Bind(ctx), st, e.logger, collector),
		bridge.WithName("archive:"+src.Channel()),
		bridge.WithLogger(e.logger),
		bridge.WithCollector(collector),
	), st.count)

	channel := src.Channel()
	drainErr := sink.Drain(ctx, drainer, seq, func(v any) (sink.Record, error) {
		return sink.Record{
			"channel":     channel,
			"value":       codec.Normalize(v),
			"received_at": time.Now().UTC().Format(time.RFC3339Nano),
		}, nil
	})
	closeErr := iox.CloseAll(src, drainer)

	stats := drainer.Stats()
	var flushes int64
	for _, n := range stats.Flushes {
		flushes += n
	}
	summary := ArchiveSummary{
		Channel:   channel,
		Dataset:   a.dataset,
		Backend:   a.backend,
		Received:  stats.Received,
		Persisted: stats.Persisted,
		Buffered:  stats.Buffered,
		Flushes:   flushes,
		Errors:    stats.Errors,
	}
	if summary.Dataset == "" {
		summary.Dataset = sink.DefaultDataset
	}
	if err := r.Render(summary); err != nil {
		return err
	}
	printStats(c, collector)

	if drainErr != nil {
		return streamExit(drainErr)
	}
	return streamExit(closeErr)
}
