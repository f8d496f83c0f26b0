package cmd

import (
	"context"
	"errors"
	"slices"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sluice/bridge"
	"github.com/pithecene-io/sluice/iox"
	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/source/redis"
)

// LastCommand returns the last command.
// Last waits for a channel to finish and prints only its final value.
func LastCommand() *cli.Command {
	return &cli.Command{
		Name:   "last",
		Usage:  "Print the last value published before a channel finishes",
		Flags:  slices.Concat(OutputFlags(), RedisFlags(), StreamFlags(), []cli.Flag{StatsFlag}),
		Action: lastAction,
	}
}

func lastAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for last command", exitConfigError)
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
	if st.count == 0 && st.timeout == 0 && rc.EndMarker == "" {
		return cli.Exit("last needs --count, --end-marker, or --timeout to know when the channel is done", exitConfigError)
	}
	r, err := newRenderer(c)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(rc.Channel, string(st.codec), "")
	rc.Limit = st.count
	rc.Logger, rc.Collector = e.logger, collector
	src, err := redis.NewSource(rc)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	defer iox.DiscardClose(src)

	sigCtx, stop := signalContext(c)
	defer stop()
	// The source completes when the timeout fires; the await only ends early
	// on a signal.
	srcCtx, cancel := withTimeout(sigCtx, st.timeout)
	defer cancel()

	future := bridge.SingleFrom(
		decodeMessages(src.Bind(srcCtx), st, e.logger, collector),
		bridge.WithName("last:"+src.Channel()),
		bridge.WithLogger(e.logger),
		bridge.WithCollector(collector),
	)

	v, err := future.Await(sigCtx)
	printStats(c, collector)
	if errors.Is(err, context.Canceled) {
		return cli.Exit("interrupted", exitStreamError)
	}
	if err != nil {
		return streamExit(err)
	}
	if collector.Snapshot().ValuesDelivered == 0 {
		return cli.Exit("no values received", exitStreamError)
	}
	return r.RenderValue(v)
}
