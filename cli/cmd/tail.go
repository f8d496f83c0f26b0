package cmd

import (
	"slices"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sluice/bridge"
	"github.com/pithecene-io/sluice/cli/render"
	"github.com/pithecene-io/sluice/cli/tui"
	"github.com/pithecene-io/sluice/iox"
	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/source/redis"
)

// TailCommand returns the tail command.
// Tail prints every value published to a channel as it arrives.
func TailCommand() *cli.Command {
	return &cli.Command{
		Name:   "tail",
		Usage:  "Stream values published to a Redis channel",
		Flags:  slices.Concat(OutputFlags(), RedisFlags(), StreamFlags(), []cli.Flag{StatsFlag}),
		Action: tailAction,
	}
}

func tailAction(c *cli.Context) error {
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
	r, err := newRenderer(c)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(rc.Channel, string(st.codec), "")
	rc.Logger, rc.Collector = e.logger, collector
	src, err := redis.NewSource(rc)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	defer iox.DiscardClose(src)

	sigCtx, stop := signalContext(c)
	defer stop()
	ctx, cancel := withTimeout(sigCtx, st.timeout)
	defer cancel()

	stream := bridge.NewStream[any](
		bridge.WithName("tail:"+src.Channel()),
		bridge.WithLogger(e.logger),
		bridge.WithCollector(collector),
	)
	decodeMessages(src.Bind(ctx), st, e.logger, collector).Subscribe(stream)
	seq := limit(stream.All(ctx), st.count)

	if c.Bool("tui") {
		m, err := tui.RunWatch(cancel, tui.WatchConfig{
			Title: "tail " + src.Channel(),
			Stats: stream.Stats,
		}, seq, render.Text)
		if err != nil {
			return err
		}
		printStats(c, collector)
		return streamExit(m.Err())
	}

	for v, err := range seq {
		if err != nil {
			printStats(c, collector)
			return streamExit(err)
		}
		if err := r.RenderValue(v); err != nil {
			return err
		}
	}
	printStats(c, collector)
	return nil
}
