package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sluice/bridge"
	"github.com/pithecene-io/sluice/cli/config"
	"github.com/pithecene-io/sluice/codec"
	"github.com/pithecene-io/sluice/iox"
	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/source/frames"
)

// ReplayCommand returns the replay command.
// Replay reads a length-prefixed msgpack frame file and prints its values.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "Print values from a msgpack frame file",
		Flags: slices.Concat(OutputFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Usage:    "Frame file to read (- for stdin)",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "last",
				Usage: "Print only the final value",
			},
			&cli.BoolFlag{
				Name:  "skip-invalid",
				Usage: "Skip frames that fail to decode instead of failing",
			},
			StatsFlag,
		}),
		Action: replayAction,
	}
}

func replayAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for replay command", exitConfigError)
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	defer iox.DiscardErr(e.logger.Sync)

	r, err := newRenderer(c)
	if err != nil {
		return err
	}

	path := c.String("file")
	in, closeIn, err := openInput(c, path)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	defer closeIn()

	collector := metrics.NewCollector(inputName(path), string(codec.Msgpack), "")
	src := frames.NewSource[any](in, frames.Config{
		SkipInvalid: resolveBool(c, "skip-invalid", configVal(e.cfg, func(c *config.Config) bool { return c.Stream.SkipInvalid })),
		Logger:      e.logger,
		Collector:   collector,
	})
	opts := []bridge.Option{
		bridge.WithName("replay:" + inputName(path)),
		bridge.WithLogger(e.logger),
		bridge.WithCollector(collector),
	}

	ctx, stop := signalContext(c)
	defer stop()

	if c.Bool("last") {
		v, err := bridge.SingleFrom[any](src, opts...).Await(ctx)
		printStats(c, collector)
		if err != nil {
			return streamExit(err)
		}
		return r.RenderValue(v)
	}

	for v, err := range bridge.EnumerateFrom[any](ctx, src, opts...) {
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

// openInput opens path, or the app's reader for "-".
func openInput(c *cli.Context, path string) (io.Reader, func(), error) {
	if path == "-" {
		var in io.Reader = os.Stdin
		if c.App != nil && c.App.Reader != nil {
			in = c.App.Reader
		}
		return in, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open frame file: %w", err)
	}
	return f, iox.CloseFunc(f), nil
}

func inputName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return filepath.Base(path)
}
