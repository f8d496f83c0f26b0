package cmd

import (
	"errors"
	"io"
	"slices"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sluice/iox"
	"github.com/pithecene-io/sluice/source/frames"
	"github.com/pithecene-io/sluice/source/redis"
)

// PublishCommand returns the publish command.
// Publish sends payloads given as arguments, or every frame payload of a
// frame file, to a channel.
func PublishCommand() *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "Publish payloads to a Redis channel",
		ArgsUsage: "[payload...]",
		Flags: slices.Concat([]cli.Flag{FormatFlag, NoColorFlag}, RedisFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "Publish every frame payload from a frame file (- for stdin)",
			},
			&cli.IntFlag{
				Name:  "retries",
				Usage: "Retry attempts per payload (default: 3)",
			},
			&cli.DurationFlag{
				Name:  "publish-timeout",
				Usage: "Per-attempt publish timeout (default: 5s)",
			},
		}),
		Action: publishAction,
	}
}

// PublishResult is the publish command's result.
type PublishResult struct {
	Channel   string `json:"channel"`
	Published int    `json:"published"`
	Receivers int64  `json:"receivers"`
}

func publishAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer iox.DiscardErr(e.logger.Sync)

	rc, err := redisConfig(c, e.cfg)
	if err != nil {
		return err
	}
	r, err := newRenderer(c)
	if err != nil {
		return err
	}

	payloads, err := collectPayloads(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	if rc.EndMarker != "" {
		payloads = append(payloads, []byte(rc.EndMarker))
	}
	if len(payloads) == 0 {
		return cli.Exit("nothing to publish: pass payload arguments or --file", exitConfigError)
	}

	rc.Logger = e.logger
	pub, err := redis.NewPublisher(rc)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	defer iox.DiscardClose(pub)

	ctx, stop := signalContext(c)
	defer stop()

	result := PublishResult{Channel: rc.Channel}
	for _, payload := range payloads {
		n, err := pub.Publish(ctx, payload)
		if err != nil {
			_ = r.Render(result)
			return streamExit(err)
		}
		result.Published++
		result.Receivers += n
	}
	return r.Render(result)
}

// collectPayloads gathers payloads from --file frames, then arguments.
func collectPayloads(c *cli.Context) ([][]byte, error) {
	var payloads [][]byte
	if path := c.String("file"); path != "" {
		in, closeIn, err := openInput(c, path)
		if err != nil {
			return nil, err
		}
		defer closeIn()

		dec := frames.NewDecoder(in)
		for {
			payload, err := dec.ReadFrame()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, err
			}
			payloads = append(payloads, payload)
		}
	}
	for _, arg := range c.Args().Slice() {
		payloads = append(payloads, []byte(arg))
	}
	return payloads, nil
}
