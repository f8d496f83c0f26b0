// Package cmd provides CLI commands for the sluice binary.
package cmd

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sluice/cli/config"
)

// Exit codes.
const (
	exitSuccess     = 0
	exitStreamError = 1
	exitConfigError = 2
)

// Global flags, registered on the app.
var (
	// ConfigFlag points at a sluice.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to sluice.yaml",
		EnvVars: []string{"SLUICE_CONFIG"},
	}

	// LogLevelFlag sets the log level: debug, info, warn, error.
	LogLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level: debug, info, warn, error",
		EnvVars: []string{"SLUICE_LOG_LEVEL"},
	}
)

// Shared output flags.
var (
	// FormatFlag selects output format: json, table, yaml, text.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml, text",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables the Bubble Tea live view.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Show values in an interactive live view (tail only)",
	}

	// StatsFlag prints the metrics snapshot to stderr on exit.
	StatsFlag = &cli.BoolFlag{
		Name:  "stats",
		Usage: "Print adapter metrics to stderr when done",
	}
)

// GlobalFlags returns the flags registered on the app.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{ConfigFlag, LogLevelFlag}
}

// OutputFlags returns the shared output flags. --tui is included everywhere
// so unsupported commands report an explicit error instead of a generic
// "flag not defined".
func OutputFlags() []cli.Flag {
	return []cli.Flag{FormatFlag, NoColorFlag, TUIFlag}
}

// RedisFlags returns the flags that select a Redis channel.
func RedisFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "url",
			Usage:   "Redis URL (redis://[:password@]host:port[/db])",
			EnvVars: []string{"SLUICE_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:  "channel",
			Usage: "Pub/sub channel (default: sluice:events)",
		},
		&cli.StringFlag{
			Name:  "end-marker",
			Usage: "Payload that completes the subscription",
		},
	}
}

// StreamFlags returns the flags that shape a subscription.
func StreamFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "codec",
			Usage: "Payload codec: raw, json, msgpack",
		},
		&cli.IntFlag{
			Name:  "count",
			Usage: "Stop after this many values (0 = unlimited)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Stop after this long (0 = no timeout)",
		},
		&cli.BoolFlag{
			Name:  "skip-invalid",
			Usage: "Skip payloads that fail to decode instead of failing",
		},
	}
}

// resolveString returns the CLI value if explicitly set, otherwise the
// config value, otherwise the flag default.
func resolveString(c *cli.Context, name, cfgVal string) string {
	if c.IsSet(name) || cfgVal == "" {
		return c.String(name)
	}
	return cfgVal
}

// resolveInt is resolveString for int flags.
func resolveInt(c *cli.Context, name string, cfgVal int) int {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Int(name)
	}
	return cfgVal
}

// resolveDuration is resolveString for duration flags.
func resolveDuration(c *cli.Context, name string, cfgVal time.Duration) time.Duration {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Duration(name)
	}
	return cfgVal
}

// resolveBool returns the CLI value if explicitly set, otherwise the config
// value.
func resolveBool(c *cli.Context, name string, cfgVal bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return cfgVal || c.Bool(name)
}

// configVal reads a field from an optional config.
func configVal[T any](cfg *config.Config, get func(*config.Config) T) T {
	if cfg == nil {
		var zero T
		return zero
	}
	return get(cfg)
}
