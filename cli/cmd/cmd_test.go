package cmd

import (
	"errors"
	"flag"
	"io"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sluice/cli/config"
	"github.com/pithecene-io/sluice/codec"
	"github.com/pithecene-io/sluice/log"
	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/observer"
	"github.com/pithecene-io/sluice/source/redis"
)

// newTestCLIContext builds a *cli.Context with flags registered and args
// parsed, so c.IsSet reports only the flags present in args.
func newTestCLIContext(t *testing.T, flags []cli.Flag, args ...string) *cli.Context {
	t.Helper()
	app := cli.NewApp()
	app.Writer = io.Discard
	app.ErrWriter = io.Discard

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range flags {
		if err := f.Apply(fs); err != nil {
			t.Fatalf("failed to apply flag %v: %v", f.Names(), err)
		}
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("failed to parse args: %v", err)
	}
	return cli.NewContext(app, fs, nil)
}

func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		return exitCoder.ExitCode()
	}
	return -1
}

func TestOutputFlags_IncludesTUI(t *testing.T) {
	hasTUI := false
	for _, f := range OutputFlags() {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}
	if !hasTUI {
		t.Error("OutputFlags should include --tui flag for explicit error handling")
	}
}

func TestExitCodes_Distinct(t *testing.T) {
	if exitStreamError == exitConfigError || exitSuccess == exitStreamError {
		t.Error("exit codes must be distinct")
	}
}

// --- Config precedence ---

func TestResolveString_CLIWins(t *testing.T) {
	c := newTestCLIContext(t, RedisFlags(), "--channel", "cli-val")
	if got := resolveString(c, "channel", "config-val"); got != "cli-val" {
		t.Errorf("expected CLI to win, got %q", got)
	}
}

func TestResolveString_ConfigFallback(t *testing.T) {
	c := newTestCLIContext(t, RedisFlags())
	if got := resolveString(c, "channel", "config-val"); got != "config-val" {
		t.Errorf("expected config fallback, got %q", got)
	}
}

func TestResolveString_FlagDefault(t *testing.T) {
	flags := []cli.Flag{&cli.StringFlag{Name: "backend", Value: "fs"}}
	c := newTestCLIContext(t, flags)
	if got := resolveString(c, "backend", ""); got != "fs" {
		t.Errorf("expected flag default, got %q", got)
	}
}

func TestResolveInt(t *testing.T) {
	c := newTestCLIContext(t, StreamFlags(), "--count", "0")
	if got := resolveInt(c, "count", 9); got != 0 {
		t.Errorf("explicit --count 0 should win over config, got %d", got)
	}

	c = newTestCLIContext(t, StreamFlags())
	if got := resolveInt(c, "count", 9); got != 9 {
		t.Errorf("expected config fallback 9, got %d", got)
	}
}

func TestResolveDuration(t *testing.T) {
	c := newTestCLIContext(t, StreamFlags(), "--timeout", "2s")
	if got := resolveDuration(c, "timeout", time.Minute); got != 2*time.Second {
		t.Errorf("expected CLI 2s, got %v", got)
	}

	c = newTestCLIContext(t, StreamFlags())
	if got := resolveDuration(c, "timeout", time.Minute); got != time.Minute {
		t.Errorf("expected config 1m, got %v", got)
	}
}

func TestResolveBool(t *testing.T) {
	c := newTestCLIContext(t, StreamFlags(), "--skip-invalid=false")
	if resolveBool(c, "skip-invalid", true) {
		t.Error("explicit --skip-invalid=false should win over config")
	}

	c = newTestCLIContext(t, StreamFlags())
	if !resolveBool(c, "skip-invalid", true) {
		t.Error("expected config fallback true")
	}
}

func TestConfigVal_NilConfig(t *testing.T) {
	got := configVal(nil, func(c *config.Config) string { return c.Redis.URL })
	if got != "" {
		t.Errorf("expected empty for nil config, got %q", got)
	}
}

func TestConfigVal_NonNil(t *testing.T) {
	cfg := &config.Config{Redis: config.RedisConfig{URL: "redis://from-config"}}
	got := configVal(cfg, func(c *config.Config) string { return c.Redis.URL })
	if got != "redis://from-config" {
		t.Errorf("expected config value, got %q", got)
	}
}

// --- Resolution ---

func TestRedisConfig_RequiresURL(t *testing.T) {
	c := newTestCLIContext(t, RedisFlags())
	_, err := redisConfig(c, nil)
	if exitCode(err) != exitConfigError {
		t.Errorf("exit code = %d, want %d (err %v)", exitCode(err), exitConfigError, err)
	}
}

func TestRedisConfig_Defaults(t *testing.T) {
	c := newTestCLIContext(t, RedisFlags(), "--url", "redis://localhost:6379")
	rc, err := redisConfig(c, nil)
	if err != nil {
		t.Fatalf("redisConfig: %v", err)
	}
	if rc.Channel != redis.DefaultChannel {
		t.Errorf("Channel = %q, want %q", rc.Channel, redis.DefaultChannel)
	}
	if rc.Retries != redis.DefaultRetries {
		t.Errorf("Retries = %d, want %d", rc.Retries, redis.DefaultRetries)
	}
}

func TestRedisConfig_FromConfig(t *testing.T) {
	zero := 0
	cfg := &config.Config{Redis: config.RedisConfig{
		URL:       "redis://cfg:6379",
		Channel:   "cfg-channel",
		EndMarker: "END",
		Timeout:   config.Duration{Duration: 3 * time.Second},
		Retries:   &zero,
	}}
	c := newTestCLIContext(t, RedisFlags(), "--channel", "cli-channel")
	rc, err := redisConfig(c, cfg)
	if err != nil {
		t.Fatalf("redisConfig: %v", err)
	}
	if rc.URL != "redis://cfg:6379" || rc.Channel != "cli-channel" || rc.EndMarker != "END" {
		t.Errorf("resolved = %+v", rc)
	}
	if rc.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", rc.Timeout)
	}
	if rc.Retries != 0 {
		t.Errorf("Retries = %d, want 0 from config", rc.Retries)
	}
}

func TestResolveStream_InvalidCodec(t *testing.T) {
	c := newTestCLIContext(t, StreamFlags(), "--codec", "xml")
	_, err := resolveStream(c, nil)
	if exitCode(err) != exitConfigError {
		t.Errorf("exit code = %d, want %d", exitCode(err), exitConfigError)
	}
}

func TestResolveStream_NegativeCount(t *testing.T) {
	c := newTestCLIContext(t, StreamFlags(), "--count", "-1")
	_, err := resolveStream(c, nil)
	if exitCode(err) != exitConfigError {
		t.Errorf("exit code = %d, want %d", exitCode(err), exitConfigError)
	}
}

func TestResolveArchive_Defaults(t *testing.T) {
	c := newTestCLIContext(t, ArchiveCommand().Flags, "--path", "/tmp/x")
	a, err := resolveArchive(c, nil, "events")
	if err != nil {
		t.Fatalf("resolveArchive: %v", err)
	}
	if a.backend != "fs" || a.source != "events" || a.flushCount != DefaultFlushCount {
		t.Errorf("resolved = %+v", a)
	}
}

func TestResolveArchive_Errors(t *testing.T) {
	tests := map[string][]string{
		"missing path":    nil,
		"unknown backend": {"--path", "x", "--backend", "gcs"},
		"negative count":  {"--path", "x", "--flush-count", "-5"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			c := newTestCLIContext(t, ArchiveCommand().Flags, args...)
			_, err := resolveArchive(c, nil, "events")
			if exitCode(err) != exitConfigError {
				t.Errorf("exit code = %d, want %d (err %v)", exitCode(err), exitConfigError, err)
			}
		})
	}
}

func TestStreamExit(t *testing.T) {
	if streamExit(nil) != nil {
		t.Error("nil should map to nil")
	}
	if got := exitCode(streamExit(errors.New("boom"))); got != exitStreamError {
		t.Errorf("exit code = %d, want %d", got, exitStreamError)
	}
	if got := exitCode(streamExit(cli.Exit("x", exitConfigError))); got != exitConfigError {
		t.Errorf("exit coder should pass through, got %d", got)
	}
}

// --- Pipeline ---

func TestLimit(t *testing.T) {
	pulled := 0
	seq := func(yield func(int, error) bool) {
		for i := range 10 {
			pulled++
			if !yield(i, nil) {
				return
			}
		}
	}

	var got []int
	for v, err := range limit(seq, 3) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, v)
	}
	if len(got) != 3 || got[2] != 2 {
		t.Errorf("got %v, want [0 1 2]", got)
	}
	if pulled != 3 {
		t.Errorf("pulled %d values, want 3", pulled)
	}
}

func TestLimit_Zero(t *testing.T) {
	seq := func(yield func(int, error) bool) {
		for i := range 4 {
			if !yield(i, nil) {
				return
			}
		}
	}
	n := 0
	for range limit(seq, 0) {
		n++
	}
	if n != 4 {
		t.Errorf("got %d values, want 4", n)
	}
}

// recorder captures notifications.
type recorder struct {
	values    []any
	err       error
	completed bool
}

func (r *recorder) OnNext(v any) error     { r.values = append(r.values, v); return nil }
func (r *recorder) OnError(err error) error { r.err = err; return nil }
func (r *recorder) OnComplete() error       { r.completed = true; return nil }

func messages(payloads ...string) observer.Observable[redis.Message] {
	return observer.SubscribeFunc[redis.Message](func(o observer.Observer[redis.Message]) {
		for _, p := range payloads {
			if err := o.OnNext(redis.Message{Channel: "events", Payload: []byte(p)}); err != nil {
				return
			}
		}
		_ = o.OnComplete()
	})
}

func TestDecodeMessages_JSON(t *testing.T) {
	rec := &recorder{}
	st := streamSettings{codec: codec.JSON}
	decodeMessages(messages(`{"n":1}`, `2`), st, log.Nop(), nil).Subscribe(rec)

	if len(rec.values) != 2 || !rec.completed {
		t.Fatalf("recorded %+v", rec)
	}
	if m, ok := rec.values[0].(map[string]any); !ok || m["n"] != float64(1) {
		t.Errorf("values[0] = %#v, want map[n:1]", rec.values[0])
	}
}

func TestDecodeMessages_InvalidFails(t *testing.T) {
	rec := &recorder{}
	c := metrics.NewCollector("events", "json", "")
	decodeMessages(messages(`{"n":1}`, `{bad`, `3`), streamSettings{codec: codec.JSON}, log.Nop(), c).Subscribe(rec)

	var de *codec.DecodeError
	if !errors.As(rec.err, &de) {
		t.Fatalf("err = %v, want *codec.DecodeError", rec.err)
	}
	if len(rec.values) != 1 {
		t.Errorf("values = %v, want 1 value before the failure", rec.values)
	}
	if rec.completed {
		t.Error("source should stop after a decode failure")
	}
	if got := c.Snapshot().DecodeErrors; got != 1 {
		t.Errorf("DecodeErrors = %d, want 1", got)
	}
}

func TestDecodeMessages_SkipInvalid(t *testing.T) {
	rec := &recorder{}
	st := streamSettings{codec: codec.JSON, skipInvalid: true}
	decodeMessages(messages(`1`, `{bad`, `3`), st, log.Nop(), nil).Subscribe(rec)

	if rec.err != nil {
		t.Fatalf("unexpected error: %v", rec.err)
	}
	if len(rec.values) != 2 || !rec.completed {
		t.Errorf("recorded %+v, want 2 values then completion", rec)
	}
}
