package main

import (
	"errors"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestExitErrHandler_NilError(t *testing.T) {
	// Should not panic or exit on nil error
	exitErrHandler(nil, nil)
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"success no message", cli.Exit("", 0), 0, ""},
		{"stream error", cli.Exit("redis: receive: boom", 1), 1, "redis: receive: boom"},
		{"config error", cli.Exit("invalid codec", 2), 2, "invalid codec"},
		{"empty message", cli.Exit("", 2), 2, ""},
		{"wrapped", errors.Join(errors.New("context"), cli.Exit("inner error", 42)), 42, "inner error"},
		{"regular error", errors.New("regular error"), 1, "Error: regular error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := exitStatus(tt.err)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if msg != tt.wantMsg {
				t.Errorf("msg = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestNewApp_Commands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"tail", "last", "replay", "archive", "publish", "version"} {
		if app.Command(name) == nil {
			t.Errorf("missing command %q", name)
		}
	}
}
