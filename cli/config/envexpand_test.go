package config

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("SLUICE_SET", "real")
	t.Setenv("SLUICE_EMPTY", "")

	tests := []struct {
		name, in, want string
	}{
		{"set", "url: ${SLUICE_SET}", "url: real"},
		{"unset", "url: ${SLUICE_UNSET_12345}", "url: "},
		{"default when unset", "url: ${SLUICE_UNSET_12345:-fallback}", "url: fallback"},
		{"default ignored when set", "url: ${SLUICE_SET:-fallback}", "url: real"},
		{"default when empty", "url: ${SLUICE_EMPTY:-fallback}", "url: fallback"},
		{"multiple", "${SLUICE_SET}/${SLUICE_UNSET_12345:-x}/${SLUICE_SET}", "real/x/real"},
		{"no vars", "plain: value", "plain: value"},
		{"bare dollar untouched", "cost: $5 and $SLUICE_SET", "cost: $5 and $SLUICE_SET"},
		{"empty default", "v: ${SLUICE_UNSET_12345:-}", "v: "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.in); got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
