// Package config handles sluice.yaml loading.
package config

import (
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} in input.
//
// A set, non-empty variable wins; otherwise the default is used; an unset
// variable without a default expands to the empty string. Missing required
// values surface later, when the command validates its inputs.
func ExpandEnv(input string) string {
	matches := envVarPattern.FindAllStringSubmatchIndex(input, -1)
	if len(matches) == 0 {
		return input
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(input[last:m[0]])
		name := input[m[2]:m[3]]

		switch value := os.Getenv(name); {
		case value != "":
			b.WriteString(value)
		case m[6] >= 0:
			b.WriteString(input[m[6]:m[7]])
		}
		last = m[1]
	}
	b.WriteString(input[last:])
	return b.String()
}
