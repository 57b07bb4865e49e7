// Package config loads desklink.yaml.
package config

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} with the variable's value and ${VAR:-default}
// with the value or, when unset or empty, the default. Unset variables
// without a default expand to the empty string; a required setting left
// empty this way fails Validate or the backend constructor.
func ExpandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if value, ok := os.LookupEnv(groups[1]); ok && value != "" {
			return value
		}
		return groups[2]
	})
}
