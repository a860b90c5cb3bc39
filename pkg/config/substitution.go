package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var envVarPattern = regexp.MustCompile(`\$\{env://([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// EnvSubstituter replaces ${env://VAR} and ${env://VAR:-default} patterns in
// configuration text with environment values.
type EnvSubstituter struct{}

// SubstituteEnvVars expands every pattern in content. A variable that is
// unset and has no default is an error.
func (e *EnvSubstituter) SubstituteEnvVars(content string) (string, error) {
	var missing []string

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varPart := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${env://")
		name, def, hasDefault := strings.Cut(varPart, ":-")

		if value := os.Getenv(name); value != "" {
			return value
		}
		if hasDefault {
			return def
		}
		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("environment variable substitution failed: required variables not set: %s", strings.Join(missing, ", "))
	}
	return result, nil
}

// HasEnvVars reports whether content contains ${env://...} patterns.
func HasEnvVars(content string) bool {
	return envVarPattern.MatchString(content)
}
