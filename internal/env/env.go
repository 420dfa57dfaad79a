package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/polyglot/internal/envvar"
)

// Environment is the runtime environment the process runs in.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
	Test        Environment = "test"
)

// FromEnv resolves the environment from POLYGLOT_ENV. Unknown or empty values
// resolve to Development.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.PolyglotEnv))
}

// Parse maps a raw value to an Environment.
func Parse(raw string) Environment {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prod", "production":
		return Production
	case "test", "testing":
		return Test
	default:
		return Development
	}
}

// IsProduction reports whether e is the production environment.
func (e Environment) IsProduction() bool {
	return e == Production
}
