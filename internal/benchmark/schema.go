// internal/benchmark/schema.go
package benchmark

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidConfig is returned when a benchmark config does not satisfy the config schema.
var ErrInvalidConfig = errors.New("invalid benchmark config")

// configSchema constrains the known parameters; unknown keys pass through to the benchmark untouched.
var configSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"transactions": map[string]any{"type": "number", "minimum": 1},
		"workers":      map[string]any{"type": "number", "minimum": 1},
		"duration":     map[string]any{"type": "number", "minimum": 1},
		"tps":          map[string]any{"type": "number", "minimum": 0},
		"optimization": map[string]any{"type": "number", "minimum": 0, "maximum": 100},
		"workload":     map[string]any{"type": "string", "minLength": 1},
		"region":       map[string]any{"type": "string", "minLength": 1},
		"regions": map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "string", "minLength": 1},
			"minItems": 1,
		},
		"benchConfig":   map[string]any{"type": "string", "minLength": 1},
		"networkConfig": map[string]any{"type": "string", "minLength": 1},
	},
}

// DefaultConfig is used when a start request carries no parameters.
func DefaultConfig() Config {
	return Config{
		"transactions": float64(50000),
		"workers":      float64(20),
		"duration":     float64(600),
		"regions":      []any{"americas", "europe", "asiaPacific"},
	}
}

// ValidateConfig checks cfg against the config schema. An empty config is valid.
func ValidateConfig(cfg Config) error {
	if len(cfg) == 0 {
		return nil
	}
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(configSchema), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, ", "))
}
