// internal/commands/output.go
package georaft

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/fatih/color"
	"go.yaml.in/yaml/v3"
)

var (
	successText = color.New(color.FgGreen).SprintFunc()
	failedText  = color.New(color.FgRed).SprintFunc()
	warnText    = color.New(color.FgYellow).SprintFunc()
	headerText  = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// statusText colors a status word by its meaning.
func statusText(status string) string {
	switch status {
	case "completed", "healthy", "improving":
		return successText(status)
	case "failed", "declining":
		return failedText(status)
	case "running", "pending", "warning":
		return warnText(status)
	default:
		return status
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printYAML renders v through its JSON form so field names match the API.
func printYAML(out io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(generic)
}

// printStructured writes v as JSON or YAML and reports whether it did.
func printStructured(out io.Writer, format string, v any) (bool, error) {
	switch {
	case format == "yaml":
		return true, printYAML(out, v)
	case format == "json" || JSONModeEnabled():
		return true, printJSON(out, v)
	default:
		return false, nil
	}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
