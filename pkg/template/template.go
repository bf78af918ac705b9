// Package template resolves {{dotted.path}} placeholders against a run
// context. Unresolvable paths are left literally in place so that partially
// configured templates stay readable instead of erroring; re-interpolating
// such output is a no-op.
package template

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowgrid/flowgrid/pkg/models"
)

const (
	openMarker  = "{{"
	closeMarker = "}}"
)

// Interpolate substitutes every {{path}} token in input with the value found
// at that dotted path in the run context. Missing paths keep the original
// token. The function is pure: no side effects, no error path.
func Interpolate(input string, runCtx *models.RunContext) string {
	if !strings.Contains(input, openMarker) {
		return input
	}

	var out strings.Builder
	out.Grow(len(input))

	i := 0
	for i < len(input) {
		idx := strings.Index(input[i:], openMarker)
		if idx == -1 {
			out.WriteString(input[i:])

			break
		}

		out.WriteString(input[i : i+idx])
		start := i + idx + len(openMarker)

		end := strings.Index(input[start:], closeMarker)
		if end == -1 {
			// Unterminated token, keep the rest verbatim.
			out.WriteString(input[i+idx:])

			break
		}
		end += start

		path := strings.TrimSpace(input[start:end])

		value, ok := runCtx.Lookup(path)
		if path == "" || !ok {
			out.WriteString(input[i+idx : end+len(closeMarker)])
		} else {
			out.WriteString(stringify(value))
		}

		i = end + len(closeMarker)
	}

	return out.String()
}

// InterpolateStructure walks an arbitrarily nested mapping/sequence and
// applies Interpolate to every string value, leaving non-string values
// untouched. The input is not mutated; a new structure is returned.
func InterpolateStructure(input any, runCtx *models.RunContext) any {
	switch v := input.(type) {
	case string:
		return Interpolate(v, runCtx)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[key] = InterpolateStructure(val, runCtx)
		}

		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = InterpolateStructure(val, runCtx)
		}

		return out
	default:
		return input
	}
}

// stringify renders a resolved value for embedding into the output string.
// Maps and slices are JSON-encoded inline.
func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return "null"
	case bool, int, int64, float64:
		return fmt.Sprintf("%v", v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(encoded)
	}
}
