package card

import (
	"fmt"
	"strings"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

// AdaptFields maps compiled card content onto the target note model's field
// names. Exact "Front"/"Back" wins; otherwise the first field whose name
// contains "front" or "question" (case-insensitive) takes the front, and the
// first containing "back" or "answer" takes the back. Every other model field
// is left empty. When neither side can be placed, the model is unusable and
// the error says how to fix it.
func AdaptFields(modelFields []string, content CardContent) (map[string]string, error) {
	fields := make(map[string]string, len(modelFields))
	for _, f := range modelFields {
		fields[f] = ""
	}

	frontField := pickField(modelFields, "Front", "front", "question")
	backField := pickField(modelFields, "Back", "back", "answer")

	if frontField == "" && backField == "" {
		return nil, fmt.Errorf(
			"%w: model has fields %v; rename one to contain \"front\" or \"question\" and one to contain \"back\" or \"answer\", or pick a different note model",
			types.ErrConfigurationMismatch, modelFields)
	}
	if frontField != "" {
		fields[frontField] = content.Front
	}
	if backField != "" {
		fields[backField] = content.Back
	}
	return fields, nil
}

func pickField(modelFields []string, exact string, substrings ...string) string {
	for _, f := range modelFields {
		if f == exact {
			return f
		}
	}
	for _, f := range modelFields {
		lower := strings.ToLower(f)
		for _, sub := range substrings {
			if strings.Contains(lower, sub) {
				return f
			}
		}
	}
	return ""
}
