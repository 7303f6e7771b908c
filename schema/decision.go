package schema

import "strings"

// Decision is the answer to the unsaved-changes prompt.
type Decision string

const (
	// DecisionSave saves the buffer, then proceeds with the original action.
	DecisionSave Decision = "save"
	// DecisionDiscard proceeds without saving.
	DecisionDiscard Decision = "discard"
	// DecisionCancel aborts the original action.
	DecisionCancel Decision = "cancel"
)

// ParseDecision accepts s/d/c or the full words, case-insensitively.
func ParseDecision(input string) (Decision, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "s", "save", "y", "yes":
		return DecisionSave, true
	case "d", "discard", "n", "no":
		return DecisionDiscard, true
	case "c", "cancel":
		return DecisionCancel, true
	default:
		return "", false
	}
}
