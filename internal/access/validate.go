package access

import (
	"fmt"
	"strings"
)

// ValidationKind classifies why a request was rejected.
type ValidationKind string

const (
	MissingFields         ValidationKind = "missing_fields"
	DurationExceeded      ValidationKind = "duration_exceeded"
	JustificationTooShort ValidationKind = "justification_too_short"
)

// Limits are the configured validation ceilings.
type Limits struct {
	MaxDurationMinutes  int
	MinJustificationLen int
}

// ValidationError reports a rejected request. It is the caller's fault:
// nothing has been granted or scheduled when one is returned.
type ValidationError struct {
	Kind   ValidationKind
	Fields []string
	Max    int
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingFields:
		return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
	case DurationExceeded:
		return fmt.Sprintf("duration exceeds maximum of %d minutes", e.Max)
	case JustificationTooShort:
		return fmt.Sprintf("justification must be at least %d characters", e.Max)
	}
	return "invalid request"
}

// Validate checks a grant request against the configured limits before any
// state change is made. Pure function: no side effects.
func Validate(req GrantRequest, limits Limits) *ValidationError {
	var missing []string
	if strings.TrimSpace(req.PrincipalID) == "" {
		missing = append(missing, "principal_id")
	}
	if strings.TrimSpace(req.Target) == "" {
		missing = append(missing, "target")
	}
	if req.DurationMinutes <= 0 {
		missing = append(missing, "duration_minutes")
	}
	switch req.Kind {
	case KindHuman:
		if strings.TrimSpace(req.Justification) == "" {
			missing = append(missing, "justification")
		}
	case KindNonHuman:
		if strings.TrimSpace(req.Role) == "" {
			missing = append(missing, "role")
		}
		if strings.TrimSpace(req.WorkflowID) == "" {
			missing = append(missing, "workflow_id")
		}
	default:
		missing = append(missing, "identity_kind")
	}
	if len(missing) > 0 {
		return &ValidationError{Kind: MissingFields, Fields: missing}
	}

	if req.DurationMinutes > limits.MaxDurationMinutes {
		return &ValidationError{Kind: DurationExceeded, Max: limits.MaxDurationMinutes}
	}
	if req.Kind == KindHuman && len(req.Justification) < limits.MinJustificationLen {
		return &ValidationError{Kind: JustificationTooShort, Max: limits.MinJustificationLen}
	}
	return nil
}
