// Package telemetry defines the learning-interaction event model: a tagged
// union of everything the platform records about chat turns, assignments,
// ethics interventions, privacy flags, and system errors.
//
// Events are immutable once appended to the log. Ordering is by arrival into
// the log (RecordedAt), never by the client-supplied Timestamp, which is used
// for windowing and retention only.
package telemetry

import (
	"fmt"
	"time"

	"github.com/edupulse/edupulse-insights/internal/domain/shared"
)

// Kind discriminates the event union.
type Kind string

const (
	// KindInteraction is a single tutoring chat turn.
	KindInteraction Kind = "interaction"

	// KindAssignment is an assignment generation or evaluation.
	KindAssignment Kind = "assignment"

	// KindEthics is an intervention emitted by the ethics classifier.
	KindEthics Kind = "ethics"

	// KindPrivacy is a privacy flag (PII detected, content redacted).
	KindPrivacy Kind = "privacy"

	// KindSystemError is an internal failure worth surfacing on dashboards.
	KindSystemError Kind = "system_error"
)

// AllKinds lists every valid kind, in a fixed order.
func AllKinds() []Kind {
	return []Kind{KindInteraction, KindAssignment, KindEthics, KindPrivacy, KindSystemError}
}

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	switch k {
	case KindInteraction, KindAssignment, KindEthics, KindPrivacy, KindSystemError:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", shared.ErrUnknownEventKind, s)
}

// Depth is the pedagogical difficulty tier of an interaction.
type Depth string

const (
	DepthCore    Depth = "core"
	DepthApplied Depth = "applied"
	DepthMastery Depth = "mastery"
)

// Rank orders depths: core < applied < mastery. Unknown depths rank lowest.
func (d Depth) Rank() int {
	switch d {
	case DepthCore:
		return 1
	case DepthApplied:
		return 2
	case DepthMastery:
		return 3
	default:
		return 0
	}
}

// Valid reports whether d is a known depth.
func (d Depth) Valid() bool { return d.Rank() > 0 }

// AllDepths lists the depth tiers from easiest to hardest.
func AllDepths() []Depth { return []Depth{DepthCore, DepthApplied, DepthMastery} }

// AssignmentAction describes what happened to an assignment.
type AssignmentAction string

const (
	AssignmentGenerated AssignmentAction = "generated"
	AssignmentEvaluated AssignmentAction = "evaluated"
	AssignmentEnforced  AssignmentAction = "enforced"
)

// EthicsCategory classifies an ethics intervention. The core treats the
// classifier's flags as opaque tags; only the category drives compliance
// scoring.
type EthicsCategory string

const (
	EthicsCheatingDetected   EthicsCategory = "cheating_detected"
	EthicsAssignmentEnforced EthicsCategory = "assignment_enforced"
	EthicsPromptModified     EthicsCategory = "prompt_modified"
)

// Event is the telemetry record persisted in the event log. Exactly one of
// the payload pointers is non-nil, matching Kind.
type Event struct {
	// ID is assigned by the event log at append time.
	ID string `json:"id"`

	// Kind discriminates which payload is set.
	Kind Kind `json:"kind"`

	// Timestamp is the client-supplied instant. Used for windowing and
	// retention only; events with unparsable timestamps never reach the log.
	Timestamp time.Time `json:"timestamp"`

	// RecordedAt is the arrival instant and the ordering authority.
	RecordedAt time.Time `json:"recorded_at"`

	// ActorHash is the salted one-way digest of the caller-supplied
	// pseudonymous id. Never a raw identity. Optional.
	ActorHash string `json:"actor_hash,omitempty"`

	Interaction *InteractionPayload `json:"interaction,omitempty"`
	Assignment  *AssignmentPayload  `json:"assignment,omitempty"`
	Ethics      *EthicsPayload      `json:"ethics,omitempty"`
	Privacy     *PrivacyPayload     `json:"privacy,omitempty"`
	SystemError *SystemErrorPayload `json:"system_error,omitempty"`
}

// InteractionPayload captures one tutoring chat turn.
type InteractionPayload struct {
	// StudentHash is the anonymized student identifier.
	StudentHash string `json:"student_hash"`

	// Topic the turn was about.
	Topic string `json:"topic"`

	// Depth is the difficulty tier of the turn.
	Depth Depth `json:"depth"`

	// Success reports whether the student answered correctly.
	Success bool `json:"success"`

	// TokensIn / TokensOut are the model token counts already computed by
	// the invocation layer; the core only logs them.
	TokensIn  int `json:"tokens_in"`
	TokensOut int `json:"tokens_out"`

	// LatencyMs is the model-invocation latency reported by the caller.
	LatencyMs int `json:"latency_ms,omitempty"`

	// ReasoningQuality is the grader's 0..1 score for the turn.
	ReasoningQuality float64 `json:"reasoning_quality"`

	// MistakePatterns are the mistake tags reported for the turn.
	MistakePatterns []string `json:"mistake_patterns,omitempty"`
}

// AssignmentPayload captures an assignment lifecycle step.
type AssignmentPayload struct {
	StudentHash     string           `json:"student_hash"`
	Topic           string           `json:"topic"`
	Action          AssignmentAction `json:"action"`
	ConceptCoverage float64          `json:"concept_coverage"`
}

// EthicsPayload captures an ethics intervention. Flags are opaque tags from
// the external classifier; the core counts them, never interprets them.
type EthicsPayload struct {
	StudentHash string         `json:"student_hash,omitempty"`
	Category    EthicsCategory `json:"category"`
	Flags       []string       `json:"flags,omitempty"`
	Allowed     bool           `json:"allowed"`
}

// PrivacyPayload captures a privacy flag.
type PrivacyPayload struct {
	StudentHash string `json:"student_hash,omitempty"`
	AlertType   string `json:"alert_type"`
	Redacted    int    `json:"redacted"`
}

// SystemErrorPayload captures an internal failure.
type SystemErrorPayload struct {
	Component string `json:"component"`
	Message   string `json:"message"`
	Fatal     bool   `json:"fatal"`
}

// Validate checks structural integrity of the event: a known kind, exactly
// one payload matching that kind, and a usable timestamp.
func (e *Event) Validate() error {
	if _, err := ParseKind(string(e.Kind)); err != nil {
		return err
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: zero timestamp", shared.ErrInvalidTimestamp)
	}

	set := 0
	if e.Interaction != nil {
		set++
		if e.Kind != KindInteraction {
			return fmt.Errorf("%w: interaction payload on %q event", shared.ErrInvalidInput, e.Kind)
		}
		if !e.Interaction.Depth.Valid() {
			return fmt.Errorf("%w: interaction depth %q", shared.ErrInvalidInput, e.Interaction.Depth)
		}
	}
	if e.Assignment != nil {
		set++
		if e.Kind != KindAssignment {
			return fmt.Errorf("%w: assignment payload on %q event", shared.ErrInvalidInput, e.Kind)
		}
	}
	if e.Ethics != nil {
		set++
		if e.Kind != KindEthics {
			return fmt.Errorf("%w: ethics payload on %q event", shared.ErrInvalidInput, e.Kind)
		}
	}
	if e.Privacy != nil {
		set++
		if e.Kind != KindPrivacy {
			return fmt.Errorf("%w: privacy payload on %q event", shared.ErrInvalidInput, e.Kind)
		}
	}
	if e.SystemError != nil {
		set++
		if e.Kind != KindSystemError {
			return fmt.Errorf("%w: system_error payload on %q event", shared.ErrInvalidInput, e.Kind)
		}
	}

	if set != 1 {
		return fmt.Errorf("%w: event must carry exactly one payload, has %d", shared.ErrInvalidInput, set)
	}
	return nil
}

// StudentHash returns the student hash carried by the payload, if any.
// Interaction and assignment events always carry one; ethics and privacy
// events may; system errors never do.
func (e *Event) StudentHash() string {
	switch e.Kind {
	case KindInteraction:
		if e.Interaction != nil {
			return e.Interaction.StudentHash
		}
	case KindAssignment:
		if e.Assignment != nil {
			return e.Assignment.StudentHash
		}
	case KindEthics:
		if e.Ethics != nil {
			return e.Ethics.StudentHash
		}
	case KindPrivacy:
		if e.Privacy != nil {
			return e.Privacy.StudentHash
		}
	case KindSystemError:
		// System errors are not attributable to a student.
	}
	return ""
}

// Topic returns the topic carried by the payload, if any.
func (e *Event) Topic() string {
	switch e.Kind {
	case KindInteraction:
		if e.Interaction != nil {
			return e.Interaction.Topic
		}
	case KindAssignment:
		if e.Assignment != nil {
			return e.Assignment.Topic
		}
	}
	return ""
}

// NewInteractionEvent builds an interaction event.
func NewInteractionEvent(ts time.Time, p InteractionPayload) Event {
	return Event{Kind: KindInteraction, Timestamp: ts.UTC(), ActorHash: p.StudentHash, Interaction: &p}
}

// NewAssignmentEvent builds an assignment event.
func NewAssignmentEvent(ts time.Time, p AssignmentPayload) Event {
	return Event{Kind: KindAssignment, Timestamp: ts.UTC(), ActorHash: p.StudentHash, Assignment: &p}
}

// NewEthicsEvent builds an ethics event.
func NewEthicsEvent(ts time.Time, p EthicsPayload) Event {
	return Event{Kind: KindEthics, Timestamp: ts.UTC(), ActorHash: p.StudentHash, Ethics: &p}
}

// NewPrivacyEvent builds a privacy event.
func NewPrivacyEvent(ts time.Time, p PrivacyPayload) Event {
	return Event{Kind: KindPrivacy, Timestamp: ts.UTC(), ActorHash: p.StudentHash, Privacy: &p}
}

// NewSystemErrorEvent builds a system error event.
func NewSystemErrorEvent(ts time.Time, p SystemErrorPayload) Event {
	return Event{Kind: KindSystemError, Timestamp: ts.UTC(), SystemError: &p}
}
