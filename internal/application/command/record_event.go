// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"time"

	"github.com/edupulse/edupulse-insights/internal/domain/shared"
	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
	"github.com/edupulse/edupulse-insights/pkg/anonymize"
	"github.com/edupulse/edupulse-insights/pkg/logger"
	"github.com/edupulse/edupulse-insights/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD EVENT COMMAND
// Ingests one telemetry event: anonymizes the student identifier, validates
// the payload, appends it to the durable log and announces the write on the
// internal bus so caches invalidate and exporters fire.
//
// Ingestion never hard-fails the caller: a malformed event is dropped with a
// warning and reported through the result, not through an error.
// ══════════════════════════════════════════════════════════════════════════════

// DropReason explains why an event was not recorded.
type DropReason string

const (
	// DropReasonNone - the event was recorded.
	DropReasonNone DropReason = ""

	// DropReasonInvalidTimestamp - the timestamp did not parse.
	DropReasonInvalidTimestamp DropReason = "invalid_timestamp"

	// DropReasonInvalidPayload - the event failed structural validation.
	DropReasonInvalidPayload DropReason = "invalid_payload"

	// DropReasonStorage - the log refused the event.
	DropReasonStorage DropReason = "storage_rejected"
)

// RecordEventCommand contains the raw telemetry submitted by a collaborator.
// StudentID arrives in the clear and never leaves this handler unhashed.
type RecordEventCommand struct {
	// Kind is the event kind as a wire string.
	Kind string

	// Timestamp is the caller-supplied occurrence time as a wire string.
	// Empty means "now".
	Timestamp string

	// StudentID is the raw student identifier, anonymized before storage.
	StudentID string

	// Interaction fields.
	Topic            string
	Depth            string
	Success          bool
	TokensIn         int
	TokensOut        int
	LatencyMs        int
	ReasoningQuality float64
	MistakePatterns  []string

	// Assignment fields.
	Action          string
	ConceptCoverage float64

	// Ethics fields.
	Category string
	Flags    []string
	Allowed  bool

	// Privacy fields.
	AlertType string
	Redacted  int

	// System error fields.
	Component string
	Message   string
	Fatal     bool
}

// Validate checks the fields that must be present for the declared kind.
func (c RecordEventCommand) Validate() error {
	kind, err := telemetry.ParseKind(c.Kind)
	if err != nil {
		return err
	}

	switch kind {
	case telemetry.KindInteraction:
		if c.StudentID == "" {
			return errors.New("record_event: student_id is required for interaction")
		}
		if c.Topic == "" {
			return errors.New("record_event: topic is required for interaction")
		}
	case telemetry.KindAssignment:
		if c.StudentID == "" {
			return errors.New("record_event: student_id is required for assignment")
		}
		if c.Topic == "" {
			return errors.New("record_event: topic is required for assignment")
		}
	case telemetry.KindEthics:
		if c.Category == "" {
			return errors.New("record_event: category is required for ethics")
		}
	case telemetry.KindPrivacy:
		if c.AlertType == "" {
			return errors.New("record_event: alert_type is required for privacy")
		}
	case telemetry.KindSystemError:
		if c.Component == "" {
			return errors.New("record_event: component is required for system_error")
		}
	}
	return nil
}

// RecordEventResult contains the outcome of the ingestion attempt.
type RecordEventResult struct {
	// Recorded indicates whether the event reached the log.
	Recorded bool

	// DropReason is set when Recorded is false.
	DropReason DropReason

	// EventID is the assigned identifier, set when Recorded is true.
	EventID string

	// RecordedAt is the server-side receive time, set when Recorded is true.
	RecordedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordEventHandler handles the RecordEventCommand.
type RecordEventHandler struct {
	log        telemetry.Log
	anonymizer *anonymize.Anonymizer
	publisher  shared.EventPublisher
	logger     *logger.Logger
	now        func() time.Time
}

// NewRecordEventHandler creates a new RecordEventHandler.
func NewRecordEventHandler(
	log telemetry.Log,
	anonymizer *anonymize.Anonymizer,
	publisher shared.EventPublisher,
	lg *logger.Logger,
) *RecordEventHandler {
	return &RecordEventHandler{
		log:        log,
		anonymizer: anonymizer,
		publisher:  publisher,
		logger:     lg,
		now:        time.Now,
	}
}

// Handle executes the record event command. Ingestion never returns an error
// for a bad event: malformed input of any shape (unknown kind, missing
// required fields, bad timestamp) is dropped with a warning and reported
// through the result, so a misbehaving collaborator cannot fail the learning
// loop it instruments.
func (h *RecordEventHandler) Handle(ctx context.Context, cmd RecordEventCommand) (*RecordEventResult, error) {
	if err := cmd.Validate(); err != nil {
		h.logger.Warn("dropping malformed event",
			logger.EventKind(cmd.Kind),
			logger.Err(err))
		h.publish(shared.NewTelemetryDroppedEvent(cmd.Kind, string(DropReasonInvalidPayload)))
		return &RecordEventResult{DropReason: DropReasonInvalidPayload}, nil
	}

	kind, _ := telemetry.ParseKind(cmd.Kind)

	ts := h.now().UTC()
	if cmd.Timestamp != "" {
		parsed, err := timeutil.ParseTimestamp(cmd.Timestamp)
		if err != nil {
			h.logger.Warn("dropping event with unparsable timestamp",
				logger.EventKind(string(kind)),
				logger.String("timestamp", cmd.Timestamp))
			h.publish(shared.NewTelemetryDroppedEvent(string(kind), string(DropReasonInvalidTimestamp)))
			return &RecordEventResult{DropReason: DropReasonInvalidTimestamp}, nil
		}
		ts = parsed
	}

	ev, err := h.buildEvent(kind, ts, cmd)
	if err != nil {
		h.logger.Warn("dropping structurally invalid event",
			logger.EventKind(string(kind)),
			logger.Err(err))
		h.publish(shared.NewTelemetryDroppedEvent(string(kind), string(DropReasonInvalidPayload)))
		return &RecordEventResult{DropReason: DropReasonInvalidPayload}, nil
	}

	recorded, ok := h.log.Record(ctx, ev)
	if !ok {
		h.publish(shared.NewTelemetryDroppedEvent(string(kind), string(DropReasonStorage)))
		return &RecordEventResult{DropReason: DropReasonStorage}, nil
	}

	h.publish(shared.NewTelemetryRecordedEvent(recorded.ID, string(recorded.Kind), recorded.ActorHash))

	return &RecordEventResult{
		Recorded:   true,
		EventID:    recorded.ID,
		RecordedAt: recorded.RecordedAt,
	}, nil
}

// buildEvent assembles the domain event, hashing the student identifier.
func (h *RecordEventHandler) buildEvent(kind telemetry.Kind, ts time.Time, cmd RecordEventCommand) (telemetry.Event, error) {
	hash := ""
	if cmd.StudentID != "" {
		hash = h.anonymizer.Hash(cmd.StudentID)
	}

	var ev telemetry.Event
	switch kind {
	case telemetry.KindInteraction:
		ev = telemetry.NewInteractionEvent(ts, telemetry.InteractionPayload{
			StudentHash:      hash,
			Topic:            cmd.Topic,
			Depth:            telemetry.Depth(cmd.Depth),
			Success:          cmd.Success,
			TokensIn:         cmd.TokensIn,
			TokensOut:        cmd.TokensOut,
			LatencyMs:        cmd.LatencyMs,
			ReasoningQuality: cmd.ReasoningQuality,
			MistakePatterns:  cmd.MistakePatterns,
		})
	case telemetry.KindAssignment:
		ev = telemetry.NewAssignmentEvent(ts, telemetry.AssignmentPayload{
			StudentHash:     hash,
			Topic:           cmd.Topic,
			Action:          telemetry.AssignmentAction(cmd.Action),
			ConceptCoverage: cmd.ConceptCoverage,
		})
	case telemetry.KindEthics:
		ev = telemetry.NewEthicsEvent(ts, telemetry.EthicsPayload{
			StudentHash: hash,
			Category:    telemetry.EthicsCategory(cmd.Category),
			Flags:       cmd.Flags,
			Allowed:     cmd.Allowed,
		})
	case telemetry.KindPrivacy:
		ev = telemetry.NewPrivacyEvent(ts, telemetry.PrivacyPayload{
			StudentHash: hash,
			AlertType:   cmd.AlertType,
			Redacted:    cmd.Redacted,
		})
	case telemetry.KindSystemError:
		ev = telemetry.Event{
			Kind:      telemetry.KindSystemError,
			Timestamp: ts.UTC(),
			SystemError: &telemetry.SystemErrorPayload{
				Component: cmd.Component,
				Message:   cmd.Message,
				Fatal:     cmd.Fatal,
			},
		}
	}

	if err := ev.Validate(); err != nil {
		return telemetry.Event{}, err
	}
	return ev, nil
}

func (h *RecordEventHandler) publish(ev shared.Event) {
	if h.publisher == nil {
		return
	}
	_ = h.publisher.Publish(ev)
}
