package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/edupulse/edupulse-insights/internal/domain/shared"
)

func TestParseKind(t *testing.T) {
	for _, k := range AllKinds() {
		parsed, err := ParseKind(string(k))
		assert.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseKind("telepathy")
	assert.ErrorIs(t, err, shared.ErrUnknownEventKind)
}

func TestDepthRank(t *testing.T) {
	assert.True(t, DepthMastery.Rank() > DepthApplied.Rank())
	assert.True(t, DepthApplied.Rank() > DepthCore.Rank())
	assert.False(t, Depth("expert").Valid())
}

func TestValidate_InteractionEvent(t *testing.T) {
	ev := NewInteractionEvent(time.Now(), InteractionPayload{
		StudentHash: "hash-1",
		Topic:       "algebra",
		Depth:       DepthCore,
		Success:     true,
	})

	assert.NoError(t, ev.Validate())
	assert.Equal(t, "hash-1", ev.StudentHash())
	assert.Equal(t, "algebra", ev.Topic())
}

func TestValidate_RejectsZeroTimestamp(t *testing.T) {
	ev := Event{
		Kind:        KindInteraction,
		Interaction: &InteractionPayload{Topic: "algebra", Depth: DepthCore},
	}

	assert.ErrorIs(t, ev.Validate(), shared.ErrInvalidTimestamp)
}

func TestValidate_RejectsMissingPayload(t *testing.T) {
	ev := Event{Kind: KindInteraction, Timestamp: time.Now()}
	assert.ErrorIs(t, ev.Validate(), shared.ErrInvalidInput)
}

func TestValidate_RejectsMultiplePayloads(t *testing.T) {
	ev := Event{
		Kind:        KindInteraction,
		Timestamp:   time.Now(),
		Interaction: &InteractionPayload{Topic: "algebra", Depth: DepthCore},
		Privacy:     &PrivacyPayload{AlertType: "pii"},
	}

	assert.Error(t, ev.Validate())
}

func TestValidate_RejectsPayloadKindMismatch(t *testing.T) {
	ev := Event{
		Kind:      KindEthics,
		Timestamp: time.Now(),
		Privacy:   &PrivacyPayload{AlertType: "pii"},
	}

	assert.ErrorIs(t, ev.Validate(), shared.ErrInvalidInput)
}

func TestValidate_RejectsUnknownDepth(t *testing.T) {
	ev := NewInteractionEvent(time.Now(), InteractionPayload{
		StudentHash: "hash-1",
		Topic:       "algebra",
		Depth:       Depth("expert"),
	})

	assert.ErrorIs(t, ev.Validate(), shared.ErrInvalidInput)
}

func TestStudentHash_SystemErrorHasNone(t *testing.T) {
	ev := Event{
		Kind:        KindSystemError,
		Timestamp:   time.Now(),
		SystemError: &SystemErrorPayload{Component: "grader", Message: "timeout"},
	}

	assert.NoError(t, ev.Validate())
	assert.Empty(t, ev.StudentHash())
	assert.Empty(t, ev.Topic())
}
