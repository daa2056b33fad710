package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopcore-backend/pkg/enums"
)

func TestDeadLetterRoundTrip(t *testing.T) {
	event := OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		AttemptCount:  10,
	}
	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.FixedZone("ICT", 7*3600))

	entry := NewDeadLetter(event, enums.OutboxDLQReasonMaxAttempts, errors.New("deadline exceeded"), at)
	assert.Equal(t, event.ID, entry.EventID)
	assert.Equal(t, 10, entry.AttemptCount)
	assert.Equal(t, time.UTC, entry.FailedAt.Location())
	require.NotNil(t, entry.ErrorMessage)
	assert.Equal(t, "deadline exceeded", *entry.ErrorMessage)

	back := entry.Requeue()
	assert.Equal(t, event.ID, back.ID)
	assert.Equal(t, event.Payload, back.Payload)
	assert.Zero(t, back.AttemptCount)
	assert.False(t, back.Published())
}

func TestNewDeadLetterWithoutCause(t *testing.T) {
	entry := NewDeadLetter(OutboxEvent{ID: uuid.New()}, enums.OutboxDLQReasonNonRetryable, nil, time.Now())
	assert.Nil(t, entry.ErrorMessage)
}
