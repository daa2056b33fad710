package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopcore-backend/pkg/db/models"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox"
)

type stubDeadLetters struct {
	rows       []models.OutboxDLQ
	lastFilter outbox.DLQFilter
	requeued   uuid.UUID
	err        error
}

func (s *stubDeadLetters) List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error) {
	s.lastFilter = filter
	return s.rows, s.err
}

func (s *stubDeadLetters) Requeue(ctx context.Context, eventID uuid.UUID) (*models.OutboxEvent, error) {
	s.requeued = eventID
	if s.err != nil {
		return nil, s.err
	}
	return &models.OutboxEvent{ID: eventID, EventType: enums.EventOrderPaid}, nil
}

func TestListDeadLettersPassesFilter(t *testing.T) {
	failedAt := time.Date(2026, 10, 2, 8, 0, 0, 0, time.UTC)
	svc := &stubDeadLetters{rows: []models.OutboxDLQ{{
		EventID:     uuid.New(),
		EventType:   enums.EventOrderPaid,
		ErrorReason: enums.OutboxDLQReasonMaxAttempts,
		FailedAt:    failedAt,
	}}}
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/dead-letters?event_type=order_paid&reason=max_attempts&before=2026-10-03T00:00:00Z&limit=20", nil)
	resp := httptest.NewRecorder()
	ListDeadLetters(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, enums.EventOrderPaid, svc.lastFilter.EventType)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, svc.lastFilter.Reason)
	assert.Equal(t, 20, svc.lastFilter.Limit)
	assert.True(t, svc.lastFilter.Before.Equal(time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC)))

	var envelope struct {
		Data []deadLetter `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "max_attempts", envelope.Data[0].ErrorReason)
}

func TestListDeadLettersRejectsBadQuery(t *testing.T) {
	for _, query := range []string{"?limit=0", "?limit=abc", "?before=yesterday", "?event_type=order_shipped", "?reason=decode_failed"} {
		svc := &stubDeadLetters{}
		resp := httptest.NewRecorder()
		ListDeadLetters(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x"+query, nil))
		assert.Equal(t, http.StatusBadRequest, resp.Code, query)
	}
}

func TestRequeueDeadLetter(t *testing.T) {
	eventID := uuid.New()
	svc := &stubDeadLetters{}
	resp := httptest.NewRecorder()
	RequeueDeadLetter(svc, nil).ServeHTTP(resp, adminRequest(http.MethodPost, "", "eventId", eventID))

	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.Equal(t, eventID, svc.requeued)
}

func TestRequeueDeadLetterSurfacesConflict(t *testing.T) {
	svc := &stubDeadLetters{err: pkgerrors.New(pkgerrors.CodeConflict, "event was already published")}
	resp := httptest.NewRecorder()
	RequeueDeadLetter(svc, nil).ServeHTTP(resp, adminRequest(http.MethodPost, "", "eventId", uuid.New()))

	assert.Equal(t, http.StatusConflict, resp.Code)
}
