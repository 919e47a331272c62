// Package followup runs the post-intake flow for one lead: polling the
// qualification job, dispatching the resulting WhatsApp messages and driving
// the Request Record to a terminal state.
package followup

import (
	"context"
	"encoding/json"

	"prospect_intake_backend/internal/history"
	"prospect_intake_backend/internal/requests/domain"
	"prospect_intake_backend/internal/salesbuilder"

	"github.com/google/uuid"
)

// RecordStore is the slice of the requests repository this flow needs.
type RecordStore interface {
	Get(ctx context.Context, requestID uuid.UUID) (domain.Record, error)
	AppendStep(ctx context.Context, requestID uuid.UUID, step domain.Step) error
	SetStatus(ctx context.Context, requestID uuid.UUID, to domain.Status) error
	Transition(ctx context.Context, requestID uuid.UUID, step domain.Step, to domain.Status) error
	SetTaskResult(ctx context.Context, requestID uuid.UUID, result json.RawMessage) error
	SetMessages(ctx context.Context, requestID uuid.UUID, messages []string, usedFallback bool) error
}

// TaskPoller resolves a task identifier into a poll result.
type TaskPoller interface {
	Poll(ctx context.Context, taskID string, obs salesbuilder.Observer) (salesbuilder.PollResult, error)
}

// HistoryRecorder persists delivered-message history rows.
type HistoryRecorder interface {
	Record(ctx context.Context, msg history.DeliveredMessage) error
}
