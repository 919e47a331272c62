package followup

import (
	"context"
	"errors"
	"fmt"

	"prospect_intake_backend/internal/events"
	"prospect_intake_backend/internal/requests/domain"
	"prospect_intake_backend/internal/requests/repository"
	"prospect_intake_backend/internal/salesbuilder"
	"prospect_intake_backend/platform/logger"

	"github.com/google/uuid"
)

// Runner drives one follow-up flow end to end. It is invoked by the
// background worker once per enqueued lead.
type Runner struct {
	store      RecordStore
	poller     TaskPoller
	dispatcher *Dispatcher
	bus        events.Bus
	log        *logger.Logger
}

// NewRunner wires the follow-up flow.
func NewRunner(store RecordStore, poller TaskPoller, dispatcher *Dispatcher, bus events.Bus, log *logger.Logger) *Runner {
	return &Runner{
		store:      store,
		poller:     poller,
		dispatcher: dispatcher,
		bus:        bus,
		log:        log,
	}
}

// Run polls the qualification job for one record, dispatches the resulting
// messages and finalizes the record.
//
// The returned error controls queue retry semantics: business-terminal
// failures (bad credentials, exhausted polling, send failures) finalize the
// record and return nil so the task is not retried, while infrastructure
// failures (storage, context cancellation) propagate so the queue retries
// with the record still in a non-terminal state.
func (r *Runner) Run(ctx context.Context, requestID uuid.UUID, taskID string) (err error) {
	log := r.log.With("request_id", requestID, "task_id", taskID)

	rec, err := r.store.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("follow-up for unknown record, dropping")
			return nil
		}
		return fmt.Errorf("load record: %w", err)
	}
	if !domain.CanTransition(rec.Status, domain.StatusProcessingTask) {
		// Queue redelivery after the flow already finished.
		log.Info("record already terminal, skipping", "status", rec.Status)
		return nil
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error("follow-up flow panicked", "panic", p)
			r.finalize(ctx, rec, taskID, domain.StatusProcessingException,
				fmt.Sprintf("unexpected failure: %v", p), 0, false)
			err = nil
		}
	}()

	if err := r.store.SetStatus(ctx, requestID, domain.StatusProcessingTask); err != nil {
		if errors.Is(err, repository.ErrTerminalState) {
			return nil
		}
		return fmt.Errorf("mark processing: %w", err)
	}
	if err := r.store.SetStatus(ctx, requestID, domain.StatusCheckingTaskStatus); err != nil {
		return fmt.Errorf("mark checking: %w", err)
	}

	poll, pollErr := r.poller.Poll(ctx, taskID, salesbuilder.Observer{
		OnAttempt: func(ctx context.Context, a salesbuilder.Attempt) {
			r.appendStep(ctx, requestID, domain.NewStep(domain.StepPollAttempt,
				a.Outcome != salesbuilder.OutcomeAuthError && a.Outcome != salesbuilder.OutcomeTransportError,
				a.Detail,
				domain.PollAttemptPayload{
					Attempt:   a.Number,
					Budget:    a.Budget,
					Outcome:   string(a.Outcome),
					ElapsedMs: a.Elapsed.Milliseconds(),
				}))
		},
		OnTokenRefresh: func(ctx context.Context, changed bool) {
			r.appendStep(ctx, requestID, domain.NewStep(domain.StepTokenRefresh, changed,
				"credentials refreshed", domain.TokenRefreshPayload{Changed: changed}))
		},
	})
	if pollErr != nil {
		switch {
		case errors.Is(pollErr, salesbuilder.ErrAuthorizationFailed):
			r.finalize(ctx, rec, taskID, domain.StatusAPIKeyError, pollErr.Error(), 0, false)
			return nil
		case errors.Is(pollErr, salesbuilder.ErrAttemptsExhausted):
			r.finalize(ctx, rec, taskID, domain.StatusTaskCheckError, pollErr.Error(), 0, false)
			return nil
		default:
			// Context cancellation or other infrastructure failure; let the
			// queue retry while the record is still non-terminal.
			return pollErr
		}
	}

	if len(poll.Raw) > 0 {
		if err := r.store.SetTaskResult(ctx, requestID, poll.Raw); err != nil {
			log.Error("cache task result failed", "error", err)
		}
	}

	outcome, err := r.dispatcher.Dispatch(ctx, rec, poll)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	r.finalize(ctx, rec, taskID, outcome.Status, outcome.Reason, outcome.Sent, outcome.UsedFallback)
	return nil
}

// finalize writes the closing step, moves the record to its terminal status
// and announces the result on the event bus.
func (r *Runner) finalize(ctx context.Context, rec domain.Record, taskID string, status domain.Status, reason string, sent int, usedFallback bool) {
	succeeded := status == domain.StatusCompleted
	message := "flow completed"
	if !succeeded {
		message = reason
	}

	step := domain.NewStep(domain.StepFinalized, succeeded, message, domain.FinalizedPayload{
		Status:       string(status),
		MessageCount: sent,
		UsedFallback: usedFallback,
	})
	if err := r.store.Transition(ctx, rec.ID, step, status); err != nil {
		if !errors.Is(err, repository.ErrTerminalState) {
			r.log.Error("finalize record failed", "error", err, "request_id", rec.ID, "status", status)
		}
	}

	r.bus.Publish(ctx, events.FollowupFinished{
		BaseEvent: events.NewBaseEvent(),
		RequestID: rec.ID,
		Whatsapp:  rec.Whatsapp,
		TaskID:    taskID,
		Status:    string(status),
		Succeeded: succeeded,
		Reason:    reason,
	})
}

func (r *Runner) appendStep(ctx context.Context, requestID uuid.UUID, step domain.Step) {
	if err := r.store.AppendStep(ctx, requestID, step); err != nil {
		r.log.Error("append step failed", "error", err, "request_id", requestID, "kind", step.Kind)
	}
}
