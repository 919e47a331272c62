package followup

import (
	"context"
	"errors"
	"testing"
	"time"

	"prospect_intake_backend/internal/events"
	"prospect_intake_backend/internal/requests/domain"
	"prospect_intake_backend/internal/salesbuilder"
	"prospect_intake_backend/platform/logger"

	"github.com/google/uuid"
)

func newTestRunner(store *fakeStore, poller TaskPoller, gateway *fakeGateway, bus *fakeBus) *Runner {
	log := logger.New("development")
	d := NewDispatcher(gateway, store, &fakeHistory{}, dispatchConfig{fallback: []string{"olá"}}, log)
	d.sleep = func(context.Context, time.Duration) error { return nil }
	return NewRunner(store, poller, d, bus, log)
}

func TestRunnerHappyPath(t *testing.T) {
	rec := newRecord(domain.StatusTaskIDReceived)
	store := newFakeStore(rec)
	poller := &fakePoller{result: pollResultWith("5524999887888", "um", "dois")}
	gateway := &fakeGateway{configured: true}
	bus := &fakeBus{}
	runner := newTestRunner(store, poller, gateway, bus)

	if err := runner.Run(context.Background(), rec.ID, "task-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := store.records[rec.ID].Status; got != domain.StatusCompleted {
		t.Errorf("final status = %s, want completed", got)
	}

	wantOrder := []domain.Status{
		domain.StatusProcessingTask,
		domain.StatusCheckingTaskStatus,
		domain.StatusMessagesStored,
		domain.StatusCompleted,
	}
	got := store.statuses[rec.ID]
	if len(got) != len(wantOrder) {
		t.Fatalf("status transitions = %v, want %v", got, wantOrder)
	}
	for i, status := range wantOrder {
		if got[i] != status {
			t.Errorf("transition[%d] = %s, want %s", i, got[i], status)
		}
	}

	if len(store.records[rec.ID].TaskResult) == 0 {
		t.Error("raw task result should be cached on the record")
	}

	kinds := store.stepKinds(rec.ID)
	if kinds[0] != domain.StepPollAttempt {
		t.Errorf("first step = %s, want poll_attempt", kinds[0])
	}
	if kinds[len(kinds)-1] != domain.StepFinalized {
		t.Errorf("last step = %s, want finalized", kinds[len(kinds)-1])
	}

	if len(bus.published) != 1 {
		t.Fatalf("published events = %d, want 1", len(bus.published))
	}
	finished, ok := bus.published[0].(events.FollowupFinished)
	if !ok {
		t.Fatalf("event type = %T", bus.published[0])
	}
	if !finished.Succeeded || finished.Status != string(domain.StatusCompleted) {
		t.Errorf("event = %+v", finished)
	}
}

func TestRunnerAuthFailureIsTerminalWithoutSends(t *testing.T) {
	rec := newRecord(domain.StatusTaskIDReceived)
	store := newFakeStore(rec)
	poller := &fakePoller{err: salesbuilder.ErrAuthorizationFailed}
	gateway := &fakeGateway{configured: true}
	bus := &fakeBus{}
	runner := newTestRunner(store, poller, gateway, bus)

	if err := runner.Run(context.Background(), rec.ID, "task-1"); err != nil {
		t.Fatalf("terminal business failure must not be retried, got %v", err)
	}

	if got := store.records[rec.ID].Status; got != domain.StatusAPIKeyError {
		t.Errorf("final status = %s, want api_key_error", got)
	}
	if gateway.calls != 0 {
		t.Errorf("gateway calls = %d, want 0", gateway.calls)
	}

	finished := bus.published[0].(events.FollowupFinished)
	if finished.Succeeded {
		t.Error("event should report failure")
	}
}

func TestRunnerPollExhaustion(t *testing.T) {
	rec := newRecord(domain.StatusTaskIDReceived)
	store := newFakeStore(rec)
	poller := &fakePoller{err: salesbuilder.ErrAttemptsExhausted}
	runner := newTestRunner(store, poller, &fakeGateway{configured: true}, &fakeBus{})

	if err := runner.Run(context.Background(), rec.ID, "task-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := store.records[rec.ID].Status; got != domain.StatusTaskCheckError {
		t.Errorf("final status = %s, want task_check_error", got)
	}
}

func TestRunnerInfrastructureErrorPropagatesForRetry(t *testing.T) {
	rec := newRecord(domain.StatusTaskIDReceived)
	store := newFakeStore(rec)
	poller := &fakePoller{err: context.Canceled}
	bus := &fakeBus{}
	runner := newTestRunner(store, poller, &fakeGateway{configured: true}, bus)

	err := runner.Run(context.Background(), rec.ID, "task-1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// The record stays non-terminal so the retried task can proceed.
	if got := store.records[rec.ID].Status; got.Terminal() {
		t.Errorf("status = %s, must remain non-terminal", got)
	}
	if len(bus.published) != 0 {
		t.Errorf("no event should be published on a retryable failure, got %d", len(bus.published))
	}
}

func TestRunnerSkipsTerminalRecord(t *testing.T) {
	rec := newRecord(domain.StatusCompleted)
	store := newFakeStore(rec)
	poller := &fakePoller{result: pollResultWith("5524999887888", "um")}
	gateway := &fakeGateway{configured: true}
	runner := newTestRunner(store, poller, gateway, &fakeBus{})

	if err := runner.Run(context.Background(), rec.ID, "task-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gateway.calls != 0 {
		t.Errorf("gateway calls = %d, want 0 on redelivery", gateway.calls)
	}
	if len(store.statuses[rec.ID]) != 0 {
		t.Errorf("statuses changed on a terminal record: %v", store.statuses[rec.ID])
	}
}

func TestRunnerDropsUnknownRecord(t *testing.T) {
	store := newFakeStore()
	runner := newTestRunner(store, &fakePoller{}, &fakeGateway{configured: true}, &fakeBus{})

	if err := runner.Run(context.Background(), uuid.New(), "task-1"); err != nil {
		t.Fatalf("unknown record should be dropped, got %v", err)
	}
}
