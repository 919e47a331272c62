package followup

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"prospect_intake_backend/internal/history"
	"prospect_intake_backend/internal/requests/domain"
	"prospect_intake_backend/internal/requests/repository"
	"prospect_intake_backend/internal/salesbuilder"
	"prospect_intake_backend/platform/events"

	"github.com/google/uuid"
)

// Shared fakes for the dispatcher and runner tests.

type fakeStore struct {
	mu       sync.Mutex
	records  map[uuid.UUID]*domain.Record
	steps    map[uuid.UUID][]domain.Step
	statuses map[uuid.UUID][]domain.Status

	setMessagesErr error
}

func newFakeStore(recs ...domain.Record) *fakeStore {
	s := &fakeStore{
		records:  make(map[uuid.UUID]*domain.Record),
		steps:    make(map[uuid.UUID][]domain.Step),
		statuses: make(map[uuid.UUID][]domain.Status),
	}
	for i := range recs {
		rec := recs[i]
		s.records[rec.ID] = &rec
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, id uuid.UUID) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.Record{}, repository.ErrNotFound
	}
	return *rec, nil
}

func (s *fakeStore) AppendStep(_ context.Context, id uuid.UUID, step domain.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	step.Seq = int64(len(s.steps[id]) + 1)
	s.steps[id] = append(s.steps[id], step)
	return nil
}

func (s *fakeStore) SetStatus(_ context.Context, id uuid.UUID, to domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	if rec.Status.Terminal() {
		return repository.ErrTerminalState
	}
	rec.Status = to
	s.statuses[id] = append(s.statuses[id], to)
	return nil
}

func (s *fakeStore) Transition(ctx context.Context, id uuid.UUID, step domain.Step, to domain.Status) error {
	if err := s.AppendStep(ctx, id, step); err != nil {
		return err
	}
	return s.SetStatus(ctx, id, to)
}

func (s *fakeStore) SetTaskResult(_ context.Context, id uuid.UUID, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		rec.TaskResult = result
	}
	return nil
}

func (s *fakeStore) SetMessages(_ context.Context, id uuid.UUID, messages []string, usedFallback bool) error {
	if s.setMessagesErr != nil {
		return s.setMessagesErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		rec.Messages = messages
		rec.MessageCount = len(messages)
		rec.UsedFallback = usedFallback
	}
	return nil
}

func (s *fakeStore) stepKinds(id uuid.UUID) []domain.StepKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]domain.StepKind, 0, len(s.steps[id]))
	for _, step := range s.steps[id] {
		kinds = append(kinds, step.Kind)
	}
	return kinds
}

type fakeGateway struct {
	configured bool
	// failCalls makes the n-th SendText call fail (1-based call order).
	failCalls map[int]error

	mu    sync.Mutex
	calls int
	sent  []string
	to    []string
}

func (g *fakeGateway) IsConfigured() bool { return g.configured }

func (g *fakeGateway) SendText(_ context.Context, number, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if err, ok := g.failCalls[g.calls]; ok {
		return err
	}
	g.sent = append(g.sent, text)
	g.to = append(g.to, number)
	return nil
}

type fakeHistory struct {
	mu       sync.Mutex
	recorded []history.DeliveredMessage
	err      error
}

func (h *fakeHistory) Record(_ context.Context, msg history.DeliveredMessage) error {
	if h.err != nil {
		return h.err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recorded = append(h.recorded, msg)
	return nil
}

type fakePoller struct {
	result salesbuilder.PollResult
	err    error
}

func (p *fakePoller) Poll(ctx context.Context, _ string, obs salesbuilder.Observer) (salesbuilder.PollResult, error) {
	if obs.OnAttempt != nil {
		obs.OnAttempt(ctx, salesbuilder.Attempt{Number: 1, Budget: 1, Outcome: salesbuilder.OutcomeReadyWithContent})
	}
	return p.result, p.err
}

type fakeBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *fakeBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *fakeBus) Subscribe(string, events.Handler) {}

type dispatchConfig struct {
	fallback []string
	pause    time.Duration
}

func (c dispatchConfig) GetFallbackMessages() []string       { return c.fallback }
func (c dispatchConfig) GetInterMessagePause() time.Duration { return c.pause }

var errSendRefused = errors.New("instance disconnected")

func pollResultWith(whatsapp string, messages ...string) salesbuilder.PollResult {
	return salesbuilder.PollResult{
		Task: &salesbuilder.TaskResult{
			TaskID: "task-1",
			State:  "COMPLETED",
			Result: salesbuilder.ResultPayload{
				Messages:     messages,
				Whatsapp:     whatsapp,
				ProspectName: "Maria",
			},
		},
		Raw:         json.RawMessage(`{"state":"COMPLETED"}`),
		LastProbeOK: true,
		Attempts:    1,
	}
}
