package salesbuilder

import (
	"context"
	"errors"
	"testing"
	"time"

	"prospect_intake_backend/platform/logger"
)

type pollerConfig struct {
	attempts int
	delay    time.Duration
}

func (c pollerConfig) GetSalesBuilderURL() string           { return "https://sales-builder.test" }
func (c pollerConfig) GetSalesBuilderTokenEnvVar() string   { return "SALES_BUILDER_API_KEY" }
func (c pollerConfig) GetPollMaxAttempts() int              { return c.attempts }
func (c pollerConfig) GetPollRetryDelay() time.Duration     { return c.delay }
func (c pollerConfig) GetPollRequestTimeout() time.Duration { return time.Second }

type scriptedProber struct {
	responses []probeStep
	calls     int
}

type probeStep struct {
	probe ProbeResult
	err   error
}

func (p *scriptedProber) CheckStatus(_ context.Context, _ string) (ProbeResult, error) {
	if p.calls >= len(p.responses) {
		last := p.responses[len(p.responses)-1]
		p.calls++
		return last.probe, last.err
	}
	step := p.responses[p.calls]
	p.calls++
	return step.probe, step.err
}

type refreshableCreds struct {
	tokens   []string
	current  int
	refreshed int
}

func (c *refreshableCreds) Token() string {
	return c.tokens[c.current]
}

func (c *refreshableCreds) Refresh() string {
	c.refreshed++
	if c.current < len(c.tokens)-1 {
		c.current++
	}
	return c.tokens[c.current]
}

func taskWith(messages ...string) *TaskResult {
	return &TaskResult{
		TaskID: "task-1",
		State:  "COMPLETED",
		Result: ResultPayload{
			Messages: messages,
			Whatsapp: "5524999887888",
		},
	}
}

func newTestPoller(t *testing.T, prober Prober, creds CredentialProvider, attempts int) (*Poller, *int) {
	t.Helper()
	p := NewPoller(prober, creds, pollerConfig{attempts: attempts, delay: 10 * time.Second}, logger.New("development"))
	sleeps := 0
	p.sleep = func(context.Context, time.Duration) error {
		sleeps++
		return nil
	}
	return p, &sleeps
}

func TestPollReadyWithContentImmediately(t *testing.T) {
	prober := &scriptedProber{responses: []probeStep{
		{probe: ProbeResult{StatusCode: 200, Task: taskWith("oi", "tudo bem?")}},
	}}
	poller, sleeps := newTestPoller(t, prober, StaticCredentials("tok"), 5)

	var attempts []Attempt
	res, err := poller.Poll(context.Background(), "task-1", Observer{
		OnAttempt: func(_ context.Context, a Attempt) { attempts = append(attempts, a) },
	})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}

	if res.Attempts != 1 || !res.LastProbeOK {
		t.Errorf("result = %+v, want 1 attempt and LastProbeOK", res)
	}
	if len(res.Task.Result.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(res.Task.Result.Messages))
	}
	if *sleeps != 0 {
		t.Errorf("sleeps = %d, want 0", *sleeps)
	}
	if len(attempts) != 1 || attempts[0].Outcome != OutcomeReadyWithContent {
		t.Errorf("attempts = %+v", attempts)
	}
}

func TestPollEmptyThenContent(t *testing.T) {
	prober := &scriptedProber{responses: []probeStep{
		{probe: ProbeResult{StatusCode: 200, Task: taskWith()}},
		{probe: ProbeResult{StatusCode: 200, Task: taskWith("mensagem")}},
	}}
	poller, sleeps := newTestPoller(t, prober, StaticCredentials("tok"), 5)

	res, err := poller.Poll(context.Background(), "task-1", Observer{})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}

	if res.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", res.Attempts)
	}
	if *sleeps != 1 {
		t.Errorf("sleeps = %d, want 1", *sleeps)
	}
}

func TestPollEmptyOnEveryAttemptReturnsEmptyResult(t *testing.T) {
	prober := &scriptedProber{responses: []probeStep{
		{probe: ProbeResult{StatusCode: 200, Task: taskWith()}},
	}}
	poller, _ := newTestPoller(t, prober, StaticCredentials("tok"), 3)

	res, err := poller.Poll(context.Background(), "task-1", Observer{})
	if err != nil {
		t.Fatalf("empty-but-ready exhaustion must not be an error, got %v", err)
	}

	if !res.LastProbeOK {
		t.Error("LastProbeOK should be true when the upstream kept reporting success")
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want full budget of 3", res.Attempts)
	}
	if res.Task == nil || len(res.Task.Result.Messages) != 0 {
		t.Errorf("expected the empty task result to be returned, got %+v", res.Task)
	}
}

func TestPollNotReadyThenContent(t *testing.T) {
	prober := &scriptedProber{responses: []probeStep{
		{probe: ProbeResult{StatusCode: 500}},
		{probe: ProbeResult{StatusCode: 202}},
		{probe: ProbeResult{StatusCode: 200, Task: taskWith("pronto")}},
	}}
	poller, _ := newTestPoller(t, prober, StaticCredentials("tok"), 5)

	res, err := poller.Poll(context.Background(), "task-1", Observer{})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", res.Attempts)
	}
}

func TestPollTransportErrorsExhaustBudget(t *testing.T) {
	prober := &scriptedProber{responses: []probeStep{
		{err: errors.New("connection refused")},
	}}
	poller, sleeps := newTestPoller(t, prober, StaticCredentials("tok"), 4)

	_, err := poller.Poll(context.Background(), "task-1", Observer{})
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("err = %v, want ErrAttemptsExhausted", err)
	}
	if prober.calls != 4 {
		t.Errorf("probes = %d, want 4", prober.calls)
	}
	if *sleeps != 3 {
		t.Errorf("sleeps = %d, want 3 (no delay after the final attempt)", *sleeps)
	}
}

func TestPollAuthErrorRefreshedTokenSucceeds(t *testing.T) {
	prober := &scriptedProber{responses: []probeStep{
		{probe: ProbeResult{StatusCode: 403}},
		{probe: ProbeResult{StatusCode: 200, Task: taskWith("oi")}},
	}}
	creds := &refreshableCreds{tokens: []string{"stale", "fresh"}}
	poller, sleeps := newTestPoller(t, prober, creds, 5)

	var refreshChanged []bool
	res, err := poller.Poll(context.Background(), "task-1", Observer{
		OnTokenRefresh: func(_ context.Context, changed bool) { refreshChanged = append(refreshChanged, changed) },
	})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}

	if creds.refreshed != 1 {
		t.Errorf("refreshes = %d, want 1", creds.refreshed)
	}
	if len(refreshChanged) != 1 || !refreshChanged[0] {
		t.Errorf("refresh observations = %v, want [true]", refreshChanged)
	}
	// Retry with the fresh token happens immediately.
	if *sleeps != 0 {
		t.Errorf("sleeps = %d, want 0", *sleeps)
	}
	if len(res.Task.Result.Messages) != 1 {
		t.Errorf("unexpected result %+v", res.Task)
	}
}

func TestPollAuthErrorUnchangedTokenIsTerminal(t *testing.T) {
	prober := &scriptedProber{responses: []probeStep{
		{probe: ProbeResult{StatusCode: 403}},
	}}
	creds := &refreshableCreds{tokens: []string{"same"}}
	poller, _ := newTestPoller(t, prober, creds, 5)

	_, err := poller.Poll(context.Background(), "task-1", Observer{})
	if !errors.Is(err, ErrAuthorizationFailed) {
		t.Fatalf("err = %v, want ErrAuthorizationFailed", err)
	}
	if prober.calls != 1 {
		t.Errorf("probes = %d, want 1 (no retry with an unchanged token)", prober.calls)
	}
}

func TestPollAuthErrorPersistsAfterRefresh(t *testing.T) {
	prober := &scriptedProber{responses: []probeStep{
		{probe: ProbeResult{StatusCode: 403}},
	}}
	creds := &refreshableCreds{tokens: []string{"stale", "fresh"}}
	poller, _ := newTestPoller(t, prober, creds, 5)

	_, err := poller.Poll(context.Background(), "task-1", Observer{})
	if !errors.Is(err, ErrAuthorizationFailed) {
		t.Fatalf("err = %v, want ErrAuthorizationFailed", err)
	}
	if prober.calls != 2 {
		t.Errorf("probes = %d, want 2 (one retry with the refreshed token)", prober.calls)
	}
	if creds.refreshed != 1 {
		t.Errorf("refreshes = %d, want exactly 1", creds.refreshed)
	}
}

func TestPollContextCancellationStopsRetries(t *testing.T) {
	prober := &scriptedProber{responses: []probeStep{
		{probe: ProbeResult{StatusCode: 500}},
	}}
	poller, _ := newTestPoller(t, prober, StaticCredentials("tok"), 10)

	ctx, cancel := context.WithCancel(context.Background())
	poller.sleep = func(sctx context.Context, _ time.Duration) error {
		cancel()
		return sctx.Err()
	}

	_, err := poller.Poll(ctx, "task-1", Observer{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
