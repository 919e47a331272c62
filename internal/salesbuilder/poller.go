package salesbuilder

import (
	"context"
	"errors"
	"strconv"
	"time"

	"prospect_intake_backend/platform/config"
	"prospect_intake_backend/platform/logger"
)

// Outcome classifies one probe of the status endpoint.
type Outcome string

const (
	OutcomeReadyWithContent Outcome = "ready-with-content"
	OutcomeReadyButEmpty    Outcome = "ready-but-empty"
	OutcomeNotReady         Outcome = "not-ready"
	OutcomeAuthError        Outcome = "auth-error"
	OutcomeTransportError   Outcome = "transport-error"
)

var (
	// ErrAuthorizationFailed is terminal: the status endpoint kept returning
	// 403 even after one credential refresh.
	ErrAuthorizationFailed = errors.New("sales builder authorization failed after credential refresh")
	// ErrAttemptsExhausted is terminal: the attempt budget ran out without a
	// single usable (200) response.
	ErrAttemptsExhausted = errors.New("sales builder status attempts exhausted")
)

// Prober abstracts the status endpoint for the poller.
type Prober interface {
	CheckStatus(ctx context.Context, taskID string) (ProbeResult, error)
}

// Attempt describes one finished probe, for audit recording.
type Attempt struct {
	Number  int
	Budget  int
	Outcome Outcome
	Detail  string
	Elapsed time.Duration
}

// Observer receives poller progress callbacks. Either field may be nil.
type Observer struct {
	OnAttempt      func(ctx context.Context, a Attempt)
	OnTokenRefresh func(ctx context.Context, changed bool)
}

// PollResult is the poller's terminal output on the success path. A result
// with an empty message list and LastProbeOK=true means the upstream
// legitimately reported success with no content on every attempt; the
// dispatch pipeline decides what to do with that.
type PollResult struct {
	Task        *TaskResult
	Raw         []byte
	LastProbeOK bool
	Attempts    int
	Elapsed     time.Duration
}

// Poller resolves a task identifier into a usable TaskResult, or a terminal
// failure, within a bounded number of attempts. Attempt budget, delay and
// the sleep/clock functions are injected so the state machine is testable
// without real timers.
type Poller struct {
	prober      Prober
	creds       CredentialProvider
	maxAttempts int
	delay       time.Duration
	log         *logger.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewPoller creates a poller with policy taken from configuration.
func NewPoller(prober Prober, creds CredentialProvider, cfg config.SalesBuilderConfig, log *logger.Logger) *Poller {
	return &Poller{
		prober:      prober,
		creds:       creds,
		maxAttempts: cfg.GetPollMaxAttempts(),
		delay:       cfg.GetPollRetryDelay(),
		log:         log,
		sleep:       sleepContext,
		now:         time.Now,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Poll drives repeated status probes until a usable result is obtained or
// the retry budget is exhausted.
//
// Per-attempt classification:
//   - ready-with-content: 200 with a non-empty message list; returns immediately.
//   - ready-but-empty: 200 with an empty list; retried, and if the budget runs
//     out in this state the empty result is returned as a success.
//   - not-ready: any non-200, non-403 response; retried.
//   - auth-error: 403; one credential refresh, one immediate retry with the
//     new token if it changed, otherwise terminal.
//   - transport-error: request failure or timeout; retried.
func (p *Poller) Poll(ctx context.Context, taskID string, obs Observer) (PollResult, error) {
	start := p.now()
	authRetried := false
	lastOutcome := Outcome("")
	var lastEmpty ProbeResult

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return PollResult{}, err
		}

		probe, err := p.prober.CheckStatus(ctx, taskID)
		elapsed := p.now().Sub(start)

		outcome, detail := classify(probe, err)
		lastOutcome = outcome
		p.log.PollAttempt(taskID, attempt, p.maxAttempts, string(outcome), elapsed.Milliseconds())
		p.observeAttempt(ctx, obs, Attempt{
			Number:  attempt,
			Budget:  p.maxAttempts,
			Outcome: outcome,
			Detail:  detail,
			Elapsed: elapsed,
		})

		switch outcome {
		case OutcomeReadyWithContent:
			return PollResult{
				Task:        probe.Task,
				Raw:         probe.Raw,
				LastProbeOK: true,
				Attempts:    attempt,
				Elapsed:     elapsed,
			}, nil

		case OutcomeReadyButEmpty:
			lastEmpty = probe

		case OutcomeAuthError:
			if authRetried {
				return PollResult{Attempts: attempt, Elapsed: elapsed}, ErrAuthorizationFailed
			}
			previous := p.creds.Token()
			refreshed := p.creds.Refresh()
			changed := refreshed != "" && refreshed != previous
			if obs.OnTokenRefresh != nil {
				obs.OnTokenRefresh(ctx, changed)
			}
			if !changed {
				return PollResult{Attempts: attempt, Elapsed: elapsed}, ErrAuthorizationFailed
			}
			authRetried = true
			// Immediate retry with the refreshed token, no delay.
			continue
		}

		if attempt == p.maxAttempts {
			break
		}
		if err := p.sleep(ctx, p.delay); err != nil {
			return PollResult{}, err
		}
	}

	elapsed := p.now().Sub(start)
	if lastOutcome == OutcomeReadyButEmpty {
		// Budget spent while the upstream kept reporting success with no
		// content: hand the empty result back and let dispatch decide.
		return PollResult{
			Task:        lastEmpty.Task,
			Raw:         lastEmpty.Raw,
			LastProbeOK: true,
			Attempts:    p.maxAttempts,
			Elapsed:     elapsed,
		}, nil
	}

	return PollResult{Attempts: p.maxAttempts, Elapsed: elapsed}, ErrAttemptsExhausted
}

func (p *Poller) observeAttempt(ctx context.Context, obs Observer, a Attempt) {
	if obs.OnAttempt != nil {
		obs.OnAttempt(ctx, a)
	}
}

func classify(probe ProbeResult, err error) (Outcome, string) {
	switch {
	case err != nil:
		return OutcomeTransportError, err.Error()
	case probe.StatusCode == 403:
		return OutcomeAuthError, "status endpoint returned 403"
	case probe.StatusCode != 200:
		return OutcomeNotReady, "status endpoint returned " + strconv.Itoa(probe.StatusCode)
	case probe.Task == nil || len(probe.Task.Result.Messages) == 0:
		return OutcomeReadyButEmpty, "task completed without reply content"
	default:
		return OutcomeReadyWithContent, "task completed with " + strconv.Itoa(len(probe.Task.Result.Messages)) + " messages"
	}
}
