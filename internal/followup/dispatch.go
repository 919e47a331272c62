package followup

import (
	"context"
	"fmt"
	"time"

	"prospect_intake_backend/internal/evolution"
	"prospect_intake_backend/internal/history"
	"prospect_intake_backend/internal/requests/domain"
	"prospect_intake_backend/internal/salesbuilder"
	"prospect_intake_backend/platform/config"
	"prospect_intake_backend/platform/logger"
	"prospect_intake_backend/platform/phone"

	"github.com/google/uuid"
)

// Outcome summarises one dispatch run. Status is the terminal status the
// record should land in.
type Outcome struct {
	Status       domain.Status
	Reason       string
	Sent         int
	Failed       int
	UsedFallback bool
}

// Dispatcher sends the qualification job's reply messages over WhatsApp,
// recording every step on the Request Record.
type Dispatcher struct {
	gateway  evolution.MessagingGateway
	store    RecordStore
	history  HistoryRecorder
	fallback []string
	pause    time.Duration
	log      *logger.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a dispatcher with policy taken from configuration.
func NewDispatcher(gateway evolution.MessagingGateway, store RecordStore, hist HistoryRecorder, cfg config.DispatchConfig, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		gateway:  gateway,
		store:    store,
		history:  hist,
		fallback: cfg.GetFallbackMessages(),
		pause:    cfg.GetInterMessagePause(),
		log:      log,
		sleep:    sleepContext,
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

// Dispatch runs the pipeline for one poll result:
//
//  1. An unconfigured gateway ends the flow before any send is attempted.
//  2. An empty message list from a successful poll is replaced by the
//     configured fallback script; with no script configured either, the
//     flow fails for incomplete data.
//  3. The recipient is normalised to digits-only form; an unusable number
//     ends the flow without sends.
//  4. The final message list is persisted, then sent one by one. A failed
//     message never stops later ones.
//  5. History recording failures are logged, not propagated: a lost report
//     row must not fail a delivered message.
//
// The returned error is reserved for storage failures that happen before any
// send; once sending starts the result is always expressed as an Outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, rec domain.Record, poll salesbuilder.PollResult) (Outcome, error) {
	if !d.gateway.IsConfigured() {
		return Outcome{
			Status: domain.StatusEvolutionConfigMissing,
			Reason: "messaging gateway is not configured",
		}, nil
	}

	messages, prospectName := pollContent(poll)
	usedFallback := false
	if len(messages) == 0 {
		if len(d.fallback) == 0 {
			d.appendStep(ctx, rec.ID, domain.NewStep(domain.StepMessageFailed, false,
				"task returned no content and no fallback script is configured", nil))
			return Outcome{
				Status: domain.StatusProcessingException,
				Reason: "task result contained no messages",
			}, nil
		}
		messages = d.fallback
		usedFallback = true
		d.appendStep(ctx, rec.ID, domain.NewStep(domain.StepFallbackApplied, true,
			"task completed without content, using fallback script",
			domain.FallbackPayload{MessageCount: len(messages)}))
	}

	recipient, err := d.recipient(rec, poll)
	if err != nil {
		d.appendStep(ctx, rec.ID, domain.NewStep(domain.StepMessageFailed, false,
			"recipient number is not usable: "+err.Error(), nil))
		return Outcome{
			Status:       domain.StatusProcessingException,
			Reason:       "invalid recipient number",
			UsedFallback: usedFallback,
		}, nil
	}

	if err := d.store.SetMessages(ctx, rec.ID, messages, usedFallback); err != nil {
		return Outcome{}, fmt.Errorf("store outbound messages: %w", err)
	}
	if err := d.store.SetStatus(ctx, rec.ID, domain.StatusMessagesStored); err != nil {
		return Outcome{}, fmt.Errorf("mark messages stored: %w", err)
	}

	source := "task"
	if usedFallback {
		source = "fallback"
	}

	sent, failed := 0, 0
	for i, text := range messages {
		payload := domain.MessagePayload{
			Index:   i + 1,
			Total:   len(messages),
			Preview: domain.Preview(text),
		}

		if err := d.gateway.SendText(ctx, recipient, text); err != nil {
			failed++
			d.log.Error("whatsapp send failed", "error", err, "request_id", rec.ID, "index", i+1)
			d.appendStep(ctx, rec.ID, domain.NewStep(domain.StepMessageFailed, false, err.Error(), payload))
		} else {
			sent++
			d.appendStep(ctx, rec.ID, domain.NewStep(domain.StepMessageSent, true, "message delivered", payload))
			d.recordHistory(ctx, rec.ID, recipient, prospectName, text, source)
		}

		if i < len(messages)-1 && d.pause > 0 {
			if err := d.sleep(ctx, d.pause); err != nil {
				failed += len(messages) - i - 1
				break
			}
		}
	}

	outcome := Outcome{
		Sent:         sent,
		Failed:       failed,
		UsedFallback: usedFallback,
	}
	if failed > 0 {
		outcome.Status = domain.StatusMessageSendFailed
		outcome.Reason = fmt.Sprintf("%d of %d messages failed", failed, len(messages))
	} else {
		outcome.Status = domain.StatusCompleted
	}
	return outcome, nil
}

// pollContent extracts messages and prospect name, tolerating a nil task.
func pollContent(poll salesbuilder.PollResult) ([]string, string) {
	if poll.Task == nil {
		return nil, ""
	}
	return poll.Task.Result.Messages, poll.Task.Result.ProspectName
}

// recipient prefers the number the qualification job echoed back, falling
// back to the number captured at intake.
func (d *Dispatcher) recipient(rec domain.Record, poll salesbuilder.PollResult) (string, error) {
	if poll.Task != nil && poll.Task.Result.Whatsapp != "" {
		if digits, err := phone.Digits(poll.Task.Result.Whatsapp); err == nil {
			return digits, nil
		}
	}
	return phone.Digits(rec.Whatsapp)
}

func (d *Dispatcher) appendStep(ctx context.Context, requestID uuid.UUID, step domain.Step) {
	if err := d.store.AppendStep(ctx, requestID, step); err != nil {
		d.log.Error("append step failed", "error", err, "request_id", requestID, "kind", step.Kind)
	}
}

func (d *Dispatcher) recordHistory(ctx context.Context, requestID uuid.UUID, whatsapp, prospectName, content, source string) {
	err := d.history.Record(ctx, history.DeliveredMessage{
		RequestID:    requestID,
		Whatsapp:     whatsapp,
		ProspectName: prospectName,
		Content:      content,
		Source:       source,
		SentAt:       time.Now().UTC(),
	})
	if err != nil {
		d.log.Error("history record failed", "error", err, "request_id", requestID)
		d.appendStep(ctx, requestID, domain.NewStep(domain.StepHistoryRecorded, false, err.Error(), nil))
		return
	}
	d.appendStep(ctx, requestID, domain.NewStep(domain.StepHistoryRecorded, true, "delivery recorded", nil))
}
