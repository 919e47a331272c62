// Package domain defines the Request Record state machine: the durable,
// append-only audit document that tracks one form submission from intake
// through follow-up dispatch.
package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the current state tag of a Request Record.
type Status string

const (
	StatusReceived             Status = "received"
	StatusDuplicate            Status = "duplicate"
	StatusStored               Status = "stored"
	StatusCallingTaskSource    Status = "calling_task_source"
	StatusTaskResponseReceived Status = "task_response_received"
	StatusTaskIDReceived       Status = "task_id_received"
	StatusProcessingTask       Status = "processing_task"
	StatusCheckingTaskStatus   Status = "checking_task_status"
	StatusMessagesStored       Status = "messages_stored"
	StatusCompleted            Status = "completed"

	StatusEvolutionConfigMissing Status = "evolution_config_missing"
	StatusAPIKeyError            Status = "api_key_error"
	StatusTaskCheckError         Status = "task_check_error"
	StatusMessageSendFailed      Status = "message_send_failed"
	StatusProcessingException    Status = "processing_exception"
)

// Terminal reports whether no further transitions may leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusDuplicate, StatusCompleted,
		StatusEvolutionConfigMissing, StatusAPIKeyError,
		StatusTaskCheckError, StatusMessageSendFailed,
		StatusProcessingException:
		return true
	}
	return false
}

// Valid reports whether s is a known status tag.
func (s Status) Valid() bool {
	switch s {
	case StatusReceived, StatusDuplicate, StatusStored,
		StatusCallingTaskSource, StatusTaskResponseReceived,
		StatusTaskIDReceived, StatusProcessingTask,
		StatusCheckingTaskStatus, StatusMessagesStored, StatusCompleted,
		StatusEvolutionConfigMissing, StatusAPIKeyError,
		StatusTaskCheckError, StatusMessageSendFailed,
		StatusProcessingException:
		return true
	}
	return false
}

// TerminalStatuses lists every terminal tag, for repository-level guards.
func TerminalStatuses() []string {
	return []string{
		string(StatusDuplicate),
		string(StatusCompleted),
		string(StatusEvolutionConfigMissing),
		string(StatusAPIKeyError),
		string(StatusTaskCheckError),
		string(StatusMessageSendFailed),
		string(StatusProcessingException),
	}
}

// StepKind identifies one of the closed set of step event kinds. Each kind
// has a fixed payload schema so consumers can pattern-match instead of
// probing optional fields.
type StepKind string

const (
	StepFormReceived    StepKind = "form_received"
	StepLeadLookup      StepKind = "lead_lookup"
	StepLeadStored      StepKind = "lead_stored"
	StepTaskKickoff     StepKind = "task_kickoff"
	StepPollAttempt     StepKind = "poll_attempt"
	StepTokenRefresh    StepKind = "token_refresh"
	StepFallbackApplied StepKind = "fallback_applied"
	StepMessageSent     StepKind = "message_sent"
	StepMessageFailed   StepKind = "message_failed"
	StepHistoryRecorded StepKind = "history_recorded"
	StepFinalized       StepKind = "finalized"
)

// Step is one immutable, timestamped entry in a Request Record's history.
// Seq is assigned by storage and strictly increases within one record.
type Step struct {
	Seq       int64           `json:"seq"`
	Kind      StepKind        `json:"kind"`
	OK        bool            `json:"ok"`
	Message   string          `json:"message"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Fixed payload schemas per step kind.

// LookupPayload accompanies StepLeadLookup.
type LookupPayload struct {
	Duplicate bool   `json:"duplicate"`
	LeadID    string `json:"leadId,omitempty"`
}

// KickoffPayload accompanies StepTaskKickoff.
type KickoffPayload struct {
	TaskID string `json:"taskId,omitempty"`
}

// PollAttemptPayload accompanies StepPollAttempt.
type PollAttemptPayload struct {
	Attempt   int    `json:"attempt"`
	Budget    int    `json:"budget"`
	Outcome   string `json:"outcome"`
	ElapsedMs int64  `json:"elapsedMs"`
}

// TokenRefreshPayload accompanies StepTokenRefresh.
type TokenRefreshPayload struct {
	Changed bool `json:"changed"`
}

// FallbackPayload accompanies StepFallbackApplied.
type FallbackPayload struct {
	MessageCount int `json:"messageCount"`
}

// MessagePayload accompanies StepMessageSent and StepMessageFailed.
type MessagePayload struct {
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Preview string `json:"preview"`
}

// FinalizedPayload accompanies StepFinalized.
type FinalizedPayload struct {
	Status       string `json:"status"`
	MessageCount int    `json:"messageCount"`
	UsedFallback bool   `json:"usedFallback"`
}

// NewStep builds a Step with the payload marshalled in. A payload that fails
// to marshal is dropped rather than blocking the audit trail.
func NewStep(kind StepKind, ok bool, message string, payload any) Step {
	step := Step{
		Kind:    kind,
		OK:      ok,
		Message: message,
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			step.Payload = data
		}
	}
	return step
}

// PreviewMaxLen is the maximum length of message previews stored in step payloads.
const PreviewMaxLen = 50

// Preview trims text for step payloads, appending "..." on overflow.
func Preview(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) > PreviewMaxLen {
		return trimmed[:PreviewMaxLen] + "..."
	}
	return trimmed
}

// Record is the durable state document for one submission.
type Record struct {
	ID           uuid.UUID       `json:"id"`
	Whatsapp     string          `json:"whatsapp"`
	Status       Status          `json:"status"`
	TaskID       *string         `json:"taskId,omitempty"`
	TaskResult   json.RawMessage `json:"taskResult,omitempty"`
	Messages     []string        `json:"messages,omitempty"`
	MessageCount int             `json:"messageCount"`
	UsedFallback bool            `json:"usedFallback"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	Steps        []Step          `json:"steps,omitempty"`
}

// CanTransition reports whether a record may move from one status to another.
// The only rule is that terminal states are absorbing; forward progress
// between non-terminal states is not otherwise constrained because retried
// flows may legitimately re-enter earlier states.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	return to.Valid()
}
