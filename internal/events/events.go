// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"prospect_intake_backend/platform/events"
	"prospect_intake_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// LeadCreated is published when a brand-new lead passes the dedup guard and
// its qualification job has been kicked off. The composition root subscribes
// to enqueue the follow-up flow.
type LeadCreated struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	RequestID uuid.UUID `json:"requestId"`
	TaskID    string    `json:"taskId"`
	Whatsapp  string    `json:"whatsapp"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// FollowupFinished is published when a follow-up flow reaches a terminal
// state, successful or not. The alert mailer reacts to failures.
type FollowupFinished struct {
	BaseEvent
	RequestID uuid.UUID `json:"requestId"`
	Whatsapp  string    `json:"whatsapp"`
	TaskID    string    `json:"taskId"`
	Status    string    `json:"status"`
	Succeeded bool      `json:"succeeded"`
	Reason    string    `json:"reason,omitempty"`
}

func (e FollowupFinished) EventName() string { return "followup.finished" }
