// Package service implements the lead intake flow: dedup guard, lead
// creation and qualification-job kickoff.
package service

import (
	"context"
	"errors"

	"prospect_intake_backend/internal/events"
	"prospect_intake_backend/internal/leads/repository"
	"prospect_intake_backend/internal/leads/transport"
	"prospect_intake_backend/internal/requests/domain"
	"prospect_intake_backend/internal/salesbuilder"
	"prospect_intake_backend/platform/apperr"
	"prospect_intake_backend/platform/logger"

	"github.com/google/uuid"
)

// New leads enter the funnel at the first pipeline stage.
const (
	defaultPipeStage   = "fit_to_rapport"
	defaultSpicedStage = "P1"
)

// LeadStore is the slice of the leads repository the intake flow needs.
type LeadStore interface {
	Create(ctx context.Context, lead repository.Lead) (repository.Lead, error)
	GetByWhatsapp(ctx context.Context, whatsapp string) (repository.Lead, error)
}

// RecordStore is the slice of the requests repository the intake flow needs.
type RecordStore interface {
	Create(ctx context.Context, whatsapp string) (domain.Record, error)
	AppendStep(ctx context.Context, requestID uuid.UUID, step domain.Step) error
	SetStatus(ctx context.Context, requestID uuid.UUID, to domain.Status) error
	Transition(ctx context.Context, requestID uuid.UUID, step domain.Step, to domain.Status) error
	SetTaskID(ctx context.Context, requestID uuid.UUID, taskID string) error
}

// TaskStarter kicks off a qualification job.
type TaskStarter interface {
	StartTask(ctx context.Context, input salesbuilder.KickoffInput) (string, error)
}

// IntakeResult is the outcome of one form submission.
type IntakeResult struct {
	RequestID uuid.UUID
	LeadID    uuid.UUID
	TaskID    string
	Duplicate bool
}

type Service struct {
	leads   LeadStore
	records RecordStore
	tasks   TaskStarter
	bus     events.Bus
	log     *logger.Logger
}

func New(leads LeadStore, records RecordStore, tasks TaskStarter, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		leads:   leads,
		records: records,
		tasks:   tasks,
		bus:     bus,
		log:     log,
	}
}

// Intake processes one submitted form. The whatsapp number must already be in
// digits-only form. Every submission gets a Request Record, duplicates
// included, so the audit trail covers rejected submissions too.
func (s *Service) Intake(ctx context.Context, whatsapp string, form transport.SubmitFormRequest) (IntakeResult, error) {
	rec, err := s.records.Create(ctx, whatsapp)
	if err != nil {
		return IntakeResult{}, apperr.Wrap(apperr.KindInternal, "failed to register submission", err)
	}
	s.appendStep(ctx, rec.ID, domain.NewStep(domain.StepFormReceived, true, "form submission received", nil))

	result := IntakeResult{RequestID: rec.ID}

	existing, err := s.leads.GetByWhatsapp(ctx, whatsapp)
	switch {
	case err == nil:
		return s.markDuplicate(ctx, rec.ID, existing.ID, result)
	case errors.Is(err, repository.ErrNotFound):
		s.appendStep(ctx, rec.ID, domain.NewStep(domain.StepLeadLookup, true,
			"no existing lead for this number", domain.LookupPayload{Duplicate: false}))
	default:
		s.fail(ctx, rec.ID, "lead lookup failed")
		return result, apperr.Wrap(apperr.KindInternal, "failed to check for existing lead", err)
	}

	lead, err := s.leads.Create(ctx, repository.Lead{
		Whatsapp:    whatsapp,
		Name:        form.Name(),
		Company:     form.CompanyName(),
		Email:       form.EmailAddress(),
		JobTitle:    form.Role(),
		Revenue:     form.RevenueBand(),
		PipeStage:   defaultPipeStage,
		SpicedStage: defaultSpicedStage,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost the race against a concurrent submission for the same
			// number. The database index is the source of truth.
			return s.markDuplicate(ctx, rec.ID, uuid.Nil, result)
		}
		s.fail(ctx, rec.ID, "lead creation failed")
		return result, apperr.Wrap(apperr.KindInternal, "failed to store lead", err)
	}
	result.LeadID = lead.ID
	if err := s.records.Transition(ctx, rec.ID,
		domain.NewStep(domain.StepLeadStored, true, "lead stored", domain.LookupPayload{Duplicate: false, LeadID: lead.ID.String()}),
		domain.StatusStored); err != nil {
		s.log.Error("mark lead stored failed", "error", err, "request_id", rec.ID)
	}

	if err := s.records.SetStatus(ctx, rec.ID, domain.StatusCallingTaskSource); err != nil {
		s.log.Error("mark calling task source failed", "error", err, "request_id", rec.ID)
	}

	taskID, err := s.tasks.StartTask(ctx, salesbuilder.KickoffInput{
		Whatsapp:     whatsapp,
		ProspectName: form.Name(),
		Company:      form.CompanyName(),
		Email:        form.EmailAddress(),
		JobTitle:     form.Role(),
		Revenue:      form.RevenueBand(),
	})
	if err != nil {
		if terr := s.records.Transition(ctx, rec.ID,
			domain.NewStep(domain.StepTaskKickoff, false, err.Error(), nil),
			domain.StatusProcessingException); terr != nil {
			s.log.Error("mark kickoff failure failed", "error", terr, "request_id", rec.ID)
		}
		return result, apperr.Wrap(apperr.KindInternal, "failed to start qualification job", err)
	}
	result.TaskID = taskID

	if err := s.records.SetStatus(ctx, rec.ID, domain.StatusTaskResponseReceived); err != nil {
		s.log.Error("mark task response failed", "error", err, "request_id", rec.ID)
	}
	if err := s.records.SetTaskID(ctx, rec.ID, taskID); err != nil {
		s.log.Error("store task id failed", "error", err, "request_id", rec.ID)
	}
	if err := s.records.Transition(ctx, rec.ID,
		domain.NewStep(domain.StepTaskKickoff, true, "qualification job started", domain.KickoffPayload{TaskID: taskID}),
		domain.StatusTaskIDReceived); err != nil {
		s.log.Error("mark task id received failed", "error", err, "request_id", rec.ID)
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		RequestID: rec.ID,
		TaskID:    taskID,
		Whatsapp:  whatsapp,
	})

	return result, nil
}

// markDuplicate closes the record on the duplicate path.
func (s *Service) markDuplicate(ctx context.Context, requestID, leadID uuid.UUID, result IntakeResult) (IntakeResult, error) {
	payload := domain.LookupPayload{Duplicate: true}
	if leadID != uuid.Nil {
		payload.LeadID = leadID.String()
	}
	if err := s.records.Transition(ctx, requestID,
		domain.NewStep(domain.StepLeadLookup, true, "lead already exists for this number", payload),
		domain.StatusDuplicate); err != nil {
		s.log.Error("mark duplicate failed", "error", err, "request_id", requestID)
	}
	result.Duplicate = true
	return result, nil
}

func (s *Service) fail(ctx context.Context, requestID uuid.UUID, reason string) {
	if err := s.records.Transition(ctx, requestID,
		domain.NewStep(domain.StepLeadLookup, false, reason, nil),
		domain.StatusProcessingException); err != nil {
		s.log.Error("mark processing exception failed", "error", err, "request_id", requestID)
	}
}

func (s *Service) appendStep(ctx context.Context, requestID uuid.UUID, step domain.Step) {
	if err := s.records.AppendStep(ctx, requestID, step); err != nil {
		s.log.Error("append step failed", "error", err, "request_id", requestID, "kind", step.Kind)
	}
}
