// Package repository persists leads in Postgres.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("lead not found")
	// ErrDuplicate means a lead with this whatsapp number already exists.
	// Uniqueness is enforced by a partial unique index, so concurrent
	// submissions race safely in the database instead of in application code.
	ErrDuplicate = errors.New("lead already exists for this whatsapp number")
)

// Lead is one captured prospect.
type Lead struct {
	ID          uuid.UUID `json:"id"`
	Whatsapp    string    `json:"whatsapp"`
	Name        string    `json:"name"`
	Company     string    `json:"company"`
	Email       string    `json:"email"`
	JobTitle    string    `json:"jobTitle"`
	Revenue     string    `json:"revenue"`
	PipeStage   string    `json:"pipeStage"`
	SpicedStage string    `json:"spicedStage"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new lead. A unique-index violation on the whatsapp column
// is reported as ErrDuplicate.
func (r *Repository) Create(ctx context.Context, lead Lead) (Lead, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO leads (whatsapp, name, company, email, job_title, revenue, pipe_stage, spiced_stage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, lead.Whatsapp, lead.Name, lead.Company, lead.Email, lead.JobTitle,
		lead.Revenue, lead.PipeStage, lead.SpicedStage).Scan(&lead.ID, &lead.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Lead{}, ErrDuplicate
		}
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}
	return lead, nil
}

// GetByWhatsapp returns the lead registered under a digits-only number.
func (r *Repository) GetByWhatsapp(ctx context.Context, whatsapp string) (Lead, error) {
	var lead Lead
	err := r.pool.QueryRow(ctx, `
		SELECT id, whatsapp, name, company, email, job_title, revenue, pipe_stage, spiced_stage, created_at
		FROM leads
		WHERE whatsapp = $1
	`, whatsapp).Scan(&lead.ID, &lead.Whatsapp, &lead.Name, &lead.Company, &lead.Email,
		&lead.JobTitle, &lead.Revenue, &lead.PipeStage, &lead.SpicedStage, &lead.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, fmt.Errorf("get lead by whatsapp: %w", err)
	}
	return lead, nil
}
