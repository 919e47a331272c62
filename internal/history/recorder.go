// Package history records delivered WhatsApp messages for reporting.
package history

import (
	"context"
	"fmt"
	"time"

	"prospect_intake_backend/platform/config"
	"prospect_intake_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeliveredMessage is one outbound message that reached the gateway.
type DeliveredMessage struct {
	RequestID    uuid.UUID
	Whatsapp     string
	ProspectName string
	Content      string
	Source       string
	SentAt       time.Time
}

// Recorder persists delivery history in Postgres. Timestamps are stored in
// UTC alongside a formatted local-time column in the reporting timezone, so
// exports read naturally for the sales team.
type Recorder struct {
	pool *pgxpool.Pool
	loc  *time.Location
	log  *logger.Logger
}

// NewRecorder creates a history recorder. An unknown reporting timezone falls
// back to UTC rather than failing startup.
func NewRecorder(pool *pgxpool.Pool, cfg config.HistoryConfig, log *logger.Logger) *Recorder {
	loc, err := time.LoadLocation(cfg.GetReportingTimezone())
	if err != nil {
		log.Warn("unknown reporting timezone, using UTC", "timezone", cfg.GetReportingTimezone())
		loc = time.UTC
	}
	return &Recorder{pool: pool, loc: loc, log: log}
}

// Record inserts one delivered message. Callers treat failures here as
// non-fatal; a lost history row must not fail an already-delivered message.
func (r *Recorder) Record(ctx context.Context, msg DeliveredMessage) error {
	sentAt := msg.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	localStamp := sentAt.In(r.loc).Format("2006-01-02 15:04:05")

	_, err := r.pool.Exec(ctx, `
		INSERT INTO delivered_messages (request_id, whatsapp, prospect_name, content, source, sent_at, sent_at_local)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.RequestID, msg.Whatsapp, msg.ProspectName, msg.Content, msg.Source, sentAt, localStamp)
	if err != nil {
		return fmt.Errorf("record delivered message: %w", err)
	}
	return nil
}
