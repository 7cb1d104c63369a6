package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// Stored error text is capped so a verbose driver error cannot bloat rows.
const maxErrorLen = 1024

var errNoTx = errors.New("outbox repository needs a transaction")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, row models.OutboxEvent) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Create(&row).Error
}

// Claim returns up to limit unpublished rows, oldest first, that have not
// exhausted maxAttempts. On Postgres the rows stay locked (SKIP LOCKED)
// until tx ends, so concurrent publishers take disjoint batches.
func (r *Repository) Claim(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errNoTx
	}
	q := tx.Where("published_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsSkipLocked})
	}
	var rows []models.OutboxEvent
	err := q.Order("created_at, id").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return r.update(tx, id, map[string]any{"published_at": at.UTC()})
}

// RecordFailure bumps the attempt counter and keeps the latest error.
func (r *Repository) RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error {
	return r.update(tx, id, map[string]any{
		"attempt_count": gorm.Expr("attempt_count + 1"),
		"last_error":    clip(cause),
	})
}

// DeadLetter copies row into outbox_dlq and raises its attempt count to
// parkAt so Claim never returns it again.
func (r *Repository) DeadLetter(tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, parkAt int) error {
	if tx == nil {
		return errNoTx
	}
	msg := clip(cause)
	if err := tx.Create(&models.OutboxDLQ{
		ID:            uuid.New(),
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}).Error; err != nil {
		return err
	}
	return r.update(tx, row.ID, map[string]any{"attempt_count": parkAt, "last_error": msg})
}

// DeadLetterFor returns the DLQ entry for an outbox row, or nil when it has none.
func (r *Repository) DeadLetterFor(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var entry models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// PurgePublished deletes rows published before cutoff and reports how many went.
func (r *Repository) PurgePublished(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func (r *Repository) update(tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(fields).Error
}

func clip(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	return msg
}
