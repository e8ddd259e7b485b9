package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/azure-way/aidocwriter/internal/model"
)

const (
	statusQueued  = "queued"
	statusRunning = "running"
	statusFailed  = "failed"
	statusDead    = "dead"
)

// QueueMessageRow is the durable row shape, adapted from the teacher's
// job_run table: job_type becomes queue_name, and every queue shares one
// table so ClaimNext can lock rows scoped to an arbitrary queue name
// instead of a fixed job type.
type QueueMessageRow struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	QueueName   string         `gorm:"column:queue_name;not null;index"`
	Status      string         `gorm:"column:status;not null;index"`
	Attempts    int            `gorm:"column:attempts;not null;default:0"`
	Error       string         `gorm:"column:error"`
	LockedAt    *time.Time     `gorm:"column:locked_at;index"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index"`
	LastErrorAt *time.Time     `gorm:"column:last_error_at;index"`
	Payload     datatypes.JSON `gorm:"column:payload;type:jsonb"`
	CreatedAt   time.Time      `gorm:"not null;default:now();index"`
	UpdatedAt   time.Time      `gorm:"not null;default:now();index"`
}

func (QueueMessageRow) TableName() string { return "aidocwriter_queue_message" }

// PGBroker is the Postgres-backed Broker, grounded on the teacher's
// jobRunRepo.ClaimNextRunnable (internal/data/repos/jobs/job_run.go),
// generalized from a single job_type column to a queue_name column so many
// queues share one lock-and-claim table.
type PGBroker struct {
	db *gorm.DB
}

func NewPGBroker(db *gorm.DB) *PGBroker {
	return &PGBroker{db: db}
}

func (b *PGBroker) Migrate(ctx context.Context) error {
	return b.db.WithContext(ctx).AutoMigrate(&QueueMessageRow{})
}

func (b *PGBroker) Enqueue(ctx context.Context, queue string, p model.Payload) (string, error) {
	blob, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	row := QueueMessageRow{
		ID:        uuid.New(),
		QueueName: queue,
		Status:    statusQueued,
		Payload:   datatypes.JSON(blob),
	}
	if err := b.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}
	return row.ID.String(), nil
}

// DefaultMaxAttempts and DefaultRetryDelay gate when a failed row becomes
// claimable again; callers that want different retry policy should call
// Nack with their own maxAttempts and leave Claim's retry window alone,
// since Claim only needs to know a failed row is *eligible*, not why.
const (
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = 30 * time.Second
)

func (b *PGBroker) Claim(ctx context.Context, queue string, n int, visibilityTimeout time.Duration) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	now := time.Now()
	staleCutoff := now.Add(-visibilityTimeout)
	retryCutoff := now.Add(-DefaultRetryDelay)

	var out []Message
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []QueueMessageRow
		q := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`queue_name = ? AND (
				status = ?
				OR (status = ? AND attempts < ? AND (last_error_at IS NULL OR last_error_at < ?))
				OR (status = ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?)
			)`, queue, statusQueued, statusFailed, DefaultMaxAttempts, retryCutoff, statusRunning, staleCutoff).
			Order("created_at ASC").
			Limit(n)
		if err := q.Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		if err := tx.Model(&QueueMessageRow{}).Where("id IN ?", ids).Updates(map[string]interface{}{
			"status":       statusRunning,
			"attempts":     gorm.Expr("attempts + 1"),
			"locked_at":    now,
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error; err != nil {
			return err
		}
		for _, r := range rows {
			var p model.Payload
			if err := json.Unmarshal(r.Payload, &p); err != nil {
				return err
			}
			out = append(out, Message{ID: r.ID.String(), Queue: r.QueueName, Payload: p, Attempts: r.Attempts + 1})
		}
		return nil
	})
	return out, err
}

func (b *PGBroker) Heartbeat(ctx context.Context, messageID string) error {
	id, err := uuid.Parse(messageID)
	if err != nil {
		return err
	}
	now := time.Now()
	return b.db.WithContext(ctx).Model(&QueueMessageRow{}).
		Where("id = ? AND status = ?", id, statusRunning).
		Updates(map[string]interface{}{"heartbeat_at": now, "updated_at": now}).Error
}

func (b *PGBroker) Ack(ctx context.Context, messageID string) error {
	id, err := uuid.Parse(messageID)
	if err != nil {
		return err
	}
	return b.db.WithContext(ctx).Where("id = ?", id).Delete(&QueueMessageRow{}).Error
}

func (b *PGBroker) Nack(ctx context.Context, messageID string, cause error, maxAttempts int, retryDelay time.Duration) error {
	id, err := uuid.Parse(messageID)
	if err != nil {
		return err
	}
	now := time.Now()
	var row QueueMessageRow
	if err := b.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}
	status := statusFailed
	if row.Attempts >= maxAttempts {
		status = statusDead
	}
	return b.db.WithContext(ctx).Model(&QueueMessageRow{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        status,
		"error":         errMsg,
		"last_error_at": now,
		"locked_at":     nil,
		"heartbeat_at":  nil,
		"updated_at":    now,
	}).Error
}

func (b *PGBroker) ReclaimStale(ctx context.Context, queue string, staleAfter time.Duration) (int, error) {
	cutoff := time.Now().Add(-staleAfter)
	res := b.db.WithContext(ctx).Model(&QueueMessageRow{}).
		Where("queue_name = ? AND status = ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?", queue, statusRunning, cutoff).
		Updates(map[string]interface{}{"status": statusQueued, "locked_at": nil, "updated_at": time.Now()})
	return int(res.RowsAffected), res.Error
}
