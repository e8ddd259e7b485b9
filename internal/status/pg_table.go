package status

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatusRow is the durable row shape for Table. RowKey is either "latest" or
// a history key built by HistoryRowKey; both share the (job_id, row_key)
// primary key so an upsert on "latest" is a plain ON CONFLICT update while
// history rows accumulate.
type StatusRow struct {
	JobID   string         `gorm:"column:job_id;primaryKey"`
	RowKey  string         `gorm:"column:row_key;primaryKey"`
	Event   datatypes.JSON `gorm:"column:event"`
	Updated time.Time      `gorm:"column:updated;index"`
}

func (StatusRow) TableName() string { return "aidocwriter_status" }

// DocIndexRow mirrors DocIndexEntry, partitioned by user, for ListForUser.
type DocIndexRow struct {
	UserID          string    `gorm:"column:user_id;primaryKey"`
	JobID           string    `gorm:"column:job_id;primaryKey"`
	Title           string    `gorm:"column:title"`
	Audience        string    `gorm:"column:audience"`
	Stage           string    `gorm:"column:stage"`
	Message         string    `gorm:"column:message"`
	Artifact        string    `gorm:"column:artifact"`
	Updated         float64   `gorm:"column:updated;index"`
	CyclesRequested int       `gorm:"column:cycles_requested"`
	CyclesCompleted int       `gorm:"column:cycles_completed"`
	HasError        bool      `gorm:"column:has_error"`
	LastError       string    `gorm:"column:last_error"`
}

func (DocIndexRow) TableName() string { return "aidocwriter_doc_index" }

// PGTable is the Postgres-backed Table, grounded on the teacher's
// jobRunRepo transactional update pattern (internal/data/repos/jobs/job_run.go)
// adapted from a single job_run table to the status table's
// latest-row-plus-history-rows shape.
type PGTable struct {
	db *gorm.DB
}

func NewPGTable(db *gorm.DB) *PGTable {
	return &PGTable{db: db}
}

func (t *PGTable) Migrate(ctx context.Context) error {
	return t.db.WithContext(ctx).AutoMigrate(&StatusRow{}, &DocIndexRow{})
}

func (t *PGTable) Record(ctx context.Context, ev Event) error {
	blob, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	updated := time.Unix(0, int64(ev.TS*1e9))

	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		latestRow := StatusRow{JobID: ev.JobID, RowKey: "latest", Event: datatypes.JSON(blob), Updated: updated}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}, {Name: "row_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"event", "updated"}),
		}).Create(&latestRow).Error; err != nil {
			return err
		}

		historyRow := StatusRow{JobID: ev.JobID, RowKey: HistoryRowKey(ev.TS, ev.Stage), Event: datatypes.JSON(blob), Updated: updated}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}, {Name: "row_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"event", "updated"}),
		}).Create(&historyRow).Error; err != nil {
			return err
		}

		if ev.UserID == "" {
			return nil
		}
		cyclesRequested, cyclesCompleted := 0, 0
		if ev.Details != nil {
			if v, ok := ev.Details["cycles_requested"].(int); ok {
				cyclesRequested = v
			}
			if v, ok := ev.Details["cycles_completed"].(int); ok {
				cyclesCompleted = v
			}
		}
		docRow := DocIndexRow{
			UserID:          ev.UserID,
			JobID:           ev.JobID,
			Stage:           ev.Stage,
			Message:         ev.Message,
			Artifact:        ev.Artifact,
			Updated:         ev.TS,
			CyclesRequested: cyclesRequested,
			CyclesCompleted: cyclesCompleted,
			HasError:        ev.HasContradictions,
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "job_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"stage", "message", "artifact", "updated", "cycles_requested", "cycles_completed", "has_error",
			}),
		}).Create(&docRow).Error
	})
}

func (t *PGTable) Latest(ctx context.Context, jobID string) (*Event, bool, error) {
	var row StatusRow
	err := t.db.WithContext(ctx).Where("job_id = ? AND row_key = ?", jobID, "latest").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ev Event
	if err := json.Unmarshal(row.Event, &ev); err != nil {
		return nil, false, err
	}
	return &ev, true, nil
}

func (t *PGTable) Timeline(ctx context.Context, jobID string) ([]Event, error) {
	var rows []StatusRow
	if err := t.db.WithContext(ctx).
		Where("job_id = ? AND row_key <> ?", jobID, "latest").
		Order("row_key ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(rows))
	for _, r := range rows {
		var ev Event
		if err := json.Unmarshal(r.Event, &ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (t *PGTable) ListForUser(ctx context.Context, userID string) ([]DocIndexEntry, error) {
	var rows []DocIndexRow
	if err := t.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]DocIndexEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, DocIndexEntry{
			JobID:           r.JobID,
			Title:           r.Title,
			Audience:        r.Audience,
			Stage:           r.Stage,
			Message:         r.Message,
			Artifact:        r.Artifact,
			Updated:         r.Updated,
			CyclesRequested: r.CyclesRequested,
			CyclesCompleted: r.CyclesCompleted,
			HasError:        r.HasError,
			LastError:       r.LastError,
		})
	}
	return out, nil
}
