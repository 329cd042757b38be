package events

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"levelten/internal/domain"
	"levelten/internal/store"
)

const (
	defaultLimit = 20
	maxLimit     = 500
)

// Journal records store changes as event rows.
type Journal struct {
	DB     *sql.DB
	Writer Writer
	Logger *slog.Logger
}

func NewJournal(db *sql.DB, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		DB:     db,
		Writer: Writer{DB: db},
		Logger: logger,
	}
}

// Attach subscribes the journal to s and returns the unsubscribe function.
func (j *Journal) Attach(s *store.Store) func() {
	return s.Subscribe(func(c store.Change) {
		if err := j.Record(context.Background(), c); err != nil {
			j.Logger.Error("journal: record change failed",
				"type", c.Type, "meeting_id", c.MeetingID, "entity_id", c.EntityID, "err", err)
		}
	})
}

// Record writes a single change.
func (j *Journal) Record(ctx context.Context, c store.Change) error {
	tx, err := j.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := j.Writer.Append(ctx, tx, c.Type, c.MeetingID, c.EntityKind, c.EntityID, c.ActorID, EventPayload(c.Payload)); err != nil {
		return err
	}
	return tx.Commit()
}

// Filter narrows Latest. Zero values match everything; BeforeID pages
// backwards by matching only events with a smaller id.
type Filter struct {
	Limit     int
	MeetingID string
	Type      string
	BeforeID  int64
}

// Latest returns matching events, newest first.
func (j *Journal) Latest(ctx context.Context, f Filter) ([]domain.Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	var (
		clauses []string
		args    []any
	)
	if f.MeetingID != "" {
		clauses = append(clauses, "meeting_id=?")
		args = append(args, f.MeetingID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.BeforeID > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.BeforeID)
	}
	query := `SELECT id,ts,type,COALESCE(meeting_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.MeetingID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// Count returns the number of recorded events.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	err := j.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

// WithClock sets the timestamp source for new events.
func (j *Journal) WithClock(now func() time.Time) *Journal {
	j.Writer.Now = now
	return j
}
