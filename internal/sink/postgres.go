package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/consultbot/internal/signup"
)

const insertSubmission = `
INSERT INTO submissions (id, name, level, format, purpose, username, phone, meet_date, created_at)
VALUES (:id, :name, :level, :format, :purpose, :username, :phone, :meet_date, :created_at)`

type submission struct {
	ID        uuid.UUID  `db:"id"`
	Name      string     `db:"name"`
	Level     string     `db:"level"`
	Format    string     `db:"format"`
	Purpose   string     `db:"purpose"`
	Username  string     `db:"username"`
	Phone     string     `db:"phone"`
	MeetDate  *time.Time `db:"meet_date"`
	CreatedAt time.Time  `db:"created_at"`
}

// Postgres inserts rows into the submissions table.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres returns a sink over db; the schema comes from migrations/.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// Append inserts row. The submission id doubles as the primary key.
func (p *Postgres) Append(ctx context.Context, row signup.Row) (err error) {
	start := time.Now()
	defer func() { logAppend(ctx, KindPostgres, row, start, err) }()

	rec, err := toSubmission(row)
	if err != nil {
		return err
	}
	if _, err = p.db.NamedExecContext(ctx, insertSubmission, rec); err != nil {
		return fmt.Errorf("sink: insert submission: %w", err)
	}
	return nil
}

func toSubmission(row signup.Row) (submission, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return submission{}, fmt.Errorf("sink: submission id %q: %w", row.ID, err)
	}
	created, err := time.ParseInLocation(signup.TimestampLayout, row.Timestamp, time.Local)
	if err != nil {
		return submission{}, fmt.Errorf("sink: timestamp %q: %w", row.Timestamp, err)
	}
	rec := submission{
		ID:        id,
		Name:      row.Name,
		Level:     row.Level,
		Format:    row.Format,
		Purpose:   row.Purpose,
		Username:  row.Username,
		Phone:     row.Phone,
		CreatedAt: created,
	}
	if row.MeetDate != signup.Absent {
		d, err := time.Parse(signup.DateLayout, row.MeetDate)
		if err != nil {
			return submission{}, fmt.Errorf("sink: meet date %q: %w", row.MeetDate, err)
		}
		rec.MeetDate = &d
	}
	return rec, nil
}
