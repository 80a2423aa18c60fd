package signup

import (
	"strings"
	"time"
)

// TimestampLayout formats the submission timestamp column.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatSummary renders the seven user-facing fields under heading.
func FormatSummary(r Record, heading string) string {
	var b strings.Builder
	b.WriteString(heading)
	b.WriteString(":\n")
	line := func(label, value string) {
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(orAbsent(value))
		b.WriteByte('\n')
	}
	line("Имя", r.Name)
	line("Уровень языка", r.Level)
	line("Формат занятий", r.Format)
	line("Цель", r.Purpose)
	line("Ник в тг", r.Username)
	line("Телефон", r.Phone)
	line("Предварительная дата консультации", r.MeetDateText())
	return strings.TrimSuffix(b.String(), "\n")
}

func orAbsent(v string) string {
	if strings.TrimSpace(v) == "" {
		return Absent
	}
	return v
}

// Row is one persisted submission.
type Row struct {
	// ID is a unique submission id; it is not one of the tabular columns.
	ID        string
	Name      string
	Level     string
	Format    string
	Purpose   string
	Username  string
	Phone     string
	MeetDate  string
	Timestamp string
}

// NewRow maps a record to a row stamped with at.
func NewRow(id string, r Record, at time.Time) Row {
	return Row{
		ID:        id,
		Name:      r.Name,
		Level:     r.Level,
		Format:    r.Format,
		Purpose:   r.Purpose,
		Username:  orAbsent(r.Username),
		Phone:     orAbsent(r.Phone),
		MeetDate:  r.MeetDateText(),
		Timestamp: at.Format(TimestampLayout),
	}
}

// Values returns the tabular columns in order:
// name, level, format, purpose, username, phone, meet_date, timestamp.
func (r Row) Values() []string {
	return []string{r.Name, r.Level, r.Format, r.Purpose, r.Username, r.Phone, r.MeetDate, r.Timestamp}
}
