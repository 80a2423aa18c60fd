// Package signup implements the consultation sign-up conversation: the question
// catalog, the per-user record and the state machine that fills it in.
package signup

import "time"

// State names the single input a record is waiting for.
type State string

const (
	StateName          State = "name"
	StateLevel         State = "level"
	StateFormat        State = "format"
	StatePurpose       State = "purpose"
	StateContactMethod State = "contact_method"
	StateUsername      State = "username"
	StateUsernameWrite State = "username_write"
	StatePhone         State = "phone"
	StateMeetDate      State = "meet_date"
	StateReview        State = "review"
	StateEditChoice    State = "edit_choice"
	// StateSubmitted is terminal; records in it are removed from the store.
	StateSubmitted State = "submitted"
)

// Field is a user-facing record field.
type Field uint8

const (
	FieldName Field = 1 << iota
	FieldLevel
	FieldFormat
	FieldPurpose
	FieldUsername
	FieldPhone
	FieldMeetDate
)

// Absent is stored for username and phone once review is reached without them.
const Absent = "-"

// DateLayout formats the consultation date in summaries and rows.
const DateLayout = "2006-01-02"

// Record is one user's in-progress submission.
type Record struct {
	UserID   int64
	State    State
	Name     string
	Level    string
	Format   string
	Purpose  string
	Username string
	Phone    string
	MeetDate time.Time

	present Field
}

// Has reports whether f was ever answered (or filled with Absent).
func (r *Record) Has(f Field) bool {
	return r.present&f != 0
}

func (r *Record) mark(f Field) {
	r.present |= f
}

// fillAbsent stores Absent in unanswered contact fields.
func (r *Record) fillAbsent() {
	if !r.Has(FieldUsername) || r.Username == "" {
		r.Username = Absent
		r.mark(FieldUsername)
	}
	if !r.Has(FieldPhone) || r.Phone == "" {
		r.Phone = Absent
		r.mark(FieldPhone)
	}
}

// MeetDateText returns the formatted date or Absent.
func (r *Record) MeetDateText() string {
	if r.MeetDate.IsZero() {
		return Absent
	}
	return r.MeetDate.Format(DateLayout)
}
