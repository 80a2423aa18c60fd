package signup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/consultbot/core/logger"
	"github.com/m3rciful/consultbot/core/telegram/state"
)

// EventKind classifies inbound user input.
type EventKind int

const (
	// EventEntry is an entry phrase: it creates a record or re-renders the current prompt.
	EventEntry EventKind = iota + 1
	EventText
	// EventSelect carries the label of a tapped option.
	EventSelect
	// EventContact carries the phone number of a shared contact.
	EventContact
	// EventNavigate asks the date picker to show the month of Date.
	EventNavigate
	// EventPickDate carries the day chosen in the date picker.
	EventPickDate
)

func (k EventKind) String() string {
	switch k {
	case EventEntry:
		return "entry"
	case EventText:
		return "text"
	case EventSelect:
		return "select"
	case EventContact:
		return "contact"
	case EventNavigate:
		return "navigate"
	case EventPickDate:
		return "pick_date"
	default:
		return "unknown"
	}
}

// Event is one inbound input attributed to a user.
type Event struct {
	UserID int64
	Kind   EventKind
	// Text is the free text, the selected label or the shared phone number.
	Text string
	// Handle is the sender's Telegram username without @, possibly empty.
	Handle string
	Date   time.Time
	Target Target
}

// Store holds records by user id and serialises updates per user.
type Store interface {
	Update(userID int64, fn state.UpdateFunc[Record]) error
}

// Stickers are optional sticker file ids.
type Stickers struct {
	Greeting string
	Thanks   string
}

// Machine drives the conversation.
type Machine struct {
	store     Store
	presenter Presenter
	sink      Sink
	observer  Observer
	stickers  Stickers
	now       func() time.Time
	newID     func() string
}

// Option customises a Machine.
type Option func(*Machine)

// WithObserver reports transitions, ignored input and submissions to o.
func WithObserver(o Observer) Option { return func(m *Machine) { m.observer = o } }

// WithStickers sets the greeting and thank-you stickers.
func WithStickers(s Stickers) Option { return func(m *Machine) { m.stickers = s } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(m *Machine) { m.now = now } }

// NewMachine wires a machine over its collaborators.
func NewMachine(store Store, presenter Presenter, sink Sink, opts ...Option) *Machine {
	m := &Machine{
		store:     store,
		presenter: presenter,
		sink:      sink,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// step is the outcome of interpreting one event against a record.
type step struct {
	event string
	apply func(*Record)
}

// Handle processes ev under the user's lock. Only persist failures are returned.
func (m *Machine) Handle(ctx context.Context, ev Event) error {
	return m.store.Update(ev.UserID, func(cur *Record) (*Record, error) {
		if cur == nil {
			if ev.Kind != EventEntry {
				m.ignore(ctx, "", ev)
				return nil, nil
			}
			rec := &Record{UserID: ev.UserID, State: StateName}
			m.log(ctx, slog.LevelInfo, "session.start", slog.String("to", string(rec.State)))
			m.render(ctx, ev.Target, m.prompts(rec, ev.Handle, ev.Target)...)
			return rec, nil
		}
		return m.advance(ctx, cur, ev)
	})
}

func (m *Machine) advance(ctx context.Context, rec *Record, ev Event) (*Record, error) {
	switch ev.Kind {
	case EventEntry:
		to := Target{ChatID: ev.Target.ChatID}
		m.render(ctx, to, m.prompts(rec, ev.Handle, to)...)
		return rec, nil
	case EventNavigate:
		if rec.State != StateMeetDate || m.beforeToday(monthEnd(ev.Date)) {
			m.ignore(ctx, rec.State, ev)
			return rec, nil
		}
		m.render(ctx, ev.Target, Prompt{Text: textCalendar, Calendar: ev.Date})
		return rec, nil
	}

	st, ok := m.interpret(rec, ev)
	if !ok {
		m.ignore(ctx, rec.State, ev)
		return rec, nil
	}

	from := rec.State
	to, err := next(ctx, from, st.event)
	if err != nil {
		if errors.Is(err, errNoTransition) {
			m.ignore(ctx, from, ev)
			return rec, nil
		}
		return rec, err
	}

	if to == StateSubmitted {
		return m.submit(ctx, rec, ev)
	}

	if st.apply != nil {
		st.apply(rec)
	}
	rec.State = to
	if to == StateReview {
		rec.fillAbsent()
	}
	m.transitioned(ctx, from, to, ev)
	m.render(ctx, ev.Target, m.prompts(rec, ev.Handle, ev.Target)...)
	return rec, nil
}

// interpret maps ev to a transition for the record's current state.
func (m *Machine) interpret(rec *Record, ev Event) (step, bool) {
	text := strings.TrimSpace(ev.Text)

	if ev.Kind == EventSelect {
		set, ok := stateOptions[rec.State]
		if !ok || !set.Contains(text) {
			return step{}, false
		}
	}

	phoneAnswer := func() (step, bool) {
		if ev.Kind == EventContact || (ev.Kind == EventText && LooksLikePhone(text)) {
			if text == "" {
				return step{}, false
			}
			return answer(rec, FieldPhone, evGivePhone, func(r *Record) { r.Phone = text }), true
		}
		return step{}, false
	}

	switch rec.State {
	case StateName:
		if ev.Kind != EventText || text == "" {
			return step{}, false
		}
		return answer(rec, FieldName, evGiveName, func(r *Record) { r.Name = text }), true

	case StateLevel:
		if ev.Kind != EventSelect {
			return step{}, false
		}
		return answer(rec, FieldLevel, evPickLevel, func(r *Record) { r.Level = text }), true

	case StateFormat:
		if ev.Kind != EventSelect {
			return step{}, false
		}
		return answer(rec, FieldFormat, evPickFormat, func(r *Record) { r.Format = text }), true

	case StatePurpose:
		if ev.Kind != EventSelect {
			return step{}, false
		}
		return answer(rec, FieldPurpose, evPickPurpose, func(r *Record) { r.Purpose = text }), true

	case StateContactMethod:
		if ev.Kind == EventSelect {
			if text == LabelCall {
				return step{event: evChooseCall}, true
			}
			return step{event: evChooseMessage}, true
		}
		return phoneAnswer()

	case StateUsername:
		if ev.Kind == EventSelect {
			if text == LabelSpecifyMine {
				return step{event: evOtherHandle}, true
			}
			handle := strings.TrimPrefix(strings.TrimSpace(ev.Handle), "@")
			return answer(rec, FieldUsername, evUseHandle, func(r *Record) { r.Username = orAbsent(handle) }), true
		}
		return phoneAnswer()

	case StateUsernameWrite:
		if ev.Kind != EventText || text == "" {
			return step{}, false
		}
		return answer(rec, FieldUsername, evWriteHandle, func(r *Record) { r.Username = text }), true

	case StatePhone:
		return phoneAnswer()

	case StateMeetDate:
		if ev.Kind != EventPickDate || ev.Date.IsZero() || m.beforeToday(ev.Date) {
			return step{}, false
		}
		day := dayOf(ev.Date)
		return step{event: evPickDate, apply: func(r *Record) {
			r.MeetDate = day
			r.mark(FieldMeetDate)
		}}, true

	case StateReview:
		if ev.Kind != EventSelect {
			return step{}, false
		}
		if text == LabelSend {
			return step{event: evSubmit}, true
		}
		return step{event: evEdit}, true

	case StateEditChoice:
		if ev.Kind != EventSelect {
			return step{}, false
		}
		event, ok := editEvents[text]
		return step{event: event}, ok
	}
	return step{}, false
}

// answer stores a field value. A field that was already present sends the
// record straight back to review.
func answer(rec *Record, f Field, linear string, set func(*Record)) step {
	event := linear
	if rec.Has(f) {
		event = evRevise
	}
	return step{event: event, apply: func(r *Record) {
		set(r)
		r.mark(f)
	}}
}

// submit persists the record and, on success, removes it from the store.
func (m *Machine) submit(ctx context.Context, rec *Record, ev Event) (*Record, error) {
	id := m.newID()
	row := NewRow(id, *rec, m.now())
	if err := m.sink.Append(ctx, row); err != nil {
		m.log(ctx, slog.LevelError, "submit",
			slog.String("status", "fail"),
			slog.String("submission_id", id),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		if m.observer != nil {
			m.observer.Submitted(err)
		}
		return rec, fmt.Errorf("signup: persist submission: %w", err)
	}
	if m.observer != nil {
		m.observer.Submitted(nil)
	}
	m.transitioned(ctx, StateReview, StateSubmitted, ev)
	m.log(ctx, slog.LevelInfo, "submit",
		slog.String("status", "ok"),
		slog.String("submission_id", id),
	)

	m.render(ctx, ev.Target,
		Prompt{Text: textThanks},
		Prompt{Text: textFollowUp, Reply: &ReplyKeyboard{Buttons: []string{EntryAgain}}},
	)
	if m.stickers.Thanks != "" {
		m.render(ctx, Target{ChatID: ev.Target.ChatID}, Prompt{Sticker: m.stickers.Thanks})
	}
	m.presenter.Notify(ctx, FormatSummary(*rec, HeadingOperator))
	return nil, nil
}

// prompts returns what the user sees on entering rec.State. to is where the
// first prompt goes.
func (m *Machine) prompts(rec *Record, handle string, to Target) []Prompt {
	switch rec.State {
	case StateName:
		ask := Prompt{Text: textAskName, Reply: &ReplyKeyboard{Remove: true}}
		if m.stickers.Greeting == "" {
			return []Prompt{ask}
		}
		return []Prompt{{Sticker: m.stickers.Greeting}, ask}
	case StateLevel:
		return []Prompt{{Text: textAskLevel, Options: Levels}}
	case StateFormat:
		return []Prompt{{Text: textAskFormat, Options: Formats}}
	case StatePurpose:
		return []Prompt{{Text: textAskPurpose, Options: Purposes}}
	case StateContactMethod:
		return []Prompt{{Text: textAskContact, Options: ContactMethods}}
	case StateUsername:
		handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
		if handle == "" {
			return []Prompt{{Text: textAskNoHandle, Options: HandleChoices}}
		}
		return []Prompt{{Text: fmt.Sprintf(textAskHandle, handle), Options: HandleChoices}}
	case StateUsernameWrite:
		return []Prompt{{Text: textWriteHandle}}
	case StatePhone:
		if rec.Has(FieldPhone) {
			return []Prompt{{Text: textAskPhone}}
		}
		return []Prompt{
			{Text: textHalfDone},
			{Text: textAskPhoneBtn, Reply: &ReplyKeyboard{RequestContact: LabelShareContact}},
		}
	case StateMeetDate:
		ask := Prompt{Text: textAskDate}
		if to.MessageID == 0 {
			// Closes the contact button left by the phone prompt.
			ask.Reply = &ReplyKeyboard{Remove: true}
		}
		return []Prompt{ask, {Text: textCalendar, Calendar: m.now()}}
	case StateReview:
		return []Prompt{{Text: FormatSummary(*rec, HeadingUser), Options: ReviewActions}}
	case StateEditChoice:
		return []Prompt{{Text: textAskEdit, Options: EditTargets}}
	}
	return nil
}

// render delivers prompts in order. Only the first may replace the target message.
func (m *Machine) render(ctx context.Context, to Target, prompts ...Prompt) {
	for i, p := range prompts {
		if i > 0 {
			to.MessageID = 0
		}
		d := m.presenter.Render(ctx, to, p)
		if d == DispositionFailed {
			m.log(ctx, slog.LevelWarn, "render", slog.String("status", "fail"), slog.String("disposition", string(d)))
		}
	}
}

func (m *Machine) transitioned(ctx context.Context, from, to State, ev Event) {
	if m.observer != nil {
		m.observer.Transition(from, to)
	}
	m.log(ctx, slog.LevelDebug, "transition",
		slog.String("status", "ok"),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("input", ev.Kind.String()),
	)
}

func (m *Machine) ignore(ctx context.Context, st State, ev Event) {
	if m.observer != nil {
		m.observer.Ignored(st, ev.Kind)
	}
	m.log(ctx, slog.LevelDebug, "input.ignored",
		slog.String("status", "ignored"),
		slog.String("state", string(st)),
		slog.String("input", ev.Kind.String()),
	)
}

func (m *Machine) log(ctx context.Context, level slog.Level, event string, attrs ...slog.Attr) {
	logger.LogEvent(ctx, logger.Signup, level, event, attrs...)
}

func (m *Machine) beforeToday(t time.Time) bool {
	return dayOf(t).Before(dayOf(m.now()))
}

// dayOf drops the clock part, keeping the calendar date.
func dayOf(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func monthEnd(t time.Time) time.Time {
	y, mo, _ := t.Date()
	return time.Date(y, mo+1, 0, 0, 0, 0, 0, time.UTC)
}
