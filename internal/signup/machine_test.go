package signup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/consultbot/core/telegram/state"
)

var testNow = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

type rendered struct {
	To     Target
	Prompt Prompt
}

type fakePresenter struct {
	mu       sync.Mutex
	renders  []rendered
	notified []string
	result   Disposition
}

func (p *fakePresenter) Render(_ context.Context, to Target, pr Prompt) Disposition {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renders = append(p.renders, rendered{To: to, Prompt: pr})
	if p.result != "" {
		return p.result
	}
	if to.MessageID != 0 && pr.Reply == nil {
		return DispositionEdited
	}
	return DispositionSent
}

func (p *fakePresenter) Notify(_ context.Context, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notified = append(p.notified, text)
}

func (p *fakePresenter) last() Prompt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renders[len(p.renders)-1].Prompt
}

type fakeSink struct {
	mu   sync.Mutex
	rows []Row
	err  error
}

func (s *fakeSink) Append(_ context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, row)
	return nil
}

type countingObserver struct {
	mu          sync.Mutex
	transitions []string
	ignored     int
	submitted   int
	failed      int
}

func (o *countingObserver) Transition(from, to State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, string(from)+">"+string(to))
}

func (o *countingObserver) Ignored(State, EventKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ignored++
}

func (o *countingObserver) Submitted(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failed++
		return
	}
	o.submitted++
}

type harness struct {
	t         *testing.T
	store     *state.Manager[Record]
	presenter *fakePresenter
	sink      *fakeSink
	observer  *countingObserver
	machine   *Machine
}

func newHarness(t *testing.T, opts ...Option) *harness {
	h := &harness{
		t:         t,
		store:     state.NewManager[Record](),
		presenter: &fakePresenter{},
		sink:      &fakeSink{},
		observer:  &countingObserver{},
	}
	opts = append([]Option{WithClock(func() time.Time { return testNow }), WithObserver(h.observer)}, opts...)
	h.machine = NewMachine(h.store, h.presenter, h.sink, opts...)
	h.machine.newID = func() string { return "sub-1" }
	return h
}

func (h *harness) send(userID int64, ev Event) {
	h.t.Helper()
	ev.UserID = userID
	if ev.Target.ChatID == 0 {
		ev.Target.ChatID = userID
	}
	require.NoError(h.t, h.machine.Handle(context.Background(), ev))
}

func (h *harness) record(userID int64) Record {
	h.t.Helper()
	rec, ok := h.store.Get(userID)
	require.True(h.t, ok, "no record for %d", userID)
	return rec
}

func entry() Event { return Event{Kind: EventEntry, Text: EntryStart} }
func text(s string) Event { return Event{Kind: EventText, Text: s} }
func pick(label string) Event { return Event{Kind: EventSelect, Text: label, Target: Target{MessageID: 100}} }
func date(d time.Time) Event { return Event{Kind: EventPickDate, Date: d, Target: Target{MessageID: 101}} }
func contact(phone string) Event { return Event{Kind: EventContact, Text: phone} }

// fillToReview walks the "message me, use current handle" path up to review.
func (h *harness) fillToReview(userID int64, name, handle string) {
	h.t.Helper()
	h.send(userID, entry())
	h.send(userID, text(name))
	h.send(userID, pick("HSK 1"))
	h.send(userID, pick("Индивидуальный"))
	h.send(userID, pick("Сдать HSK"))
	h.send(userID, pick(LabelMessage))
	ev := pick(LabelUseCurrent)
	ev.Handle = handle
	h.send(userID, ev)
	h.send(userID, date(time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)))
}

func TestScenarioAnna(t *testing.T) {
	h := newHarness(t)
	h.fillToReview(1, "Anna", "anna_tg")

	rec := h.record(1)
	assert.Equal(t, StateReview, rec.State)
	assert.Equal(t, FormatSummary(rec, HeadingUser), h.presenter.last().Text)
	assert.Equal(t, ReviewActions.Key, h.presenter.last().Options.Key)

	h.send(1, pick(LabelSend))

	require.Len(t, h.sink.rows, 1)
	assert.Equal(t,
		[]string{"Anna", "HSK 1", "Индивидуальный", "Сдать HSK", "anna_tg", "-", "2026-10-20", "2026-10-17 10:00:00"},
		h.sink.rows[0].Values(),
	)
	assert.Equal(t, "sub-1", h.sink.rows[0].ID)
	assert.False(t, h.store.InProgress(1))
	assert.Equal(t, 0, h.store.Len())

	require.Len(t, h.presenter.notified, 1)
	assert.Contains(t, h.presenter.notified[0], HeadingOperator+":")
	assert.Contains(t, h.presenter.notified[0], "Ник в тг: anna_tg")
	assert.Equal(t, 1, h.observer.submitted)
	assert.Contains(t, h.observer.transitions, "review>submitted")

	follow := h.presenter.last()
	require.NotNil(t, follow.Reply)
	assert.Equal(t, []string{EntryAgain}, follow.Reply.Buttons)
}

func TestLinearPathsProduceOneRow(t *testing.T) {
	paths := map[string][]Event{
		"call with contact": {
			pick(LabelCall), contact("+79991234567"),
		},
		"call with typed phone": {
			pick(LabelCall), text("8 999 123 45 67"),
		},
		"message with typed handle": {
			pick(LabelMessage), pick(LabelSpecifyMine), text("@anna_other"),
		},
	}
	for name, tail := range paths {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.send(7, entry())
			h.send(7, text("Boris"))
			h.send(7, pick("HSK 2"))
			h.send(7, pick("Групповой (со знакомыми)"))
			h.send(7, pick("Хочу учиться в Китае"))
			for _, ev := range tail {
				h.send(7, ev)
			}
			assert.Equal(t, StateMeetDate, h.record(7).State)
			h.send(7, date(testNow.AddDate(0, 0, 3)))
			h.send(7, pick(LabelSend))

			require.Len(t, h.sink.rows, 1)
			assert.False(t, h.store.InProgress(7))
			row := h.sink.rows[0]
			assert.NotEmpty(t, row.Username)
			assert.NotEmpty(t, row.Phone)
		})
	}
}

func TestEditSingleFieldReturnsToReview(t *testing.T) {
	edits := []struct {
		target string
		events []Event
		check  func(t *testing.T, before, after Record)
	}{
		{"Уровень", []Event{pick("HSK 3+")}, func(t *testing.T, b, a Record) {
			assert.Equal(t, "HSK 3+", a.Level)
			b.Level = a.Level
			assert.Equal(t, b, a)
		}},
		{"Формат", []Event{pick("Групповой (с другими учениками)")}, func(t *testing.T, b, a Record) {
			assert.Equal(t, "Групповой (с другими учениками)", a.Format)
			b.Format = a.Format
			assert.Equal(t, b, a)
		}},
		{"Телефон", []Event{text("+7 999 765 43 21")}, func(t *testing.T, b, a Record) {
			assert.Equal(t, "+7 999 765 43 21", a.Phone)
			b.Phone = a.Phone
			assert.Equal(t, b, a)
		}},
		{"Никнейм", []Event{pick(LabelSpecifyMine), text("new_nick")}, func(t *testing.T, b, a Record) {
			assert.Equal(t, "new_nick", a.Username)
			b.Username = a.Username
			assert.Equal(t, b, a)
		}},
		{"Никнейм", []Event{{Kind: EventSelect, Text: LabelUseCurrent, Handle: "anna_renamed", Target: Target{MessageID: 100}}}, func(t *testing.T, b, a Record) {
			assert.Equal(t, "anna_renamed", a.Username)
			b.Username = a.Username
			assert.Equal(t, b, a)
		}},
	}
	for _, tc := range edits {
		t.Run(tc.target, func(t *testing.T) {
			h := newHarness(t)
			h.fillToReview(3, "Anna", "anna_tg")
			before := h.record(3)

			h.send(3, pick(LabelEdit))
			assert.Equal(t, StateEditChoice, h.record(3).State)
			h.send(3, pick(tc.target))
			for _, ev := range tc.events {
				h.send(3, ev)
			}

			after := h.record(3)
			assert.Equal(t, StateReview, after.State)
			tc.check(t, before, after)
		})
	}
}

func TestEditPhonePromptHasNoContactButton(t *testing.T) {
	h := newHarness(t)
	h.fillToReview(3, "Anna", "anna_tg")
	h.send(3, pick(LabelEdit))
	h.send(3, pick("Телефон"))

	p := h.presenter.last()
	assert.Equal(t, textAskPhone, p.Text)
	assert.Nil(t, p.Reply)
}

func TestFirstPhonePromptOffersContactButton(t *testing.T) {
	h := newHarness(t)
	h.send(1, entry())
	h.send(1, text("Anna"))
	h.send(1, pick("HSK 1"))
	h.send(1, pick("Индивидуальный"))
	h.send(1, pick("Сдать HSK"))
	h.send(1, pick(LabelCall))

	h.presenter.mu.Lock()
	n := len(h.presenter.renders)
	half, ask := h.presenter.renders[n-2], h.presenter.renders[n-1]
	h.presenter.mu.Unlock()

	assert.Equal(t, textHalfDone, half.Prompt.Text)
	assert.Equal(t, 100, half.To.MessageID)
	require.NotNil(t, ask.Prompt.Reply)
	assert.Equal(t, LabelShareContact, ask.Prompt.Reply.RequestContact)
	assert.Zero(t, ask.To.MessageID)
}

func TestDatePromptClosesContactKeyboard(t *testing.T) {
	h := newHarness(t)
	h.send(1, entry())
	h.send(1, text("Anna"))
	h.send(1, pick("HSK 1"))
	h.send(1, pick("Индивидуальный"))
	h.send(1, pick("Сдать HSK"))
	h.send(1, pick(LabelCall))
	h.send(1, contact("+79991234567"))

	h.presenter.mu.Lock()
	n := len(h.presenter.renders)
	ask, cal := h.presenter.renders[n-2], h.presenter.renders[n-1]
	h.presenter.mu.Unlock()

	assert.Equal(t, textAskDate, ask.Prompt.Text)
	require.NotNil(t, ask.Prompt.Reply)
	assert.True(t, ask.Prompt.Reply.Remove)
	assert.False(t, cal.Prompt.Calendar.IsZero())
}

func TestDatePromptAfterCallbackEditsInPlace(t *testing.T) {
	h := newHarness(t)
	h.send(1, entry())
	h.send(1, text("Anna"))
	h.send(1, pick("HSK 1"))
	h.send(1, pick("Индивидуальный"))
	h.send(1, pick("Сдать HSK"))
	h.send(1, pick(LabelMessage))
	h.send(1, pick(LabelUseCurrent))

	h.presenter.mu.Lock()
	n := len(h.presenter.renders)
	ask := h.presenter.renders[n-2]
	h.presenter.mu.Unlock()

	assert.Equal(t, textAskDate, ask.Prompt.Text)
	assert.Nil(t, ask.Prompt.Reply)
	assert.Equal(t, 100, ask.To.MessageID)
}

func TestIgnoredInput(t *testing.T) {
	h := newHarness(t)

	// No record yet: only entry creates one.
	h.send(1, text("hello"))
	assert.False(t, h.store.InProgress(1))

	h.send(1, entry())
	h.send(1, pick("HSK 1"))
	assert.Equal(t, StateName, h.record(1).State)

	h.send(1, text("Anna"))
	h.send(1, text("free text in level"))
	h.send(1, pick("Индивидуальный"))
	h.send(1, date(testNow))
	rec := h.record(1)
	assert.Equal(t, StateLevel, rec.State)
	assert.Empty(t, rec.Format)

	h.send(1, pick("HSK 1"))
	h.send(1, pick("Индивидуальный"))
	h.send(1, pick("Сдать HSK"))
	h.send(1, pick(LabelCall))
	h.send(1, text("12345"))
	assert.Equal(t, StatePhone, h.record(1).State)

	h.send(1, text("+79991234567"))
	assert.Equal(t, StateMeetDate, h.record(1).State)
	h.send(1, date(testNow.AddDate(0, 0, -1)))
	assert.Equal(t, StateMeetDate, h.record(1).State)

	assert.GreaterOrEqual(t, h.observer.ignored, 6)
}

func TestOpportunisticPhone(t *testing.T) {
	h := newHarness(t)
	h.send(1, entry())
	h.send(1, text("Anna"))
	h.send(1, pick("HSK 1"))
	h.send(1, pick("Индивидуальный"))
	h.send(1, pick("Сдать HSK"))
	h.send(1, contact("+79991234567"))

	rec := h.record(1)
	assert.Equal(t, StateMeetDate, rec.State)
	assert.Equal(t, "+79991234567", rec.Phone)
	assert.True(t, rec.Has(FieldPhone))
}

func TestEntryRerendersCurrentPrompt(t *testing.T) {
	h := newHarness(t)
	h.send(1, entry())
	h.send(1, text("Anna"))
	h.send(1, entry())

	rec := h.record(1)
	assert.Equal(t, StateLevel, rec.State)
	assert.Equal(t, "Anna", rec.Name)
	assert.Equal(t, textAskLevel, h.presenter.last().Text)
}

func TestNavigateCalendar(t *testing.T) {
	h := newHarness(t)
	h.fillToReview(1, "Anna", "")
	assert.Equal(t, Absent, h.record(1).Username)

	h.send(1, pick(LabelEdit))
	before := len(h.presenter.renders)
	h.send(1, Event{Kind: EventNavigate, Date: testNow.AddDate(0, 1, 0)})
	assert.Equal(t, before, len(h.presenter.renders), "navigation outside meet_date is ignored")

	h2 := newHarness(t)
	h2.send(2, entry())
	h2.send(2, text("Anna"))
	h2.send(2, pick("HSK 1"))
	h2.send(2, pick("Индивидуальный"))
	h2.send(2, pick("Сдать HSK"))
	h2.send(2, pick(LabelCall))
	h2.send(2, text("89991234567"))

	next := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	h2.send(2, Event{Kind: EventNavigate, Date: next, Target: Target{MessageID: 9}})
	p := h2.presenter.last()
	assert.Equal(t, textCalendar, p.Text)
	assert.Equal(t, next, p.Calendar)

	past := len(h2.presenter.renders)
	h2.send(2, Event{Kind: EventNavigate, Date: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)})
	assert.Equal(t, past, len(h2.presenter.renders))
}

func TestPersistFailureKeepsRecord(t *testing.T) {
	h := newHarness(t)
	h.fillToReview(1, "Anna", "anna_tg")
	h.sink.err = errors.New("quota exceeded")

	err := h.machine.Handle(context.Background(), Event{UserID: 1, Kind: EventSelect, Text: LabelSend, Target: Target{ChatID: 1, MessageID: 5}})
	require.Error(t, err)
	assert.ErrorIs(t, err, h.sink.err)

	rec := h.record(1)
	assert.Equal(t, StateReview, rec.State)
	assert.Empty(t, h.presenter.notified)
	assert.Equal(t, 1, h.observer.failed)

	h.sink.err = nil
	h.send(1, pick(LabelSend))
	assert.Len(t, h.sink.rows, 1)
	assert.False(t, h.store.InProgress(1))
}

func TestStickers(t *testing.T) {
	h := newHarness(t, WithStickers(Stickers{Greeting: "hello-sticker", Thanks: "thanks-sticker"}))
	h.send(1, entry())
	h.presenter.mu.Lock()
	first := h.presenter.renders[0].Prompt
	h.presenter.mu.Unlock()
	assert.Equal(t, "hello-sticker", first.Sticker)

	h2 := newHarness(t, WithStickers(Stickers{Thanks: "thanks-sticker"}))
	h2.fillToReview(1, "Anna", "anna_tg")
	h2.send(1, pick(LabelSend))
	h2.presenter.mu.Lock()
	defer h2.presenter.mu.Unlock()
	var stickers []string
	for _, r := range h2.presenter.renders {
		if r.Prompt.Sticker != "" {
			stickers = append(stickers, r.Prompt.Sticker)
		}
	}
	assert.Equal(t, []string{"thanks-sticker"}, stickers)
}

func TestConcurrentUsersAreIsolated(t *testing.T) {
	h := newHarness(t)
	h.machine.newID = func() string { return "id" }

	const users = 16
	var wg sync.WaitGroup
	for u := int64(1); u <= users; u++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			name := fmt.Sprintf("user-%d", id)
			steps := []Event{
				entry(), text(name), pick("HSK 1"), pick("Индивидуальный"), pick("Сдать HSK"),
				pick(LabelMessage), {Kind: EventSelect, Text: LabelUseCurrent, Handle: name},
				date(time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)),
			}
			for _, ev := range steps {
				ev.UserID = id
				ev.Target.ChatID = id
				if err := h.machine.Handle(context.Background(), ev); err != nil {
					t.Error(err)
				}
			}
		}(u)
	}
	wg.Wait()

	require.Equal(t, users, h.store.Len())
	for u := int64(1); u <= users; u++ {
		rec := h.record(u)
		want := fmt.Sprintf("user-%d", u)
		assert.Equal(t, want, rec.Name)
		assert.Equal(t, want, rec.Username)
		assert.Equal(t, StateReview, rec.State)
	}
}
