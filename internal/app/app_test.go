package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coretelegram "github.com/m3rciful/consultbot/core/telegram"
	"github.com/m3rciful/consultbot/internal/config"
	"github.com/m3rciful/consultbot/internal/signup"
)

type sent struct {
	chat string
	what interface{}
}

type fakeTransport struct {
	mu    sync.Mutex
	sends []sent
	edits int
}

func (f *fakeTransport) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sent{chat: to.Recipient(), what: what})
	return &tele.Message{}, nil
}

func (f *fakeTransport) Edit(tele.Editable, interface{}, ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits++
	return &tele.Message{}, nil
}

func (f *fakeTransport) textsTo(chat string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sends {
		if text, ok := s.what.(string); ok && s.chat == chat {
			out = append(out, text)
		}
	}
	return out
}

type memorySink struct {
	mu   sync.Mutex
	rows []signup.Row
}

func (m *memorySink) Append(_ context.Context, row signup.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, row)
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var fixedNow = func() time.Time { return time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC) }

type fixture struct {
	app  *App
	tr   *fakeTransport
	sink *memorySink
	bot  *tele.Bot
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.Telegram.AdminID = 99
	snk := &memorySink{}
	a, err := New(cfg, Deps{Sink: snk, Metrics: prometheus.NewRegistry(), Now: fixedNow})
	require.NoError(t, err)

	tr := &fakeTransport{}
	a.presenter.Bind(tr)

	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return &fixture{app: a, tr: tr, sink: snk, bot: bot}
}

var anna = &tele.User{ID: 1, Username: "anna_tg"}

func (f *fixture) text(text string) tele.Context {
	return f.bot.NewContext(tele.Update{Message: &tele.Message{
		Sender: anna, Chat: &tele.Chat{ID: anna.ID}, Text: text,
	}})
}

func (f *fixture) callback(data string) tele.Context {
	return f.bot.NewContext(tele.Update{Callback: &tele.Callback{
		Sender:  anna,
		Data:    data,
		Message: &tele.Message{ID: 10, Chat: &tele.Chat{ID: anna.ID}},
	}})
}

func option(set signup.OptionSet, label string) string {
	for i, l := range set.Labels {
		if l == label {
			return fmt.Sprintf("\fopt|%s|%d", set.Key, i)
		}
	}
	panic("no option " + label)
}

func TestFullConversationThroughHandlers(t *testing.T) {
	f := newFixture(t)
	a := f.app
	conv := conversation{a}

	require.NoError(t, a.handleStart(f.text("/start")))
	require.NoError(t, a.handleEntry(f.text(signup.EntryStart)))
	assert.True(t, conv.InProgress(anna.ID))

	require.NoError(t, conv.HandleText(f.text("Anna")))
	steps := []string{
		option(signup.Levels, "HSK 1"),
		option(signup.Formats, "Индивидуальный"),
		option(signup.Purposes, "Сдать HSK"),
		option(signup.ContactMethods, signup.LabelMessage),
		option(signup.HandleChoices, signup.LabelUseCurrent),
	}
	for _, data := range steps {
		require.NoError(t, a.handleOption(f.callback(data)))
	}
	require.NoError(t, a.handleCalendar(f.callback("\fcal|noop")))
	require.NoError(t, a.handleCalendar(f.callback("\fcal|nav|2026-11")))
	require.NoError(t, a.handleCalendar(f.callback("\fcal|day|2026-10-20")))

	rec, ok := a.store.Get(anna.ID)
	require.True(t, ok)
	assert.Equal(t, signup.StateReview, rec.State)

	require.NoError(t, a.handleOption(f.callback(option(signup.ReviewActions, signup.LabelSend))))

	require.Len(t, f.sink.rows, 1)
	assert.Equal(t,
		[]string{"Anna", "HSK 1", "Индивидуальный", "Сдать HSK", "anna_tg", "-", "2026-10-20", "2026-10-17 10:00:00"},
		f.sink.rows[0].Values(),
	)
	assert.False(t, conv.InProgress(anna.ID))

	operator := f.tr.textsTo("99")
	require.Len(t, operator, 1)
	assert.Contains(t, operator[0], "Новая заявка:")
	assert.Positive(t, f.tr.edits)
}

func TestStaleAndForeignCallbacksAreIgnored(t *testing.T) {
	f := newFixture(t)
	a := f.app

	require.NoError(t, a.handleOption(f.callback("\fopt|lvl|99")))
	require.NoError(t, a.handleOption(f.callback("\fopt|garbage")))
	require.NoError(t, a.handleCalendar(f.callback("\fcal|day|yesterday")))
	require.NoError(t, a.handleOption(f.callback(option(signup.Levels, "HSK 2"))))
	assert.False(t, a.store.InProgress(anna.ID))
	assert.Empty(t, f.tr.sends)
}

func TestContactSharing(t *testing.T) {
	f := newFixture(t)
	a := f.app
	conv := conversation{a}

	require.NoError(t, a.handleEntry(f.text(signup.EntryStart)))
	require.NoError(t, conv.HandleText(f.text("Anna")))
	for _, data := range []string{
		option(signup.Levels, "HSK 1"),
		option(signup.Formats, "Индивидуальный"),
		option(signup.Purposes, "Сдать HSK"),
		option(signup.ContactMethods, signup.LabelCall),
	} {
		require.NoError(t, a.handleOption(f.callback(data)))
	}

	c := f.bot.NewContext(tele.Update{Message: &tele.Message{
		Sender:  anna,
		Chat:    &tele.Chat{ID: anna.ID},
		Contact: &tele.Contact{PhoneNumber: "+79991234567", UserID: anna.ID},
	}})
	require.NoError(t, conv.HandleContact(c))

	rec, ok := a.store.Get(anna.ID)
	require.True(t, ok)
	assert.Equal(t, signup.StateMeetDate, rec.State)
	assert.Equal(t, "+79991234567", rec.Phone)
}

func TestSessionsCommand(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.handleEntry(f.text(signup.EntryStart)))
	require.NoError(t, f.app.handleSessions(f.text("/sessions")))
	assert.Contains(t, f.tr.textsTo("1"), "Заявок в процессе заполнения: 1")
}

func TestTelegramRunOptions(t *testing.T) {
	f := newFixture(t)
	closed := false
	f.app.closer = closerFunc(func() error { closed = true; return nil })

	opts, err := f.app.TelegramRunOptions()
	require.NoError(t, err)
	assert.Same(t, f.app.cfg.CoreConfig(), opts.Config)
	assert.NotEmpty(t, opts.Middlewares)

	endpoints := map[interface{}]bool{}
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, want := range []interface{}{"/start", "/sessions", tele.OnText, tele.OnContact, tele.OnCallback} {
		assert.True(t, endpoints[want], "missing route %v", want)
	}

	_, ok := opts.Registry.LookupTrigger(signup.EntryAgain)
	assert.True(t, ok)
	assert.Equal(t, []string{"cal", "opt"}, opts.Registry.ListCallbacks())

	require.NoError(t, opts.OnStart(context.Background(), coretelegram.Runtime{}))
	require.NoError(t, opts.OnStop(context.Background(), coretelegram.Runtime{}))
	assert.True(t, closed)
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Deps{Sink: &memorySink{}})
	assert.Error(t, err)
	_, err = New(&config.Config{}, Deps{})
	assert.Error(t, err)
}
