package router

import (
	"errors"
	"fmt"
	"testing"

	tg "github.com/m3rciful/consultbot/core/telegram"
	"github.com/m3rciful/consultbot/core/telegram/commands"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type fakeConversation struct {
	active   map[int64]bool
	texts    []string
	contacts int
}

func (f *fakeConversation) InProgress(userID int64) bool { return f.active[userID] }

func (f *fakeConversation) HandleText(c tele.Context) error {
	f.texts = append(f.texts, c.Text())
	return nil
}

func (f *fakeConversation) HandleContact(tele.Context) error {
	f.contacts++
	return nil
}

func newContext(t *testing.T, upd tele.Update) tele.Context {
	t.Helper()
	// Unroutable API URL so answerCallbackQuery fails fast instead of reaching Telegram.
	b, err := tele.NewBot(tele.Settings{Offline: true, URL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	return b.NewContext(upd)
}

func textContext(t *testing.T, userID int64, text string) tele.Context {
	user := &tele.User{ID: userID}
	return newContext(t, tele.Update{ID: 1, Message: &tele.Message{Sender: user, Chat: &tele.Chat{ID: userID}, Text: text}})
}

func routeFor(routes []tg.Route, endpoint any) tele.HandlerFunc {
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	return nil
}

func TestTextRoutesPriority(t *testing.T) {
	conv := &fakeConversation{active: map[int64]bool{1: true}}
	reg := tg.NewRegistry()

	var triggered, fallback int
	require.NoError(t, reg.RegisterTrigger("Поехали!", func(tele.Context) error { triggered++; return nil }))
	reg.SetTextFallback(func(tele.Context) error { fallback++; return nil })

	routes := TextRoutes(conv, reg, TextOptions{})
	h := routeFor(routes, tele.OnText)
	require.NotNil(t, h)

	require.NoError(t, h(textContext(t, 1, "Поехали!")))
	assert.Equal(t, 1, triggered)
	assert.Empty(t, conv.texts)

	require.NoError(t, h(textContext(t, 1, "Anna")))
	assert.Equal(t, []string{"Anna"}, conv.texts)

	require.NoError(t, h(textContext(t, 2, "hello")))
	assert.Equal(t, 1, fallback)
}

func TestTextRoutesAdminCommandsNeedSlash(t *testing.T) {
	reg := tg.NewRegistry()
	ran := 0
	require.NoError(t, reg.RegisterCommand("/sessions", commands.Command{
		Handler: func(tele.Context) error { ran++; return nil }, Description: "x", AdminOnly: true,
	}))
	h := routeFor(TextRoutes(nil, reg, TextOptions{}), tele.OnText)
	require.NoError(t, h(textContext(t, 5, "sessions")))
	assert.Equal(t, 0, ran)
}

func TestContactRoute(t *testing.T) {
	conv := &fakeConversation{active: map[int64]bool{1: true}}
	h := routeFor(TextRoutes(conv, tg.NewRegistry(), TextOptions{}), tele.OnContact)
	require.NotNil(t, h)

	user := &tele.User{ID: 1}
	upd := tele.Update{ID: 2, Message: &tele.Message{Sender: user, Chat: &tele.Chat{ID: 1}, Contact: &tele.Contact{PhoneNumber: "+79991234567"}}}
	require.NoError(t, h(newContext(t, upd)))
	assert.Equal(t, 1, conv.contacts)

	other := tele.Update{ID: 3, Message: &tele.Message{Sender: &tele.User{ID: 9}, Chat: &tele.Chat{ID: 9}, Contact: &tele.Contact{}}}
	require.NoError(t, h(newContext(t, other)))
	assert.Equal(t, 1, conv.contacts)
}

func TestCallbackRouteDispatchesByUnique(t *testing.T) {
	reg := tg.NewRegistry()
	var got string
	require.NoError(t, reg.RegisterCallback("opt", func(c tele.Context) error {
		got = c.Callback().Data
		return nil
	}))
	route := CallbackRoute(reg, CallbackOptions{})

	upd := tele.Update{ID: 3, Callback: &tele.Callback{ID: "1", Sender: &tele.User{ID: 1}, Data: "\fopt|lvl|2"}}
	require.NoError(t, route.Handler(newContext(t, upd)))
	assert.Equal(t, "\fopt|lvl|2", got)
}

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string  { return "sink append" }

type plainErr struct{}

func (*plainErr) Error() string { return "plain" }

func TestDeriveErrorCode(t *testing.T) {
	assert.Equal(t, "", deriveErrorCode(nil))
	assert.Equal(t, "SINK_APPEND", deriveErrorCode(fmt.Errorf("wrap: %w", codedErr{})))
	assert.Equal(t, "PLAINERR", deriveErrorCode(fmt.Errorf("wrap: %w", &plainErr{})))
	assert.Equal(t, "ERRORSTRING", deriveErrorCode(errors.New("x")))
}
