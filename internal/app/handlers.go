package app

import (
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/consultbot/core/logger"
	coretelegram "github.com/m3rciful/consultbot/core/telegram"
	"github.com/m3rciful/consultbot/core/telegram/callbacks"
	"github.com/m3rciful/consultbot/core/telegram/commands"
	"github.com/m3rciful/consultbot/core/telegram/helpers"
	"github.com/m3rciful/consultbot/internal/datepicker"
	"github.com/m3rciful/consultbot/internal/presenter"
	"github.com/m3rciful/consultbot/internal/signup"
)

const payloadSep = "|"

func (a *App) register(reg *coretelegram.Registry) error {
	if err := reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Записаться на бесплатную консультацию",
	}); err != nil {
		return err
	}
	if err := reg.RegisterCommand("/sessions", commands.Command{
		Handler:     a.handleSessions,
		Description: "Заявки в процессе заполнения",
		AdminOnly:   true,
	}); err != nil {
		return err
	}
	for _, phrase := range []string{signup.EntryStart, signup.EntryAgain} {
		if err := reg.RegisterTrigger(phrase, a.handleEntry); err != nil {
			return err
		}
	}
	if err := reg.RegisterCallback(presenter.OptionUnique, a.handleOption); err != nil {
		return err
	}
	return reg.RegisterCallback(datepicker.Unique, a.handleCalendar)
}

// handleStart shows the welcome; the conversation begins with an entry phrase.
func (a *App) handleStart(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	to := signup.Target{ChatID: chatID(c)}
	for _, p := range signup.Welcome(a.cfg.Signup.WelcomePhoto) {
		a.presenter.Render(ctx, to, p)
	}
	return nil
}

func (a *App) handleSessions(c tele.Context) error {
	text := fmt.Sprintf("Заявок в процессе заполнения: %d", a.store.Len())
	a.presenter.Render(helpers.BuildContext(c), signup.Target{ChatID: chatID(c)}, signup.Prompt{Text: text})
	return nil
}

func (a *App) handleEntry(c tele.Context) error {
	return a.dispatch(c, signup.Event{Kind: signup.EventEntry, Text: c.Text()})
}

func (a *App) handleOption(c tele.Context) error {
	key, idx, err := callbacks.PayloadKeyIndex(c, payloadSep)
	if err != nil {
		return a.stale(c, "bad_payload")
	}
	label, ok := signup.LookupOption(key, idx)
	if !ok {
		return a.stale(c, "unknown_option")
	}
	return a.dispatch(c, signup.Event{Kind: signup.EventSelect, Text: label})
}

func (a *App) handleCalendar(c tele.Context) error {
	act, err := datepicker.Parse(c)
	if err != nil {
		return a.stale(c, "bad_payload")
	}
	switch act.Kind {
	case datepicker.KindNavigate:
		return a.dispatch(c, signup.Event{Kind: signup.EventNavigate, Date: act.Date})
	case datepicker.KindPick:
		return a.dispatch(c, signup.Event{Kind: signup.EventPickDate, Date: act.Date})
	}
	return nil
}

// dispatch fills identity and target from c and hands ev to the machine.
func (a *App) dispatch(c tele.Context, ev signup.Event) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ev.UserID = user.ID
	ev.Handle = user.Username
	ev.Target = signup.Target{ChatID: chatID(c)}
	if cb := c.Callback(); cb != nil && cb.Message != nil {
		ev.Target.MessageID = cb.Message.ID
	}
	return a.machine.Handle(helpers.BuildContext(c), ev)
}

func (a *App) stale(c tele.Context, reason string) error {
	logger.Debug(helpers.BuildContext(c), "app", "callback.stale",
		slog.String("status", "ignored"),
		slog.String("reason", reason),
		slog.String("payload", logger.SanitizeLimit(callbacks.CallbackPayload(c), 64)),
	)
	return nil
}

func chatID(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	if user := c.Sender(); user != nil {
		return user.ID
	}
	return 0
}

// conversation routes free text and contacts of users with a record to the machine.
type conversation struct{ a *App }

func (cv conversation) InProgress(userID int64) bool {
	return cv.a.store.InProgress(userID)
}

func (cv conversation) HandleText(c tele.Context) error {
	return cv.a.dispatch(c, signup.Event{Kind: signup.EventText, Text: c.Text()})
}

func (cv conversation) HandleContact(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Contact == nil {
		return nil
	}
	return cv.a.dispatch(c, signup.Event{Kind: signup.EventContact, Text: msg.Contact.PhoneNumber})
}
