// Package presenter renders conversation prompts as Telegram messages.
package presenter

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/consultbot/core/logger"
	"github.com/m3rciful/consultbot/core/telegram/helpers"
	"github.com/m3rciful/consultbot/core/telegram/keyboard"
	"github.com/m3rciful/consultbot/core/telegram/middleware"
	"github.com/m3rciful/consultbot/internal/datepicker"
	"github.com/m3rciful/consultbot/internal/signup"
)

// OptionUnique is the callback unique of option buttons. Their payload is
// "<set key>|<index>" so that long labels stay within Telegram's 64-byte limit.
const OptionUnique = "opt"

// Transport is the subset of *tele.Bot the presenter uses.
type Transport interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// RenderObserver is told how every prompt was delivered.
type RenderObserver interface {
	Rendered(kind string, d signup.Disposition)
}

// Options configures a Presenter.
type Options struct {
	// OperatorID receives submission notifications; zero disables them.
	OperatorID int64
	Observer   RenderObserver
	Now        func() time.Time
}

// Presenter implements signup.Presenter over a Transport bound at start-up.
type Presenter struct {
	mu sync.RWMutex
	tr Transport

	operator int64
	obs      RenderObserver
	now      func() time.Time
}

// New returns an unbound presenter; Render fails until Bind is called.
func New(opts Options) *Presenter {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Presenter{operator: opts.OperatorID, obs: opts.Observer, now: opts.Now}
}

// Bind sets the transport, normally the running bot.
func (p *Presenter) Bind(tr Transport) {
	p.mu.Lock()
	p.tr = tr
	p.mu.Unlock()
}

func (p *Presenter) transport() Transport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tr
}

// Render edits the target message when it can and sends a new one otherwise.
func (p *Presenter) Render(ctx context.Context, to signup.Target, pr signup.Prompt) signup.Disposition {
	kind := promptKind(pr)
	d := p.render(ctx, to, pr, kind)
	if p.obs != nil {
		p.obs.Rendered(kind, d)
	}
	return d
}

func (p *Presenter) render(ctx context.Context, to signup.Target, pr signup.Prompt, kind string) signup.Disposition {
	tr := p.transport()
	if tr == nil {
		logger.Warn(ctx, "tg", "render", slog.String("status", "skip"), slog.String("reason", "unbound"))
		return signup.DispositionFailed
	}

	markup := p.markup(pr)
	if editable(to, pr) {
		msg := tele.StoredMessage{MessageID: strconv.Itoa(to.MessageID), ChatID: to.ChatID}
		_, err := tr.Edit(msg, pr.Text, options(markup)...)
		if err == nil || errors.Is(err, tele.ErrSameMessageContent) {
			countMessage(ctx, markup)
			return signup.DispositionEdited
		}
		logger.Debug(ctx, "tg", "render.edit",
			slog.String("status", "fail"),
			slog.String("kind", kind),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}

	if _, err := tr.Send(tele.ChatID(to.ChatID), p.content(pr), options(markup)...); err != nil {
		logger.Warn(ctx, "tg", "render.send",
			slog.String("status", "fail"),
			slog.String("kind", kind),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return signup.DispositionFailed
	}
	countMessage(ctx, markup)
	return signup.DispositionSent
}

// countMessage feeds the handler summary counters of the update being served.
func countMessage(ctx context.Context, markup *tele.ReplyMarkup) {
	middleware.CountMessage(helpers.UpdateFrom(ctx), markup != nil)
}

// Notify sends text to the operator through the outbound dispatcher.
func (p *Presenter) Notify(ctx context.Context, text string) {
	if p.operator == 0 {
		logger.Debug(ctx, "tg", "notify", slog.String("status", "skip"), slog.String("reason", "no_operator"))
		return
	}
	tr := p.transport()
	if tr == nil {
		logger.Warn(ctx, "tg", "notify", slog.String("status", "skip"), slog.String("reason", "unbound"))
		return
	}
	err := helpers.Enqueue(ctx, "notify.operator", "sendMessage", func() error {
		_, err := tr.Send(tele.ChatID(p.operator), text)
		return err
	})
	if err != nil {
		logger.Warn(ctx, "tg", "notify",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

// editable reports whether pr may replace the target message in place.
// Reply keyboards, stickers and photos cannot be attached by an edit.
func editable(to signup.Target, pr signup.Prompt) bool {
	return to.MessageID != 0 && pr.Reply == nil && pr.Sticker == "" && pr.Photo == ""
}

func (p *Presenter) content(pr signup.Prompt) interface{} {
	switch {
	case pr.Sticker != "":
		return &tele.Sticker{File: tele.File{FileID: pr.Sticker}}
	case pr.Photo != "":
		return &tele.Photo{File: photoFile(pr.Photo), Caption: pr.Text}
	}
	return pr.Text
}

func (p *Presenter) markup(pr signup.Prompt) *tele.ReplyMarkup {
	switch {
	case !pr.Options.IsZero():
		return OptionMarkup(pr.Options)
	case !pr.Calendar.IsZero():
		return datepicker.Build(pr.Calendar, p.now())
	case pr.Reply != nil:
		return replyMarkup(pr.Reply)
	}
	return nil
}

// OptionMarkup renders one inline button per option, one per row.
func OptionMarkup(set signup.OptionSet) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, len(set.Labels))
	for i, label := range set.Labels {
		buttons[i] = keyboard.InlineBtn{Text: label, Unique: OptionUnique, Data: set.Key + "|" + strconv.Itoa(i)}
	}
	return keyboard.InlineButtonsNPerRow(buttons, 1)
}

func replyMarkup(r *signup.ReplyKeyboard) *tele.ReplyMarkup {
	switch {
	case r.Remove:
		return keyboard.RemoveKeyboard()
	case r.RequestContact != "":
		return keyboard.ContactButton(r.RequestContact)
	}
	rows := make([][]string, len(r.Buttons))
	for i, b := range r.Buttons {
		rows[i] = []string{b}
	}
	markup := keyboard.ReplyButtons(rows...)
	markup.OneTimeKeyboard = true
	return markup
}

func options(markup *tele.ReplyMarkup) []interface{} {
	if markup == nil {
		return nil
	}
	return []interface{}{markup}
}

// photoFile resolves a URL, a local path or a Telegram file id.
func photoFile(ref string) tele.File {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return tele.FromURL(ref)
	}
	if st, err := os.Stat(ref); err == nil && !st.IsDir() {
		return tele.FromDisk(ref)
	}
	return tele.File{FileID: ref}
}

func promptKind(pr signup.Prompt) string {
	switch {
	case pr.Sticker != "":
		return "sticker"
	case pr.Photo != "":
		return "photo"
	case !pr.Options.IsZero():
		return "options"
	case !pr.Calendar.IsZero():
		return "calendar"
	case pr.Reply != nil:
		return "reply"
	}
	return "text"
}
