// Package datepicker renders a month grid as an inline keyboard and parses
// the callbacks it produces.
package datepicker

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/consultbot/core/telegram/callbacks"
	"github.com/m3rciful/consultbot/core/telegram/keyboard"
)

// Unique is the callback unique of every picker button.
const Unique = "cal"

const (
	verbNav  = "nav"
	verbDay  = "day"
	verbNoop = "noop"

	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
	blank       = " "
)

var monthNames = [...]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

var weekdays = []string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}

// Kind is what a picker button does.
type Kind int

const (
	KindNoop Kind = iota
	KindNavigate
	KindPick
)

// Action is a parsed picker callback. Date is the first of the month for
// KindNavigate and the chosen day for KindPick, both in UTC.
type Action struct {
	Kind Kind
	Date time.Time
}

// ErrPayload reports callback data the picker did not produce.
var ErrPayload = errors.New("datepicker: malformed payload")

// Build renders the month containing month. Days before today are blank and
// navigation never leads to a month that lies wholly in the past.
func Build(month, today time.Time) *tele.ReplyMarkup {
	first := monthStart(month)
	today = day(today)
	if first.Before(monthStart(today)) {
		first = monthStart(today)
	}

	rows := [][]keyboard.InlineBtn{
		{noop(MonthTitle(first))},
		make([]keyboard.InlineBtn, 0, len(weekdays)),
	}
	for _, wd := range weekdays {
		rows[1] = append(rows[1], noop(wd))
	}

	// Monday-first offset of the 1st.
	offset := (int(first.Weekday()) + 6) % 7
	week := make([]keyboard.InlineBtn, 0, 7)
	for i := 0; i < offset; i++ {
		week = append(week, noop(blank))
	}
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		if d.Before(today) {
			week = append(week, noop(blank))
		} else {
			week = append(week, keyboard.InlineBtn{
				Text:   strconv.Itoa(d.Day()),
				Unique: Unique,
				Data:   verbDay + "|" + d.Format(dayLayout),
			})
		}
		if len(week) == 7 {
			rows = append(rows, week)
			week = make([]keyboard.InlineBtn, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, noop(blank))
		}
		rows = append(rows, week)
	}

	prev := noop(blank)
	if first.After(monthStart(today)) {
		prev = nav("«", first.AddDate(0, -1, 0))
	}
	rows = append(rows, []keyboard.InlineBtn{prev, noop(blank), nav("»", first.AddDate(0, 1, 0))})

	return keyboard.InlineButtonsRows(rows...)
}

// MonthTitle renders "Октябрь 2026".
func MonthTitle(t time.Time) string {
	return fmt.Sprintf("%s %d", monthNames[t.Month()-1], t.Year())
}

// Parse decodes the payload of a picker callback.
func Parse(c tele.Context) (Action, error) {
	if callbacks.CallbackKey(c) != Unique {
		return Action{}, ErrPayload
	}
	verb, arg, err := callbacks.PayloadVerb(c, "|")
	if err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrPayload, err)
	}
	return decode(verb, arg)
}

// decode interprets "nav|2026-11", "day|2026-11-03" or "noop".
func decode(verb, arg string) (Action, error) {
	payload := verb + "|" + arg
	switch verb {
	case verbNoop:
		return Action{Kind: KindNoop}, nil
	case verbNav:
		t, err := time.Parse(monthLayout, arg)
		if err != nil {
			return Action{}, fmt.Errorf("%w: %q", ErrPayload, payload)
		}
		return Action{Kind: KindNavigate, Date: t}, nil
	case verbDay:
		t, err := time.Parse(dayLayout, arg)
		if err != nil {
			return Action{}, fmt.Errorf("%w: %q", ErrPayload, payload)
		}
		return Action{Kind: KindPick, Date: t}, nil
	}
	return Action{}, fmt.Errorf("%w: %q", ErrPayload, payload)
}

func noop(text string) keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: text, Unique: Unique, Data: verbNoop}
}

func nav(text string, month time.Time) keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: text, Unique: Unique, Data: verbNav + "|" + month.Format(monthLayout)}
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
