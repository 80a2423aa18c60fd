package signup

import (
	"context"
	"time"
)

// Target is where a prompt goes. A non-zero MessageID names the bot message
// that may be edited in place.
type Target struct {
	ChatID    int64
	MessageID int
}

// ReplyKeyboard describes a reply (non-inline) keyboard.
type ReplyKeyboard struct {
	Buttons []string
	// RequestContact, when set, is the label of a single contact-sharing button.
	RequestContact string
	// Remove hides any reply keyboard the user has open.
	Remove bool
}

// Prompt is one outbound message. At most one of Options, Calendar and Reply is set.
type Prompt struct {
	Text    string
	Options OptionSet
	// Calendar is any day of the month the date picker should show.
	Calendar time.Time
	Reply    *ReplyKeyboard
	// Sticker, when set, sends that sticker file id instead of text.
	Sticker string
	// Photo, when set, sends a photo with Text as its caption.
	Photo string
}

// Disposition reports how a prompt reached the user.
type Disposition string

const (
	DispositionEdited Disposition = "edited"
	DispositionSent   Disposition = "sent"
	DispositionFailed Disposition = "failed"
)

// Presenter delivers prompts. Delivery problems are reported, never returned.
type Presenter interface {
	Render(ctx context.Context, to Target, p Prompt) Disposition
	// Notify sends text to the operator.
	Notify(ctx context.Context, text string)
}

// Sink persists completed submissions.
type Sink interface {
	Append(ctx context.Context, row Row) error
}

// Observer is told about machine activity, typically for metrics.
type Observer interface {
	Transition(from, to State)
	Ignored(state State, kind EventKind)
	Submitted(err error)
}
