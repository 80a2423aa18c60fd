package signup

import (
	"fmt"
	"slices"
)

// OptionSet is a list of mutually exclusive choices rendered as buttons.
// Key identifies the set in compact callback payloads.
type OptionSet struct {
	Key    string
	Labels []string
}

// IsZero reports whether the set is empty.
func (s OptionSet) IsZero() bool { return len(s.Labels) == 0 }

// Contains reports whether label belongs to the set.
func (s OptionSet) Contains(label string) bool {
	return slices.Contains(s.Labels, label)
}

// Label returns the label at index i.
func (s OptionSet) Label(i int) (string, bool) {
	if i < 0 || i >= len(s.Labels) {
		return "", false
	}
	return s.Labels[i], true
}

// Entry phrases start (or resume) the conversation.
const (
	EntryStart = "Поехали!"
	EntryAgain = "Записаться на консультацию"
)

// Labels the machine branches on.
const (
	LabelMessage      = "Написать в телеграм"
	LabelCall         = "Позвонить"
	LabelUseCurrent   = "Использовать текущий"
	LabelSpecifyMine  = "Указать другой"
	LabelSend         = "Отправить!"
	LabelEdit         = "Изменить данные"
	LabelShareContact = "Отправить мой контакт"
)

var (
	Levels = OptionSet{Key: "lvl", Labels: []string{
		"Нулевой, не учил(а) китайский",
		"Знаю базу фонетики и иероглифики",
		"HSK 1",
		"HSK 2",
		"HSK 3+",
	}}
	Formats = OptionSet{Key: "fmt", Labels: []string{
		"Индивидуальный",
		"Групповой (со знакомыми)",
		"Групповой (с другими учениками)",
	}}
	Purposes = OptionSet{Key: "pur", Labels: []string{
		"Для работы/ бизнеса",
		"Хочу учиться в Китае",
		"Для поездки в Китай",
		"Для жизни в Китае",
		"Сдать HSK",
		"Учу для себя (хобби)",
	}}
	ContactMethods = OptionSet{Key: "con", Labels: []string{LabelMessage, LabelCall}}
	HandleChoices  = OptionSet{Key: "usr", Labels: []string{LabelUseCurrent, LabelSpecifyMine}}
	ReviewActions  = OptionSet{Key: "chk", Labels: []string{LabelSend, LabelEdit}}
	EditTargets    = OptionSet{Key: "edt", Labels: []string{"Никнейм", "Телефон", "Уровень", "Формат"}}
)

// editEvents maps an edit target label to the transition that re-enters its state.
var editEvents = map[string]string{
	"Никнейм": evEditUsername,
	"Телефон": evEditPhone,
	"Уровень": evEditLevel,
	"Формат":  evEditFormat,
}

var optionSets = map[string]OptionSet{}

func init() {
	for _, s := range []OptionSet{Levels, Formats, Purposes, ContactMethods, HandleChoices, ReviewActions, EditTargets} {
		if _, dup := optionSets[s.Key]; dup {
			panic(fmt.Sprintf("signup: duplicate option set key %q", s.Key))
		}
		optionSets[s.Key] = s
	}
}

// LookupOption resolves a compact (set key, index) pair back to its label.
func LookupOption(key string, index int) (string, bool) {
	s, ok := optionSets[key]
	if !ok {
		return "", false
	}
	return s.Label(index)
}

// stateOptions is the option set each state accepts selections from.
var stateOptions = map[State]OptionSet{
	StateLevel:         Levels,
	StateFormat:        Formats,
	StatePurpose:       Purposes,
	StateContactMethod: ContactMethods,
	StateUsername:      HandleChoices,
	StateReview:        ReviewActions,
	StateEditChoice:    EditTargets,
}

// Prompt texts.
const (
	textAskName     = "Как тебя зовут?"
	textAskLevel    = "Какой у тебя уровень языка?"
	textAskFormat   = "Какой формат занятий тебя интересует?"
	textAskPurpose  = "Для чего ты хочешь учить китайский? 🧐"
	textAskContact  = "Мы свяжемся с тобой, чтобы обсудить удобное время для консультации.\nКак тебе будет удобнее?"
	textAskHandle   = "Теперь укажи, пожалуйста, контакт, по которому с тобой можно связаться.\nМы можем написать тебе в Telegram по нику @%s или напиши свой никнейм"
	textAskNoHandle = "Теперь укажи, пожалуйста, контакт, по которому с тобой можно связаться.\nУ тебя не указан никнейм в Telegram, напиши свой никнейм"
	textWriteHandle = "Укажи свой никнейм в телеграм"
	textHalfDone    = "Отлично, полдела сделано!"
	textAskPhone    = "Укажи телефонный номер для связи (в формате +7ххххххх)"
	textAskPhoneBtn = textAskPhone + " или воспользуйся кнопкой ниже 👇"
	textAskDate     = "Выбери удобный день для консультации 🗓"
	textCalendar    = "Воспользуйся календарем"
	textAskEdit     = "Какую информацию Вы бы хотели изменить?"
	textThanks      = "Спасибо за уделенное время!"
	textFollowUp    = "Наш менеджер скоро с тобой свяжется для подтверждения заявки 🔆"

	// HeadingUser titles the summary shown to the user.
	HeadingUser = "Твоя заявка"
	// HeadingOperator titles the summary sent to the operator.
	HeadingOperator = "Новая заявка"
)

// Welcome texts for /start.
const (
	WelcomeCaption = "你好!\n\n" +
		"Это бот Сиропа — онлайн-школы китайского, " +
		"где ты сможешь выучить один из самых интересных и перспективных языков."
	WelcomeText = "Для начала мы пригласим тебя на бесплатную консультацию. " +
		"На ней мы познакомимся, расскажем подробнее о школе, подберем подходящий " +
		"для тебя формат обучения и ответим на все вопросы 🙌🏻\n\n" +
		"Чтобы записаться на бесплатную консультацию, ответь, пожалуйста, " +
		"на несколько коротких вопросов о себе 👇🏻"
)

// Welcome returns the /start prompts: an optional photo with caption and the intro
// text with the entry button.
func Welcome(photo string) []Prompt {
	entry := &ReplyKeyboard{Buttons: []string{EntryStart}}
	if photo == "" {
		return []Prompt{{Text: WelcomeCaption + "\n\n" + WelcomeText, Reply: entry}}
	}
	return []Prompt{
		{Photo: photo, Text: WelcomeCaption, Reply: entry},
		{Text: WelcomeText, Reply: entry},
	}
}
