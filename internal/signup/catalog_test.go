package signup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLooksLikePhone(t *testing.T) {
	accept := []string{"+79991234567", "89991234567", "999 123 45 67", "+7 (999) 123-45-67", " 9991234567 "}
	for _, s := range accept {
		assert.True(t, LooksLikePhone(s), s)
	}
	reject := []string{"", "12345", "999 123 45 6", "+7999123456", "call me", "Anna"}
	for _, s := range reject {
		assert.False(t, LooksLikePhone(s), s)
	}
}

func TestLookupOption(t *testing.T) {
	label, ok := LookupOption(Levels.Key, 2)
	assert.True(t, ok)
	assert.Equal(t, "HSK 1", label)

	_, ok = LookupOption(Levels.Key, len(Levels.Labels))
	assert.False(t, ok)
	_, ok = LookupOption("nope", 0)
	assert.False(t, ok)
}

func TestOptionLabelsFitCallbackData(t *testing.T) {
	// Payloads are "\fopt|<key>|<index>"; Telegram allows 64 bytes.
	for key := range optionSets {
		assert.LessOrEqual(t, len("\fopt|"+key+"|99"), 64)
	}
	for label := range editEvents {
		assert.True(t, EditTargets.Contains(label))
	}
}

func TestFormatSummaryIsPure(t *testing.T) {
	rec := Record{
		Name: "Anna", Level: "HSK 1", Format: "Индивидуальный", Purpose: "Сдать HSK",
		Username: "anna_tg", MeetDate: time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
	}
	want := "Твоя заявка:\n" +
		"Имя: Anna\n" +
		"Уровень языка: HSK 1\n" +
		"Формат занятий: Индивидуальный\n" +
		"Цель: Сдать HSK\n" +
		"Ник в тг: anna_tg\n" +
		"Телефон: -\n" +
		"Предварительная дата консультации: 2026-10-20"

	first := FormatSummary(rec, HeadingUser)
	other := FormatSummary(Record{Name: "Boris"}, HeadingOperator)
	second := FormatSummary(rec, HeadingUser)
	assert.Equal(t, want, first)
	assert.Equal(t, first, second)
	assert.Contains(t, other, "Новая заявка:")
}

func TestRowValuesOrder(t *testing.T) {
	rec := Record{Name: "Anna", Level: "HSK 1", Format: "F", Purpose: "P"}
	row := NewRow("id", rec, time.Date(2026, 10, 17, 9, 5, 3, 0, time.UTC))
	assert.Equal(t, []string{"Anna", "HSK 1", "F", "P", "-", "-", "-", "2026-10-17 09:05:03"}, row.Values())
}

func TestWelcome(t *testing.T) {
	plain := Welcome("")
	assert.Len(t, plain, 1)
	assert.Equal(t, []string{EntryStart}, plain[0].Reply.Buttons)

	withPhoto := Welcome("images/welcome.jpeg")
	assert.Len(t, withPhoto, 2)
	assert.Equal(t, WelcomeCaption, withPhoto[0].Text)
	assert.Equal(t, "images/welcome.jpeg", withPhoto[0].Photo)
}
