package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineButtonsNPerRow(t *testing.T) {
	btns := []InlineBtn{
		{Text: "a", Unique: "opt", Data: "lvl|0"},
		{Text: "b", Unique: "opt", Data: "lvl|1"},
		{Text: "c", Unique: "opt", Data: "lvl|2"},
	}
	m := InlineButtonsNPerRow(btns, 2)
	require.Len(t, m.InlineKeyboard, 2)
	assert.Len(t, m.InlineKeyboard[0], 2)
	assert.Len(t, m.InlineKeyboard[1], 1)
	assert.Equal(t, "c", m.InlineKeyboard[1][0].Text)
	assert.Equal(t, "opt", m.InlineKeyboard[1][0].Unique)
	assert.Equal(t, "lvl|2", m.InlineKeyboard[1][0].Data)

	single := InlineButtonsNPerRow(btns, 0)
	assert.Len(t, single.InlineKeyboard, 3)
}

func TestReplyKeyboards(t *testing.T) {
	m := ReplyButtons([]string{"Поехали!"})
	require.Len(t, m.ReplyKeyboard, 1)
	assert.Equal(t, "Поехали!", m.ReplyKeyboard[0][0].Text)
	assert.True(t, m.ResizeKeyboard)

	c := ContactButton("Отправить мой контакт")
	require.Len(t, c.ReplyKeyboard, 1)
	assert.True(t, c.ReplyKeyboard[0][0].Contact)

	assert.True(t, RemoveKeyboard().RemoveKeyboard)
}
