package signup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextFollowsTable(t *testing.T) {
	cases := []struct {
		from  State
		event string
		to    State
	}{
		{StateName, evGiveName, StateLevel},
		{StatePurpose, evPickPurpose, StateContactMethod},
		{StateContactMethod, evChooseCall, StatePhone},
		{StateContactMethod, evChooseMessage, StateUsername},
		{StateUsername, evOtherHandle, StateUsernameWrite},
		{StateUsernameWrite, evWriteHandle, StateMeetDate},
		{StatePhone, evRevise, StateReview},
		{StateReview, evEdit, StateEditChoice},
		{StateEditChoice, evEditPhone, StatePhone},
		{StateReview, evSubmit, StateSubmitted},
	}
	for _, tc := range cases {
		got, err := next(context.Background(), tc.from, tc.event)
		require.NoError(t, err, "%s from %s", tc.event, tc.from)
		assert.Equal(t, tc.to, got)
	}
}

func TestNextRejectsIllegalEvents(t *testing.T) {
	_, err := next(context.Background(), StateName, evSubmit)
	assert.ErrorIs(t, err, errNoTransition)

	_, err = next(context.Background(), StateReview, "bogus")
	assert.ErrorIs(t, err, errNoTransition)

	_, err = next(context.Background(), StateName, evRevise)
	assert.ErrorIs(t, err, errNoTransition)
}

func TestEveryStateHasPrompt(t *testing.T) {
	m := NewMachine(nil, nil, nil)
	for _, st := range []State{
		StateName, StateLevel, StateFormat, StatePurpose, StateContactMethod, StateUsername,
		StateUsernameWrite, StatePhone, StateMeetDate, StateReview, StateEditChoice,
	} {
		assert.NotEmpty(t, m.prompts(&Record{State: st}, "anna", Target{}), st)
	}
}
