package signup

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
)

const (
	evGiveName      = "give_name"
	evPickLevel     = "pick_level"
	evPickFormat    = "pick_format"
	evPickPurpose   = "pick_purpose"
	evChooseMessage = "choose_message"
	evChooseCall    = "choose_call"
	evUseHandle     = "use_handle"
	evOtherHandle   = "other_handle"
	evWriteHandle   = "write_handle"
	evGivePhone     = "give_phone"
	evPickDate      = "pick_date"
	evRevise        = "revise"
	evEdit          = "edit"
	evEditUsername  = "edit_username"
	evEditPhone     = "edit_phone"
	evEditLevel     = "edit_level"
	evEditFormat    = "edit_format"
	evSubmit        = "submit"
)

func states(ss ...State) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

// transitions is the complete table. revise is the short-circuit back to review
// taken when the answered field was already present.
var transitions = fsm.Events{
	{Name: evGiveName, Src: states(StateName), Dst: string(StateLevel)},
	{Name: evPickLevel, Src: states(StateLevel), Dst: string(StateFormat)},
	{Name: evPickFormat, Src: states(StateFormat), Dst: string(StatePurpose)},
	{Name: evPickPurpose, Src: states(StatePurpose), Dst: string(StateContactMethod)},
	{Name: evChooseMessage, Src: states(StateContactMethod), Dst: string(StateUsername)},
	{Name: evChooseCall, Src: states(StateContactMethod), Dst: string(StatePhone)},
	{Name: evUseHandle, Src: states(StateUsername), Dst: string(StateMeetDate)},
	{Name: evOtherHandle, Src: states(StateUsername), Dst: string(StateUsernameWrite)},
	{Name: evWriteHandle, Src: states(StateUsernameWrite), Dst: string(StateMeetDate)},
	{Name: evGivePhone, Src: states(StatePhone, StateContactMethod, StateUsername), Dst: string(StateMeetDate)},
	{Name: evPickDate, Src: states(StateMeetDate), Dst: string(StateReview)},
	{Name: evRevise, Src: states(
		StateLevel, StateFormat, StatePurpose, StateContactMethod,
		StateUsername, StateUsernameWrite, StatePhone,
	), Dst: string(StateReview)},
	{Name: evEdit, Src: states(StateReview), Dst: string(StateEditChoice)},
	{Name: evEditUsername, Src: states(StateEditChoice), Dst: string(StateUsername)},
	{Name: evEditPhone, Src: states(StateEditChoice), Dst: string(StatePhone)},
	{Name: evEditLevel, Src: states(StateEditChoice), Dst: string(StateLevel)},
	{Name: evEditFormat, Src: states(StateEditChoice), Dst: string(StateFormat)},
	{Name: evSubmit, Src: states(StateReview), Dst: string(StateSubmitted)},
}

// errNoTransition marks an event the current state does not accept.
var errNoTransition = errors.New("signup: no transition")

// next returns the state event leads to from cur.
func next(ctx context.Context, cur State, event string) (State, error) {
	f := fsm.NewFSM(string(cur), transitions, nil)
	if err := f.Event(ctx, event); err != nil {
		var invalid fsm.InvalidEventError
		var unknown fsm.UnknownEventError
		if errors.As(err, &invalid) || errors.As(err, &unknown) {
			return cur, fmt.Errorf("%w: %s from %s", errNoTransition, event, cur)
		}
		return cur, fmt.Errorf("signup: %s from %s: %w", event, cur, err)
	}
	return State(f.Current()), nil
}
