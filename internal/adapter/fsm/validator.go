package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// Compile-time check: Validator implements domain.ActionValidator.
var _ domain.ActionValidator = (*Validator)(nil)

// events converts domain.ActionTransitions into looplab/fsm EventDesc format,
// merging transitions that share an action and destination into one EventDesc
// with several source statuses.
var events = buildEvents()

func buildEvents() []loopfsm.EventDesc {
	type key struct {
		action string
		dst    string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, t := range domain.ActionTransitions {
		k := key{action: string(t.Action), dst: string(t.Dst)}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], string(t.Src))
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		out = append(out, loopfsm.EventDesc{
			Name: k.action,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}
	return out
}

// Validator implements domain.ActionValidator using looplab/fsm.
// A short-lived FSM is built per Apply call from the status Connect reported,
// since looplab/fsm keeps the current state internally.
type Validator struct{}

// New creates a new FSM-backed action validator.
func New() *Validator {
	return &Validator{}
}

// Apply checks that action may be invoked on a request in the current status
// and returns the status Connect moves it to. Returns a
// domain.TransitionError otherwise.
func (v *Validator) Apply(ctx context.Context, current domain.RequestStatus, action domain.RequestAction) (domain.RequestStatus, error) {
	machine := loopfsm.NewFSM(string(current), events, nil)

	if err := machine.Event(ctx, string(action)); err != nil {
		// Self transitions such as validate on a draft are reported this way.
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &noTransition) && noTransition.Err == nil {
			return current, nil
		}
		var invalidEvent loopfsm.InvalidEventError
		var unknownEvent loopfsm.UnknownEventError
		if errors.As(err, &invalidEvent) || errors.As(err, &unknownEvent) {
			return "", &domain.TransitionError{
				Action:  action,
				Current: current,
			}
		}
		return "", err
	}

	return domain.RequestStatus(machine.Current()), nil
}
