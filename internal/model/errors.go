package model

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is matched by every TransitionError.
var ErrIllegalTransition = errors.New("illegal state transition")

// TransitionError reports a transition the state table does not allow.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrIllegalTransition }
