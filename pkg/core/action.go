// pkg/core/action.go
package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAction is returned when an action name or index is not part of the alphabet.
var ErrUnknownAction = errors.New("unknown action")

// Action is one symbol of the fixed policy output alphabet.
type Action int

const (
	ActionSteerLeft Action = iota
	ActionSteerRight
	ActionBrake
	ActionAccelerate
)

// ActionCount is the size of the action alphabet.
const ActionCount = 4

var actionNames = [ActionCount]string{
	ActionSteerLeft:  "steer-left",
	ActionSteerRight: "steer-right",
	ActionBrake:      "brake",
	ActionAccelerate: "accelerate",
}

// Valid reports whether a is a member of the alphabet.
func (a Action) Valid() bool {
	return a >= ActionSteerLeft && a <= ActionAccelerate
}

func (a Action) String() string {
	if !a.Valid() {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

// ParseAction maps a symbol name back to its Action.
func ParseAction(s string) (Action, error) {
	for i, name := range actionNames {
		if strings.EqualFold(s, name) {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// ActionFromIndex converts an argmax output index to an Action.
func ActionFromIndex(i int) (Action, error) {
	a := Action(i)
	if !a.Valid() {
		return 0, fmt.Errorf("%w: index %d", ErrUnknownAction, i)
	}
	return a, nil
}

// SteerDirection classifies a steering signal.
type SteerDirection int

const (
	SteerRight    SteerDirection = -1
	SteerStraight SteerDirection = 0
	SteerLeft     SteerDirection = 1
)

func (d SteerDirection) String() string {
	switch d {
	case SteerRight:
		return "right"
	case SteerLeft:
		return "left"
	default:
		return "straight"
	}
}
