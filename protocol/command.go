package protocol

import (
	"fmt"
	"strconv"
)

// Aspect represents the commanded visual state of a signal head.
type Aspect uint8

const (
	// AspectDark turns both LEDs off.
	AspectDark Aspect = iota
	// AspectRed turns the red LED on and the green LED off.
	AspectRed
	// AspectGreen turns the green LED on and the red LED off.
	AspectGreen
	// AspectFlashRed blinks the red LED with the green LED off.
	AspectFlashRed
	// AspectFlashGreen blinks the green LED with the red LED off.
	AspectFlashGreen
)

// Code returns the wire code of the aspect.
func (a Aspect) Code() string {
	switch a {
	case AspectRed:
		return "r"
	case AspectGreen:
		return "g"
	case AspectFlashRed:
		return "fr"
	case AspectFlashGreen:
		return "fg"
	default:
		return "d"
	}
}

// IsFlashing returns true for the two flashing aspects.
func (a Aspect) IsFlashing() bool {
	return a == AspectFlashRed || a == AspectFlashGreen
}

// String returns a human readable name of the aspect.
func (a Aspect) String() string {
	switch a {
	case AspectDark:
		return "dark"
	case AspectRed:
		return "red"
	case AspectGreen:
		return "green"
	case AspectFlashRed:
		return "flashing-red"
	case AspectFlashGreen:
		return "flashing-green"
	default:
		return "unknown"
	}
}

// ParseAspect converts a wire code into an Aspect.
func ParseAspect(code string) (Aspect, error) {
	switch code {
	case "r":
		return AspectRed, nil
	case "g":
		return AspectGreen, nil
	case "fr":
		return AspectFlashRed, nil
	case "fg":
		return AspectFlashGreen, nil
	case "d":
		return AspectDark, nil
	default:
		return AspectDark, fmt.Errorf("%w: %q", ErrUnknownAspect, code)
	}
}

// Command is a decoded, typed wire message. Commands are immutable once
// decoded.
type Command interface {
	// Frame renders the command as its wire frame, without the trailing
	// '|' delimiter.
	Frame() string
}

// SensorRegister asks the remote side to configure the given GPIO as an
// input and report its current level immediately.
type SensorRegister struct {
	GPIO int
}

func (c SensorRegister) Frame() string {
	return "IN:" + strconv.Itoa(c.GPIO)
}

// SensorReport carries the level of a remote input GPIO.
// Level true means the input is asserted (connected to ground).
type SensorReport struct {
	GPIO  int
	Level bool
}

func (c SensorReport) Frame() string {
	if c.Level {
		return "IN:" + strconv.Itoa(c.GPIO) + ":1"
	}
	return "IN:" + strconv.Itoa(c.GPIO) + ":0"
}

// TurnoutSet commands a servo-driven turnout. Active true selects the
// closed position (ClosedAngle), false the thrown position (ThrownAngle).
type TurnoutSet struct {
	Servo       int
	ThrownAngle int
	ClosedAngle int
	Active      bool
}

func (c TurnoutSet) Frame() string {
	state := "0"
	if c.Active {
		state = "1"
	}
	return fmt.Sprintf("OUT_TO:%d[%d][%d]:%s", c.Servo, c.ThrownAngle, c.ClosedAngle, state)
}

// Angle returns the servo angle the command maps to.
func (c TurnoutSet) Angle() int {
	if c.Active {
		return c.ClosedAngle
	}
	return c.ThrownAngle
}

// SignalHeadSet commands a two-color LED signal head attached to a GPIO
// extender board. Board is the extender's bus address, RedPin and GreenPin
// its pin indexes.
type SignalHeadSet struct {
	HeadID   string
	Board    int
	RedPin   int
	GreenPin int
	Aspect   Aspect
}

func (c SignalHeadSet) Frame() string {
	return fmt.Sprintf("OUT_SH:%s$0x%x$R%d$G%d:%s", c.HeadID, c.Board, c.RedPin, c.GreenPin, c.Aspect.Code())
}
