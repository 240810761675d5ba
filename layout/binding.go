package layout

import (
	"fmt"
	"sync"

	"github.com/modelrail/go-trackside/logger"
	"github.com/modelrail/go-trackside/protocol"
)

// Sender carries outbound frames to one remote peripheral. *link.Manager
// satisfies it.
type Sender interface {
	Send(msg string) error
}

// TurnoutEvent is a typed commanded-state change of a turnout entity.
type TurnoutEvent struct {
	// Closed is true when the turnout was commanded to its closed position.
	Closed bool
}

// SignalHeadEvent is a typed appearance change of a signal head entity.
type SignalHeadEvent struct {
	// Appearance is the display name of the new appearance, e.g. "Red" or
	// "Flashing Green". Unrecognized appearances darken the head.
	Appearance string
}

// AspectForAppearance maps a signal head appearance name to the wire
// aspect. Anything not recognized maps to dark, so an exotic appearance
// never leaves a stale color lit.
func AspectForAppearance(appearance string) protocol.Aspect {
	switch appearance {
	case "Red":
		return protocol.AspectRed
	case "Green":
		return protocol.AspectGreen
	case "Flashing Red":
		return protocol.AspectFlashRed
	case "Flashing Green":
		return protocol.AspectFlashGreen
	default:
		return protocol.AspectDark
	}
}

// TurnoutBinding connects one turnout entity to its remote servo. It
// translates commanded-state events into OUT_TO frames, suppressing events
// that only echo the state it sent last, and rolls the entity back through
// the rollback callback when a send fails so the entity never shows a
// position the hardware did not take.
type TurnoutBinding struct {
	name TurnoutName
	out  Sender
	log  logger.Logger

	// rollback restores the entity to the given commanded state after a
	// failed send. Invoked from HandleChange; must not call HandleChange
	// synchronously.
	rollback func(closed bool)

	mu        sync.Mutex
	haveState bool
	lastSent  bool
}

// NewTurnoutBinding creates a binding for the named turnout. rollback may
// be nil when the caller has no way to restore the entity state.
func NewTurnoutBinding(name TurnoutName, out Sender, rollback func(closed bool), l logger.Logger) *TurnoutBinding {
	if l == nil {
		l = logger.GetLogger()
	}

	return &TurnoutBinding{
		name:     name,
		out:      out,
		rollback: rollback,
		log:      l.With("servo", name.Servo, "endpoint", name.Endpoint.Alias()),
	}
}

// HandleChange processes one commanded-state event. Events matching the
// last state this binding sent are dropped as echoes of a rollback or a
// redundant command.
func (b *TurnoutBinding) HandleChange(ev TurnoutEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.haveState && b.lastSent == ev.Closed {
		b.log.Debug("suppressed echo", "closed", ev.Closed)
		return
	}

	prev, hadState := b.lastSent, b.haveState
	b.haveState = true
	b.lastSent = ev.Closed

	cmd := protocol.TurnoutSet{
		Servo:       b.name.Servo,
		ThrownAngle: b.name.ThrownAngle,
		ClosedAngle: b.name.ClosedAngle,
		Active:      ev.Closed,
	}

	if err := b.out.Send(cmd.Frame()); err != nil {
		b.haveState = hadState
		b.lastSent = prev
		b.log.Warn("turnout command not sent", "closed", ev.Closed, "error", err)

		if b.rollback != nil && hadState {
			b.rollback(prev)
		}
	}
}

// SignalHeadBinding connects one signal head entity to its remote head
// driver, translating appearance events into OUT_SH frames.
type SignalHeadBinding struct {
	name SignalHeadName
	out  Sender
	log  logger.Logger

	mu         sync.Mutex
	haveAspect bool
	lastSent   protocol.Aspect
}

// NewSignalHeadBinding creates a binding for the named signal head.
func NewSignalHeadBinding(name SignalHeadName, out Sender, l logger.Logger) *SignalHeadBinding {
	if l == nil {
		l = logger.GetLogger()
	}

	return &SignalHeadBinding{
		name: name,
		out:  out,
		log:  l.With("head", name.Target, "endpoint", name.Endpoint.Alias()),
	}
}

// HandleChange processes one appearance event. Repeats of the last sent
// aspect are dropped.
func (b *SignalHeadBinding) HandleChange(ev SignalHeadEvent) {
	aspect := AspectForAppearance(ev.Appearance)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.haveAspect && b.lastSent == aspect {
		return
	}

	if err := b.out.Send(fmt.Sprintf("OUT_SH:%s:%s", b.name.Target, aspect.Code())); err != nil {
		b.log.Warn("signal head command not sent", "aspect", aspect, "error", err)
		return
	}

	b.haveAspect = true
	b.lastSent = aspect
}

// Push sends the current appearance unconditionally, used to seed the
// remote head right after the link comes up.
func (b *SignalHeadBinding) Push(appearance string) {
	b.mu.Lock()
	b.haveAspect = false
	b.mu.Unlock()

	b.HandleChange(SignalHeadEvent{Appearance: appearance})
}

// SensorBinding connects one sensor entity to its remote input line. The
// peripheral configures the input on registration and pushes every edge
// back; the binding only has to register and surface failures.
type SensorBinding struct {
	name SensorName
	out  Sender
	log  logger.Logger

	// markUnknown flags the entity state as unknown when registration
	// could not reach the peripheral.
	markUnknown func()
}

// NewSensorBinding creates a binding for the named sensor. markUnknown may
// be nil.
func NewSensorBinding(name SensorName, out Sender, markUnknown func(), l logger.Logger) *SensorBinding {
	if l == nil {
		l = logger.GetLogger()
	}

	return &SensorBinding{
		name:        name,
		out:         out,
		markUnknown: markUnknown,
		log:         l.With("gpio", name.GPIO, "endpoint", name.Endpoint.Alias()),
	}
}

// Register asks the peripheral to configure the input and report its
// level. Until the first report arrives the entity state is unknown.
func (s *SensorBinding) Register() error {
	frame := protocol.SensorRegister{GPIO: s.name.GPIO}.Frame()
	if err := s.out.Send(frame); err != nil {
		s.log.Warn("sensor registration not sent", "error", err)

		if s.markUnknown != nil {
			s.markUnknown()
		}

		return fmt.Errorf("could not register sensor gpio %d: %w", s.name.GPIO, err)
	}

	return nil
}
