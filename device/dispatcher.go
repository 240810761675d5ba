package device

import (
	"errors"

	"github.com/modelrail/go-trackside/link"
	"github.com/modelrail/go-trackside/logger"
	"github.com/modelrail/go-trackside/protocol"
)

// Dispatcher turns one received frame into exactly one controller
// invocation, or a diagnostic frame reported back to the sender. It
// implements link.FrameHandler.
type Dispatcher struct {
	turnouts *Turnout
	heads    *SignalHead
	sensors  *SensorBank
	logger   logger.Logger
}

// NewDispatcher creates a dispatcher routing to the given controllers.
func NewDispatcher(turnouts *Turnout, heads *SignalHead, sensors *SensorBank, l logger.Logger) *Dispatcher {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Dispatcher{
		turnouts: turnouts,
		heads:    heads,
		sensors:  sensors,
		logger:   l,
	}
}

// HandleFrame decodes and dispatches one frame. Malformed frames and
// controller failures are echoed back to the sender as diagnostic frames;
// neither ever terminates the link.
func (d *Dispatcher) HandleFrame(frame string, m *link.Manager) {
	cmd, err := protocol.Parse(frame)
	if err != nil {
		d.logger.Warn("malformed frame", "frame", frame, "error", err)

		var perr *protocol.ParseError
		if errors.As(err, &perr) {
			d.reply(m, perr.Diagnostic())
		}

		return
	}

	switch c := cmd.(type) {
	case protocol.TurnoutSet:
		if err := d.turnouts.Set(c); err != nil {
			d.reportError(m, frame, err)
		}

	case protocol.SignalHeadSet:
		if err := d.heads.Set(c); err != nil {
			d.reportError(m, frame, err)
		}

	case protocol.SensorRegister:
		if err := d.sensors.Register(c.GPIO, m); err != nil {
			d.reportError(m, frame, err)
		}

	case protocol.SensorReport:
		// reports travel peripheral to host only
		d.logger.Warn("unexpected sensor report", "frame", frame)
		d.reply(m, frame+":ERROR - sensor reports are not accepted here")
	}
}

func (d *Dispatcher) reportError(m *link.Manager, frame string, err error) {
	d.logger.Error("command failed", "frame", frame, "error", err)
	d.reply(m, frame+":ERROR - "+err.Error())
}

func (d *Dispatcher) reply(m *link.Manager, msg string) {
	if err := m.Send(msg); err != nil {
		d.logger.Warn("diagnostic frame not sent", "msg", msg, "error", err)
	}
}
