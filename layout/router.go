package layout

import (
	"errors"

	"github.com/modelrail/go-trackside/link"
	"github.com/modelrail/go-trackside/logger"
	"github.com/modelrail/go-trackside/protocol"
)

// SensorSink receives decoded sensor reports. Implementations update the
// named sensor entity for the given link and GPIO; reports for a GPIO no
// entity claims return false.
type SensorSink interface {
	SetSensorLevel(alias string, gpio int, level bool) bool
}

// Router is the inbound frame handler of the host side. Only sensor
// reports are meaningful here; everything else is a peripheral diagnostic
// or a stray command and gets logged without disturbing the link. It
// implements link.FrameHandler.
type Router struct {
	sink   SensorSink
	logger logger.Logger
}

// NewRouter creates a router delivering sensor reports to sink.
func NewRouter(sink SensorSink, l logger.Logger) *Router {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Router{sink: sink, logger: l}
}

// HandleFrame decodes one inbound frame from a peripheral.
func (r *Router) HandleFrame(frame string, m *link.Manager) {
	cmd, err := protocol.Parse(frame)
	if err != nil {
		// peripherals echo failed commands back with a diagnostic suffix
		var perr *protocol.ParseError
		if errors.As(err, &perr) {
			r.logger.Error("peripheral reported a problem", "link", m.Alias(), "frame", frame)
		} else {
			r.logger.Warn("unreadable frame", "link", m.Alias(), "frame", frame, "error", err)
		}

		return
	}

	report, ok := cmd.(protocol.SensorReport)
	if !ok {
		r.logger.Warn("invalid feedback frame", "link", m.Alias(), "frame", frame)
		return
	}

	if !r.sink.SetSensorLevel(m.Alias(), report.GPIO, report.Level) {
		r.logger.Error("sensor report for unknown sensor", "link", m.Alias(), "gpio", report.GPIO)
	}
}
