package device

import (
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/modelrail/go-trackside/logger"
	"github.com/modelrail/go-trackside/protocol"
)

// SensorBank owns the digital input sensors of one peripheral. Inputs are
// configured lazily on the first registration request for their GPIO and
// report every edge as an IN frame on the link the registration arrived
// on. The current level is reported once immediately on registration so
// the remote side never starts out unknown.
type SensorBank struct {
	factory InputLineFactory
	lines   *xsync.MapOf[int, InputLine]
	initMu  sync.Mutex
	logger  logger.Logger
}

// NewSensorBank creates a sensor reporter backed by the given input line
// factory.
func NewSensorBank(factory InputLineFactory, l logger.Logger) *SensorBank {
	if l == nil {
		l = logger.GetLogger()
	}

	return &SensorBank{
		factory: factory,
		lines:   xsync.NewMapOf[int, InputLine](),
		logger:  l,
	}
}

// Register configures the GPIO as an input if not yet done and reports its
// current level on out. Re-registering an existing input only re-reports
// the level.
func (s *SensorBank) Register(gpio int, out Sender) error {
	if line, ok := s.lines.Load(gpio); ok {
		s.report(gpio, line.Level(), out)
		return nil
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()

	if line, ok := s.lines.Load(gpio); ok {
		s.report(gpio, line.Level(), out)
		return nil
	}

	line, err := s.factory(gpio)
	if err != nil {
		return fmt.Errorf("could not configure gpio %d as input: %w", gpio, err)
	}

	line.OnChange(func(level bool) {
		s.report(gpio, level, out)
	})

	s.lines.Store(gpio, line)
	s.logger.Info("sensor registered", "gpio", gpio)

	s.report(gpio, line.Level(), out)

	return nil
}

// Close releases every configured input line.
func (s *SensorBank) Close() {
	s.lines.Range(func(gpio int, line InputLine) bool {
		if err := line.Close(); err != nil {
			s.logger.Warn("failed to close input line", "gpio", gpio, "error", err)
		}
		s.lines.Delete(gpio)

		return true
	})
}

func (s *SensorBank) report(gpio int, level bool, out Sender) {
	frame := protocol.SensorReport{GPIO: gpio, Level: level}.Frame()
	if err := out.Send(frame); err != nil {
		s.logger.Warn("sensor report not sent", "gpio", gpio, "level", level, "error", err)
	}
}
