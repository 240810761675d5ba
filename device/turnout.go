package device

import (
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/modelrail/go-trackside/logger"
	"github.com/modelrail/go-trackside/protocol"
)

// Turnout drives servo-based turnouts. The driver for a servo address is
// created lazily on the first command that references it and owned by this
// controller afterwards.
type Turnout struct {
	factory ServoDriverFactory
	drivers *xsync.MapOf[int, ServoDriver]
	initMu  sync.Mutex // serializes driver creation per controller
	logger  logger.Logger
}

// NewTurnout creates a turnout controller backed by the given driver
// factory.
func NewTurnout(factory ServoDriverFactory, l logger.Logger) *Turnout {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Turnout{
		factory: factory,
		drivers: xsync.NewMapOf[int, ServoDriver](),
		logger:  l,
	}
}

// Set moves the commanded servo to the closed angle when the command is
// active, the thrown angle otherwise. Failure to initialize the driver or
// to write the angle leaves physical state unchanged and is returned to
// the caller for reporting.
func (t *Turnout) Set(cmd protocol.TurnoutSet) error {
	drv, err := t.driver(cmd.Servo)
	if err != nil {
		return fmt.Errorf("could not initiate servo controller: %w", err)
	}

	angle := cmd.Angle()
	if err := drv.SetAngle(angle); err != nil {
		return fmt.Errorf("could not set servo %d angle: %w", cmd.Servo, err)
	}

	t.logger.Debug("turnout set", "servo", cmd.Servo, "angle", angle, "active", cmd.Active)

	return nil
}

func (t *Turnout) driver(addr int) (ServoDriver, error) {
	if drv, ok := t.drivers.Load(addr); ok {
		return drv, nil
	}

	t.initMu.Lock()
	defer t.initMu.Unlock()

	// re-check under the lock so the factory runs at most once per address
	if drv, ok := t.drivers.Load(addr); ok {
		return drv, nil
	}

	drv, err := t.factory(addr)
	if err != nil {
		return nil, err
	}

	t.drivers.Store(addr, drv)
	t.logger.Info("servo driver initialized", "addr", addr)

	return drv, nil
}
