package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/modelrail/go-trackside/logger"
	"github.com/modelrail/go-trackside/protocol"
)

// SignalHead drives two-color LED signal heads attached to GPIO-extender
// boards. Boards are initialized lazily, once per bus address, with all
// pins driven output-low. Flashing aspects run on a background blink task;
// the controller guarantees at most one blink task per head id.
type SignalHead struct {
	factory  PinBoardFactory
	boards   *xsync.MapOf[int, PinBoard]
	blinkers *xsync.MapOf[string, *blinker]
	mu       sync.Mutex // serializes board init and blink task replacement
	period   time.Duration
	logger   logger.Logger
}

// NewSignalHead creates a signal head controller backed by the given board
// factory.
func NewSignalHead(factory PinBoardFactory, l logger.Logger) *SignalHead {
	if l == nil {
		l = logger.GetLogger()
	}

	return &SignalHead{
		factory:  factory,
		boards:   xsync.NewMapOf[int, PinBoard](),
		blinkers: xsync.NewMapOf[string, *blinker](),
		period:   time.Second / FlashingFreq,
		logger:   l,
	}
}

// Set transitions a head to the commanded aspect.
//
// Any existing blink task for the head id is cancelled and joined first, so
// no two tasks can ever drive the same head concurrently. Static aspects
// then set both LEDs; flashing aspects force the other LED off and start a
// new blink task.
func (s *SignalHead) Set(cmd protocol.SignalHeadSet) error {
	board, err := s.board(cmd.Board)
	if err != nil {
		return fmt.Errorf("could not initialize board for signal head %s: %w", cmd.HeadID, err)
	}

	redPin, err := board.Pin(cmd.RedPin)
	if err != nil {
		return fmt.Errorf("invalid red pin for signal head %s: %w", cmd.HeadID, err)
	}

	greenPin, err := board.Pin(cmd.GreenPin)
	if err != nil {
		return fmt.Errorf("invalid green pin for signal head %s: %w", cmd.HeadID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopBlinker(cmd.HeadID)

	var blinkPin Pin

	switch cmd.Aspect {
	case protocol.AspectRed:
		err = setPins(redPin, true, greenPin, false)
	case protocol.AspectGreen:
		err = setPins(redPin, false, greenPin, true)
	case protocol.AspectFlashRed:
		// make sure green is off before the red LED starts flashing
		err = greenPin.Set(false)
		blinkPin = redPin
	case protocol.AspectFlashGreen:
		err = redPin.Set(false)
		blinkPin = greenPin
	default: // dark
		err = setPins(redPin, false, greenPin, false)
	}

	if err != nil {
		return fmt.Errorf("could not set the LED GPIOs for signal head %s: %w", cmd.HeadID, err)
	}

	if blinkPin != nil {
		b := newBlinker(cmd.HeadID, blinkPin, s.period, s.logger)
		s.blinkers.Store(cmd.HeadID, b)
		b.start()
	}

	s.logger.Debug("signal head set", "head", cmd.HeadID, "aspect", cmd.Aspect.String())

	return nil
}

// Stop cancels every running blink task. Called on shutdown.
func (s *SignalHead) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blinkers.Range(func(headID string, _ *blinker) bool {
		s.stopBlinker(headID)
		return true
	})
}

// stopBlinker cancels and joins the blink task for the head id, if any.
// Callers must hold s.mu.
func (s *SignalHead) stopBlinker(headID string) {
	if b, ok := s.blinkers.LoadAndDelete(headID); ok {
		b.stop()
	}
}

// board returns the driver for a bus address, creating it on first use and
// driving all of its pins output-low.
func (s *SignalHead) board(addr int) (PinBoard, error) {
	if board, ok := s.boards.Load(addr); ok {
		return board, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if board, ok := s.boards.Load(addr); ok {
		return board, nil
	}

	board, err := s.factory(addr)
	if err != nil {
		return nil, err
	}

	for i := 0; i < BoardPinCount; i++ {
		pin, err := board.Pin(i)
		if err != nil {
			return nil, err
		}
		if err := pin.Set(false); err != nil {
			return nil, err
		}
	}

	s.boards.Store(addr, board)
	s.logger.Info("signal board initialized", "addr", fmt.Sprintf("0x%x", addr))

	return board, nil
}

func setPins(red Pin, redVal bool, green Pin, greenVal bool) error {
	if err := red.Set(redVal); err != nil {
		return err
	}

	return green.Set(greenVal)
}
