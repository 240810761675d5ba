package device

import (
	"fmt"
	"sync"

	"github.com/modelrail/go-trackside/logger"
)

// SimServo is an in-memory ServoDriver that records the last commanded
// angle. Used by tests and by the daemon when no hardware is attached.
type SimServo struct {
	mu    sync.Mutex
	addr  int
	angle int
	log   logger.Logger
}

var _ ServoDriver = (*SimServo)(nil)

// NewSimServo creates a simulated servo for the given address.
func NewSimServo(addr int, l logger.Logger) *SimServo {
	if l == nil {
		l = logger.GetLogger()
	}

	return &SimServo{addr: addr, angle: -1, log: l}
}

func (s *SimServo) SetAngle(angle int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.angle = angle
	s.log.Info("sim servo moved", "addr", s.addr, "angle", angle)

	return nil
}

// Angle returns the last commanded angle, or -1 if never commanded.
func (s *SimServo) Angle() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.angle
}

// SimBoard is an in-memory PinBoard with BoardPinCount pins.
type SimBoard struct {
	mu   sync.Mutex
	addr int
	pins [BoardPinCount]bool
	log  logger.Logger
}

var _ PinBoard = (*SimBoard)(nil)

// NewSimBoard creates a simulated GPIO-extender board for the given bus
// address.
func NewSimBoard(addr int, l logger.Logger) *SimBoard {
	if l == nil {
		l = logger.GetLogger()
	}

	return &SimBoard{addr: addr, log: l}
}

func (b *SimBoard) Pin(index int) (Pin, error) {
	if index < 0 || index >= BoardPinCount {
		return nil, fmt.Errorf("pin index %d out of range [0, %d)", index, BoardPinCount)
	}

	return &simPin{board: b, index: index}, nil
}

// PinValue returns the current level of a pin.
func (b *SimBoard) PinValue(index int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.pins[index]
}

type simPin struct {
	board *SimBoard
	index int
}

func (p *simPin) Set(value bool) error {
	p.board.mu.Lock()
	defer p.board.mu.Unlock()

	p.board.pins[p.index] = value

	return nil
}

// SimInput is an in-memory InputLine whose level tests and the daemon can
// flip with SetLevel.
type SimInput struct {
	mu      sync.Mutex
	gpio    int
	level   bool
	handler func(level bool)
}

var _ InputLine = (*SimInput)(nil)

// NewSimInput creates a simulated input line, initially deasserted.
func NewSimInput(gpio int) *SimInput {
	return &SimInput{gpio: gpio}
}

func (s *SimInput) Level() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.level
}

func (s *SimInput) OnChange(fn func(level bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handler = fn
}

func (s *SimInput) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handler = nil

	return nil
}

// SetLevel flips the simulated input and triggers the edge handler when the
// level actually changed.
func (s *SimInput) SetLevel(level bool) {
	s.mu.Lock()
	changed := s.level != level
	s.level = level
	handler := s.handler
	s.mu.Unlock()

	if changed && handler != nil {
		handler(level)
	}
}

// SimFactories returns driver factories backed by simulated hardware,
// suitable for running a peripheral daemon without GPIO or I2C attached.
func SimFactories(l logger.Logger) (ServoDriverFactory, PinBoardFactory, InputLineFactory) {
	servo := func(addr int) (ServoDriver, error) {
		return NewSimServo(addr, l), nil
	}
	board := func(addr int) (PinBoard, error) {
		return NewSimBoard(addr, l), nil
	}
	input := func(gpio int) (InputLine, error) {
		return NewSimInput(gpio), nil
	}

	return servo, board, input
}
