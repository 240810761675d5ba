package device

// Sender abstracts the outbound side of a link for controllers that need
// to emit frames. *link.Manager satisfies it.
type Sender interface {
	Send(msg string) error
}

// ServoDriver positions one servo actuator.
type ServoDriver interface {
	// SetAngle moves the servo to the given angle in degrees.
	SetAngle(angle int) error
}

// ServoDriverFactory creates the driver for a servo address. It is invoked
// at most once per address, on the first command that references it.
type ServoDriverFactory func(addr int) (ServoDriver, error)

// Pin is one digital output pin of a GPIO-extender board.
type Pin interface {
	// Set drives the pin high (true) or low (false).
	Set(value bool) error
}

// PinBoard is a GPIO-extender board on a shared bus exposing BoardPinCount
// digital pins.
type PinBoard interface {
	// Pin returns the pin with the given index, in [0, BoardPinCount).
	Pin(index int) (Pin, error)
}

// PinBoardFactory creates the board driver for a bus address. It is
// invoked at most once per address, on the first command that references
// it.
type PinBoardFactory func(addr int) (PinBoard, error)

// BoardPinCount is the number of pins a GPIO-extender board exposes. All
// of them are driven output-low when a board is initialized.
const BoardPinCount = 16

// InputLine is an edge-reporting digital input.
type InputLine interface {
	// Level returns the current level of the input. True means asserted
	// (connected to ground).
	Level() bool
	// OnChange registers the handler invoked on every edge. The handler
	// may be invoked from the driver's own goroutine.
	OnChange(fn func(level bool))
	// Close releases the input resource.
	Close() error
}

// InputLineFactory configures a GPIO as an input line. It is invoked at
// most once per GPIO, on the first registration request that references
// it.
type InputLineFactory func(gpio int) (InputLine, error)
