package device

import (
	"time"

	"github.com/modelrail/go-trackside/logger"
)

const (
	// FlashingFreq is the blink frequency of flashing aspects in Hz.
	FlashingFreq = 2

	// dutyCycle is the fraction of each blink period the LED stays on.
	dutyCycle = 0.5
)

// blinker toggles one LED pin at a fixed duty cycle until cancelled. It is
// owned exclusively by the signal head controller that started it; at most
// one blinker exists per head id at any time.
type blinker struct {
	headID string
	pin    Pin
	onDur  time.Duration
	offDur time.Duration
	cancel chan struct{}
	done   chan struct{}
	logger logger.Logger
}

func newBlinker(headID string, pin Pin, period time.Duration, l logger.Logger) *blinker {
	on := time.Duration(float64(period) * dutyCycle)

	return &blinker{
		headID: headID,
		pin:    pin,
		onDur:  on,
		offDur: period - on,
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
		logger: l,
	}
}

// start launches the blink goroutine.
func (b *blinker) start() {
	go b.run()
}

// stop requests cancellation and blocks until the blink goroutine has
// fully exited, so the owner can safely issue new commands to the same
// pins. The wait is bounded by one blink cycle.
func (b *blinker) stop() {
	close(b.cancel)
	<-b.done
}

// run is the blink loop. The cancellation flag is checked at cycle
// boundaries; a pin write failure terminates the loop as well.
func (b *blinker) run() {
	defer close(b.done)

	for {
		if err := b.pin.Set(true); err != nil {
			b.logger.Error("blink pin write failed", "head", b.headID, "error", err)
			return
		}
		time.Sleep(b.onDur)

		if err := b.pin.Set(false); err != nil {
			b.logger.Error("blink pin write failed", "head", b.headID, "error", err)
			return
		}
		time.Sleep(b.offDur)

		select {
		case <-b.cancel:
			b.logger.Debug("blink task cancelled", "head", b.headID)
			return
		default:
		}
	}
}
