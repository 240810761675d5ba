// Package device implements the peripheral side of the trackside protocol:
// a dispatcher that turns received frames into controller invocations, and
// one controller per actuator/sensor class (servo turnouts, LED signal
// heads, digital input sensors).
//
// Physical hardware access goes through the ServoDriver, PinBoard and
// InputLine interfaces so the controllers stay independent of the GPIO/I2C
// stack in use. Simulated implementations are provided for tests and for
// running the daemon without hardware.
package device
