// Package relay drives one active-high relay module on a GPIO pin.
package relay

import (
	"log/slog"
	"os"

	"periph.io/x/conn/v3/gpio"
)

// Driver holds the logical on/off state of the relay and asserts the
// pin level to match. It is touched only from the controller goroutine.
type Driver struct {
	pin    gpio.PinIO
	log    *slog.Logger
	active bool
}

// NewDriver wraps an already-opened output pin.
func NewDriver(pin gpio.PinIO, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Driver{pin: pin, log: logger}
}

// Set drives the pin high (on) or low (off). Calling with the current
// state re-asserts the level. Pin writes are treated as infallible at
// the contract level; a hardware error is logged and the logical state
// is updated regardless.
func (d *Driver) Set(on bool) {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := d.pin.Out(level); err != nil {
		d.log.Error("relay pin write failed", "pin", d.pin.Name(), "on", on, "error", err)
	}
	if on != d.active {
		d.log.Info("relay switched", "on", on)
	}
	d.active = on
}

// Active reports the logical relay state.
func (d *Driver) Active() bool { return d.active }
