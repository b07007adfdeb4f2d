package main

import (
	"fmt"

	"github.com/sweeney/duty-cycler/internal/button"
	"github.com/sweeney/duty-cycler/internal/clock"
	"github.com/sweeney/duty-cycler/internal/config"
	"github.com/sweeney/duty-cycler/internal/controller"
	"github.com/sweeney/duty-cycler/internal/gpio"
	"github.com/sweeney/duty-cycler/internal/motor"
	"github.com/sweeney/duty-cycler/internal/output"
	"github.com/sweeney/duty-cycler/internal/sched"
)

// lines are the GPIO lines the device drives.
type lines struct {
	MotorL1, MotorL2, MotorEnable gpio.Output
	LED, Buzzer                   gpio.Output
	Button                        gpio.Input
}

// requestLines claims every configured line on chip.
func requestLines(chip *gpio.Chip, pins config.Pins) (lines, error) {
	var l lines
	outputs := []struct {
		name   string
		offset int
		dst    *gpio.Output
	}{
		{"motor_l1", pins.MotorL1, &l.MotorL1},
		{"motor_l2", pins.MotorL2, &l.MotorL2},
		{"motor_enable", pins.MotorEnable, &l.MotorEnable},
		{"led", pins.LED, &l.LED},
		{"buzzer", pins.Buzzer, &l.Buzzer},
	}
	for _, o := range outputs {
		line, err := chip.RequestOutput(o.offset)
		if err != nil {
			return lines{}, fmt.Errorf("request %s (line %d): %w", o.name, o.offset, err)
		}
		*o.dst = line
	}

	in, err := chip.RequestInput(pins.Button, true)
	if err != nil {
		return lines{}, fmt.Errorf("request button (line %d): %w", pins.Button, err)
	}
	l.Button = in
	return l, nil
}

// device is the assembled control core: every unit registered with one
// scheduler, readers before the controller.
type device struct {
	clk    clock.Clock
	sched  *sched.Scheduler
	button *button.Button
	led    *output.Digital
	buzzer *output.Digital
	motor  *motor.Driver
	ctrl   *controller.Controller
}

func controllerConfig(cfg config.Config) controller.Config {
	return controller.Config{
		PreStartDelayMs:  cfg.PreStartDelay.Millis(),
		RestartIntervalS: cfg.RestartInterval.Secs(),
		AutoRunMs:        cfg.AutoRunDuration.Millis(),
		ManualRunMs:      cfg.ManualRunDuration.Millis(),
	}
}

func newDevice(cfg config.Config, l lines, clk clock.Clock, sink controller.Sink) (*device, error) {
	d := &device{
		clk: clk,
		button: button.New(l.Button, button.Thresholds{
			Debounce: cfg.Button.Debounce.Millis(),
			Long:     cfg.Button.Long.Millis(),
		}),
		led:    output.NewDigital("led", l.LED, clk),
		buzzer: output.NewDigital("buzzer", l.Buzzer, clk),
		motor:  motor.New(l.MotorL1, l.MotorL2, l.MotorEnable, cfg.MotorSpeed),
	}
	d.ctrl = controller.New(controllerConfig(cfg), controller.Parts{
		Clock:  clk,
		Motor:  d.motor,
		LED:    d.led,
		Buzzer: d.buzzer,
		Button: d.button,
	}, sink)

	units := []sched.Unit{d.button, d.led, d.buzzer, d.motor}
	units = append(units, d.ctrl.Units()...)
	units = append(units, d.ctrl)

	s, err := sched.New(units...)
	if err != nil {
		return nil, fmt.Errorf("register units: %w", err)
	}
	d.sched = s
	d.sched.Setup()
	return d, nil
}

// tick runs one scheduler pass at the current clock reading.
func (d *device) tick() {
	d.sched.Tick(d.clk.Millis())
}

// halt moves the controller to idle with every output off. The motor stop
// is repeated so a failed write surfaces to the caller.
func (d *device) halt() error {
	d.ctrl.Shutdown()
	return d.motor.Stop()
}
