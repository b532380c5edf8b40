package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/calvinmclean/dispenser/link"
)

var errInvalidVolume = errors.New("enter a whole number of ml greater than zero")

type controllerWrapper struct {
	device link.Device

	// onSent is called with every command that reached the device
	onSent func(a action, ml int, at time.Time)
}

func (c *controllerWrapper) Tare() error {
	return c.run(actionTare, 0, c.device.Tare)
}

func (c *controllerWrapper) Calibrate() error {
	return c.run(actionCalibrate, 0, c.device.Calibrate)
}

func (c *controllerWrapper) Dispense(input string) error {
	ml, err := parseVolume(input)
	if err != nil {
		return err
	}
	return c.run(actionDispense, ml, func() error { return c.device.Dispense(ml) })
}

func (c *controllerWrapper) run(a action, ml int, send func() error) error {
	if err := send(); err != nil {
		return fmt.Errorf("error sending %s: %w", a, err)
	}
	if c.onSent != nil {
		c.onSent(a, ml, time.Now())
	}
	return nil
}

func parseVolume(input string) (int, error) {
	ml, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || ml <= 0 {
		return 0, errInvalidVolume
	}
	return ml, nil
}
