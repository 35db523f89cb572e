// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package periphboard

import (
	"context"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

var errStuck = errors.New("pin stuck")

// stuckPin fails every output change
type stuckPin struct {
	gpiotest.Pin
}

func (p *stuckPin) Out(gpio.Level) error {
	return errStuck
}

func TestLevelTracker(t *testing.T) {
	c := qt.New(t)

	var level levelTracker
	level.sync(true)

	// Edges alternate regardless of when the pin is read
	c.Assert(level.edge(), qt.IsFalse)
	c.Assert(level.edge(), qt.IsTrue)
	c.Assert(level.edge(), qt.IsFalse)

	// A quiet pin read corrects a missed pair of edges
	level.sync(true)
	c.Assert(level.edge(), qt.IsFalse)
}

func TestDriveDataLatchesError(t *testing.T) {
	c := qt.New(t)

	b := &Board{write: &stuckPin{}}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	c.Assert(b.WriteErr(), qt.IsNil)

	b.DriveData(true)
	b.DriveData(false)
	c.Assert(errors.Is(b.WriteErr(), errStuck), qt.IsTrue)
	c.Assert(errors.Is(b.Close(), errStuck), qt.IsTrue)
}

func TestDriveDataReadOnly(t *testing.T) {
	c := qt.New(t)

	b := &Board{}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.DriveData(true)
	c.Assert(b.CanWrite(), qt.IsFalse)
	c.Assert(b.WriteErr(), qt.IsNil)
	c.Assert(b.Close(), qt.IsNil)
}
