// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build linux

package gpiodboard

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestErrLatchKeepsFirst(t *testing.T) {
	c := qt.New(t)

	var l errLatch
	c.Assert(l.get(), qt.IsNil)

	first := errors.New("line released")
	l.set(first)
	l.set(errors.New("device gone"))
	c.Assert(l.get(), qt.Equals, first)
}

func TestDriveDataReadOnly(t *testing.T) {
	c := qt.New(t)

	b := &Board{}
	b.DriveData(true)
	c.Assert(b.CanWrite(), qt.IsFalse)
	c.Assert(b.WriteErr(), qt.IsNil)
}
