// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keybus

// tick runs every TimerPeriod whether or not the bus is active. Once the
// clock has been quiet for IdleThreshold the frame in progress is complete.
func (i *Interface) tick() {
	now := i.board.Now()

	i.capMu.Lock()
	defer i.capMu.Unlock()

	c := &i.bus
	if c.inProgress() && now-c.lastEdge > IdleThreshold {
		i.endFrameLocked()
	}
}

// endFrameLocked hands the completed frames off and resets the counters for
// the next cycle. When the queue is full the newest frame is dropped and the
// overflow is latched.
func (i *Interface) endFrameLocked() {
	c := &i.bus

	if c.panel.frame.Bits >= minFrameBits {
		if !i.panelQ.push(&c.panel.frame) {
			i.bufferOverflow.Store(true)
		}
		if i.cfg.ProcessDeviceData && c.device.frame.Bits >= minFrameBits {
			d := DeviceFrame{Frame: c.device.frame, Panel: c.panel.frame.Data[0]}
			if !i.deviceQ.push(&d) {
				i.deviceDropped.Add(1)
			}
		}
	}

	c.panel.reset()
	c.device.reset()

	// Arm the writer for the next cycle
	w := &i.w
	if w.pending.Load() && !w.wroteAsterisk.Load() && !w.alarmRepeat {
		w.ready.Store(true)
	}
}
