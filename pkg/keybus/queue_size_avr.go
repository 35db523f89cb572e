// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build avr

package keybus

// QueueCapacity is reduced on targets with little RAM.
const QueueCapacity = 10
