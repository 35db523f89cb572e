// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !avr

package keybus

// QueueCapacity is the number of completed panel frames held between polls.
const QueueCapacity = 50
