// Copyright (c) 2024 Contributors to the Eclipse Foundation
//
// See the NOTICE file(s) distributed with this work for additional
// information regarding copyright ownership.
//
// This program and the accompanying materials are made available under the
// terms of the Apache Software License 2.0 which is available at
// https://www.apache.org/licenses/LICENSE-2.0, or the MIT license
// which is available at https://opensource.org/licenses/MIT.
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package lola

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publishN(t *testing.T, control *EventDataControl[payload], n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		idx, err := control.AllocateNextSlot()
		require.NoError(t, err)
		control.Payload(idx).Value = i
		require.NoError(t, control.EventReady(idx, Timestamp(control.nextTimestamp.Load()+1)))
	}
}

func TestNewSlotCollectorZeroMaxSlotsIsFatal(t *testing.T) {
	control := NewEventDataControl[payload](EndpointConfig{Slots: 4, MaxSubscribers: 1})

	var called bool
	prev := fatalHook
	fatalHook = func() { called = true }
	defer func() { fatalHook = prev }()

	NewSlotCollector[payload](control, 0, 1)
	assert.True(t, called)
}

func TestSlotCollectorOrdersOldestFirst(t *testing.T) {
	control := NewEventDataControl[payload](EndpointConfig{Slots: 4, MaxSubscribers: 1})
	publishN(t, control, 3)

	collector := NewSlotCollector[payload](control, 4, 1)
	samples, err := collector.GetNewSamplesSlotIndices(4)
	require.NoError(t, err)
	require.Len(t, samples, 3)

	for i, s := range samples {
		assert.Equal(t, Timestamp(i+1), s.Timestamp())
		require.NoError(t, s.Release())
	}
}

func TestSlotCollectorRespectsMaxSlots(t *testing.T) {
	control := NewEventDataControl[payload](EndpointConfig{Slots: 4, MaxSubscribers: 1})
	publishN(t, control, 3)

	collector := NewSlotCollector[payload](control, 2, 1)
	samples, err := collector.GetNewSamplesSlotIndices(4)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	// Bounded to 2, but still the two most-recently published relative to
	// what got referenced — oldest of the referenced batch first.
	assert.Less(t, samples[0].Timestamp(), samples[1].Timestamp())
	for _, s := range samples {
		require.NoError(t, s.Release())
	}
}

func TestSlotCollectorOnlySeesNewSamplesOnSecondCall(t *testing.T) {
	control := NewEventDataControl[payload](EndpointConfig{Slots: 4, MaxSubscribers: 1})
	publishN(t, control, 2)

	collector := NewSlotCollector[payload](control, 4, 1)
	first, err := collector.GetNewSamplesSlotIndices(4)
	require.NoError(t, err)
	require.Len(t, first, 2)
	for _, s := range first {
		require.NoError(t, s.Release())
	}

	assert.Equal(t, 0, collector.GetNumNewSamplesAvailable())

	publishN(t, control, 1)
	assert.Equal(t, 1, collector.GetNumNewSamplesAvailable())

	second, err := collector.GetNewSamplesSlotIndices(4)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, Timestamp(3), second[0].Timestamp())
	require.NoError(t, second[0].Release())
}
