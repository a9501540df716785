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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Value int
}

func TestAllocatePublishReference(t *testing.T) {
	control := NewEventDataControl[payload](EndpointConfig{Slots: 2, MaxSubscribers: 1})

	idx, err := control.AllocateNextSlot()
	require.NoError(t, err)
	control.Payload(idx).Value = 42

	require.NoError(t, control.EventReady(idx, 1))

	refIdx, ts, err := control.ReferenceNextEvent(0, 0, MaxTimestamp)
	require.NoError(t, err)
	assert.Equal(t, idx, refIdx)
	assert.Equal(t, Timestamp(1), ts)
	assert.Equal(t, 42, control.Payload(refIdx).Value)

	require.NoError(t, control.DereferenceEvent(refIdx, 0))
}

func TestAllocateExhaustion(t *testing.T) {
	control := NewEventDataControl[payload](EndpointConfig{Slots: 1, MaxSubscribers: 1})

	idx, err := control.AllocateNextSlot()
	require.NoError(t, err)
	require.NoError(t, control.EventReady(idx, 1))

	// Slot is Ready with refcount 0: a fresh allocation is allowed to
	// recycle it since nothing references it.
	idx2, err := control.AllocateNextSlot()
	require.NoError(t, err)
	assert.Equal(t, idx, idx2)
}

func TestAllocateExhaustionWhileReferenced(t *testing.T) {
	control := NewEventDataControl[payload](EndpointConfig{Slots: 1, MaxSubscribers: 1})

	idx, err := control.AllocateNextSlot()
	require.NoError(t, err)
	require.NoError(t, control.EventReady(idx, 1))

	_, _, err = control.ReferenceNextEvent(0, 0, MaxTimestamp)
	require.NoError(t, err)

	_, err = control.AllocateNextSlot()
	assert.ErrorIs(t, err, ErrAllocationFailed)
}

func TestEventReadyRejectsNonWritingSlot(t *testing.T) {
	control := NewEventDataControl[payload](EndpointConfig{Slots: 1, MaxSubscribers: 1})
	err := control.EventReady(0, 1)
	assert.True(t, errors.Is(err, ErrAlreadyPublished))
}

func TestDiscardReturnsSlotToFree(t *testing.T) {
	control := NewEventDataControl[payload](EndpointConfig{Slots: 1, MaxSubscribers: 1})
	idx, err := control.AllocateNextSlot()
	require.NoError(t, err)
	require.NoError(t, control.Discard(idx))

	idx2, err := control.AllocateNextSlot()
	require.NoError(t, err)
	assert.Equal(t, idx, idx2)
}

func TestSubscriberAdmission(t *testing.T) {
	control := NewEventDataControl[payload](EndpointConfig{Slots: 1, MaxSubscribers: 1})
	require.NoError(t, control.RegisterSubscriber())
	assert.ErrorIs(t, control.RegisterSubscriber(), ErrMaxSubscribersExceeded)
	control.UnregisterSubscriber()
	require.NoError(t, control.RegisterSubscriber())
}

func TestReferenceNextEventNoNewSamples(t *testing.T) {
	control := NewEventDataControl[payload](EndpointConfig{Slots: 1, MaxSubscribers: 1})
	_, _, err := control.ReferenceNextEvent(0, 0, MaxTimestamp)
	assert.ErrorIs(t, err, ErrNoNewSamples)
}
