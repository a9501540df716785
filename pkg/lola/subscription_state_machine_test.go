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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStateMachine(t *testing.T) (*SubscriptionStateMachine[payload], *EventDataControl[payload]) {
	t.Helper()
	control := NewEventDataControl[payload](EndpointConfig{Slots: 4, MaxSubscribers: 2})
	notifier := NewChannelNotifier()
	return NewSubscriptionStateMachine[payload](control, notifier, 1234), control
}

func TestSubscribeFromNotSubscribedSucceeds(t *testing.T) {
	sm, _ := newTestStateMachine(t)
	require.NoError(t, sm.SubscribeEvent(4))
	assert.Equal(t, Subscribed, sm.State())
	assert.Equal(t, MaxSampleCount(4), sm.GetMaxSampleCount())
	assert.NotNil(t, sm.GetSlotCollectorLockFree())
}

func TestSubscribeRejectsWindowLargerThanSlots(t *testing.T) {
	sm, _ := newTestStateMachine(t)
	err := sm.SubscribeEvent(100)
	assert.ErrorIs(t, err, ErrMaxSampleCountNotRealizable)
	assert.Equal(t, NotSubscribed, sm.State())
}

func TestUnsubscribeReturnsToNotSubscribed(t *testing.T) {
	sm, _ := newTestStateMachine(t)
	require.NoError(t, sm.SubscribeEvent(4))
	require.NoError(t, sm.UnsubscribeEvent())
	assert.Equal(t, NotSubscribed, sm.State())
	assert.Nil(t, sm.GetSlotCollectorLockFree())
}

func TestUnsubscribeWhileNotSubscribedIsNoop(t *testing.T) {
	sm, _ := newTestStateMachine(t)
	assert.NoError(t, sm.UnsubscribeEvent())
}

func TestStopOfferThenReOfferCycle(t *testing.T) {
	sm, _ := newTestStateMachine(t)
	require.NoError(t, sm.SubscribeEvent(4))

	sm.StopOfferEvent()
	assert.Equal(t, SubscriptionPending, sm.State())
	// The slot collector survives a StopOffer; only the receive handler
	// dispatch is rearmed on ReOffer.
	assert.NotNil(t, sm.GetSlotCollectorLockFree())

	sm.ReOfferEvent(5678)
	assert.Equal(t, Subscribed, sm.State())
}

func TestStopOfferWhilePendingIsFatal(t *testing.T) {
	sm, _ := newTestStateMachine(t)
	require.NoError(t, sm.SubscribeEvent(4))
	sm.StopOfferEvent() // -> SubscriptionPending

	var called bool
	prev := fatalHook
	fatalHook = func() { called = true }
	defer func() { fatalHook = prev }()

	sm.StopOfferEvent() // contract violation while already Pending
	assert.True(t, called)
}

func TestSubscribeWhilePendingSameWindowIsNoop(t *testing.T) {
	sm, _ := newTestStateMachine(t)
	require.NoError(t, sm.SubscribeEvent(4))
	sm.StopOfferEvent()

	assert.NoError(t, sm.SubscribeEvent(4))
	assert.Equal(t, SubscriptionPending, sm.State())
}

func TestSubscribeWhilePendingDifferentWindowStaysPending(t *testing.T) {
	sm, _ := newTestStateMachine(t)
	require.NoError(t, sm.SubscribeEvent(4))
	sm.StopOfferEvent()

	err := sm.SubscribeEvent(2)
	assert.ErrorIs(t, err, ErrMaxSampleCountNotRealizable)
	// Retained-though-surprising behavior: stays Pending, does not fall
	// back to NotSubscribed.
	assert.Equal(t, SubscriptionPending, sm.State())
}

func TestSubscribeWhileSubscribedDifferentWindowRejected(t *testing.T) {
	sm, _ := newTestStateMachine(t)
	require.NoError(t, sm.SubscribeEvent(4))

	err := sm.SubscribeEvent(2)
	assert.ErrorIs(t, err, ErrMaxSampleCountNotRealizable)
	assert.Equal(t, Subscribed, sm.State())
}

func TestMaxSubscribersExceeded(t *testing.T) {
	control := NewEventDataControl[payload](EndpointConfig{Slots: 4, MaxSubscribers: 1})
	notifier := NewChannelNotifier()

	sm1 := NewSubscriptionStateMachine[payload](control, notifier, 1)
	require.NoError(t, sm1.SubscribeEvent(4))

	sm2 := NewSubscriptionStateMachine[payload](control, notifier, 2)
	err := sm2.SubscribeEvent(4)
	assert.ErrorIs(t, err, ErrMaxSubscribersExceeded)
}

func TestSubscribeAfterCrashRecoversOutstandingReference(t *testing.T) {
	control := NewEventDataControl[payload](EndpointConfig{Slots: 4, MaxSubscribers: 2})
	notifier := NewChannelNotifier()

	sm1 := NewSubscriptionStateMachine[payload](control, notifier, 1)
	require.NoError(t, sm1.SubscribeEvent(4))

	idx, err := control.AllocateNextSlot()
	require.NoError(t, err)
	require.NoError(t, control.EventReady(idx, 1))

	samples, err := sm1.GetSlotCollectorLockFree().GetNewSamplesSlotIndices(1)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	// sm1 crashes here without releasing the sample or unsubscribing: the
	// slot stays referenced and its transaction-log row stays occupied.
	assert.Equal(t, 1, int(control.slots[idx].load().RefCount()))

	priorIndex, ok := sm1.GetTransactionLogIndex()
	require.True(t, ok)
	priorID, ok := sm1.GetTransactionLogID()
	require.True(t, ok)

	sm2 := NewSubscriptionStateMachine[payload](control, notifier, 2)
	require.NoError(t, sm2.SubscribeEventAfterCrash(4, priorIndex, priorID))
	assert.Equal(t, Subscribed, sm2.State())

	// Recovery ran: the stranded reference was released exactly once,
	// leaving the slot's refcount at zero again — a clean state.
	assert.Equal(t, 0, int(control.slots[idx].load().RefCount()))

	idx2, ok := sm2.GetTransactionLogIndex()
	require.True(t, ok)
	assert.Equal(t, priorIndex, idx2)

	id2, ok := sm2.GetTransactionLogID()
	require.True(t, ok)
	assert.False(t, id2.Equal(priorID))
}

func TestSubscribeAfterCrashRejectsMismatchedID(t *testing.T) {
	control := NewEventDataControl[payload](EndpointConfig{Slots: 4, MaxSubscribers: 2})
	notifier := NewChannelNotifier()

	sm1 := NewSubscriptionStateMachine[payload](control, notifier, 1)
	require.NoError(t, sm1.SubscribeEvent(4))
	priorIndex, ok := sm1.GetTransactionLogIndex()
	require.True(t, ok)

	sm2 := NewSubscriptionStateMachine[payload](control, notifier, 2)
	err := sm2.SubscribeEventAfterCrash(4, priorIndex, NewTransactionLogId())
	assert.ErrorIs(t, err, ErrCouldNotRestartProxy)
}

func TestReceiveHandlerFiresOnNotify(t *testing.T) {
	control := NewEventDataControl[payload](EndpointConfig{Slots: 4, MaxSubscribers: 1})
	notifier := NewChannelNotifier()
	sm := NewSubscriptionStateMachine[payload](control, notifier, 1)
	require.NoError(t, sm.SubscribeEvent(4))

	done := make(chan struct{}, 1)
	sm.SetReceiveHandler(func() {
		select {
		case done <- struct{}{}:
		default:
		}
	})

	notifier.Notify()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("receive handler was not invoked")
	}
}
