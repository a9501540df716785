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

// subscribeFromNotSubscribed implements SubscribeEvent while NotSubscribed,
// claiming a fresh transaction-log row.
func (sm *SubscriptionStateMachine[T]) subscribeFromNotSubscribed(maxSampleCount MaxSampleCount) error {
	return sm.acquireAndSubscribe(maxSampleCount, sm.control.TransactionLogs().Register)
}

// acquireAndSubscribe is the shared tail of subscribeFromNotSubscribed and
// SubscribeEventAfterCrash: claim a transaction-log row via acquire,
// validate the requested window against the slot array, admit the
// subscriber, build the slot collector, and arm any handler set before
// this call. Lands in Subscribed or SubscriptionPending depending on
// whether the provider is currently known to be available.
func (sm *SubscriptionStateMachine[T]) acquireAndSubscribe(maxSampleCount MaxSampleCount, acquire func() (*TransactionLogRegistrationGuard, error)) error {
	guard, err := acquire()
	if err != nil {
		return err
	}
	if err := guard.Log().SubscribeTransactionBegin(); err != nil {
		guard.Release()
		return err
	}

	if maxSampleCount == 0 || int(maxSampleCount) > sm.control.NumSlots() {
		_ = guard.Log().SubscribeTransactionAbort()
		guard.Release()
		return WrapError("SubscriptionStateMachine.SubscribeEvent", ErrMaxSampleCountNotRealizable)
	}

	if err := sm.control.RegisterSubscriber(); err != nil {
		_ = guard.Log().SubscribeTransactionAbort()
		guard.Release()
		return err
	}

	if err := guard.Log().SubscribeTransactionCommit(); err != nil {
		sm.control.UnregisterSubscriber()
		guard.Release()
		return err
	}

	sm.guard = guard
	sm.maxSampleCount = maxSampleCount
	sm.collector.Store(NewSlotCollector[T](sm.control, maxSampleCount, guard.Index()))

	if sm.pendingHandler != nil {
		sm.handlerMgr.SetReceiveHandler(sm.pendingHandler)
	}

	if sm.providerAvailable {
		sm.state = Subscribed
	} else {
		sm.state = SubscriptionPending
	}
	return nil
}

// subscribeFromSubscribed implements SubscribeEvent while Subscribed: a
// repeat subscribe with the same window is a harmless no-op; a different
// window is rejected outright rather than silently resized, since
// resizing would invalidate in-flight SamplePtrs from the old window.
func (sm *SubscriptionStateMachine[T]) subscribeFromSubscribed(maxSampleCount MaxSampleCount) error {
	if maxSampleCount == sm.maxSampleCount {
		sm.logger.Warnw("redundant subscribe with unchanged window ignored",
			"element", sm.ElementFqId, "max_sample_count", maxSampleCount)
		return nil
	}
	return WrapError("SubscriptionStateMachine.SubscribeEvent", ErrMaxSampleCountNotRealizable)
}

// subscribeFromPending implements SubscribeEvent while SubscriptionPending.
// A different window is rejected the same way as in Subscribed, but the
// state does not fall back to NotSubscribed — the subscription that is
// already in flight against the (currently offline) provider survives the
// rejected request. See DESIGN.md for why this surprising-looking behavior
// is retained rather than "fixed".
func (sm *SubscriptionStateMachine[T]) subscribeFromPending(maxSampleCount MaxSampleCount) error {
	if maxSampleCount == sm.maxSampleCount {
		sm.logger.Warnw("redundant subscribe with unchanged window ignored while pending",
			"element", sm.ElementFqId, "max_sample_count", maxSampleCount)
		return nil
	}
	return WrapError("SubscriptionStateMachine.SubscribeEvent", ErrMaxSampleCountNotRealizable)
}

// teardown runs the common Unsubscribe path from either Subscribed or
// SubscriptionPending back to NotSubscribed: journal the unsubscribe,
// release the admission slot, tear down the receive handler, drop the
// slot collector, and return the transaction-log row to the pool.
func (sm *SubscriptionStateMachine[T]) teardown() error {
	if err := sm.guard.Log().UnsubscribeTransactionBegin(); err != nil {
		return err
	}
	sm.control.UnregisterSubscriber()
	if err := sm.guard.Log().UnsubscribeTransactionCommit(); err != nil {
		return err
	}

	sm.handlerMgr.UnsetReceiveHandler()
	sm.collector.Store(nil)
	sm.maxSampleCount = 0
	sm.guard.Release()
	sm.guard = nil
	sm.state = NotSubscribed
	return nil
}
