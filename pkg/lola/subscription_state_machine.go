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
	"sync"
	"sync/atomic"
)

// SubscriptionState is one of the three states a proxy's subscription to
// one event can be in.
type SubscriptionState int

const (
	NotSubscribed SubscriptionState = iota
	SubscriptionPending
	Subscribed
)

func (s SubscriptionState) String() string {
	switch s {
	case NotSubscribed:
		return "NotSubscribed"
	case SubscriptionPending:
		return "SubscriptionPending"
	case Subscribed:
		return "Subscribed"
	default:
		return "Unknown"
	}
}

// SubscriptionStateMachine drives one proxy's subscription lifecycle
// against one event: subscribe/unsubscribe requests from the application,
// and stop_offer/re_offer notifications from service discovery, are
// serialized through a mutex, while the hot-path slot collector getter
// stays lock-free so a receive handler running concurrently with a
// subscribe/unsubscribe call never blocks on it.
type SubscriptionStateMachine[T any] struct {
	control *EventDataControl[T]
	notifier *ChannelNotifier
	handlerMgr *EventReceiveHandlerManager
	logger  Logger

	ElementFqId ElementFqId

	mu                sync.Mutex
	state             SubscriptionState
	maxSampleCount     MaxSampleCount
	guard             *TransactionLogRegistrationGuard
	providerAvailable bool
	pendingHandler    ReceiveHandler

	collector atomic.Pointer[SlotCollector[T]]
}

// NewSubscriptionStateMachine builds a state machine in NotSubscribed,
// assuming the provider is already available (the common case: a proxy
// usually learns of a service instance via discovery before constructing
// its subscription machinery). Call StopOfferEvent immediately after
// construction if that is not true for a given deployment.
func NewSubscriptionStateMachine[T any](control *EventDataControl[T], notifier *ChannelNotifier, pid PID) *SubscriptionStateMachine[T] {
	sm := &SubscriptionStateMachine[T]{
		control:           control,
		notifier:          notifier,
		handlerMgr:        NewEventReceiveHandlerManager(notifier),
		logger:            nopLogger,
		state:             NotSubscribed,
		providerAvailable: true,
	}
	sm.handlerMgr.UpdatePID(pid)
	return sm
}

// SetLogger installs a Logger used for warnings this state machine emits
// on benign but noteworthy transitions (e.g. a redundant re-subscribe).
func (sm *SubscriptionStateMachine[T]) SetLogger(logger Logger) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.logger = orNop(logger)
}

// State returns the current subscription state.
func (sm *SubscriptionStateMachine[T]) State() SubscriptionState {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state
}

// GetMaxSampleCount returns the window size negotiated at the last
// successful Subscribe call, or zero if never subscribed.
func (sm *SubscriptionStateMachine[T]) GetMaxSampleCount() MaxSampleCount {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.maxSampleCount
}

// GetTransactionLogIndex returns the row this subscription currently
// holds, or false if NotSubscribed.
func (sm *SubscriptionStateMachine[T]) GetTransactionLogIndex() (TransactionLogIndex, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.guard == nil {
		return 0, false
	}
	return sm.guard.Index(), true
}

// GetSlotCollectorLockFree returns the current SlotCollector without
// taking the state mutex, so a receive handler's hot path never contends
// with a concurrent Subscribe/Unsubscribe/StopOffer/ReOffer call. Returns
// nil while NotSubscribed. Callers rely on the documented assumption that
// at most one goroutine drives a given proxy endpoint at a time — this
// getter itself is safe to call from any goroutine, but the SlotCollector
// it returns is not meant to be shared across concurrent collectors.
func (sm *SubscriptionStateMachine[T]) GetSlotCollectorLockFree() *SlotCollector[T] {
	return sm.collector.Load()
}

// SetReceiveHandler registers handler to run on every notification. If
// called while NotSubscribed, the handler is held and applied
// automatically the next time SubscribeEvent succeeds, matching the
// production system's allowance for an application to arm its handler
// before subscribing.
func (sm *SubscriptionStateMachine[T]) SetReceiveHandler(handler ReceiveHandler) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.pendingHandler = handler
	if sm.state != NotSubscribed {
		sm.handlerMgr.SetReceiveHandler(handler)
	}
}

// UnsetReceiveHandler removes any registered handler, pending or active.
func (sm *SubscriptionStateMachine[T]) UnsetReceiveHandler() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.pendingHandler = nil
	sm.handlerMgr.UnsetReceiveHandler()
}

// GetTransactionLogID returns the incarnation id of the row this
// subscription currently holds, or false if NotSubscribed. A caller that
// wants to reattach to the same row after a crash should persist this
// alongside GetTransactionLogIndex and present both to
// SubscribeEventAfterCrash.
func (sm *SubscriptionStateMachine[T]) GetTransactionLogID() (TransactionLogId, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.guard == nil {
		return TransactionLogId{}, false
	}
	return sm.guard.ID(), true
}

// SubscribeEvent requests (or updates) a subscription with the given
// window size. See subscription_states.go for the per-state behavior.
func (sm *SubscriptionStateMachine[T]) SubscribeEvent(maxSampleCount MaxSampleCount) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	switch sm.state {
	case NotSubscribed:
		return sm.subscribeFromNotSubscribed(maxSampleCount)
	case SubscriptionPending:
		return sm.subscribeFromPending(maxSampleCount)
	case Subscribed:
		return sm.subscribeFromSubscribed(maxSampleCount)
	default:
		return WrapError("SubscriptionStateMachine.SubscribeEvent", ErrNotSubscribed)
	}
}

// SubscribeEventAfterCrash behaves like SubscribeEvent from NotSubscribed,
// except it reattaches to priorIndex — the transaction-log row this same
// logical subscriber held before a crash — instead of claiming a fresh
// row. Any reference or subscribe/unsubscribe transaction the crashed
// incarnation left mid-flight is rolled back before the row is reused.
// priorID, if non-zero, must match the row's current incarnation id or
// the call fails with ErrCouldNotRestartProxy, guarding against
// reattaching to a row some unrelated subscriber has since taken over.
func (sm *SubscriptionStateMachine[T]) SubscribeEventAfterCrash(maxSampleCount MaxSampleCount, priorIndex TransactionLogIndex, priorID TransactionLogId) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.state != NotSubscribed {
		return WrapError("SubscriptionStateMachine.SubscribeEventAfterCrash", ErrNotSubscribed)
	}
	return sm.acquireAndSubscribe(maxSampleCount, func() (*TransactionLogRegistrationGuard, error) {
		return sm.control.TransactionLogs().Attach(priorIndex, priorID,
			func(idx SlotIndex) error { return sm.control.DereferenceEvent(idx, priorIndex) },
			func() error { sm.control.UnregisterSubscriber(); return nil },
		)
	})
}

// UnsubscribeEvent tears a subscription down. See subscription_states.go.
func (sm *SubscriptionStateMachine[T]) UnsubscribeEvent() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	switch sm.state {
	case NotSubscribed:
		return nil
	case SubscriptionPending, Subscribed:
		return sm.teardown()
	default:
		return nil
	}
}

// StopOfferEvent notifies the state machine that the provider withdrew
// its service instance. See subscription_states.go.
func (sm *SubscriptionStateMachine[T]) StopOfferEvent() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	switch sm.state {
	case NotSubscribed:
		sm.providerAvailable = false
	case Subscribed:
		sm.providerAvailable = false
		sm.state = SubscriptionPending
	case SubscriptionPending:
		Fatal(sm.logger, "SubscriptionStateMachine.StopOfferEvent", ErrNotSubscribed)
	}
}

// ReOfferEvent notifies the state machine that a (possibly new) provider
// instance is now available. See subscription_states.go.
func (sm *SubscriptionStateMachine[T]) ReOfferEvent(pid PID) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.handlerMgr.UpdatePID(pid)
	switch sm.state {
	case NotSubscribed:
		sm.providerAvailable = true
	case Subscribed:
		sm.logger.Warnw("re_offer received while already subscribed", "element", sm.ElementFqId)
	case SubscriptionPending:
		sm.providerAvailable = true
		if sm.pendingHandler != nil {
			sm.handlerMgr.SetReceiveHandler(sm.pendingHandler)
		}
		sm.state = Subscribed
	}
}
