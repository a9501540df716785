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

import "sync"

// ReceiveHandler is a user callback invoked once per notification that new
// samples are available. It must not block for long; it typically drains
// a SlotCollector and hands samples off to application code.
type ReceiveHandler func()

// EventReceiveHandlerManager owns the lifetime of a registered
// ReceiveHandler against a ChannelNotifier: it starts a dispatch loop on
// SetReceiveHandler, tears it down on UnsetReceiveHandler, and lets the
// owning subscription re-point the handler across a stop_offer/re_offer
// cycle without the caller re-registering.
type EventReceiveHandlerManager struct {
	notifier *ChannelNotifier

	mu      sync.Mutex
	handler ReceiveHandler
	stop    chan struct{}
	pid     PID
}

// NewEventReceiveHandlerManager builds a manager bound to notifier. No
// handler is registered yet.
func NewEventReceiveHandlerManager(notifier *ChannelNotifier) *EventReceiveHandlerManager {
	return &EventReceiveHandlerManager{notifier: notifier}
}

// SetReceiveHandler registers handler and starts dispatching it on every
// notification. Replaces any previously registered handler.
func (m *EventReceiveHandlerManager) SetReceiveHandler(handler ReceiveHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.handler = handler
	stop := make(chan struct{})
	m.stop = stop
	ch := m.notifier.Subscribe()
	go func() {
		for {
			select {
			case <-stop:
				m.notifier.Unsubscribe(ch)
				return
			case <-ch:
				m.mu.Lock()
				h := m.handler
				m.mu.Unlock()
				if h != nil {
					h()
				}
			}
		}
	}()
}

// UnsetReceiveHandler stops dispatching and forgets the registered
// handler. Safe to call when none is registered.
func (m *EventReceiveHandlerManager) UnsetReceiveHandler() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.handler = nil
}

func (m *EventReceiveHandlerManager) stopLocked() {
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
}

// HasReceiveHandler reports whether a handler is currently registered.
func (m *EventReceiveHandlerManager) HasReceiveHandler() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handler != nil
}

// UpdatePID records the PID of the provider currently backing this
// subscription, refreshed on every re_offer. Stored purely for logging.
func (m *EventReceiveHandlerManager) UpdatePID(pid PID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pid = pid
}

// PID returns the last PID recorded via UpdatePID.
func (m *EventReceiveHandlerManager) PID() PID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pid
}
