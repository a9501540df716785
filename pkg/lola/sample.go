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

import "sync/atomic"

// SampleAllocateeHandle owns a Writing slot exclusively until Send or
// Discard is called, or the handle is garbage collected without either —
// in which case the underlying slot leaks in the Writing state. Go has no
// destructors, so this handle does not attempt RAII-on-GC; callers must
// call Send or Discard themselves, typically via defer.
type SampleAllocateeHandle[T any] struct {
	control *EventDataControl[T]
	idx     SlotIndex
	used    atomic.Bool
}

// NewSampleAllocateeHandle wraps a freshly allocated, Writing-state slot.
func NewSampleAllocateeHandle[T any](control *EventDataControl[T], idx SlotIndex) *SampleAllocateeHandle[T] {
	return &SampleAllocateeHandle[T]{control: control, idx: idx}
}

// Payload returns a pointer to the slot's payload for in-place writes.
// Valid until Send or Discard is called.
func (h *SampleAllocateeHandle[T]) Payload() *T {
	return h.control.Payload(h.idx)
}

// Index returns the slot index this handle owns, mainly for logging and
// tracing trace-point data.
func (h *SampleAllocateeHandle[T]) Index() SlotIndex {
	return h.idx
}

// Send publishes the slot with the given timestamp, transitioning it to
// Ready and making it visible to all current and future proxies. Returns
// ErrHandleConsumed if called more than once.
func (h *SampleAllocateeHandle[T]) Send(ts Timestamp) error {
	if !h.used.CompareAndSwap(false, true) {
		return WrapError("SampleAllocateeHandle.Send", ErrHandleConsumed)
	}
	return h.control.EventReady(h.idx, ts)
}

// Discard abandons the write, returning the slot to Free without
// publishing. Returns ErrHandleConsumed if called more than once or after
// Send.
func (h *SampleAllocateeHandle[T]) Discard() error {
	if !h.used.CompareAndSwap(false, true) {
		return WrapError("SampleAllocateeHandle.Discard", ErrHandleConsumed)
	}
	return h.control.Discard(h.idx)
}

// SamplePtr is a borrowed, refcounted handle onto a Ready slot, obtained
// via a SlotCollector. Exactly one Release call is expected per SamplePtr; calling it
// more than once is a no-op past the first.
type SamplePtr[T any] struct {
	control   *EventDataControl[T]
	idx       SlotIndex
	logIndex  TransactionLogIndex
	timestamp Timestamp
	released  atomic.Bool
}

// NewSamplePtr wraps an already-referenced Ready slot.
func NewSamplePtr[T any](control *EventDataControl[T], idx SlotIndex, logIndex TransactionLogIndex, ts Timestamp) *SamplePtr[T] {
	return &SamplePtr[T]{control: control, idx: idx, logIndex: logIndex, timestamp: ts}
}

// Payload returns a pointer to the referenced slot's payload. Valid until
// Release.
func (p *SamplePtr[T]) Payload() *T {
	return p.control.Payload(p.idx)
}

// Index returns the slot index this handle references.
func (p *SamplePtr[T]) Index() SlotIndex {
	return p.idx
}

// Timestamp returns the publish timestamp recorded when this reference
// was taken.
func (p *SamplePtr[T]) Timestamp() Timestamp {
	return p.timestamp
}

// Release drops the reference this SamplePtr holds. Safe to call multiple
// times; only the first call has effect.
func (p *SamplePtr[T]) Release() error {
	if !p.released.CompareAndSwap(false, true) {
		return nil
	}
	return p.control.DereferenceEvent(p.idx, p.logIndex)
}
