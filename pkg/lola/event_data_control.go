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

// EventDataControl is the shared control block for one event: a fixed-size
// array of slots plus the parallel payload array they address, the most
// recently published timestamp, and the subscriber-count admission gate.
// Every method is safe for concurrent use by any number of goroutines in
// one process. The block is ordinary Go memory; it is not placed in a
// shmseg segment and is not shared across processes.
type EventDataControl[T any] struct {
	slots    []*slot
	payloads []T

	nextTimestamp atomic.Uint64
	subscribers   atomic.Int32
	maxSubscribers int32

	logSet *TransactionLogSet
}

// NewEventDataControl allocates a control block with cfg.Slots slots. Slots
// start Free with timestamp 0, ordered so the very first allocation does
// not race a reference scan that has never observed a Ready slot. It also
// allocates the TransactionLogSet backing every future subscriber of this
// event, sized to cfg.MaxSubscribers plus the reserved tracing row.
func NewEventDataControl[T any](cfg EndpointConfig) *EventDataControl[T] {
	n := cfg.Slots
	if n == 0 {
		n = 1
	}
	c := &EventDataControl[T]{
		slots:          make([]*slot, n),
		payloads:       make([]T, n),
		maxSubscribers: int32(cfg.MaxSubscribers),
	}
	for i := range c.slots {
		c.slots[i] = newSlot()
	}
	c.logSet = NewTransactionLogSet(int(cfg.MaxSubscribers)+1, n)
	return c
}

// TransactionLogs returns the TransactionLogSet backing this event's
// subscribers.
func (c *EventDataControl[T]) TransactionLogs() *TransactionLogSet {
	return c.logSet
}

// NumSlots returns the size of the slot array.
func (c *EventDataControl[T]) NumSlots() int {
	return len(c.slots)
}

// AllocateNextSlot claims a slot to write into and transitions it to
// Writing, returning the index the caller now owns exclusively. It prefers
// a genuinely Free slot; if none exists, it recycles the oldest Ready slot
// that currently has zero references, since no proxy holds such a slot
// and it is safe to overwrite. Returns ErrAllocationFailed if
// every slot is either Writing or Ready-with-references.
func (c *EventDataControl[T]) AllocateNextSlot() (SlotIndex, error) {
	for i, s := range c.slots {
		cur := s.load()
		if cur.State() != SlotFree {
			continue
		}
		next := packSlotStatus(SlotWriting, 0, cur.Timestamp())
		if s.compareAndSwap(cur, next) {
			return SlotIndex(i), nil
		}
	}

	oldestIdx := -1
	var oldest slotStatus
	for i, s := range c.slots {
		cur := s.load()
		if cur.State() != SlotReady || cur.RefCount() != 0 {
			continue
		}
		if oldestIdx == -1 || cur.Timestamp() < oldest.Timestamp() {
			oldestIdx = i
			oldest = cur
		}
	}
	if oldestIdx == -1 {
		return 0, WrapError("EventDataControl.AllocateNextSlot", ErrAllocationFailed)
	}
	s := c.slots[oldestIdx]
	next := packSlotStatus(SlotWriting, 0, oldest.Timestamp())
	if !s.compareAndSwap(oldest, next) {
		// Lost the race (referenced or recycled concurrently); caller
		// retries are cheap and expected under contention.
		return 0, WrapError("EventDataControl.AllocateNextSlot", ErrAllocationFailed)
	}
	return SlotIndex(oldestIdx), nil
}

// Payload returns a pointer to the payload backing idx, for the writer to
// fill in while the slot is in Writing state, or for a reader holding a
// reference while it is Ready. Callers must only dereference it while they
// hold the corresponding ownership (Writing) or reference (Ready + bumped
// refcount) on the slot.
func (c *EventDataControl[T]) Payload(idx SlotIndex) *T {
	return &c.payloads[idx]
}

// EventReady transitions idx from Writing to Ready, stamping it with ts,
// and records ts as the control block's most recently published
// timestamp (reference scans read the slot words, not this value).
// Returns ErrAlreadyPublished if idx is not currently owned by a writer.
func (c *EventDataControl[T]) EventReady(idx SlotIndex, ts Timestamp) error {
	s := c.slots[idx]
	cur := s.load()
	if cur.State() != SlotWriting {
		return WrapError("EventDataControl.EventReady", ErrAlreadyPublished)
	}
	next := packSlotStatus(SlotReady, cur.RefCount(), ts)
	if !s.compareAndSwap(cur, next) {
		return WrapError("EventDataControl.EventReady", ErrAlreadyPublished)
	}
	c.nextTimestamp.Store(uint64(ts))
	return nil
}

// Discard returns idx to Free without publishing, used when a
// SampleAllocateeHandle is dropped without Send.
func (c *EventDataControl[T]) Discard(idx SlotIndex) error {
	s := c.slots[idx]
	cur := s.load()
	if cur.State() != SlotWriting {
		return WrapError("EventDataControl.Discard", ErrAlreadyPublished)
	}
	next := packSlotStatus(SlotFree, 0, cur.Timestamp())
	if !s.compareAndSwap(cur, next) {
		return WrapError("EventDataControl.Discard", ErrAlreadyPublished)
	}
	return nil
}

// ReferenceNextEvent finds the Ready slot with the largest timestamp that
// is strictly greater than since and strictly less than bound, and bumps
// its refcount, returning the slot index and its timestamp. bound lets a
// SlotCollector walk strictly descending timestamps without referencing the
// same slot twice in one collection pass. Returns ErrNoNewSamples if no
// such slot exists. The reference is journaled in logIndex's row around
// the refcount bump, the same Begin/Commit/Abort sequence a caller driving
// the transaction log by hand would use.
func (c *EventDataControl[T]) ReferenceNextEvent(since Timestamp, logIndex TransactionLogIndex, bound Timestamp) (SlotIndex, Timestamp, error) {
	row := c.logSet.RowAt(logIndex)
	for {
		bestIdx := -1
		var best slotStatus
		for i, s := range c.slots {
			cur := s.load()
			if cur.State() != SlotReady {
				continue
			}
			if cur.Timestamp() <= since || cur.Timestamp() >= bound {
				continue
			}
			if bestIdx == -1 || cur.Timestamp() > best.Timestamp() {
				bestIdx = i
				best = cur
			}
		}
		if bestIdx == -1 {
			return 0, 0, WrapError("EventDataControl.ReferenceNextEvent", ErrNoNewSamples)
		}
		if err := row.ReferenceTransactionBegin(SlotIndex(bestIdx)); err != nil {
			return 0, 0, err
		}
		s := c.slots[bestIdx]
		next := best.withRefCount(best.RefCount() + 1)
		if s.compareAndSwap(best, next) {
			_ = row.ReferenceTransactionCommit(SlotIndex(bestIdx))
			return SlotIndex(bestIdx), best.Timestamp(), nil
		}
		_ = row.ReferenceTransactionAbort(SlotIndex(bestIdx))
		// Lost the race (publisher recycled or another proxy referenced
		// concurrently); retry the whole scan.
	}
}

// ReferenceSpecificEvent bumps the refcount of exactly idx if, and only
// if, it is currently Ready, journaling the reference in logIndex's row.
// Used by skeleton-side tracing to pin a sample it has just published for
// the duration of a trace call.
func (c *EventDataControl[T]) ReferenceSpecificEvent(idx SlotIndex, logIndex TransactionLogIndex) error {
	row := c.logSet.RowAt(logIndex)
	if err := row.ReferenceTransactionBegin(idx); err != nil {
		return err
	}
	s := c.slots[idx]
	for {
		cur := s.load()
		if cur.State() != SlotReady {
			_ = row.ReferenceTransactionAbort(idx)
			return WrapError("EventDataControl.ReferenceSpecificEvent", ErrNoNewSamples)
		}
		next := cur.withRefCount(cur.RefCount() + 1)
		if s.compareAndSwap(cur, next) {
			_ = row.ReferenceTransactionCommit(idx)
			return nil
		}
	}
}

// DereferenceEvent drops one reference on idx, journaling the release in
// logIndex's row. A slot whose refcount reaches zero while still Ready
// remains Ready (it may still be the newest sample a late-joining proxy
// should see); only the writer ever moves a slot back to Free, by
// recycling the oldest unreferenced Ready slot on its next allocation
// scan that finds no Free slot available. A Ready slot at refcount 0 is
// therefore eligible for that second AllocateNextSlot pass as soon as this
// call returns; DereferenceEvent itself never changes a slot's state.
func (c *EventDataControl[T]) DereferenceEvent(idx SlotIndex, logIndex TransactionLogIndex) error {
	row := c.logSet.RowAt(logIndex)
	if err := row.DereferenceTransactionBegin(idx); err != nil {
		return err
	}
	s := c.slots[idx]
	for {
		cur := s.load()
		if cur.State() != SlotReady || cur.RefCount() == 0 {
			return WrapError("EventDataControl.DereferenceEvent", ErrAlreadyPublished)
		}
		next := cur.withRefCount(cur.RefCount() - 1)
		if s.compareAndSwap(cur, next) {
			_ = row.DereferenceTransactionCommit(idx)
			return nil
		}
	}
}

// GetNumNewEvents reports how many Ready slots have a timestamp strictly
// greater than since, without taking any reference. Used by proxies that
// only want a count (e.g. for logging) without collecting samples.
func (c *EventDataControl[T]) GetNumNewEvents(since Timestamp) int {
	n := 0
	for _, s := range c.slots {
		cur := s.load()
		if cur.State() == SlotReady && cur.Timestamp() > since {
			n++
		}
	}
	return n
}

// RegisterSubscriber admits one more subscriber against MaxSubscribers,
// returning ErrMaxSubscribersExceeded if the endpoint is already at
// capacity. Paired with UnregisterSubscriber.
func (c *EventDataControl[T]) RegisterSubscriber() error {
	for {
		cur := c.subscribers.Load()
		if c.maxSubscribers > 0 && cur >= c.maxSubscribers {
			return WrapError("EventDataControl.RegisterSubscriber", ErrMaxSubscribersExceeded)
		}
		if c.subscribers.CompareAndSwap(cur, cur+1) {
			return nil
		}
	}
}

// UnregisterSubscriber releases one admission slot taken by
// RegisterSubscriber.
func (c *EventDataControl[T]) UnregisterSubscriber() {
	c.subscribers.Add(-1)
}
