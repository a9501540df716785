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

// TransactionLogSet is the fixed-capacity table of per-subscriber
// transaction logs backing one event, sized at construction (by
// NewEventDataControl: MaxSubscribers proxy rows plus the sentinel row) so
// no goroutine ever allocates a row under load. Row 0 is
// reserved as the sentinel row used by tracing's own skeleton-side log;
// proxies are handed rows 1..len-1.
type TransactionLogSet struct {
	mu       sync.Mutex
	rows     []*TransactionLog
	occupied []bool
	numSlots int
}

// NewTransactionLogSet allocates capacity rows, each able to journal
// numSlots slot references, with row 0 reserved for tracing.
func NewTransactionLogSet(capacity int, numSlots int) *TransactionLogSet {
	if capacity < 1 {
		capacity = 1
	}
	ts := &TransactionLogSet{
		rows:     make([]*TransactionLog, capacity),
		occupied: make([]bool, capacity),
		numSlots: numSlots,
	}
	for i := range ts.rows {
		ts.rows[i] = NewTransactionLog(numSlots)
	}
	ts.occupied[0] = true // tracing sentinel row, always reserved
	return ts
}

// TracingLog returns the reserved sentinel row used by the skeleton-side
// tracing runtime.
func (ts *TransactionLogSet) TracingLog() *TransactionLog {
	return ts.rows[0]
}

// Register claims the first free row for a new proxy subscription,
// returning a guard whose Release gives the row back. Returns
// ErrMaxSubscribersExceeded if every row is taken. A row that was freed
// by a clean Release is already idle, so this never needs to roll
// anything back; a row a crashed incarnation never released stays
// occupied and out of Register's reach on purpose — recovering it is
// Attach's job, since only the recovering proxy knows which row to ask
// for.
func (ts *TransactionLogSet) Register() (*TransactionLogRegistrationGuard, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for i := 1; i < len(ts.rows); i++ {
		if ts.occupied[i] {
			continue
		}
		return ts.attachLocked(TransactionLogIndex(i), noopDereference, noopUnsubscribe)
	}
	return nil, WrapError("TransactionLogSet.Register", ErrMaxSubscribersExceeded)
}

// Attach reclaims the specific row at idx for a proxy that already knows
// it held that row before a crash. If expected is non-zero, it must match
// the row's current incarnation id or Attach fails with
// ErrCouldNotRestartProxy — guarding against reattaching to a row some
// unrelated subscriber has since taken over. Any reference or
// subscribe/unsubscribe transaction the crashed incarnation left
// mid-flight is rolled back via dereference/unsubscribe before the row is
// handed back under a freshly minted TransactionLogId.
func (ts *TransactionLogSet) Attach(idx TransactionLogIndex, expected TransactionLogId, dereference func(SlotIndex) error, unsubscribe func() error) (*TransactionLogRegistrationGuard, error) {
	if idx == 0 || int(idx) >= len(ts.rows) {
		return nil, WrapError("TransactionLogSet.Attach", ErrMaxSubscribersExceeded)
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !expected.IsZero() && !ts.rows[idx].Id().Equal(expected) {
		return nil, WrapError("TransactionLogSet.Attach", ErrCouldNotRestartProxy)
	}
	return ts.attachLocked(idx, dereference, unsubscribe)
}

// attachLocked rolls back idx's row if it is dirty, then hands it to the
// caller under a fresh incarnation id. Must be called with ts.mu held.
func (ts *TransactionLogSet) attachLocked(idx TransactionLogIndex, dereference func(SlotIndex) error, unsubscribe func() error) (*TransactionLogRegistrationGuard, error) {
	row := ts.rows[idx]
	if row.ContainsTransactions() {
		if err := row.RollbackProxyElementLog(dereference, unsubscribe); err != nil {
			return nil, WrapError("TransactionLogSet.attachLocked", err)
		}
	}
	ts.occupied[idx] = true
	id := row.Reincarnate()
	return &TransactionLogRegistrationGuard{set: ts, index: idx, id: id}, nil
}

func noopDereference(SlotIndex) error { return nil }
func noopUnsubscribe() error          { return nil }

// RowAt returns the log at idx without claiming or releasing it, used by
// EventDataControl to journal references in a caller's row and by a
// registration guard to reach its own log.
func (ts *TransactionLogSet) RowAt(idx TransactionLogIndex) *TransactionLog {
	return ts.rows[idx]
}

// IsOccupied reports whether idx is currently claimed.
func (ts *TransactionLogSet) IsOccupied(idx TransactionLogIndex) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.occupied[idx]
}

func (ts *TransactionLogSet) release(idx TransactionLogIndex) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if idx == 0 {
		return // sentinel row is never released
	}
	ts.occupied[idx] = false
}

// TransactionLogRegistrationGuard holds one TransactionLogSet row for the
// lifetime of a subscription, releasing it back to the pool exactly once.
type TransactionLogRegistrationGuard struct {
	set      *TransactionLogSet
	index    TransactionLogIndex
	id       TransactionLogId
	released bool
}

// Index returns the row this guard holds.
func (g *TransactionLogRegistrationGuard) Index() TransactionLogIndex {
	return g.index
}

// ID returns the incarnation id minted for this guard's row when it was
// attached. A caller that wants to survive its own crash and reattach to
// the same row should remember this and present it to a later Attach
// call as the expected id.
func (g *TransactionLogRegistrationGuard) ID() TransactionLogId {
	return g.id
}

// Log returns the TransactionLog backing this guard's row.
func (g *TransactionLogRegistrationGuard) Log() *TransactionLog {
	return g.set.RowAt(g.index)
}

// Release gives the row back to the set. Safe to call more than once.
func (g *TransactionLogRegistrationGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.set.release(g.index)
}
