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
	"sync/atomic"

	"go.uber.org/multierr"
)

// transactionLogRow is one (Begin, End) bit pair. The happy path for a
// reference-counted resource visits, in order:
//
//	(0,0) idle -> (1,0) begin -> (1,1) commit -> (0,1) dereference-begin -> (0,0) dereference-commit
//
// A crash observed at (1,0) or (0,1) is ambiguous (the begin/commit half
// may or may not have reached shared memory) and forces
// ErrCouldNotRestartProxy; a crash observed at (1,1) is safe to repair by
// replaying the missing dereference.
type transactionLogRow struct {
	bits atomic.Uint32
}

const (
	rowBeginBit uint32 = 1 << 0
	rowEndBit   uint32 = 1 << 1
)

func (r *transactionLogRow) load() (begin, end bool) {
	v := r.bits.Load()
	return v&rowBeginBit != 0, v&rowEndBit != 0
}

func (r *transactionLogRow) reset() {
	r.bits.Store(0)
}

func (r *transactionLogRow) setBegin() {
	r.bits.Store(rowBeginBit)
}

func (r *transactionLogRow) setCommitted() {
	r.bits.Store(rowBeginBit | rowEndBit)
}

func (r *transactionLogRow) setDereferenceBegin() {
	r.bits.Store(rowEndBit)
}

// TransactionLog is the crash-recovery journal for one proxy's (or one
// skeleton trace point's) outstanding references and subscribe/unsubscribe
// state against a single event. It is held by the event's
// EventDataControl alongside the data it journals, so a recovering
// subscriber can inspect it without cooperation from the crashed one. It
// is ordinary process memory, not placed in a shared-memory segment.
type TransactionLog struct {
	id           TransactionLogId
	slotRows     []transactionLogRow
	subscribeRow transactionLogRow
}

// NewTransactionLog allocates a journal with one reference row per slot in
// the event it journals, stamped with a fresh incarnation id.
func NewTransactionLog(numSlots int) *TransactionLog {
	return &TransactionLog{
		id:       NewTransactionLogId(),
		slotRows: make([]transactionLogRow, numSlots),
	}
}

// Id returns the incarnation id stamped into this log at creation.
func (tl *TransactionLog) Id() TransactionLogId {
	return tl.id
}

// Reincarnate mints a fresh incarnation id, called by TransactionLogSet
// whenever this row is handed to a (possibly new) proxy, so a later
// Attach call can tell whether the row still belongs to the incarnation
// that last saw it.
func (tl *TransactionLog) Reincarnate() TransactionLogId {
	tl.id = NewTransactionLogId()
	return tl.id
}

// ReferenceTransactionBegin records intent to reference idx, before the
// refcount increment. EventDataControl.ReferenceNextEvent and
// ReferenceSpecificEvent call it themselves around that increment.
func (tl *TransactionLog) ReferenceTransactionBegin(idx SlotIndex) error {
	row := &tl.slotRows[idx]
	b, e := row.load()
	if b || e {
		return WrapError("TransactionLog.ReferenceTransactionBegin", ErrAlreadyPublished)
	}
	row.setBegin()
	return nil
}

// ReferenceTransactionCommit marks idx's reference as durably taken.
func (tl *TransactionLog) ReferenceTransactionCommit(idx SlotIndex) error {
	row := &tl.slotRows[idx]
	b, e := row.load()
	if !b || e {
		return WrapError("TransactionLog.ReferenceTransactionCommit", ErrAlreadyPublished)
	}
	row.setCommitted()
	return nil
}

// ReferenceTransactionAbort undoes a begin that failed to acquire an
// actual reference (e.g. ReferenceSpecificEvent found the slot no longer
// Ready, or ReferenceNextEvent lost its refcount compare-and-swap).
func (tl *TransactionLog) ReferenceTransactionAbort(idx SlotIndex) error {
	row := &tl.slotRows[idx]
	b, e := row.load()
	if !b || e {
		return WrapError("TransactionLog.ReferenceTransactionAbort", ErrAlreadyPublished)
	}
	row.reset()
	return nil
}

// DereferenceTransactionBegin records intent to release idx's reference.
func (tl *TransactionLog) DereferenceTransactionBegin(idx SlotIndex) error {
	row := &tl.slotRows[idx]
	b, e := row.load()
	if !b || !e {
		return WrapError("TransactionLog.DereferenceTransactionBegin", ErrAlreadyPublished)
	}
	row.setDereferenceBegin()
	return nil
}

// DereferenceTransactionCommit marks idx's reference as durably released,
// returning the row to idle.
func (tl *TransactionLog) DereferenceTransactionCommit(idx SlotIndex) error {
	row := &tl.slotRows[idx]
	b, e := row.load()
	if b || !e {
		return WrapError("TransactionLog.DereferenceTransactionCommit", ErrAlreadyPublished)
	}
	row.reset()
	return nil
}

// SubscribeTransactionBegin/Commit/Abort and
// UnsubscribeTransactionBegin/Commit mirror the per-slot sequence above
// but against the single subscribe/unsubscribe row.

func (tl *TransactionLog) SubscribeTransactionBegin() error {
	b, e := tl.subscribeRow.load()
	if b || e {
		return WrapError("TransactionLog.SubscribeTransactionBegin", ErrAlreadyPublished)
	}
	tl.subscribeRow.setBegin()
	return nil
}

func (tl *TransactionLog) SubscribeTransactionCommit() error {
	b, e := tl.subscribeRow.load()
	if !b || e {
		return WrapError("TransactionLog.SubscribeTransactionCommit", ErrAlreadyPublished)
	}
	tl.subscribeRow.setCommitted()
	return nil
}

func (tl *TransactionLog) SubscribeTransactionAbort() error {
	b, e := tl.subscribeRow.load()
	if !b || e {
		return WrapError("TransactionLog.SubscribeTransactionAbort", ErrAlreadyPublished)
	}
	tl.subscribeRow.reset()
	return nil
}

func (tl *TransactionLog) UnsubscribeTransactionBegin() error {
	b, e := tl.subscribeRow.load()
	if !b || e {
		return WrapError("TransactionLog.UnsubscribeTransactionBegin", ErrAlreadyPublished)
	}
	tl.subscribeRow.setDereferenceBegin()
	return nil
}

func (tl *TransactionLog) UnsubscribeTransactionCommit() error {
	b, e := tl.subscribeRow.load()
	if b || !e {
		return WrapError("TransactionLog.UnsubscribeTransactionCommit", ErrAlreadyPublished)
	}
	tl.subscribeRow.reset()
	return nil
}

// ContainsTransactions reports whether any row, slot or subscribe, is
// outside its idle (0,0) state. A proxy registration guard uses this to
// decide whether a log it is about to reuse needs rollback first.
func (tl *TransactionLog) ContainsTransactions() bool {
	if b, e := tl.subscribeRow.load(); b || e {
		return true
	}
	for i := range tl.slotRows {
		if b, e := tl.slotRows[i].load(); b || e {
			return true
		}
	}
	return false
}

// RollbackProxyElementLog restores a proxy's transaction log left behind
// by a crashed incarnation to a consistent state. For each slot row at
// (1,1) — a reference that committed but whose release is unknown — it
// calls dereference(idx) to release the at-worst-duplicate reference and
// resets the row. Any row caught at (1,0) or (0,1) is ambiguous and
// forces ErrCouldNotRestartProxy, since shared memory alone cannot tell
// whether the in-flight half of the transaction reached the control block
// before the crash. The subscribe row is handled the same way against
// unsubscribe.
func (tl *TransactionLog) RollbackProxyElementLog(dereference func(SlotIndex) error, unsubscribe func() error) error {
	var errs error
	for i := range tl.slotRows {
		row := &tl.slotRows[i]
		b, e := row.load()
		switch {
		case !b && !e:
			continue
		case b && e:
			if err := dereference(SlotIndex(i)); err != nil {
				errs = multierr.Append(errs, WrapError("TransactionLog.RollbackProxyElementLog", err))
				continue
			}
			row.reset()
		default:
			errs = multierr.Append(errs, WrapError("TransactionLog.RollbackProxyElementLog", ErrCouldNotRestartProxy))
		}
	}

	b, e := tl.subscribeRow.load()
	switch {
	case !b && !e:
		// idle, nothing to do
	case b && e:
		// a previous incarnation's subscribe fully committed but was never
		// cleanly unsubscribed: replay the missing unsubscribe, then return
		// the row to idle so whichever incarnation reattaches next
		// subscribes from scratch.
		if err := unsubscribe(); err != nil {
			errs = multierr.Append(errs, WrapError("TransactionLog.RollbackProxyElementLog", err))
		} else {
			tl.subscribeRow.reset()
		}
	default:
		errs = multierr.Append(errs, WrapError("TransactionLog.RollbackProxyElementLog", ErrCouldNotRestartProxy))
	}
	// Every ambiguous or failed row is reported together rather than
	// stopping at the first one, so a caller recovering many proxies'
	// logs at once sees the full extent of what needs attention.
	return errs
}

// RollbackSkeletonTracingElementLog is the skeleton-side counterpart used
// to recover a trace point's outstanding sample references after a
// tracing-process crash; it has no subscribe concept, only slot rows.
func (tl *TransactionLog) RollbackSkeletonTracingElementLog(dereference func(SlotIndex) error) error {
	var errs error
	for i := range tl.slotRows {
		row := &tl.slotRows[i]
		b, e := row.load()
		switch {
		case !b && !e:
			continue
		case b && e:
			if err := dereference(SlotIndex(i)); err != nil {
				errs = multierr.Append(errs, WrapError("TransactionLog.RollbackSkeletonTracingElementLog", err))
				continue
			}
			row.reset()
		default:
			errs = multierr.Append(errs, WrapError("TransactionLog.RollbackSkeletonTracingElementLog", ErrCouldNotRestartProxy))
		}
	}
	return errs
}
