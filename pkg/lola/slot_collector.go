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

// SlotCollector turns "what's new since I last looked" into an ordered
// batch of referenced samples for one proxy. It is lock-free: concurrent
// collection from the same EventDataControl by other proxies never blocks
// this one, matching the documented assumption that a single endpoint is
// only ever driven from one goroutine at a time.
type SlotCollector[T any] struct {
	control  *EventDataControl[T]
	maxSlots MaxSampleCount
	logIndex TransactionLogIndex

	lastTimestamp Timestamp
}

// NewSlotCollector builds a collector bounded to maxSlots outstanding
// references, bookkeeping its transaction log entries under logIndex.
// maxSlots == 0 is a caller contract violation (a collector that could
// never collect anything is never a legitimate configuration) and
// terminates the process rather than silently building a disguised
// no-op collector.
func NewSlotCollector[T any](control *EventDataControl[T], maxSlots MaxSampleCount, logIndex TransactionLogIndex) *SlotCollector[T] {
	if maxSlots == 0 {
		Fatal(nopLogger, "NewSlotCollector", ErrMaxSampleCountNotRealizable)
	}
	return &SlotCollector[T]{control: control, maxSlots: maxSlots, logIndex: logIndex}
}

// GetNumNewSamplesAvailable reports how many Ready slots are newer than
// the last sample this collector handed out, without referencing any of
// them.
func (sc *SlotCollector[T]) GetNumNewSamplesAvailable() int {
	return sc.control.GetNumNewEvents(sc.lastTimestamp)
}

// GetNewSamplesSlotIndices references up to maxCount (capped at the
// collector's own maxSlots) new samples and returns them oldest first, so
// a caller processing the batch in order sees them in publication order.
// It repeatedly calls ReferenceNextEvent with a strictly decreasing upper
// bound so the same slot is never referenced twice within one collection
// pass, then reverses the descending scan order back to ascending before
// returning.
func (sc *SlotCollector[T]) GetNewSamplesSlotIndices(maxCount MaxSampleCount) ([]*SamplePtr[T], error) {
	n := int(maxCount)
	if int(sc.maxSlots) < n {
		n = int(sc.maxSlots)
	}
	if n <= 0 {
		return nil, nil
	}

	collected := make([]*SamplePtr[T], 0, n)
	currentBound := MaxTimestamp
	highestSeen := sc.lastTimestamp

	for len(collected) < n {
		idx, ts, err := sc.control.ReferenceNextEvent(sc.lastTimestamp, sc.logIndex, currentBound)
		if err != nil {
			break
		}
		collected = append(collected, NewSamplePtr(sc.control, idx, sc.logIndex, ts))
		if ts > highestSeen {
			highestSeen = ts
		}
		currentBound = ts
	}

	// collected is newest-first (each successive ReferenceNextEvent call
	// finds a strictly older timestamp); reverse in place to hand the
	// caller oldest-first.
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}

	sc.lastTimestamp = highestSeen
	return collected, nil
}
