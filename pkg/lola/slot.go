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

// SlotState is one of the three states a slot can be in.
type SlotState uint8

const (
	// SlotFree: refcount 0, timestamp older than any Ready slot
	// currently visible. Eligible for allocation.
	SlotFree SlotState = iota
	// SlotWriting: refcount 0, owned exclusively by the allocating
	// skeleton.
	SlotWriting
	// SlotReady: may be referenced by any number of proxies >= 0.
	SlotReady
)

func (s SlotState) String() string {
	switch s {
	case SlotFree:
		return "Free"
	case SlotWriting:
		return "Writing"
	case SlotReady:
		return "Ready"
	default:
		return "Unknown"
	}
}

// slotStatus is the packed control word for one slot: state, reference
// count, and timestamp folded into a single uint64 so that every
// transition is one compare-and-swap. Layout, low to high bit:
//
//	[0:2)   state     (2 bits,  0..3)
//	[2:18)  refcount  (16 bits, 0..65535)
//	[18:64) timestamp (46 bits, 0..~7e13)
//
// 46 bits of timestamp is far beyond any realistic publish rate times
// process lifetime for this middleware's target domain; it is not a wire
// format so widening it later is a non-breaking change.
type slotStatus uint64

const (
	slotStateBits = 2
	slotRefBits   = 16
	slotTSBits    = 64 - slotStateBits - slotRefBits

	slotStateMask = (uint64(1) << slotStateBits) - 1
	slotRefMask   = (uint64(1) << slotRefBits) - 1
	slotTSMask    = (uint64(1) << slotTSBits) - 1

	slotRefShift = slotStateBits
	slotTSShift  = slotStateBits + slotRefBits
)

func packSlotStatus(state SlotState, refCount uint16, ts Timestamp) slotStatus {
	return slotStatus(
		(uint64(state) & slotStateMask) |
			((uint64(refCount) & slotRefMask) << slotRefShift) |
			((uint64(ts) & slotTSMask) << slotTSShift),
	)
}

func (s slotStatus) State() SlotState {
	return SlotState(uint64(s) & slotStateMask)
}

func (s slotStatus) RefCount() uint16 {
	return uint16((uint64(s) >> slotRefShift) & slotRefMask)
}

func (s slotStatus) Timestamp() Timestamp {
	return Timestamp((uint64(s) >> slotTSShift) & slotTSMask)
}

func (s slotStatus) withState(state SlotState) slotStatus {
	return packSlotStatus(state, s.RefCount(), s.Timestamp())
}

func (s slotStatus) withRefCount(refCount uint16) slotStatus {
	return packSlotStatus(s.State(), refCount, s.Timestamp())
}

// slot is one element of an event's slot array, holding only the control
// word — the payload lives at the same index in a parallel array owned by
// EventDataControl, kept strictly in lockstep.
type slot struct {
	status atomic.Uint64
}

func newSlot() *slot {
	s := &slot{}
	s.status.Store(uint64(packSlotStatus(SlotFree, 0, 0)))
	return s
}

func (s *slot) load() slotStatus {
	return slotStatus(s.status.Load())
}

func (s *slot) compareAndSwap(old, new slotStatus) bool {
	return s.status.CompareAndSwap(uint64(old), uint64(new))
}
