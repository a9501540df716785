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

import "github.com/google/uuid"

// Timestamp is the monotonically increasing 64-bit identifier a skeleton
// assigns to a sample at publication. It uniquely identifies which sample
// lives in a given slot and doubles as the trace-point data id.
type Timestamp uint64

// MaxTimestamp is used as the initial (unreachable) upper bound passed to
// ReferenceNextEvent when a collection pass starts from the newest sample.
const MaxTimestamp Timestamp = ^Timestamp(0)

// SlotIndex addresses one element of a slot array and, in lockstep, the
// parallel payload array at the same position.
type SlotIndex uint32

// TransactionLogIndex is a row index into a TransactionLogSet.
type TransactionLogIndex uint16

// MaxSampleCount is the subscriber-declared window size: the largest
// number of unread samples GetNewSamples may ever return in one call.
type MaxSampleCount uint16

// PID identifies the OS process hosting a service instance, as reported at
// offer/reoffer time. The core never interprets it beyond storing and
// forwarding it to the notifier.
type PID int32

// ElementFqId fully qualifies one service element (event or field) within
// a deployment: which service, which instance, which element. Used purely
// for logging and for tracing-filter lookups.
type ElementFqId struct {
	ServiceID  uint32
	InstanceID uint32
	ElementID  uint32
	ElementName string
}

func (e ElementFqId) String() string {
	return e.ElementName
}

// TransactionLogId disambiguates a live proxy incarnation from a prior,
// possibly crashed, incarnation that held the same transaction-log row:
// without it, a second proxy process reusing the same row index right
// after a first proxy's clean detach cannot be told apart, in the row's
// raw bits alone, from a proxy recovering its own still-warm row.
type TransactionLogId struct {
	id uuid.UUID
}

// NewTransactionLogId mints a fresh, process-incarnation-unique id.
func NewTransactionLogId() TransactionLogId {
	return TransactionLogId{id: uuid.New()}
}

func (t TransactionLogId) Equal(other TransactionLogId) bool {
	return t.id == other.id
}

func (t TransactionLogId) String() string {
	return t.id.String()
}

// IsZero reports whether this is the zero-value TransactionLogId (never
// assigned), distinct from any minted id.
func (t TransactionLogId) IsZero() bool {
	return t.id == uuid.Nil
}
