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

// SkeletonEvent is the producer-side handle applications use to publish
// samples: allocate a slot, write into it, send it. It owns the
// publish-side timestamp counter and the notifier used to wake proxies.
type SkeletonEvent[T any] struct {
	control  *EventDataControl[T]
	notifier *ChannelNotifier
	clock    atomic.Uint64
	tracer   SkeletonEventTracer[T]
}

// NewSkeletonEvent builds a skeleton-side handle over control, notifying
// proxies through notifier on every Send.
func NewSkeletonEvent[T any](control *EventDataControl[T], notifier *ChannelNotifier) *SkeletonEvent[T] {
	return &SkeletonEvent[T]{control: control, notifier: notifier}
}

// SetTracer installs the tracing glue invoked around Allocate/Send. A nil
// tracer (the default) makes every tracing call a no-op.
func (s *SkeletonEvent[T]) SetTracer(tracer SkeletonEventTracer[T]) {
	s.tracer = tracer
}

// Allocate claims a free slot for writing, returning ErrAllocationFailed
// if the slot array is exhausted.
func (s *SkeletonEvent[T]) Allocate() (*SampleAllocateeHandle[T], error) {
	idx, err := s.control.AllocateNextSlot()
	if err != nil {
		return nil, err
	}
	handle := NewSampleAllocateeHandle(s.control, idx)
	if s.tracer != nil {
		s.tracer.TraceAllocate(idx)
	}
	return handle, nil
}

// Send publishes handle's slot with the next timestamp in this skeleton's
// publish sequence and wakes every subscribed proxy.
func (s *SkeletonEvent[T]) Send(handle *SampleAllocateeHandle[T]) error {
	ts := Timestamp(s.clock.Add(1))
	if err := handle.Send(ts); err != nil {
		return err
	}
	if s.tracer != nil {
		s.tracer.TraceSend(handle.Index(), ts)
	}
	s.notifier.Notify()
	return nil
}

// NumFreeSlots reports how many slots are currently Free, mainly for
// diagnostics and tests — it is inherently racy against concurrent
// allocation.
func (s *SkeletonEvent[T]) NumFreeSlots() int {
	n := 0
	for _, sl := range s.control.slots {
		if sl.load().State() == SlotFree {
			n++
		}
	}
	return n
}
