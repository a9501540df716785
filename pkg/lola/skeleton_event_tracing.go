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
	"context"
	"fmt"

	"github.com/eclipse-score/lola-go/pkg/lola/tracing"
)

// SkeletonEventTracer is the hook SkeletonEvent invokes around Allocate
// and Send. A nil tracer on a SkeletonEvent skips all of this.
type SkeletonEventTracer[T any] interface {
	TraceAllocate(idx SlotIndex)
	TraceSend(idx SlotIndex, ts Timestamp)
}

// RuntimeSkeletonTracer adapts a tracing.Runtime to SkeletonEventTracer
// for one service element, journaling the sample reference it holds open
// across each trace call in the skeleton's reserved transaction-log row.
type RuntimeSkeletonTracer[T any] struct {
	runtime *tracing.Runtime
	control *EventDataControl[T]
	element ElementFqId
	ctx     context.Context
}

// NewRuntimeSkeletonTracer builds a tracer dispatching through runtime
// for element, referencing samples via control's reserved tracing log
// row (row 0 of its TransactionLogSet) while a trace call is in flight.
func NewRuntimeSkeletonTracer[T any](runtime *tracing.Runtime, control *EventDataControl[T], element ElementFqId) *RuntimeSkeletonTracer[T] {
	return &RuntimeSkeletonTracer[T]{runtime: runtime, control: control, element: element, ctx: context.Background()}
}

func (t *RuntimeSkeletonTracer[T]) traceElement() tracing.ElementFqId {
	return tracing.ElementFqId{
		ServiceID:   t.element.ServiceID,
		InstanceID:  t.element.InstanceID,
		ElementID:   t.element.ElementID,
		ElementName: t.element.ElementName,
	}
}

// TraceAllocate reports a slot having been claimed for writing. This is a
// process-local event (no shared-memory sample is readable yet), so it
// goes through TraceLocal.
func (t *RuntimeSkeletonTracer[T]) TraceAllocate(idx SlotIndex) {
	t.runtime.TraceLocal(t.ctx, t.traceElement(), tracing.SkeletonEventAllocate,
		[]byte(fmt.Sprintf("slot=%d", idx)))
}

// TraceSend reports a sample having been published, holding a reference
// on the skeleton's reserved tracing log row (row 0) for the duration of
// the call so the sample cannot be recycled out from under an
// asynchronous trace transport. ReferenceSpecificEvent/DereferenceEvent
// journal that row themselves, so this just has to take and release the
// reference.
func (t *RuntimeSkeletonTracer[T]) TraceSend(idx SlotIndex, ts Timestamp) {
	if err := t.control.ReferenceSpecificEvent(idx, 0); err != nil {
		return
	}

	release := func() error {
		return t.control.DereferenceEvent(idx, 0)
	}

	t.runtime.Trace(t.ctx, t.traceElement(), tracing.SkeletonEventSend,
		[]byte(fmt.Sprintf("slot=%d ts=%d", idx, ts)), release)
}
