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

// ProxyEventTracer is the hook ProxyEvent invokes around Subscribe and
// sample receipt. A nil tracer on a ProxyEvent skips all of this.
type ProxyEventTracer[T any] interface {
	TraceSubscribe(maxSampleCount MaxSampleCount)
	TraceReceive(idx SlotIndex, ts Timestamp)
}

// RuntimeProxyTracer adapts a tracing.Runtime to ProxyEventTracer for one
// service element.
type RuntimeProxyTracer[T any] struct {
	runtime *tracing.Runtime
	element ElementFqId
	ctx     context.Context
}

// NewRuntimeProxyTracer builds a tracer dispatching through runtime for
// element.
func NewRuntimeProxyTracer[T any](runtime *tracing.Runtime, element ElementFqId) *RuntimeProxyTracer[T] {
	return &RuntimeProxyTracer[T]{runtime: runtime, element: element, ctx: context.Background()}
}

func (t *RuntimeProxyTracer[T]) traceElement() tracing.ElementFqId {
	return tracing.ElementFqId{
		ServiceID:   t.element.ServiceID,
		InstanceID:  t.element.InstanceID,
		ElementID:   t.element.ElementID,
		ElementName: t.element.ElementName,
	}
}

// TraceSubscribe reports a successful subscribe call. Process-local, no
// sample reference involved.
func (t *RuntimeProxyTracer[T]) TraceSubscribe(maxSampleCount MaxSampleCount) {
	t.runtime.TraceLocal(t.ctx, t.traceElement(), tracing.ProxyEventSubscribe,
		[]byte(fmt.Sprintf("max_sample_count=%d", maxSampleCount)))
}

// TraceReceive reports a sample having been collected by GetNewSamples.
// The caller already holds the SamplePtr reference open (it was returned
// to them); this trace point does not itself reference the sample, it
// only reports the event, so it goes through TraceLocal.
func (t *RuntimeProxyTracer[T]) TraceReceive(idx SlotIndex, ts Timestamp) {
	t.runtime.TraceLocal(t.ctx, t.traceElement(), tracing.ProxyEventReceive,
		[]byte(fmt.Sprintf("slot=%d ts=%d", idx, ts)))
}
