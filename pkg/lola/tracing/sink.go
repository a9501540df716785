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

package tracing

import (
	"context"
	"sync"
)

// CallResult is the outcome GenericTraceAPI-style transport reports back
// for one Trace call, classifying failures by how the runtime should
// react.
type CallResult int

const (
	// ResultSuccess: the sample was accepted by the trace transport.
	ResultSuccess CallResult = iota
	// ResultRecoverable: this call failed but tracing should keep trying;
	// only counted toward the consecutive-failure cap.
	ResultRecoverable
	// ResultNonRecoverable: this specific service element's tracing
	// should be disabled; other elements are unaffected.
	ResultNonRecoverable
	// ResultTerminalFatal: the trace transport itself is unusable; all
	// tracing, for every element, should be disabled immediately.
	ResultTerminalFatal
)

// Sink is the transport a TracingRuntime dispatches to. A real binding
// implements it against a trace daemon's IPC surface; Sink itself only
// needs to report how the call went so the runtime can apply its
// failure-handling policy.
type Sink interface {
	Trace(ctx context.Context, element ElementFqId, point Point, data []byte) CallResult
}

// NopSink accepts every call and reports success, for configurations that
// compile tracing glue in but never enable it.
type NopSink struct{}

func (NopSink) Trace(context.Context, ElementFqId, Point, []byte) CallResult {
	return ResultSuccess
}

// RecordedCall is one call captured by RecordingSink.
type RecordedCall struct {
	Element ElementFqId
	Point   Point
	Data    []byte
}

// RecordingSink captures every call it receives, for tests that assert on
// what got traced. Its Result field is returned from every Trace call,
// defaulting to ResultSuccess.
type RecordingSink struct {
	mu    sync.Mutex
	calls []RecordedCall
	// Result is returned by every subsequent Trace call.
	Result CallResult
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (r *RecordingSink) Trace(_ context.Context, element ElementFqId, point Point, data []byte) CallResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, RecordedCall{Element: element, Point: point, Data: data})
	return r.Result
}

// Calls returns a copy of every call recorded so far.
func (r *RecordingSink) Calls() []RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedCall, len(r.calls))
	copy(out, r.calls)
	return out
}
