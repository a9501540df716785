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
	"errors"
	"fmt"
	"os"
)

// ContextualError wraps an error with additional context about the
// operation that failed. It implements Unwrap for use with errors.Is and
// errors.As.
type ContextualError struct {
	Op  string // the operation that failed, e.g. "SubscriptionStateMachine.Subscribe"
	Err error
}

func (e *ContextualError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

func (e *ContextualError) Unwrap() error {
	return e.Err
}

// WrapError wraps err with operation context. Returns nil if err is nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ContextualError{Op: op, Err: err}
}

// Sentinel and typed errors from the core's error taxonomy. Use errors.Is
// to check for these.
var (
	// ErrMaxSubscribersExceeded: no free row in the transaction-log set at
	// subscribe time.
	ErrMaxSubscribersExceeded = errors.New("lola: max subscribers exceeded")

	// ErrMaxSampleCountNotRealizable: the slot array is too small for the
	// requested window, or a re-subscribe requested a different window
	// than the one already active.
	ErrMaxSampleCountNotRealizable = errors.New("lola: max sample count not realizable")

	// ErrCouldNotRestartProxy: crash recovery found a journal row whose
	// (Begin, End) bits leave the refcount ambiguous.
	ErrCouldNotRestartProxy = errors.New("lola: could not restart proxy, ambiguous transaction log state")

	// ErrAllocationFailed: no free slot was available. Expected and
	// recoverable at the call site.
	ErrAllocationFailed = errors.New("lola: no free slot available")

	// ErrAlreadyPublished: event_ready was called on a slot that is not
	// in the Writing state. Indicates misuse of the allocatee handle.
	ErrAlreadyPublished = errors.New("lola: slot already published or not owned")

	// ErrNoNewSamples: no sample matches the requested window. Not a
	// failure, used internally to break collection loops.
	ErrNoNewSamples = errors.New("lola: no new samples available")

	// ErrHandleConsumed: an allocatee/borrowed handle or builder was
	// already used up.
	ErrHandleConsumed = errors.New("lola: handle already consumed")

	// ErrNotSubscribed: an operation that requires Subscribed or
	// SubscriptionPending state was attempted in NotSubscribed.
	ErrNotSubscribed = errors.New("lola: not subscribed")
)

// TraceErrorCode is the result of a tracing-runtime operation. Tracing
// errors never propagate to the data-plane caller; they are only surfaced
// to the tracing glue so it can decide whether to retry.
type TraceErrorCode int

const (
	// TraceErrorNone indicates success.
	TraceErrorNone TraceErrorCode = iota
	// TraceErrorDisableAllTracePoints: tracing has been disabled
	// globally; all further trace calls are no-ops.
	TraceErrorDisableAllTracePoints
	// TraceErrorDisableTracePointInstance: this endpoint's tracing is
	// disabled; other endpoints are unaffected.
	TraceErrorDisableTracePointInstance
)

func (c TraceErrorCode) Error() string {
	switch c {
	case TraceErrorNone:
		return "lola/tracing: no error"
	case TraceErrorDisableAllTracePoints:
		return "lola/tracing: all trace points disabled"
	case TraceErrorDisableTracePointInstance:
		return "lola/tracing: trace point instance disabled"
	default:
		return fmt.Sprintf("lola/tracing: unknown error (%d)", int(c))
	}
}

// Fatal logs op/err as a fatal condition and terminates the process. Used
// for contract violations that cannot be recovered in place without
// risking shared-memory corruption — the Go analogue of std::terminate.
// Overridable in tests via fatalHook.
func Fatal(logger Logger, op string, err error) {
	logger.Errorw("contract violation, terminating", "op", op, "error", err)
	fatalHook()
}

// fatalHook is indirected so tests can exercise the contract-violation
// paths without killing the test binary.
var fatalHook = func() { os.Exit(1) }
