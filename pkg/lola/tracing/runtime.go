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
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Outcome is what a caller of Runtime.Trace/TraceLocal should do next.
type Outcome int

const (
	// OutcomeOK: either the call succeeded or the failure was swallowed
	// (recoverable, under the consecutive-failure cap).
	OutcomeOK Outcome = iota
	// OutcomeDisableAllTracePoints: the runtime has globally disabled
	// tracing; the caller should stop invoking it for any element.
	OutcomeDisableAllTracePoints
	// OutcomeDisableTracePointInstance: this element's tracing has been
	// disabled; other elements are unaffected.
	OutcomeDisableTracePointInstance
)

// Registrar is the shm-object registration contract a real binding
// implements against its trace daemon: before the daemon can resolve
// shared-memory trace payloads by pointer, it must be told the backing
// file descriptor for each segment.
type Registrar interface {
	RegisterShmObject(ctx context.Context, element ElementFqId, fd int) error
	UnregisterShmObject(ctx context.Context, element ElementFqId) error
}

// Logger is the minimal structured-logging contract this package needs;
// kept local (rather than importing pkg/lola's Logger) so tracing has no
// dependency on the package that depends on it.
type Logger interface {
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnw(string, ...interface{})  {}
func (nopLogger) Errorw(string, ...interface{}) {}

// Runtime is the binding-neutral tracing dispatch layer shared by every
// skeleton/proxy event in a process: it decides whether a given trace
// point is still enabled, bounds concurrent in-flight trace calls, and
// applies the failure-handling policy from ProcessTraceCallResult.
type Runtime struct {
	sink      Sink
	filter    *FilterConfig
	pool      *ContextIDPool
	registrar Registrar
	logger    Logger

	fdCache *lru.Cache[string, int]

	mu                  sync.Mutex
	consecutiveFailures int
	failureCap          int

	enabled  atomic.Bool
	dataLoss atomic.Bool
}

// Option configures a Runtime at construction time.
type Option func(*Runtime)

// WithRegistrar installs the shm-object registrar used by
// RegisterShmObject/UnregisterShmObject. Without one, those calls fail.
func WithRegistrar(r Registrar) Option {
	return func(rt *Runtime) { rt.registrar = r }
}

// WithLogger installs a Logger for warnings emitted on shm-object
// registration retries and disablement events.
func WithLogger(l Logger) Option {
	return func(rt *Runtime) { rt.logger = l }
}

// WithFailureCap overrides the default consecutive-failure cap (16) after
// which tracing disables itself globally.
func WithFailureCap(cap int) Option {
	return func(rt *Runtime) { rt.failureCap = cap }
}

// NewRuntime builds a Runtime dispatching to sink, gated by filter, with
// trace calls bounded to contextCapacity concurrent in-flight contexts
// per process (0 means unbounded).
func NewRuntime(sink Sink, filter *FilterConfig, contextCapacity int, opts ...Option) *Runtime {
	if sink == nil {
		sink = NopSink{}
	}
	if filter == nil {
		filter = NewFilterConfig()
	}
	cache, _ := lru.New[string, int](256)
	rt := &Runtime{
		sink:       sink,
		filter:     filter,
		pool:       NewContextIDPool(contextCapacity),
		logger:     nopLogger{},
		fdCache:    cache,
		failureCap: 16,
	}
	rt.enabled.Store(true)
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// IsTracingEnabled reports whether tracing is still globally enabled.
func (rt *Runtime) IsTracingEnabled() bool {
	return rt.enabled.Load()
}

// DisableTracing turns tracing off globally and for every element. This
// is terminal: nothing in this package re-enables it, matching the
// production runtime's one-way degrade-to-off behavior under sustained
// transport failure.
func (rt *Runtime) DisableTracing() {
	rt.enabled.Store(false)
	rt.filter.DisableAll()
}

// RegisterServiceElement forgets any shm-object fd cached for element
// from a previous incarnation of the same element (e.g. after a skeleton
// process restarts). It does not change the element's filter state: an
// element disabled earlier stays disabled.
func (rt *Runtime) RegisterServiceElement(element ElementFqId) {
	rt.fdCache.Remove(element.String())
}

// RegisterShmObject registers fd as the backing descriptor for element's
// shared-memory segment. If the first attempt fails, it retries once
// against the last fd that registered successfully for this element —
// covering the case where a segment was remapped and the daemon's stale
// registration needs to be refreshed rather than replaced outright.
func (rt *Runtime) RegisterShmObject(ctx context.Context, element ElementFqId, fd int) error {
	if rt.registrar == nil {
		return nil
	}
	if err := rt.registrar.RegisterShmObject(ctx, element, fd); err != nil {
		if cached, ok := rt.fdCache.Get(element.String()); ok && cached != fd {
			rt.logger.Warnw("shm object registration failed, retrying with cached fd",
				"element", element, "fd", fd, "cached_fd", cached, "error", err)
			if err2 := rt.registrar.RegisterShmObject(ctx, element, cached); err2 == nil {
				rt.fdCache.Add(element.String(), cached)
				return nil
			}
		}
		return err
	}
	rt.fdCache.Add(element.String(), fd)
	return nil
}

// UnregisterShmObject drops element's shm-object registration and its
// cached fd.
func (rt *Runtime) UnregisterShmObject(ctx context.Context, element ElementFqId) error {
	rt.fdCache.Remove(element.String())
	if rt.registrar == nil {
		return nil
	}
	return rt.registrar.UnregisterShmObject(ctx, element)
}

// ProcessTraceCallResult applies the failure-handling policy for one
// completed Trace call against element, returning what the caller should
// do next. Success resets the consecutive-failure counter. A terminal
// fatal failure disables tracing globally. Any other failure increments
// the counter; crossing failureCap also disables tracing globally,
// otherwise a non-recoverable failure disables only element, and a
// recoverable one is swallowed.
func (rt *Runtime) ProcessTraceCallResult(element ElementFqId, result CallResult) Outcome {
	if result == ResultSuccess {
		rt.mu.Lock()
		rt.consecutiveFailures = 0
		rt.mu.Unlock()
		return OutcomeOK
	}

	if result == ResultTerminalFatal {
		rt.logger.Errorw("terminal tracing failure, disabling tracing globally", "element", element)
		rt.DisableTracing()
		return OutcomeDisableAllTracePoints
	}

	rt.mu.Lock()
	rt.consecutiveFailures++
	exceeded := rt.consecutiveFailures >= rt.failureCap
	rt.mu.Unlock()

	if exceeded {
		rt.logger.Errorw("consecutive tracing failure cap exceeded, disabling tracing globally",
			"element", element, "failures", rt.failureCap)
		rt.DisableTracing()
		return OutcomeDisableAllTracePoints
	}

	if result == ResultNonRecoverable {
		rt.logger.Warnw("non-recoverable tracing failure, disabling element", "element", element)
		rt.filter.DisableElement(element)
		return OutcomeDisableTracePointInstance
	}

	return OutcomeOK
}

// Trace dispatches a shared-memory-backed trace point: it reserves a
// context-id pool slot (holding release open for the duration of the
// call, since a real async transport may need the referenced sample to
// stay valid past this call returning), invokes the sink, releases the
// slot, and applies the failure policy. release is always invoked
// exactly once. If tracing or this (element, point) pair is disabled,
// release runs immediately and the call is skipped entirely; a globally
// disabled runtime reports OutcomeDisableAllTracePoints.
func (rt *Runtime) Trace(ctx context.Context, element ElementFqId, point Point, data []byte, release func() error) Outcome {
	if !rt.IsTracingEnabled() || !rt.filter.Enabled(element, point) {
		if release != nil {
			_ = release()
		}
		if !rt.IsTracingEnabled() {
			return OutcomeDisableAllTracePoints
		}
		return OutcomeOK
	}

	id, ok := rt.pool.TryAcquire(release)
	if !ok {
		// Pool at capacity: set the data-loss flag, skip this trace, and
		// succeed quietly rather than treating it as a transport failure.
		rt.dataLoss.Store(true)
		if release != nil {
			_ = release()
		}
		return OutcomeOK
	}

	data = rt.withDataLossMarker(data)
	result := rt.sink.Trace(ctx, element, point, data)
	_ = rt.pool.Release(id)
	return rt.ProcessTraceCallResult(element, result)
}

// TraceLocal dispatches a process-local (non-shared-memory) trace point.
// It skips the context-id pool entirely since there is no sample
// reference to hold open across the call. A globally disabled runtime
// reports OutcomeDisableAllTracePoints without calling the sink.
func (rt *Runtime) TraceLocal(ctx context.Context, element ElementFqId, point Point, data []byte) Outcome {
	if !rt.IsTracingEnabled() {
		return OutcomeDisableAllTracePoints
	}
	if !rt.filter.Enabled(element, point) {
		return OutcomeOK
	}
	data = rt.withDataLossMarker(data)
	result := rt.sink.Trace(ctx, element, point, data)
	return rt.ProcessTraceCallResult(element, result)
}

// withDataLossMarker reads and clears the data-loss flag, appending a
// marker to data if it was set: this is the first trace to reach the sink
// since one or more excess traces were dropped for lack of a free
// context-id pool slot, so it carries that fact forward in its own
// meta-info instead of letting it vanish silently.
func (rt *Runtime) withDataLossMarker(data []byte) []byte {
	if !rt.dataLoss.Swap(false) {
		return data
	}
	return append(append([]byte{}, data...), []byte(" data_loss=true")...)
}

// DataLossPending reports whether a trace has been dropped for lack of a
// free context-id pool slot since the flag was last cleared by a trace
// call that reached the sink.
func (rt *Runtime) DataLossPending() bool {
	return rt.dataLoss.Load()
}
