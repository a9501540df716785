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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testElement() ElementFqId {
	return ElementFqId{ServiceID: 1, InstanceID: 1, ElementID: 1, ElementName: "speed"}
}

func TestTraceLocalSuccessResetsFailureCounter(t *testing.T) {
	sink := NewRecordingSink()
	sink.Result = ResultRecoverable
	rt := NewRuntime(sink, nil, 0)

	rt.TraceLocal(context.Background(), testElement(), ProxyEventSubscribe, []byte("fail"))
	require.Equal(t, 1, rt.consecutiveFailures)

	sink.Result = ResultSuccess
	outcome := rt.TraceLocal(context.Background(), testElement(), ProxyEventSubscribe, []byte("x"))
	assert.Equal(t, OutcomeOK, outcome)
	assert.Len(t, sink.Calls(), 2)
	assert.Equal(t, 0, rt.consecutiveFailures)
}

func TestConsecutiveFailuresDisableGlobally(t *testing.T) {
	sink := NewRecordingSink()
	sink.Result = ResultRecoverable
	rt := NewRuntime(sink, nil, 0, WithFailureCap(3))

	element := testElement()
	for i := 0; i < 2; i++ {
		outcome := rt.TraceLocal(context.Background(), element, ProxyEventReceive, nil)
		assert.Equal(t, OutcomeOK, outcome)
		assert.True(t, rt.IsTracingEnabled())
	}

	outcome := rt.TraceLocal(context.Background(), element, ProxyEventReceive, nil)
	assert.Equal(t, OutcomeDisableAllTracePoints, outcome)
	assert.False(t, rt.IsTracingEnabled())
}

func TestTerminalFatalDisablesImmediately(t *testing.T) {
	sink := NewRecordingSink()
	sink.Result = ResultTerminalFatal
	rt := NewRuntime(sink, nil, 0)

	outcome := rt.TraceLocal(context.Background(), testElement(), ProxyEventReceive, nil)
	assert.Equal(t, OutcomeDisableAllTracePoints, outcome)
	assert.False(t, rt.IsTracingEnabled())
}

func TestNonRecoverableDisablesOnlyOneElement(t *testing.T) {
	sink := NewRecordingSink()
	sink.Result = ResultNonRecoverable
	rt := NewRuntime(sink, nil, 0, WithFailureCap(100))

	bad := testElement()
	good := ElementFqId{ServiceID: 2, InstanceID: 2, ElementID: 2, ElementName: "rpm"}

	outcome := rt.TraceLocal(context.Background(), bad, ProxyEventReceive, nil)
	assert.Equal(t, OutcomeDisableTracePointInstance, outcome)
	assert.True(t, rt.IsTracingEnabled())

	sink.Result = ResultSuccess
	outcome = rt.TraceLocal(context.Background(), good, ProxyEventReceive, nil)
	assert.Equal(t, OutcomeOK, outcome)

	// bad's element is now filtered out even on success.
	sink.Result = ResultSuccess
	assert.False(t, rt.filter.Enabled(bad, ProxyEventReceive))
}

func TestTraceReleasesSampleExactlyOnce(t *testing.T) {
	sink := NewRecordingSink()
	rt := NewRuntime(sink, nil, 4)

	released := 0
	release := func() error { released++; return nil }

	outcome := rt.Trace(context.Background(), testElement(), SkeletonEventSend, []byte("data"), release)
	require.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, 1, released)
}

func TestTraceSkipsDisabledFilterAndStillReleases(t *testing.T) {
	sink := NewRecordingSink()
	filter := NewFilterConfig()
	filter.DisableElement(testElement())
	rt := NewRuntime(sink, filter, 4)

	released := false
	outcome := rt.Trace(context.Background(), testElement(), SkeletonEventSend, nil, func() error {
		released = true
		return nil
	})
	assert.Equal(t, OutcomeOK, outcome)
	assert.True(t, released)
	assert.Empty(t, sink.Calls())
}

func TestTracePoolExhaustionSetsDataLossFlagAndCarriesIt(t *testing.T) {
	sink := NewRecordingSink()
	rt := NewRuntime(sink, nil, 1)

	held, ok := rt.pool.TryAcquire(func() error { return nil })
	require.True(t, ok)

	var excessReleased bool
	outcome := rt.Trace(context.Background(), testElement(), SkeletonEventSend, []byte("dropped"), func() error {
		excessReleased = true
		return nil
	})
	assert.Equal(t, OutcomeOK, outcome)
	assert.True(t, excessReleased, "release must run even when the trace itself is dropped")
	assert.Empty(t, sink.Calls(), "a dropped trace must never reach the sink")
	assert.True(t, rt.DataLossPending())

	require.NoError(t, rt.pool.Release(held))

	outcome = rt.Trace(context.Background(), testElement(), SkeletonEventSend, []byte("next"), func() error { return nil })
	require.Equal(t, OutcomeOK, outcome)
	require.Len(t, sink.Calls(), 1)
	assert.Contains(t, string(sink.Calls()[0].Data), "data_loss=true")
	assert.False(t, rt.DataLossPending(), "the flag is consumed by the trace that carried it forward")

	// A further trace with no loss in between carries no marker.
	outcome = rt.Trace(context.Background(), testElement(), SkeletonEventSend, []byte("clean"), func() error { return nil })
	require.Equal(t, OutcomeOK, outcome)
	require.Len(t, sink.Calls(), 2)
	assert.NotContains(t, string(sink.Calls()[1].Data), "data_loss")
}

func TestContextIDPoolBoundsConcurrentReferences(t *testing.T) {
	pool := NewContextIDPool(1)
	id1, ok := pool.TryAcquire(func() error { return nil })
	require.True(t, ok)

	_, ok = pool.TryAcquire(func() error { return nil })
	assert.False(t, ok)

	require.NoError(t, pool.Release(id1))

	_, ok = pool.TryAcquire(func() error { return nil })
	assert.True(t, ok)
}

func TestRegisterShmObjectRetriesWithCachedFd(t *testing.T) {
	reg := &stubRegistrar{failNextFd: 99}
	rt := NewRuntime(NewRecordingSink(), nil, 0, WithRegistrar(reg))

	require.NoError(t, rt.RegisterShmObject(context.Background(), testElement(), 42))
	// Second call with a different fd fails once, then retries with the
	// cached (working) fd 42.
	require.NoError(t, rt.RegisterShmObject(context.Background(), testElement(), 99))
	assert.Equal(t, []int{42, 99, 42}, reg.attempts)
}

type stubRegistrar struct {
	attempts   []int
	failNextFd int
}

func (s *stubRegistrar) RegisterShmObject(_ context.Context, _ ElementFqId, fd int) error {
	s.attempts = append(s.attempts, fd)
	if fd == s.failNextFd && len(s.attempts) == 2 {
		return assertErr
	}
	return nil
}

func (s *stubRegistrar) UnregisterShmObject(context.Context, ElementFqId) error { return nil }

var assertErr = errString("registration failed")

type errString string

func (e errString) Error() string { return string(e) }
