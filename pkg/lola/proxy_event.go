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

// ProxyEvent is the consumer-side handle applications use to subscribe
// to and receive samples from a SkeletonEvent. It is a thin façade over a
// SubscriptionStateMachine, adding the proxy-side tracing hooks.
type ProxyEvent[T any] struct {
	sm     *SubscriptionStateMachine[T]
	tracer ProxyEventTracer[T]
}

// NewProxyEvent builds a proxy-side handle over control, receiving
// notifications through notifier and reporting pid to the subscription
// state machine's receive-handler manager.
func NewProxyEvent[T any](control *EventDataControl[T], notifier *ChannelNotifier, pid PID) *ProxyEvent[T] {
	return &ProxyEvent[T]{sm: NewSubscriptionStateMachine[T](control, notifier, pid)}
}

// SetTracer installs the tracing glue invoked around Subscribe/GetNew.
func (p *ProxyEvent[T]) SetTracer(tracer ProxyEventTracer[T]) {
	p.tracer = tracer
}

// StateMachine exposes the underlying SubscriptionStateMachine for
// callers that need the lower-level event API (StopOfferEvent,
// ReOfferEvent) driven by service discovery rather than application code.
func (p *ProxyEvent[T]) StateMachine() *SubscriptionStateMachine[T] {
	return p.sm
}

// Subscribe requests a subscription with the given window size.
func (p *ProxyEvent[T]) Subscribe(maxSampleCount MaxSampleCount) error {
	if err := p.sm.SubscribeEvent(maxSampleCount); err != nil {
		return err
	}
	if p.tracer != nil {
		p.tracer.TraceSubscribe(maxSampleCount)
	}
	return nil
}

// SubscribeAfterCrash is the crash-recovery counterpart of Subscribe,
// used when this proxy process is a restarted incarnation of a
// subscriber that previously held priorIndex, identified by priorID (see
// SubscriptionStateMachine.SubscribeEventAfterCrash and
// TransactionLogRegistrationGuard.ID).
func (p *ProxyEvent[T]) SubscribeAfterCrash(maxSampleCount MaxSampleCount, priorIndex TransactionLogIndex, priorID TransactionLogId) error {
	if err := p.sm.SubscribeEventAfterCrash(maxSampleCount, priorIndex, priorID); err != nil {
		return err
	}
	if p.tracer != nil {
		p.tracer.TraceSubscribe(maxSampleCount)
	}
	return nil
}

// Unsubscribe tears the subscription down.
func (p *ProxyEvent[T]) Unsubscribe() error {
	return p.sm.UnsubscribeEvent()
}

// SetReceiveHandler registers handler to run on every notification.
func (p *ProxyEvent[T]) SetReceiveHandler(handler ReceiveHandler) {
	p.sm.SetReceiveHandler(handler)
}

// UnsetReceiveHandler removes any registered handler.
func (p *ProxyEvent[T]) UnsetReceiveHandler() {
	p.sm.UnsetReceiveHandler()
}

// GetNewSamples collects up to maxCount new samples in publication order.
// Returns an empty slice, not an error, when there is no subscription
// (NotSubscribed) or nothing new has arrived. While SubscriptionPending
// the slot collector is kept, so samples still present are returned.
func (p *ProxyEvent[T]) GetNewSamples(maxCount MaxSampleCount) ([]*SamplePtr[T], error) {
	collector := p.sm.GetSlotCollectorLockFree()
	if collector == nil {
		return nil, nil
	}
	samples, err := collector.GetNewSamplesSlotIndices(maxCount)
	if err != nil {
		return nil, err
	}
	if p.tracer != nil {
		for _, s := range samples {
			p.tracer.TraceReceive(s.Index(), s.Timestamp())
		}
	}
	return samples, nil
}
