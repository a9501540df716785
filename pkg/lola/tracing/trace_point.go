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

// Package tracing provides a binding-neutral trace dispatch layer shared
// by every skeleton and proxy event: a runtime that decides, per call,
// whether a trace point is still enabled, a bounded pool of in-flight
// trace contexts, and a pluggable sink that the actual transport
// (shared-memory trace buffer, local ring buffer, …) implements.
package tracing

// Point identifies one instrumentable call site across the skeleton and
// proxy event APIs.
type Point int

const (
	SkeletonEventSendWithAllocate Point = iota
	SkeletonEventSend
	SkeletonEventAllocate
	SkeletonFieldUpdate
	ProxyEventSubscribe
	ProxyEventUnsubscribe
	ProxyEventSetReceiveHandler
	ProxyEventUnsetReceiveHandler
	ProxyEventReceive
	ProxyEventGetNewSamples
	ProxyFieldUpdate
)

func (p Point) String() string {
	switch p {
	case SkeletonEventSendWithAllocate:
		return "SkeletonEvent::SendWithAllocate"
	case SkeletonEventSend:
		return "SkeletonEvent::Send"
	case SkeletonEventAllocate:
		return "SkeletonEvent::Allocate"
	case SkeletonFieldUpdate:
		return "SkeletonField::Update"
	case ProxyEventSubscribe:
		return "ProxyEvent::Subscribe"
	case ProxyEventUnsubscribe:
		return "ProxyEvent::Unsubscribe"
	case ProxyEventSetReceiveHandler:
		return "ProxyEvent::SetReceiveHandler"
	case ProxyEventUnsetReceiveHandler:
		return "ProxyEvent::UnsetReceiveHandler"
	case ProxyEventReceive:
		return "ProxyEvent::Receive"
	case ProxyEventGetNewSamples:
		return "ProxyEvent::GetNewSamples"
	case ProxyFieldUpdate:
		return "ProxyField::Update"
	default:
		return "Unknown"
	}
}

// ElementFqId fully qualifies the service element a trace call concerns.
// Duplicated in shape from pkg/lola.ElementFqId rather than imported, to
// keep this package free of a dependency on the data-plane core it
// instruments.
type ElementFqId struct {
	ServiceID   uint32
	InstanceID  uint32
	ElementID   uint32
	ElementName string
}

func (e ElementFqId) String() string {
	return e.ElementName
}
