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

// Package lola implements the shared-memory data plane and subscription
// lifecycle of a single publish/subscribe event endpoint: one skeleton
// (producer) publishing fixed-size samples into a slot array that lives in
// shared memory, and any number of proxies (consumers) observing published
// samples in place without copying.
//
// The package covers:
//
//   - the slot control block (EventDataControl) and its lock-free
//     allocate/publish/reference/dereference/free transitions,
//   - the owned and borrowed sample handles (SampleAllocateeHandle,
//     SamplePtr) built on top of it,
//   - the proxy-side slot collector that turns "what's new" into an
//     ordered batch of samples,
//   - the three-state subscription state machine and its transactional
//     bookkeeping,
//   - the per-subscriber transaction log used to recover a consistent
//     reference count after a peer crash.
//
// Shared-memory segment creation, service discovery, the notifier
// transport, and the generic trace sink are treated as external
// collaborators; this package depends only on their contracts (see
// shmseg, Notifier, and the tracing subpackage) plus one reference
// implementation of each for demos and tests.
//
// Basic usage:
//
//	cfg := lola.EndpointConfig{Slots: 4, MaxSubscribers: 2}
//	control := lola.NewEventDataControl[Payload](cfg)
//	notifier := lola.NewChannelNotifier()
//	skel := lola.NewSkeletonEvent[Payload](control, notifier)
//
//	handle, _ := skel.Allocate()
//	handle.Payload().Value = 10
//	_ = skel.Send(handle)
//
//	proxy := lola.NewProxyEvent[Payload](control, notifier, pid)
//	_ = proxy.Subscribe(4)
//	samples, _ := proxy.GetNewSamples(4)
package lola
