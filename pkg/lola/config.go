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

// EndpointConfig is the deployment-time sizing of one event endpoint: how
// many slots its control block has and how many subscribers it admits.
// The core never reads configuration from disk itself; see the lolacfg
// package for the reference TOML loader, kept out of this package's
// import graph on purpose.
type EndpointConfig struct {
	// Slots is the size of the slot array. Bounds the number of distinct
	// samples that can be in flight (Writing or Ready) at once.
	Slots int `toml:"slots"`

	// MaxSubscribers bounds how many proxies may hold a transaction-log
	// row against this event simultaneously.
	MaxSubscribers int `toml:"max_subscribers"`

	// TraceContextIdCapacity is the deployment's count of trace calls that
	// may have a sample reference open at once. Nothing in this package
	// reads it: the bound in effect is the contextCapacity argument given
	// to tracing.NewRuntime, where zero means unbounded.
	TraceContextIdCapacity int `toml:"trace_context_id_capacity"`
}

// EndpointConfigFile is the top-level shape of a TOML deployment file
// describing every endpoint a process hosts, keyed by a caller-chosen
// endpoint name (service-instance/event-name pair in a real deployment).
type EndpointConfigFile struct {
	Endpoints map[string]EndpointConfig `toml:"endpoints"`
}
