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

import "sync"

// FilterConfig answers, for a given service element and trace point,
// whether tracing is currently enabled. Disablement can be scoped to one
// (element, point) pair, to one element entirely, or left as the global
// default — mirroring the three disablement granularities the runtime can
// reach for.
type FilterConfig struct {
	mu             sync.RWMutex
	defaultEnabled bool
	perPoint       map[Point]bool
	perElement     map[string]bool
	disabledPairs  map[string]bool
}

// NewFilterConfig returns a config with every trace point enabled unless
// later disabled.
func NewFilterConfig() *FilterConfig {
	return &FilterConfig{
		defaultEnabled: true,
		perPoint:       make(map[Point]bool),
		perElement:     make(map[string]bool),
		disabledPairs:  make(map[string]bool),
	}
}

func pairKey(element ElementFqId, point Point) string {
	return element.String() + "\x00" + point.String()
}

// Enabled reports whether point should be traced for element.
func (f *FilterConfig) Enabled(element ElementFqId, point Point) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if disabled, ok := f.disabledPairs[pairKey(element, point)]; ok {
		return !disabled
	}
	if enabled, ok := f.perElement[element.String()]; ok {
		return enabled
	}
	if enabled, ok := f.perPoint[point]; ok {
		return enabled
	}
	return f.defaultEnabled
}

// DisablePoint disables point across every element.
func (f *FilterConfig) DisablePoint(point Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perPoint[point] = false
}

// DisableElement disables every trace point for element.
func (f *FilterConfig) DisableElement(element ElementFqId) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perElement[element.String()] = false
}

// DisablePair disables exactly one (element, point) combination.
func (f *FilterConfig) DisablePair(element ElementFqId, point Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabledPairs[pairKey(element, point)] = true
}

// DisableAll turns the global default off; only pairs and elements
// explicitly re-enabled above the default would show through, which this
// config does not support re-enabling after a global disable — matching
// the production runtime's one-way "disable everything" terminal state.
func (f *FilterConfig) DisableAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultEnabled = false
	f.perPoint = make(map[Point]bool)
	f.perElement = make(map[string]bool)
	f.disabledPairs = make(map[string]bool)
}
