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

package shmseg

import "fmt"

// Builder configures a Segment before creating it, following the
// config-then-create builder shape used throughout this codebase's
// resource constructors.
type Builder struct {
	name string
	size int
}

// NewBuilder starts a builder for a segment named name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// WithSize sets the segment's fixed size in bytes.
func (b *Builder) WithSize(size int) *Builder {
	b.size = size
	return b
}

// Create builds the segment. Returns an error if WithSize was never
// called or was called with a non-positive size.
func (b *Builder) Create() (*Segment, error) {
	if b.size <= 0 {
		return nil, fmt.Errorf("shmseg: builder %q: size must be positive, got %d", b.name, b.size)
	}
	return Create(b.name, b.size)
}
