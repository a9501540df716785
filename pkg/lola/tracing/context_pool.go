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

	"golang.org/x/sync/semaphore"
)

// ContextIDPool bounds how many trace calls may have a sample reference
// open at once for one service element: a Trace call that takes a
// SamplePtr reference to pass to an asynchronous transport must hold that
// reference open until the transport confirms or fails, and this pool is
// what keeps an unbounded number of slow or stuck trace calls from
// starving the slot array of references.
type ContextIDPool struct {
	sem *semaphore.Weighted

	mu       sync.Mutex
	releases map[int]func() error
	nextID   int
}

// NewContextIDPool builds a pool admitting at most capacity concurrent
// trace contexts. capacity <= 0 means unbounded (the semaphore is sized
// to effectively never block).
func NewContextIDPool(capacity int) *ContextIDPool {
	n := int64(capacity)
	if n <= 0 {
		n = 1 << 30
	}
	return &ContextIDPool{
		sem:      semaphore.NewWeighted(n),
		releases: make(map[int]func() error),
	}
}

// TryAcquire reserves one pool slot without blocking, associating release
// with the id it returns. Returns ok=false if the pool is at capacity.
func (p *ContextIDPool) TryAcquire(release func() error) (id int, ok bool) {
	if !p.sem.TryAcquire(1) {
		return 0, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id = p.nextID
	p.nextID++
	p.releases[id] = release
	return id, true
}

// Acquire reserves one pool slot, blocking until one is available or ctx
// is done.
func (p *ContextIDPool) Acquire(ctx context.Context, release func() error) (id int, err error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id = p.nextID
	p.nextID++
	p.releases[id] = release
	return id, nil
}

// Release runs the release callback registered for id, if any, and gives
// the pool slot back. Safe to call at most once per id; a second call is
// a no-op.
func (p *ContextIDPool) Release(id int) error {
	p.mu.Lock()
	release, ok := p.releases[id]
	if ok {
		delete(p.releases, id)
	}
	p.mu.Unlock()

	if !ok {
		return nil
	}
	p.sem.Release(1)
	if release != nil {
		return release()
	}
	return nil
}

// InUse returns how many context ids are currently reserved.
func (p *ContextIDPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.releases)
}
