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

// Package shmseg is the reference shared-memory segment implementation
// pkg/lola's control blocks are meant to be placed into. A binding that
// needs a different backing (POSIX shm_open, a vendor's custom arena
// allocator) implements the same narrow contract; nothing in pkg/lola
// imports this package directly.
package shmseg

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Segment is one memfd-backed, mmap'd region of shared memory, sized at
// creation and never resized; a deployment that needs more room creates a
// new segment rather than growing this one.
type Segment struct {
	id   uuid.UUID
	name string
	fd   int
	data []byte
}

// Create allocates a new anonymous shared-memory segment of size bytes,
// backed by memfd_create so it has no filesystem path and is
// automatically reclaimed when the last reference to its fd closes.
func Create(name string, size int) (*Segment, error) {
	fd, err := unix.MemfdCreate(name, 0)
	if err != nil {
		return nil, fmt.Errorf("shmseg: memfd_create %q: %w", name, err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("shmseg: ftruncate %q to %d: %w", name, size, err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("shmseg: mmap %q: %w", name, err)
	}
	return &Segment{id: uuid.New(), name: name, fd: fd, data: data}, nil
}

// Open maps an existing segment's fd (typically received from another
// process over a Unix domain socket's SCM_RIGHTS ancillary data) into
// this process's address space.
func Open(fd int, size int) (*Segment, error) {
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shmseg: mmap fd %d: %w", fd, err)
	}
	return &Segment{id: uuid.New(), fd: fd, data: data}, nil
}

// ID uniquely identifies this segment within the process that created or
// opened it; two Segment values opened from the same underlying fd in
// different processes will have different IDs, by design — identity here
// is about Go-level resource lifetime, not the shared memory's content.
func (s *Segment) ID() uuid.UUID {
	return s.id
}

// Name returns the name this segment was created with, empty if Open'd
// rather than Created.
func (s *Segment) Name() string {
	return s.name
}

// Fd returns the underlying file descriptor, for handing off to the
// tracing runtime's RegisterShmObject or to another process via
// SCM_RIGHTS.
func (s *Segment) Fd() int {
	return s.fd
}

// Bytes returns the mapped region. Callers are expected to place a single
// control-block struct at a fixed offset within it; this package does not
// interpret the contents.
func (s *Segment) Bytes() []byte {
	return s.data
}

// Close unmaps the segment and closes its file descriptor.
func (s *Segment) Close() error {
	if s.data != nil {
		if err := unix.Munmap(s.data); err != nil {
			return fmt.Errorf("shmseg: munmap %q: %w", s.name, err)
		}
		s.data = nil
	}
	return unix.Close(s.fd)
}
