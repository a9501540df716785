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

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndWriteThroughMapping(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("memfd_create is Linux-only")
	}

	seg, err := Create("lola-test-segment", 4096)
	require.NoError(t, err)
	defer seg.Close()

	data := seg.Bytes()
	require.Len(t, data, 4096)

	data[0] = 0xAB
	assert.Equal(t, byte(0xAB), seg.Bytes()[0])
	assert.NotEqual(t, 0, seg.Fd())
	assert.NotEqual(t, seg.ID().String(), "")
}

func TestBuilderRequiresPositiveSize(t *testing.T) {
	_, err := NewBuilder("lola-test-builder").Create()
	assert.Error(t, err)
}

func TestBuilderCreatesSegment(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("memfd_create is Linux-only")
	}

	seg, err := NewBuilder("lola-test-builder").WithSize(128).Create()
	require.NoError(t, err)
	defer seg.Close()
	assert.Len(t, seg.Bytes(), 128)
}
