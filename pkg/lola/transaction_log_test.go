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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionLogHappyPath(t *testing.T) {
	tl := NewTransactionLog(2)
	assert.False(t, tl.ContainsTransactions())

	require.NoError(t, tl.ReferenceTransactionBegin(0))
	assert.True(t, tl.ContainsTransactions())

	require.NoError(t, tl.ReferenceTransactionCommit(0))
	require.NoError(t, tl.DereferenceTransactionBegin(0))
	require.NoError(t, tl.DereferenceTransactionCommit(0))

	assert.False(t, tl.ContainsTransactions())
}

func TestTransactionLogRejectsOutOfOrderCalls(t *testing.T) {
	tl := NewTransactionLog(1)
	assert.Error(t, tl.ReferenceTransactionCommit(0)) // no begin yet
	assert.Error(t, tl.DereferenceTransactionBegin(0)) // not committed yet
}

func TestRollbackProxyElementLogRepairsCommittedReference(t *testing.T) {
	tl := NewTransactionLog(1)
	require.NoError(t, tl.ReferenceTransactionBegin(0))
	require.NoError(t, tl.ReferenceTransactionCommit(0))

	var dereferenced []SlotIndex
	err := tl.RollbackProxyElementLog(
		func(idx SlotIndex) error { dereferenced = append(dereferenced, idx); return nil },
		func() error { return nil },
	)
	require.NoError(t, err)
	assert.Equal(t, []SlotIndex{0}, dereferenced)
	assert.False(t, tl.ContainsTransactions())
}

func TestRollbackProxyElementLogAmbiguousStateFails(t *testing.T) {
	tl := NewTransactionLog(1)
	require.NoError(t, tl.ReferenceTransactionBegin(0)) // (1,0): ambiguous

	err := tl.RollbackProxyElementLog(
		func(SlotIndex) error { return nil },
		func() error { return nil },
	)
	assert.ErrorIs(t, err, ErrCouldNotRestartProxy)
}

func TestRollbackSkeletonTracingElementLog(t *testing.T) {
	tl := NewTransactionLog(1)
	require.NoError(t, tl.ReferenceTransactionBegin(0))
	require.NoError(t, tl.ReferenceTransactionCommit(0))

	called := false
	err := tl.RollbackSkeletonTracingElementLog(func(SlotIndex) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestTransactionLogSetRegisterReservesSentinelRow(t *testing.T) {
	set := NewTransactionLogSet(2, 4)
	assert.True(t, set.IsOccupied(0))

	guard, err := set.Register()
	require.NoError(t, err)
	assert.NotEqual(t, TransactionLogIndex(0), guard.Index())

	guard.Release()
	assert.False(t, set.IsOccupied(guard.Index()))
}

func TestTransactionLogSetExhaustion(t *testing.T) {
	set := NewTransactionLogSet(1, 1) // capacity 1 = only the sentinel row
	_, err := set.Register()
	assert.ErrorIs(t, err, ErrMaxSubscribersExceeded)
}

func TestTransactionLogSetAttachRollsBackDirtyRow(t *testing.T) {
	set := NewTransactionLogSet(2, 2)
	guard, err := set.Register()
	require.NoError(t, err)
	priorIndex := guard.Index()
	priorID := guard.ID()

	// Leave the row dirty the way a crash would: a committed reference on
	// slot 0 that was never dereferenced.
	require.NoError(t, guard.Log().ReferenceTransactionBegin(0))
	require.NoError(t, guard.Log().ReferenceTransactionCommit(0))

	var dereferenced []SlotIndex
	newGuard, err := set.Attach(priorIndex, priorID,
		func(idx SlotIndex) error { dereferenced = append(dereferenced, idx); return nil },
		func() error { return nil },
	)
	require.NoError(t, err)
	assert.Equal(t, []SlotIndex{0}, dereferenced)
	assert.False(t, newGuard.Log().ContainsTransactions())
	assert.Equal(t, priorIndex, newGuard.Index())
	assert.False(t, newGuard.ID().Equal(priorID))
}

func TestTransactionLogSetAttachRejectsMismatchedID(t *testing.T) {
	set := NewTransactionLogSet(2, 2)
	guard, err := set.Register()
	require.NoError(t, err)

	_, err = set.Attach(guard.Index(), NewTransactionLogId(),
		func(SlotIndex) error { return nil },
		func() error { return nil },
	)
	assert.ErrorIs(t, err, ErrCouldNotRestartProxy)
}

func TestTransactionLogSetAttachAmbiguousRowFails(t *testing.T) {
	set := NewTransactionLogSet(2, 2)
	guard, err := set.Register()
	require.NoError(t, err)
	priorIndex := guard.Index()
	priorID := guard.ID()

	require.NoError(t, guard.Log().ReferenceTransactionBegin(0)) // (1,0): ambiguous

	_, err = set.Attach(priorIndex, priorID,
		func(SlotIndex) error { return nil },
		func() error { return nil },
	)
	assert.ErrorIs(t, err, ErrCouldNotRestartProxy)
}
