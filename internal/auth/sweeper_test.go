// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package auth_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kodbank/kodbank/internal/auth"
	"github.com/kodbank/kodbank/internal/auth/mocks"
	"github.com/kodbank/kodbank/pkg/errutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewSweeper_InvalidConfig(t *testing.T) {
	_, err := auth.NewSweeper(nil, time.Minute, nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SWEEPER_INVALID_CONFIG")

	_, err = auth.NewSweeper(mocks.NewMockTokenStore(t), 0, nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SWEEPER_INVALID_CONFIG")
}

func TestSweeper_SweepOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("deletes records expired at now", func(t *testing.T) {
		tokens := mocks.NewMockTokenStore(t)
		tokens.On("DeleteExpired", mock.Anything, now).Return(int64(4), nil).Once()

		var swept int64
		sweeper, err := auth.NewSweeper(tokens, time.Minute, nil,
			auth.WithSweepClock(func() time.Time { return now }),
			auth.WithSweptHook(func(n int64) { swept += n }))
		require.NoError(t, err)

		n, err := sweeper.SweepOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
		assert.Equal(t, int64(4), swept)
	})

	t.Run("store failure", func(t *testing.T) {
		tokens := mocks.NewMockTokenStore(t)
		tokens.On("DeleteExpired", mock.Anything, now).Return(int64(0), errors.New("timeout")).Once()

		sweeper, err := auth.NewSweeper(tokens, time.Minute, nil, auth.WithSweepClock(func() time.Time { return now }))
		require.NoError(t, err)

		_, err = sweeper.SweepOnce(context.Background())
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SWEEP_FAILED")
	})
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	tokens := mocks.NewMockTokenStore(t)
	tokens.On("DeleteExpired", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { calls.Add(1) }).
		Return(int64(0), nil)

	sweeper, err := auth.NewSweeper(tokens, 5*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestSweeper_RunSurvivesFailures(t *testing.T) {
	var calls atomic.Int32
	tokens := mocks.NewMockTokenStore(t)
	tokens.On("DeleteExpired", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { calls.Add(1) }).
		Return(int64(0), errors.New("timeout"))

	sweeper, err := auth.NewSweeper(tokens, 5*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done
}
