// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

package shutdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitReturnsAfterRaise(t *testing.T) {
	c := New()

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Raise was called")
	case <-time.After(20 * time.Millisecond):
	}

	c.Raise()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Raise")
	}
}

func TestWaitReturnsImmediatelyOnceRaised(t *testing.T) {
	c := New()
	c.Raise()

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked after latch was already raised")
	}

	require.True(t, c.Raised())
}

func TestRaiseIsIdempotent(t *testing.T) {
	c := New()
	c.Raise()
	c.Raise()
	require.True(t, c.Raised())
}
