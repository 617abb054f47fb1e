// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

package controlsock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Voldivh/gz-transport/pkg/wire"
)

func TestSendDeliversFrameToListener(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan wire.ControlFrame, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go ln.Serve(ctx, func(f wire.ControlFrame) {
		received <- f
	})

	sender := NewSender(0)
	frame := wire.ControlFrame{
		Topic:          "/ns/a",
		SenderDataAddr: "data:1",
		SenderNodeUUID: "node-1",
		TypeSentinel:   wire.TypeSentinelGeneric,
		Opcode:         wire.OpEndConnection,
	}

	require.NoError(t, sender.Send(context.Background(), ln.Addr(), frame))

	select {
	case got := <-received:
		require.Equal(t, frame, got)
	case <-time.After(time.Second):
		t.Fatal("listener never received the frame")
	}
}

func TestSendFailsFastWhenNoListener(t *testing.T) {
	sender := NewSender(0)
	err := sender.Send(context.Background(), "127.0.0.1:1", wire.ControlFrame{})
	require.Error(t, err)
}
