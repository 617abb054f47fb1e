// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the transport contract the node-side routing engine
// sends remote publishes and subscription-filter changes through. Socket
// types and wire framing belong to a concrete binding (see natswire and
// controlsock); this package only states the shape the core depends on.
package wire

import (
	"context"
	"strconv"
)

// Opcode identifies the purpose of a control-socket message.
type Opcode int

// OpEndConnection is sent by a node when it loses its last interest in a
// topic, so that the publisher on the other end can drop its subscriber
// bookkeeping for that peer.
const OpEndConnection Opcode = 2

// TypeSentinelGeneric is the well-known type name that matches any message
// type, both in local handler registration and in the wire control frame.
const TypeSentinelGeneric = "*"

// ControlFrame is the five-frame end-of-subscription control message.
type ControlFrame struct {
	Topic          string // fully-qualified topic name
	SenderDataAddr string // sender's data endpoint
	SenderNodeUUID string // sender's node UUID
	TypeSentinel   string // message type sentinel, normally TypeSentinelGeneric
	Opcode         Opcode
}

// Frames renders the control frame as its five UTF-8 byte frames, in
// wire order.
func (f ControlFrame) Frames() [][]byte {
	return [][]byte{
		[]byte(f.Topic),
		[]byte(f.SenderDataAddr),
		[]byte(f.SenderNodeUUID),
		[]byte(f.TypeSentinel),
		[]byte(strconv.Itoa(int(f.Opcode))),
	}
}

// Transport is the contract the node-side routing engine consumes for
// cross-process delivery: publishing serialized payloads, maintaining the
// local subscription filter, and best-effort notifying a peer that this
// process has lost interest in one of its topics.
type Transport interface {
	// Publish sends payload for topic, tagged with typeName, to every
	// remote subscriber reachable through this transport.
	Publish(ctx context.Context, topic string, payload []byte, typeName string) error

	// AddFilter installs the subscription filter for topic, so that
	// remote publishes for it start reaching this process.
	AddFilter(topic string) error

	// RemoveFilter removes the subscription filter for topic.
	RemoveFilter(topic string) error

	// DataAddress returns this process's data endpoint, advertised to
	// discovery alongside each MessagePublisher.
	DataAddress() string

	// ControlAddress returns this process's control endpoint, used by
	// peers to deliver ControlFrame messages to this process.
	ControlAddress() string

	// SendControlFrame best-effort delivers frame to the peer at
	// ctrlAddr over a short-lived connection with a small linger.
	// Errors are not fatal to the caller.
	SendControlFrame(ctx context.Context, ctrlAddr string, frame ControlFrame) error

	// Close releases the transport's resources.
	Close() error
}
