// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Voldivh/gz-transport/pkg/discovery"
	"github.com/Voldivh/gz-transport/pkg/wire"
)

// TestUnsubscribeTearsDownFilter covers scenario 5: the sole subscriber to
// a topic unsubscribing removes the transport filter and best-effort
// notifies every known publisher with a five-frame end-connection message.
func TestUnsubscribeTearsDownFilter(t *testing.T) {
	tr := newFakeTransport()
	msgDisc := newFakeDiscovery()
	svcDisc := newFakeDiscovery()
	ctx := newTestContext(tr, msgDisc, svcDisc)

	a, err := NewNode(ctx, Options{Partition: "p1"})
	require.NoError(t, err)
	b, err := NewNode(ctx, Options{Partition: "p1"})
	require.NoError(t, err)

	pub := a.Advertise("/a", testMessage{}.TypeName(), AdvertiseOptions{})
	require.True(t, pub.Valid())

	ok := b.Subscribe("/a", testMessage{}.TypeName(), func() Message { return &testMessage{} },
		func(Message, MessageInfo) {})
	require.True(t, ok)

	fq, ok := fullyQualify(b.opts.Partition, b.opts.Namespace, "/a")
	require.True(t, ok)
	require.True(t, tr.hasFilter(fq))

	require.True(t, b.Unsubscribe("/a"))

	require.False(t, tr.hasFilter(fq))
	require.Len(t, tr.frames, 1)
	require.Equal(t, wire.OpEndConnection, tr.frames[0].Opcode)
	require.Equal(t, fq, tr.frames[0].Topic)
	require.Equal(t, b.UUID(), tr.frames[0].SenderNodeUUID)
	require.Equal(t, wire.TypeSentinelGeneric, tr.frames[0].TypeSentinel)
}

func TestInvalidTopicNameRejected(t *testing.T) {
	tr := newFakeTransport()
	msgDisc := newFakeDiscovery()
	svcDisc := newFakeDiscovery()
	ctx := newTestContext(tr, msgDisc, svcDisc)

	a, err := NewNode(ctx, Options{Partition: "p1"})
	require.NoError(t, err)

	pub := a.Advertise("", testMessage{}.TypeName(), AdvertiseOptions{})
	require.False(t, pub.Valid())

	require.False(t, a.Subscribe("", testMessage{}.TypeName(), func() Message { return &testMessage{} }, func(Message, MessageInfo) {}))
	require.False(t, a.Unsubscribe(""))
}

func TestDuplicateAdvertiseRejected(t *testing.T) {
	tr := newFakeTransport()
	msgDisc := newFakeDiscovery()
	svcDisc := newFakeDiscovery()
	ctx := newTestContext(tr, msgDisc, svcDisc)

	a, err := NewNode(ctx, Options{Partition: "p1"})
	require.NoError(t, err)

	first := a.Advertise("/a", testMessage{}.TypeName(), AdvertiseOptions{})
	require.True(t, first.Valid())

	second := a.Advertise("/a", testMessage{}.TypeName(), AdvertiseOptions{})
	require.False(t, second.Valid())
}

func TestAdvertisedAndSubscribedTopicsStripPartition(t *testing.T) {
	tr := newFakeTransport()
	msgDisc := newFakeDiscovery()
	svcDisc := newFakeDiscovery()
	ctx := newTestContext(tr, msgDisc, svcDisc)

	a, err := NewNode(ctx, Options{Partition: "p1", Namespace: "ns"})
	require.NoError(t, err)

	pub := a.Advertise("/a", testMessage{}.TypeName(), AdvertiseOptions{})
	require.True(t, pub.Valid())
	require.Equal(t, []string{"/ns/a"}, a.AdvertisedTopics())

	ok := a.Subscribe("/b", testMessage{}.TypeName(), func() Message { return &testMessage{} }, func(Message, MessageInfo) {})
	require.True(t, ok)
	require.Equal(t, []string{"/ns/b"}, a.SubscribedTopics())
}

// TestNodeCloseUnsubscribesAndUnadvertisesServices covers Node destruction:
// subscribed topics are unsubscribed and advertised services revoked, while
// outstanding Publisher handles keep working.
func TestNodeCloseUnsubscribesAndUnadvertisesServices(t *testing.T) {
	tr := newFakeTransport()
	msgDisc := newFakeDiscovery()
	svcDisc := newFakeDiscovery()
	ctx := newTestContext(tr, msgDisc, svcDisc)

	a, err := NewNode(ctx, Options{Partition: "p1"})
	require.NoError(t, err)

	pub := a.Advertise("/a", testMessage{}.TypeName(), AdvertiseOptions{})
	require.True(t, pub.Valid())

	ok := a.Subscribe("/b", testMessage{}.TypeName(), func() Message { return &testMessage{} }, func(Message, MessageInfo) {})
	require.True(t, ok)

	ok = a.AdvertiseService("/svc", testMessage{}.TypeName(), func() Message { return &testMessage{} }, func(Message, MessageInfo) {})
	require.True(t, ok)

	require.NoError(t, a.Close())

	require.Empty(t, a.SubscribedTopics())
	require.Empty(t, a.AdvertisedServices())

	// The Publisher created before Close keeps working.
	require.True(t, pub.Valid())
	require.True(t, pub.Publish(testMessage{Value: "still alive"}))
}

func TestTopicInfoDeduplicatesByIdentity(t *testing.T) {
	tr := newFakeTransport()
	msgDisc := newFakeDiscovery()
	svcDisc := newFakeDiscovery()
	ctx := newTestContext(tr, msgDisc, svcDisc)

	a, err := NewNode(ctx, Options{Partition: "p1"})
	require.NoError(t, err)

	fq, ok := fullyQualify("p1", "", "/a")
	require.True(t, ok)

	pubRecord := discovery.MessagePublisher{
		Topic:       fq,
		TypeName:    testMessage{}.TypeName(),
		ProcessUUID: "process-1",
		NodeUUID:    "node-x",
		DataAddr:    "addr",
		CtrlAddr:    "ctrl",
	}
	require.NoError(t, msgDisc.Advertise(nil, pubRecord))
	require.NoError(t, msgDisc.Advertise(nil, pubRecord))

	infos, err := a.TopicInfo(nil, "/a")
	require.NoError(t, err)
	require.Len(t, infos, 1)
}
