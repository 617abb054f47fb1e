// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type clonerMessage struct {
	Value   string
	cloned  bool
	clonedN int
}

func (m *clonerMessage) TypeName() string { return "test.ClonerMessage" }

func (m *clonerMessage) Clone() Message {
	m.clonedN++
	return &clonerMessage{Value: m.Value, cloned: true, clonedN: m.clonedN}
}

func TestCloneMessagePrefersClonerInterface(t *testing.T) {
	orig := &clonerMessage{Value: "a"}
	cloned := cloneMessage(orig)

	c, ok := cloned.(*clonerMessage)
	require.True(t, ok)
	require.True(t, c.cloned)
	require.NotSame(t, orig, c)
	require.Equal(t, "a", c.Value)
}

func TestCloneMessageShallowCopiesPointerStruct(t *testing.T) {
	orig := &testMessage{Value: "a"}
	cloned := cloneMessage(orig)

	c, ok := cloned.(*testMessage)
	require.True(t, ok)
	require.NotSame(t, orig, c)
	require.Equal(t, orig.Value, c.Value)

	c.Value = "b"
	require.Equal(t, "a", orig.Value)
}

func TestCloneMessagePassesThroughNonPointer(t *testing.T) {
	orig := testMessage{Value: "a"}
	cloned := cloneMessage(orig)
	require.Equal(t, orig, cloned)
}

func TestJSONCodecRoundTrip(t *testing.T) {
	codec := JSONCodec{}

	data, err := codec.Marshal(&clonerMessage{Value: "hello"})
	require.NoError(t, err)

	out := &clonerMessage{}
	require.NoError(t, codec.Unmarshal(data, out))
	require.Equal(t, "hello", out.Value)
}

func TestProtoCodecRejectsNonProtoMessage(t *testing.T) {
	codec := ProtoCodec{}

	_, err := codec.Marshal(&clonerMessage{})
	require.ErrorIs(t, err, errNotProtoMessage)

	err = codec.Unmarshal([]byte{}, &clonerMessage{})
	require.ErrorIs(t, err, errNotProtoMessage)
}
