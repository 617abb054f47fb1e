// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"encoding/json"
	"errors"
	"reflect"

	"google.golang.org/protobuf/proto"

	"github.com/Voldivh/gz-transport/pkg/wire"
)

// TypeAny is the generic message-type sentinel: a handler registered with
// this type name matches a publish of any type.
const TypeAny = wire.TypeSentinelGeneric

// Message is the nominal contract every published value must satisfy.
// Serialization itself is supplied by an external message toolkit; this
// module only needs to know a value's declared type name.
type Message interface {
	// TypeName returns the nominal type this message was advertised or
	// subscribed under. It must be stable for a given Go type.
	TypeName() string
}

// MessageInfo is passed to a local handler alongside the delivered message.
type MessageInfo struct {
	Topic string // partition-stripped topic the message was published on
}

// Codec marshals a Message to bytes for remote delivery, and unmarshals
// bytes received from a remote publisher back into a Message of the
// subscriber's choosing.
type Codec interface {
	Marshal(msg Message) ([]byte, error)
	Unmarshal(data []byte, msg Message) error
}

// JSONCodec marshals any Message with encoding/json. It is the default
// codec used when a publisher or subscriber does not request protobuf
// serialization.
type JSONCodec struct{}

// Marshal implements Codec.
func (JSONCodec) Marshal(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// Unmarshal implements Codec.
func (JSONCodec) Unmarshal(data []byte, msg Message) error {
	return json.Unmarshal(data, msg)
}

// ProtoCodec marshals messages that also implement proto.Message with
// google.golang.org/protobuf, matching the wire format used elsewhere in
// the corpus this module's messaging layer is modeled on.
type ProtoCodec struct{}

// errNotProtoMessage is returned by ProtoCodec when msg does not implement
// proto.Message.
var errNotProtoMessage = errors.New("transport: message does not implement proto.Message")

// Marshal implements Codec.
func (ProtoCodec) Marshal(msg Message) ([]byte, error) {
	pm, ok := msg.(proto.Message)
	if !ok {
		return nil, errNotProtoMessage
	}
	return proto.Marshal(pm)
}

// Unmarshal implements Codec.
func (ProtoCodec) Unmarshal(data []byte, msg Message) error {
	pm, ok := msg.(proto.Message)
	if !ok {
		return errNotProtoMessage
	}
	return proto.Unmarshal(data, pm)
}

// cloner is implemented by messages that know how to duplicate themselves
// safely; the publish path prefers this over the reflective fallback.
type cloner interface {
	Clone() Message
}

// cloneMessage duplicates msg so that caller mutation after Publish returns
// cannot race the asynchronous dispatch. Messages that implement cloner or
// proto.Message get an exact duplicate; anything else gets a shallow copy
// of the pointed-to struct, which is safe as long as the message does not
// embed mutable slices or maps shared with the caller — producers of such
// messages should implement cloner themselves.
func cloneMessage(msg Message) Message {
	if c, ok := msg.(cloner); ok {
		return c.Clone()
	}
	if pm, ok := msg.(proto.Message); ok {
		if cloned, ok := proto.Clone(pm).(Message); ok {
			return cloned
		}
	}

	v := reflect.ValueOf(msg)
	if v.Kind() == reflect.Ptr && !v.IsNil() {
		cp := reflect.New(v.Elem().Type())
		cp.Elem().Set(v.Elem())
		if m, ok := cp.Interface().(Message); ok {
			return m
		}
	}

	return msg
}
