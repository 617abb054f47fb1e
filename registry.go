// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

package transport

// Handler is invoked for each message delivered to a subscription. info
// carries the partition-stripped topic the message arrived on.
type Handler func(msg Message, info MessageInfo)

// NewMessage builds an empty Message of a subscriber's chosen type, so an
// inbound remote payload can be decoded into it. Subscribers that never
// receive remote traffic for their topic may leave this nil.
type NewMessage func() Message

// handlerEntry is one subscription or service responder registered for a
// fully-qualified topic.
type handlerEntry struct {
	nodeUUID   string
	typeName   string
	handler    Handler
	newMessage NewMessage
}

// handlerRegistry tracks local handlers per fully-qualified topic. It is
// unsynchronized: callers must hold the owning Context's mutex.
type handlerRegistry struct {
	byTopic map[string][]handlerEntry
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{byTopic: make(map[string][]handlerEntry)}
}

// addHandler registers handler for fqTopic under nodeUUID and typeName.
// newMessage may be nil when the registrant never needs remote payloads
// decoded on its behalf.
func (r *handlerRegistry) addHandler(fqTopic, nodeUUID, typeName string, handler Handler, newMessage NewMessage) {
	r.byTopic[fqTopic] = append(r.byTopic[fqTopic], handlerEntry{
		nodeUUID:   nodeUUID,
		typeName:   typeName,
		handler:    handler,
		newMessage: newMessage,
	})
}

// firstHandler returns a handler registered for fqTopic whose type equals
// typeName or is the generic sentinel. The second return is false when no
// such handler is registered.
func (r *handlerRegistry) firstHandler(fqTopic, typeName string) (handlerEntry, bool) {
	for _, e := range r.byTopic[fqTopic] {
		if e.typeName == typeName || e.typeName == TypeAny {
			return e, true
		}
	}
	return handlerEntry{}, false
}

// handlersForTopic returns every entry registered for fqTopic whose type
// equals typeName or is the generic sentinel.
func (r *handlerRegistry) handlersForTopic(fqTopic, typeName string) []handlerEntry {
	var out []handlerEntry
	for _, e := range r.byTopic[fqTopic] {
		if e.typeName == typeName || e.typeName == TypeAny {
			out = append(out, e)
		}
	}
	return out
}

// hasHandlersForTopic reports whether fqTopic has at least one registered
// handler remaining.
func (r *handlerRegistry) hasHandlersForTopic(fqTopic string) bool {
	return len(r.byTopic[fqTopic]) > 0
}

// removeHandlersForNode removes every entry registered under nodeUUID for
// fqTopic, returning the number removed.
func (r *handlerRegistry) removeHandlersForNode(fqTopic, nodeUUID string) int {
	entries := r.byTopic[fqTopic]
	kept := entries[:0]
	removed := 0
	for _, e := range entries {
		if e.nodeUUID == nodeUUID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		delete(r.byTopic, fqTopic)
	} else {
		r.byTopic[fqTopic] = kept
	}
	return removed
}

// topics returns every fully-qualified topic with at least one registered
// handler.
func (r *handlerRegistry) topics() []string {
	out := make([]string, 0, len(r.byTopic))
	for topic := range r.byTopic {
		out = append(out, topic)
	}
	return out
}

// remoteIndex tracks which (fully-qualified topic, type name) pairs have at
// least one remote subscriber interested, per the discovery announcements a
// Context has observed. It is unsynchronized: callers must hold the owning
// Context's mutex.
type remoteIndex struct {
	interested map[string]map[string]bool
}

func newRemoteIndex() *remoteIndex {
	return &remoteIndex{interested: make(map[string]map[string]bool)}
}

// hasRemote reports whether fqTopic currently has a remote subscriber whose
// registered type equals typeName or is the generic sentinel.
func (r *remoteIndex) hasRemote(fqTopic, typeName string) bool {
	byType := r.interested[fqTopic]
	if byType == nil {
		return false
	}
	return byType[typeName] || byType[TypeAny]
}

// setInterest records whether fqTopic has a remote subscriber of typeName.
func (r *remoteIndex) setInterest(fqTopic, typeName string, interested bool) {
	if interested {
		byType := r.interested[fqTopic]
		if byType == nil {
			byType = make(map[string]bool)
			r.interested[fqTopic] = byType
		}
		byType[typeName] = true
		return
	}
	if byType, ok := r.interested[fqTopic]; ok {
		delete(byType, typeName)
		if len(byType) == 0 {
			delete(r.interested, fqTopic)
		}
	}
}

// hasAnyRemote reports whether fqTopic has any remote subscriber of any type.
func (r *remoteIndex) hasAnyRemote(fqTopic string) bool {
	return len(r.interested[fqTopic]) > 0
}
