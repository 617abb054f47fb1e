// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

// Package transport implements a topic-based publish/subscribe and
// request/reply messaging fabric for processes cooperating on a local
// network.
//
// A Node is the unit of participation: it advertises topics it will
// publish, subscribes to topics it consumes, advertises services it will
// answer, and invokes services offered by peers. Delivery spans two domains
// transparently to the caller — in-process (direct callback invocation) and
// inter-process (cross-host via the wire.Transport and discovery.Client
// collaborators). Message typing is nominal: each topic is bound to one
// message type name, enforced at publish time.
//
// The package's core is the publish path and subscription routing engine
// (Publisher and the shared Context it dispatches through); discovery, wire
// transport and message serialization are pluggable collaborators defined
// in the pkg/discovery, pkg/wire and Codec/Message contracts respectively.
package transport
