// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

// Package discovery defines the contract the node-side routing engine uses
// to announce and resolve publisher and replier endpoints. The discovery
// protocol itself (beacons, info tables) is out of scope for this module;
// only the interface the core depends on, plus one concrete NATS-backed
// binding (package natsdiscovery), live here.
package discovery

import "context"

// MessagePublisher describes a single advertised publisher or replier, as
// announced to and resolved from discovery.
type MessagePublisher struct {
	Topic       string  // fully-qualified topic or service name
	TypeName    string  // nominal message type name
	ProcessUUID string  // owning process identity
	NodeUUID    string  // owning node identity
	DataAddr    string  // transport data endpoint
	CtrlAddr    string  // transport control endpoint
	MsgsPerSec  float64 // throttle rate, 0 means unthrottled
}

// Equal reports value equality across the fields that identify a unique
// advertisement, used to deduplicate publisher records gathered from
// multiple processes.
func (m MessagePublisher) Equal(other MessagePublisher) bool {
	return m.Topic == other.Topic &&
		m.TypeName == other.TypeName &&
		m.ProcessUUID == other.ProcessUUID &&
		m.NodeUUID == other.NodeUUID &&
		m.DataAddr == other.DataAddr &&
		m.CtrlAddr == other.CtrlAddr
}

// Info exposes discovery's per-process/per-node view of advertisements.
type Info interface {
	// PublishersByNode returns the publishers a given (processUUID,
	// nodeUUID) pair currently has advertised.
	PublishersByNode(ctx context.Context, processUUID, nodeUUID string) ([]MessagePublisher, error)
}

// Client is the discovery contract consumed by the node-side routing
// engine. A single Client instance is used for message-publisher discovery;
// a second, independently configured instance is used for service
// advertisers.
type Client interface {
	// Advertise announces pub to the network. Advertising the same
	// (topic, NodeUUID) pair twice with a different TypeName is an error.
	Advertise(ctx context.Context, pub MessagePublisher) error

	// Unadvertise revokes the advertisement for (topic, nodeUUID).
	Unadvertise(ctx context.Context, topic, nodeUUID string) error

	// Discover signals interest in topic so that its publisher set is
	// kept warm; it does not itself return data.
	Discover(ctx context.Context, topic string) error

	// Publishers returns every known publisher of topic, grouped by
	// owning process UUID.
	Publishers(ctx context.Context, topic string) (map[string][]MessagePublisher, error)

	// Info returns the per-node view of this Client's data.
	Info() Info

	// TopicList returns every fully-qualified name known to discovery.
	TopicList(ctx context.Context) ([]string, error)

	// WaitForInit blocks until discovery has finished initializing.
	WaitForInit(ctx context.Context) error

	// Close releases the Client's resources.
	Close() error
}
