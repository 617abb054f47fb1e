// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Voldivh/gz-transport/pkg/discovery"
	"github.com/Voldivh/gz-transport/pkg/uuid"
	"github.com/Voldivh/gz-transport/pkg/wire"
)

// errInvalidName is returned when a caller-supplied topic or service name
// fails the resolver in fullyQualify.
var errInvalidName = errors.New("transport: invalid topic or service name")

// Node is the user-facing façade: it owns a stable UUID, its
// configuration, the set of topics it is subscribed to and services it
// has advertised, and orchestrates every operation against the shared
// Context. A Node does not own the Publisher handles returned by
// Advertise — those outlive the Node that created them.
type Node struct {
	mu sync.Mutex

	id   string
	opts Options
	ctx  *Context

	subscribed         map[string]string // fqTopic -> topic as passed to Subscribe
	advertisedTopics   map[string]string // fqTopic -> typeName, for duplicate-advertise rejection
	advertisedServices map[string]string // fqService -> service as passed to AdvertiseService
}

// NewNode creates a Node bound to ctx with the given options. ctx is
// retained for the Node's lifetime; callers must call Close to release it.
func NewNode(ctx *Context, opts Options) (*Node, error) {
	id, err := uuid.New().ID()
	if err != nil {
		return nil, err
	}

	ctx.Retain()

	return &Node{
		id:                 id,
		opts:               opts,
		ctx:                ctx,
		subscribed:         make(map[string]string),
		advertisedTopics:   make(map[string]string),
		advertisedServices: make(map[string]string),
	}, nil
}

// UUID returns this Node's stable identity.
func (n *Node) UUID() string {
	return n.id
}

func (n *Node) fullyQualify(name string) (string, bool) {
	return fullyQualify(n.opts.Partition, n.opts.Namespace, name)
}

// Advertise announces topic with the given message type and options,
// returning a Publisher handle. A duplicate advertise of the same topic
// by this Node, an invalid name, or a rejection from discovery all yield
// an invalid Publisher.
func (n *Node) Advertise(topic, typeName string, opts AdvertiseOptions) Publisher {
	fq, ok := n.fullyQualify(topic)
	if !ok {
		n.ctx.logger.Error("invalid topic name", "topic", topic)
		return Publisher{}
	}

	n.mu.Lock()
	if _, exists := n.advertisedTopics[fq]; exists {
		n.mu.Unlock()
		n.ctx.logger.Error("duplicate advertise", "topic", topic, "node", n.id)
		return Publisher{}
	}
	n.mu.Unlock()

	pub := discovery.MessagePublisher{
		Topic:       fq,
		TypeName:    typeName,
		ProcessUUID: n.ctx.processUUID,
		NodeUUID:    n.id,
		DataAddr:    n.ctx.transport.DataAddress(),
		CtrlAddr:    n.ctx.transport.ControlAddress(),
		MsgsPerSec:  opts.MsgsPerSec,
	}

	if n.ctx.msgDiscovery != nil {
		if err := n.ctx.msgDiscovery.Advertise(context.Background(), pub); err != nil {
			n.ctx.logger.Error("discovery advertise failed", "topic", topic, "error", err)
			return Publisher{}
		}
	}

	n.mu.Lock()
	n.advertisedTopics[fq] = typeName
	n.mu.Unlock()

	return newPublisher(n.ctx, fq, topic, typeName, n.id, opts)
}

// Subscribe registers handler for topic under the given message type.
// newMessage builds an empty instance of the subscriber's message type so
// payloads arriving from a remote publisher can be decoded into it; it may
// be nil if this subscriber only ever receives locally-published messages.
// On the topic's first subscriber in this process, the transport filter is
// installed. Returns false on an invalid name or a discovery failure.
func (n *Node) Subscribe(topic, typeName string, newMessage NewMessage, handler Handler) bool {
	fq, ok := n.fullyQualify(topic)
	if !ok {
		n.ctx.logger.Error("invalid topic name", "topic", topic)
		return false
	}

	firstSubscriber := n.ctx.addSubscription(fq, n.id, typeName, handler, newMessage)

	n.mu.Lock()
	n.subscribed[fq] = topic
	n.mu.Unlock()

	if firstSubscriber {
		if err := n.ctx.transport.AddFilter(fq); err != nil {
			n.ctx.logger.Error("add filter failed", "topic", topic, "error", err)
		}
	}

	if n.ctx.msgDiscovery != nil {
		if err := n.ctx.msgDiscovery.Discover(context.Background(), fq); err != nil {
			n.ctx.logger.Error("discover failed", "topic", topic, "error", err)
			return false
		}
	}

	return true
}

// Unsubscribe removes this Node's handlers for topic, tears down the
// transport filter if no handler remains for it anywhere in the process,
// and best-effort notifies every known publisher of topic that this node
// has lost interest.
func (n *Node) Unsubscribe(topic string) bool {
	fq, ok := n.fullyQualify(topic)
	if !ok {
		n.ctx.logger.Error("invalid topic name", "topic", topic)
		return false
	}

	_, lastSubscriber := n.ctx.removeSubscriptions(fq, n.id)

	n.mu.Lock()
	delete(n.subscribed, fq)
	n.mu.Unlock()

	if lastSubscriber {
		if err := n.ctx.transport.RemoveFilter(fq); err != nil {
			n.ctx.logger.Error("remove filter failed", "topic", topic, "error", err)
		}
	}

	n.notifyEndConnection(fq)

	return true
}

// notifyEndConnection sends the five-frame end-connection control message
// to every currently known publisher of fq. Delivery is best-effort: a
// vanished peer is logged at debug level and otherwise ignored.
func (n *Node) notifyEndConnection(fq string) {
	if n.ctx.msgDiscovery == nil {
		return
	}

	ctx := context.Background()
	byProcess, err := n.ctx.msgDiscovery.Publishers(ctx, fq)
	if err != nil {
		n.ctx.logger.Error("publishers lookup failed", "topic", fq, "error", err)
		return
	}

	frame := wire.ControlFrame{
		Topic:          fq,
		SenderDataAddr: n.ctx.transport.DataAddress(),
		SenderNodeUUID: n.id,
		TypeSentinel:   wire.TypeSentinelGeneric,
		Opcode:         wire.OpEndConnection,
	}

	for _, pubs := range byProcess {
		for _, p := range pubs {
			if err := n.ctx.transport.SendControlFrame(ctx, p.CtrlAddr, frame); err != nil {
				n.ctx.logger.Debug("end-connection notify failed", "topic", fq, "addr", p.CtrlAddr, "error", err)
			}
		}
	}
}

// AdvertiseService registers handler as this Node's responder for service,
// under the given message type. newMessage builds an empty request
// instance so a remote caller's request payload can be decoded into it.
func (n *Node) AdvertiseService(service, typeName string, newMessage NewMessage, handler Handler) bool {
	fq, ok := n.fullyQualify(service)
	if !ok {
		n.ctx.logger.Error("invalid service name", "service", service)
		return false
	}

	n.ctx.addReplier(fq, n.id, typeName, handler, newMessage)

	n.mu.Lock()
	n.advertisedServices[fq] = service
	n.mu.Unlock()

	if n.ctx.svcDiscovery != nil {
		pub := discovery.MessagePublisher{
			Topic:       fq,
			TypeName:    typeName,
			ProcessUUID: n.ctx.processUUID,
			NodeUUID:    n.id,
			DataAddr:    n.ctx.transport.DataAddress(),
			CtrlAddr:    n.ctx.transport.ControlAddress(),
		}
		if err := n.ctx.svcDiscovery.Advertise(context.Background(), pub); err != nil {
			n.ctx.logger.Error("service discovery advertise failed", "service", service, "error", err)
			return false
		}
	}

	return true
}

// UnadvertiseService removes this Node's responder for service.
func (n *Node) UnadvertiseService(service string) bool {
	fq, ok := n.fullyQualify(service)
	if !ok {
		n.ctx.logger.Error("invalid service name", "service", service)
		return false
	}

	n.ctx.removeRepliers(fq, n.id)

	n.mu.Lock()
	delete(n.advertisedServices, fq)
	n.mu.Unlock()

	if n.ctx.svcDiscovery != nil {
		if err := n.ctx.svcDiscovery.Unadvertise(context.Background(), fq, n.id); err != nil {
			n.ctx.logger.Error("service unadvertise failed", "service", service, "error", err)
			return false
		}
	}

	return true
}

// SubscribedTopics returns the deduplicated, partition-stripped topics
// this Node currently subscribes to.
func (n *Node) SubscribedTopics() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return dedupStrippedKeys(n.subscribed)
}

// AdvertisedTopics returns the deduplicated, partition-stripped topics
// this Node has advertised a Publisher for.
func (n *Node) AdvertisedTopics() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return dedupStrippedKeys(n.advertisedTopics)
}

// AdvertisedServices returns the deduplicated, partition-stripped services
// this Node currently advertises.
func (n *Node) AdvertisedServices() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return dedupStrippedKeys(n.advertisedServices)
}

func dedupStrippedKeys(fqByKey map[string]string) []string {
	seen := make(map[string]struct{}, len(fqByKey))
	out := make([]string, 0, len(fqByKey))
	for fq := range fqByKey {
		t := stripPartition(fq)
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// TopicList returns every fully-known topic name in this Node's partition,
// partition-stripped and deduplicated.
func (n *Node) TopicList(ctx context.Context) ([]string, error) {
	return n.listNames(ctx, n.ctx.msgDiscovery)
}

// ServiceList returns every fully-known service name in this Node's
// partition, partition-stripped and deduplicated.
func (n *Node) ServiceList(ctx context.Context) ([]string, error) {
	return n.listNames(ctx, n.ctx.svcDiscovery)
}

func (n *Node) listNames(ctx context.Context, client discovery.Client) ([]string, error) {
	if client == nil {
		return nil, nil
	}

	names, err := client.TopicList(ctx)
	if err != nil {
		return nil, err
	}

	prefix := n.opts.Partition + "@"
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, fq := range names {
		if !strings.HasPrefix(fq, prefix) {
			continue
		}
		t := stripPartition(fq)
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// TopicInfo waits for discovery to finish initializing and returns every
// distinct publisher known for topic.
func (n *Node) TopicInfo(ctx context.Context, topic string) ([]discovery.MessagePublisher, error) {
	return n.info(ctx, n.ctx.msgDiscovery, topic)
}

// ServiceInfo waits for discovery to finish initializing and returns every
// distinct advertiser known for service.
func (n *Node) ServiceInfo(ctx context.Context, service string) ([]discovery.MessagePublisher, error) {
	return n.info(ctx, n.ctx.svcDiscovery, service)
}

func (n *Node) info(ctx context.Context, client discovery.Client, name string) ([]discovery.MessagePublisher, error) {
	if client == nil {
		return nil, nil
	}

	fq, ok := n.fullyQualify(name)
	if !ok {
		return nil, errInvalidName
	}

	if err := client.WaitForInit(ctx); err != nil {
		return nil, err
	}

	byProcess, err := client.Publishers(ctx, fq)
	if err != nil {
		return nil, err
	}

	var out []discovery.MessagePublisher
	for _, pubs := range byProcess {
		for _, p := range pubs {
			if !containsPublisher(out, p) {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func containsPublisher(publishers []discovery.MessagePublisher, p discovery.MessagePublisher) bool {
	for _, existing := range publishers {
		if existing.Equal(p) {
			return true
		}
	}
	return false
}

// Close unsubscribes this Node from every topic it subscribes to and
// unadvertises every service it has advertised, then releases its
// reference on the shared Context. Outstanding Publisher handles created
// by this Node are unaffected and continue to work until their own
// refcounts drop.
func (n *Node) Close() error {
	n.mu.Lock()
	topics := make([]string, 0, len(n.subscribed))
	for _, topic := range n.subscribed {
		topics = append(topics, topic)
	}
	services := make([]string, 0, len(n.advertisedServices))
	for _, service := range n.advertisedServices {
		services = append(services, service)
	}
	n.mu.Unlock()

	for _, t := range topics {
		n.Unsubscribe(t)
	}
	for _, s := range services {
		n.UnadvertiseService(s)
	}

	n.mu.Lock()
	subEmpty := len(n.subscribed) == 0
	svcEmpty := len(n.advertisedServices) == 0
	n.mu.Unlock()

	if !subEmpty || !svcEmpty {
		n.ctx.logger.Error("node teardown left sets non-empty",
			"node", n.id, "subscribedEmpty", subEmpty, "servicesEmpty", svcEmpty)
	}

	n.ctx.Release()

	return nil
}
