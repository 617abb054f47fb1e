// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Voldivh/gz-transport/pkg/discovery"
	"github.com/Voldivh/gz-transport/pkg/wire"
	"github.com/Voldivh/gz-transport/pkg/workerpool"
)

// Context is the process-wide shared transport context: it owns the
// wire transport, the discovery clients, the worker pool, and the local
// registries the publish and subscribe paths read and mutate.
//
// The source this module is modeled on guards the registries with a single
// recursive mutex, required because a Publisher's teardown can reenter the
// context while the context itself holds the lock over a registry mutation.
// Go mutexes are not reentrant, so this Context instead uses a plain
// sync.Mutex and moves every destructor-driven discovery call onto a
// deferred cleanup queue drained by a background goroutine outside the
// lock — the alternative the design notes call out explicitly.
type Context struct {
	mu sync.Mutex

	handlers   *handlerRegistry // local subscription handlers, keyed by topic
	repliers   *handlerRegistry // local service repliers, keyed by service name
	remoteSubs *remoteIndex     // remote subscriber interest, keyed by topic

	msgDiscovery discovery.Client
	svcDiscovery discovery.Client
	transport    wire.Transport

	processUUID string

	logger *slog.Logger

	pool  workerpool.Pool
	codec Codec

	refs int32

	cleanup     chan func()
	cleanupDone chan struct{}
	closeOnce   sync.Once
}

// ContextConfig supplies a Context's collaborators. Every field is
// required except Logger, which defaults to slog.Default(), and Codec.
type ContextConfig struct {
	MessageDiscovery discovery.Client
	ServiceDiscovery discovery.Client
	Transport        wire.Transport
	Pool             workerpool.Pool
	ProcessUUID      string
	Logger           *slog.Logger

	// Codec decodes payloads arriving from remote publishers. Defaults
	// to JSONCodec.
	Codec Codec
}

// NewContext builds a Context with a reference count of one, which the
// creator drops with Release. NewNode retains the Context for each Node
// and Node.Close releases it; any other owner must pair its own Retain
// with a Release.
func NewContext(cfg ContextConfig) *Context {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	codec := cfg.Codec
	if codec == nil {
		codec = JSONCodec{}
	}

	c := &Context{
		handlers:     newHandlerRegistry(),
		repliers:     newHandlerRegistry(),
		remoteSubs:   newRemoteIndex(),
		msgDiscovery: cfg.MessageDiscovery,
		svcDiscovery: cfg.ServiceDiscovery,
		transport:    cfg.Transport,
		processUUID:  cfg.ProcessUUID,
		logger:       logger,
		pool:         cfg.Pool,
		codec:        codec,
		refs:         1,
		cleanup:      make(chan func(), 256),
		cleanupDone:  make(chan struct{}),
	}

	go c.drainCleanup()

	return c
}

func (c *Context) drainCleanup() {
	defer close(c.cleanupDone)
	for fn := range c.cleanup {
		fn()
	}
}

// deferCleanup schedules fn to run outside the context mutex, on the
// background cleanup goroutine. Used for destructor-driven discovery calls
// (Publisher drop) that must never reenter the mutex a caller may already
// be holding.
func (c *Context) deferCleanup(fn func()) {
	select {
	case c.cleanup <- fn:
	default:
		// Queue saturated: run on a goroutine of its own rather than drop
		// an unadvertise.
		go fn()
	}
}

// Retain increments the Context's reference count.
func (c *Context) Retain() {
	atomic.AddInt32(&c.refs, 1)
}

// Release decrements the Context's reference count, closing the
// Context's collaborators once the count reaches zero.
func (c *Context) Release() {
	if atomic.AddInt32(&c.refs, -1) == 0 {
		c.shutdown()
	}
}

func (c *Context) shutdown() {
	c.closeOnce.Do(func() {
		close(c.cleanup)
		<-c.cleanupDone

		if c.pool != nil {
			if err := c.pool.Close(); err != nil {
				c.logger.Error("worker pool close failed", "error", err)
			}
		}
		if c.transport != nil {
			if err := c.transport.Close(); err != nil {
				c.logger.Error("transport close failed", "error", err)
			}
		}
		if c.msgDiscovery != nil {
			if err := c.msgDiscovery.Close(); err != nil {
				c.logger.Error("message discovery close failed", "error", err)
			}
		}
		if c.svcDiscovery != nil {
			if err := c.svcDiscovery.Close(); err != nil {
				c.logger.Error("service discovery close failed", "error", err)
			}
		}
	})
}

// subscriberSnapshot is the local-handler and remote-interest lookup
// captured under the context mutex at the start of a publish.
type subscriberSnapshot struct {
	local     []handlerEntry
	hasRemote bool
}

func (s subscriberSnapshot) empty() bool {
	return len(s.local) == 0 && !s.hasRemote
}

// snapshotSubscribers captures the local handlers and remote interest for
// fqTopic matching typeName (or the generic sentinel).
func (c *Context) snapshotSubscribers(fqTopic, typeName string) subscriberSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return subscriberSnapshot{
		local:     c.handlers.handlersForTopic(fqTopic, typeName),
		hasRemote: c.remoteSubs.hasRemote(fqTopic, typeName),
	}
}

// publishRemote sends an already-serialized payload over the transport.
func (c *Context) publishRemote(ctx context.Context, fqTopic, typeName string, payload []byte) error {
	return c.transport.Publish(ctx, fqTopic, payload, typeName)
}

// addSubscription registers handler for fqTopic under nodeUUID and
// typeName. It returns whether this is the topic's first handler in the
// process, so the caller can install the transport filter without holding
// the mutex.
func (c *Context) addSubscription(fqTopic, nodeUUID, typeName string, handler Handler, newMessage NewMessage) (firstSubscriber bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	firstSubscriber = !c.handlers.hasHandlersForTopic(fqTopic)
	c.handlers.addHandler(fqTopic, nodeUUID, typeName, handler, newMessage)
	return firstSubscriber
}

// removeSubscriptions removes every handler nodeUUID registered for
// fqTopic and reports whether the topic has no handlers left anywhere in
// the process, meaning the transport filter should be torn down.
func (c *Context) removeSubscriptions(fqTopic, nodeUUID string) (removed int, lastSubscriber bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed = c.handlers.removeHandlersForNode(fqTopic, nodeUUID)
	lastSubscriber = !c.handlers.hasHandlersForTopic(fqTopic)
	return removed, lastSubscriber
}

// addReplier registers handler as a service responder for fqService.
func (c *Context) addReplier(fqService, nodeUUID, typeName string, handler Handler, newMessage NewMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repliers.addHandler(fqService, nodeUUID, typeName, handler, newMessage)
}

// removeRepliers removes every replier nodeUUID registered for fqService.
func (c *Context) removeRepliers(fqService, nodeUUID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repliers.removeHandlersForNode(fqService, nodeUUID)
}

// setRemoteInterest records remote subscriber interest observed from
// discovery for fqTopic.
func (c *Context) setRemoteInterest(fqTopic, typeName string, interested bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remoteSubs.setInterest(fqTopic, typeName, interested)
}

// hasHandlersForTopic reports whether any node in the process still has a
// handler registered for fqTopic.
func (c *Context) hasHandlersForTopic(fqTopic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlers.hasHandlersForTopic(fqTopic)
}

// Deliver routes a payload received from the wire transport to every
// local handler registered for fqTopic that matches typeName, the
// counterpart of Publisher's local fan-out for messages originating on a
// remote process. It is the callback a concrete wire.Transport is
// constructed with.
func (c *Context) Deliver(fqTopic, typeName string, payload []byte) {
	c.mu.Lock()
	entries := c.handlers.handlersForTopic(fqTopic, typeName)
	c.mu.Unlock()

	if len(entries) == 0 {
		return
	}

	topic := stripPartition(fqTopic)
	for _, e := range entries {
		if e.newMessage == nil || e.handler == nil {
			continue
		}
		msg := e.newMessage()
		if err := c.codec.Unmarshal(payload, msg); err != nil {
			c.logger.Error("inbound decode failed", "topic", topic, "error", err)
			continue
		}
		c.invokeInbound(e.handler, msg, topic)
	}
}

func (c *Context) invokeInbound(handler Handler, msg Message, topic string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("inbound handler panicked", "topic", topic, "panic", r)
		}
	}()
	handler(msg, MessageInfo{Topic: topic})
}
