// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// CompletionFunc receives the message back along with the outcome of the
// remote-send leg, for the ownership-transfer form of Publish.
type CompletionFunc func(msg Message, ok bool)

// publisherState is the state shared by every Publisher handle obtained
// from the same Advertise call. Publisher itself is a thin, copyable
// wrapper around a pointer to this struct; the last copy to Close triggers
// the unadvertise.
type publisherState struct {
	ctx *Context

	fqTopic  string // canonical registry key
	topic    string // partition-stripped, user-facing
	typeName string
	nodeUUID string
	codec    Codec

	msgsPerSec float64
	periodNs   int64

	throttleMu sync.Mutex
	lastEmitAt time.Time

	refs int32 // atomic, starts at 1

	closeOnce sync.Once
}

// Publisher is the handle returned by Node.Advertise. It is safe to copy;
// every copy shares the same underlying advertisement and refcount. The
// last copy to have Close called on it unadvertises with discovery.
type Publisher struct {
	state *publisherState
}

func newPublisher(ctx *Context, fqTopic, topic, typeName, nodeUUID string, opts AdvertiseOptions) Publisher {
	var periodNs int64
	if opts.MsgsPerSec > 0 {
		periodNs = int64(1e9 / opts.MsgsPerSec)
	}

	return Publisher{state: &publisherState{
		ctx:        ctx,
		fqTopic:    fqTopic,
		topic:      topic,
		typeName:   typeName,
		nodeUUID:   nodeUUID,
		codec:      opts.codec(),
		msgsPerSec: opts.MsgsPerSec,
		periodNs:   periodNs,
		refs:       1,
	}}
}

// Valid reports whether this handle refers to a live advertisement. The
// zero Publisher is invalid and every publish operation on it fails.
func (p Publisher) Valid() bool {
	return p.state != nil && p.state.fqTopic != ""
}

// Topic returns the partition-stripped topic this Publisher advertises.
func (p Publisher) Topic() string {
	if p.state == nil {
		return ""
	}
	return p.state.topic
}

// HasConnections reports whether a matching local subscriber or remote
// subscriber currently exists for this Publisher's topic and type.
func (p Publisher) HasConnections() bool {
	if !p.Valid() {
		return false
	}
	snap := p.state.ctx.snapshotSubscribers(p.state.fqTopic, p.state.typeName)
	return !snap.empty()
}

// Share returns a copy of p that holds its own reference to the
// underlying advertisement; Close must be called on every copy for the
// advertisement to be revoked.
func (p Publisher) Share() Publisher {
	if p.state != nil {
		atomic.AddInt32(&p.state.refs, 1)
	}
	return p
}

// Close drops this handle's reference to the advertisement. Once every
// shared copy has been closed, the advertisement is unadvertised with
// discovery.
func (p Publisher) Close() {
	if p.state == nil {
		return
	}
	if atomic.AddInt32(&p.state.refs, -1) == 0 {
		p.state.closeOnce.Do(p.state.unadvertise)
	}
}

func (s *publisherState) unadvertise() {
	s.ctx.deferCleanup(func() {
		if s.ctx.msgDiscovery == nil {
			return
		}
		if err := s.ctx.msgDiscovery.Unadvertise(context.Background(), s.fqTopic, s.nodeUUID); err != nil {
			s.ctx.logger.Error("unadvertise failed", "topic", s.topic, "node", s.nodeUUID, "error", err)
		}
	})
}

// throttleAllow compares the elapsed time since the last accepted emit
// against the configured period, using time.Now's monotonic reading. A
// rejected call does not advance lastEmitAt, so a steady stream is paced
// evenly rather than bursting once the gate reopens.
func (s *publisherState) throttleAllow() bool {
	if s.msgsPerSec <= 0 {
		return true
	}

	period := time.Duration(s.periodNs)

	s.throttleMu.Lock()
	defer s.throttleMu.Unlock()

	now := time.Now()
	if !s.lastEmitAt.IsZero() && now.Sub(s.lastEmitAt) < period {
		return false
	}
	s.lastEmitAt = now
	return true
}

// Publish dispatches msg asynchronously to every local handler and remote
// subscriber currently registered for this Publisher's topic. It returns
// false only when the handle is invalid or msg fails the type precheck;
// throttle drops and the absence of any subscriber are both reported as
// true ("success, no-op").
func (p Publisher) Publish(msg Message) bool {
	if !p.Valid() {
		return false
	}
	s := p.state

	if msg.TypeName() != s.typeName {
		s.ctx.logger.Warn("publish type mismatch",
			"topic", s.topic, "advertised", s.typeName, "got", msg.TypeName())
		return false
	}

	if !s.throttleAllow() {
		return true
	}

	snap := s.ctx.snapshotSubscribers(s.fqTopic, s.typeName)
	if snap.empty() {
		return true
	}

	msgCopy := cloneMessage(msg)
	if err := s.ctx.pool.Submit(func() {
		s.dispatchLocal(snap.local, msgCopy)
		if snap.hasRemote {
			s.sendRemote(msgCopy)
		}
	}); err != nil {
		s.ctx.logger.Error("worker pool submit failed", "topic", s.topic, "error", err)
	}

	return true
}

// PublishWithCallback is the ownership-transfer variant of Publish: done
// is invoked with msg and the outcome of the remote-send leg once both the
// local fan-out and the remote send have completed. On early return
// (invalid handle, type mismatch, throttle drop, no subscribers) done runs
// synchronously before PublishWithCallback returns.
func (p Publisher) PublishWithCallback(msg Message, done CompletionFunc) {
	if done == nil {
		done = func(Message, bool) {}
	}
	if !p.Valid() {
		done(msg, false)
		return
	}
	s := p.state

	if msg.TypeName() != s.typeName {
		s.ctx.logger.Warn("publish type mismatch",
			"topic", s.topic, "advertised", s.typeName, "got", msg.TypeName())
		done(msg, false)
		return
	}

	if !s.throttleAllow() {
		done(msg, true)
		return
	}

	snap := s.ctx.snapshotSubscribers(s.fqTopic, s.typeName)
	if snap.empty() {
		done(msg, true)
		return
	}

	err := s.ctx.pool.Submit(func() {
		s.dispatchLocal(snap.local, msg)
		result := true
		if snap.hasRemote {
			result = s.sendRemoteResult(msg)
		}
		done(msg, result)
	})
	if err != nil {
		s.ctx.logger.Error("worker pool submit failed", "topic", s.topic, "error", err)
		done(msg, false)
	}
}

// dispatchLocal invokes every matching handler. Each invocation is
// isolated: a panicking handler is logged and does not prevent the rest
// from running.
func (s *publisherState) dispatchLocal(handlers []handlerEntry, msg Message) {
	for _, h := range handlers {
		s.invokeHandler(h, msg)
	}
}

func (s *publisherState) invokeHandler(h handlerEntry, msg Message) {
	if h.handler == nil {
		s.ctx.logger.Warn("nil handler skipped", "topic", s.topic)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.ctx.logger.Error("subscriber handler panicked", "topic", s.topic, "panic", r)
		}
	}()
	h.handler(msg, MessageInfo{Topic: s.topic})
}

// sendRemote serializes msg and publishes it over the transport, logging
// and ignoring any failure.
func (s *publisherState) sendRemote(msg Message) {
	s.sendRemoteResult(msg)
}

func (s *publisherState) sendRemoteResult(msg Message) bool {
	payload, err := s.codec.Marshal(msg)
	if err != nil {
		s.ctx.logger.Error("message serialization failed", "topic", s.topic, "error", err)
		return false
	}
	if err := s.ctx.publishRemote(context.Background(), s.fqTopic, s.typeName, payload); err != nil {
		s.ctx.logger.Error("remote publish failed", "topic", s.topic, "error", err)
		return false
	}
	return true
}
