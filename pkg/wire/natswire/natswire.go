// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

// Package natswire implements wire.Transport's Publish and subscription
// filter operations over core NATS, the way the wider messaging platform's
// pkg/messaging/nats package wraps a *nats.Conn for its own publisher. The
// control-socket half of wire.Transport (SendControlFrame) delegates to
// package controlsock, which dials the peer directly over TCP and speaks
// its raw framed protocol, since control frames are addressed
// point-to-point by the peer's own listening address rather than fanned
// out through the broker.
package natswire

import (
	"context"
	"fmt"
	"sync"

	broker "github.com/nats-io/nats.go"

	"github.com/Voldivh/gz-transport/pkg/errors"
	"github.com/Voldivh/gz-transport/pkg/wire"
	"github.com/Voldivh/gz-transport/pkg/wire/controlsock"
)

// ErrEmptyTopic is returned by Publish when topic is empty.
var ErrEmptyTopic = errors.New("topic cannot be empty")

type natsTransport struct {
	conn   *broker.Conn
	prefix string

	dataAddr string
	ctrlAddr string

	ctrlSender *controlsock.Sender

	mu      sync.Mutex
	filters map[string]*broker.Subscription
	handler func(topic, typeName string, payload []byte)
}

var _ wire.Transport = (*natsTransport)(nil)

// New connects to the NATS server at url and returns a wire.Transport that
// publishes under subjects prefixed with prefix. dataAddr/ctrlAddr are the
// logical endpoints advertised to discovery; they need not be dialable NATS
// addresses since NATS itself fans out by subject, not by socket address.
// handler is invoked for every message this process receives on a filter it
// has installed.
func New(url, prefix, dataAddr, ctrlAddr string, handler func(topic, typeName string, payload []byte)) (wire.Transport, error) {
	conn, err := broker.Connect(url, broker.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}

	return &natsTransport{
		conn:       conn,
		prefix:     prefix,
		dataAddr:   dataAddr,
		ctrlAddr:   ctrlAddr,
		ctrlSender: controlsock.NewSender(0),
		filters:    make(map[string]*broker.Subscription),
		handler:    handler,
	}, nil
}

func (t *natsTransport) subject(topic string) string {
	return fmt.Sprintf("%s.%s", t.prefix, topic)
}

func (t *natsTransport) Publish(_ context.Context, topic string, payload []byte, typeName string) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	msg := broker.NewMsg(t.subject(topic))
	msg.Header.Set("type", typeName)
	msg.Data = payload

	return t.conn.PublishMsg(msg)
}

func (t *natsTransport) AddFilter(topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.filters[topic]; ok {
		return nil
	}

	sub, err := t.conn.Subscribe(t.subject(topic), func(msg *broker.Msg) {
		if t.handler != nil {
			t.handler(topic, msg.Header.Get("type"), msg.Data)
		}
	})
	if err != nil {
		return err
	}

	t.filters[topic] = sub
	return nil
}

func (t *natsTransport) RemoveFilter(topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub, ok := t.filters[topic]
	if !ok {
		return nil
	}
	delete(t.filters, topic)

	return sub.Unsubscribe()
}

func (t *natsTransport) DataAddress() string {
	return t.dataAddr
}

func (t *natsTransport) ControlAddress() string {
	return t.ctrlAddr
}

func (t *natsTransport) SendControlFrame(ctx context.Context, ctrlAddr string, frame wire.ControlFrame) error {
	return t.ctrlSender.Send(ctx, ctrlAddr, frame)
}

func (t *natsTransport) Close() error {
	t.mu.Lock()
	for topic, sub := range t.filters {
		sub.Unsubscribe()
		delete(t.filters, topic)
	}
	t.mu.Unlock()

	t.conn.Close()
	return nil
}
