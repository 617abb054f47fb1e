// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

// Package natsdiscovery implements discovery.Client on top of a NATS
// JetStream key-value bucket, the way the wider messaging platform's NATS
// broker binding (pkg/messaging/nats) wraps a *nats.Conn and a
// jetstream.JetStream handle for its own publish path.
package natsdiscovery

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	broker "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Voldivh/gz-transport/pkg/discovery"
	"github.com/Voldivh/gz-transport/pkg/errors"
)

// ErrAdvertiseConflict indicates the (topic, nodeUUID) pair is already
// advertised with a different type name.
var ErrAdvertiseConflict = errors.New("topic already advertised with a different type")

const kvTTL = 0 // advertisements live until explicitly revoked

type client struct {
	conn *broker.Conn
	kv   jetstream.KeyValue
}

var _ discovery.Client = (*client)(nil)
var _ discovery.Info = (*client)(nil)

// New connects to the NATS server at url and opens (creating if needed) the
// JetStream key-value bucket identified by bucket, one bucket per discovery
// domain (messages vs. services).
func New(ctx context.Context, url, bucket string) (discovery.Client, error) {
	conn, err := broker.Connect(url, broker.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    kvTTL,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &client{conn: conn, kv: kv}, nil
}

func (c *client) Advertise(ctx context.Context, pub discovery.MessagePublisher) error {
	existing, err := c.readEntry(ctx, pub.Topic)
	if err != nil {
		return err
	}

	for _, e := range existing {
		if e.NodeUUID == pub.NodeUUID && e.TypeName != pub.TypeName {
			return ErrAdvertiseConflict
		}
	}

	replaced := false
	for i, e := range existing {
		if e.NodeUUID == pub.NodeUUID {
			existing[i] = pub
			replaced = true
			break
		}
	}
	if !replaced {
		existing = append(existing, pub)
	}

	return c.writeEntry(ctx, pub.Topic, existing)
}

func (c *client) Unadvertise(ctx context.Context, topic, nodeUUID string) error {
	existing, err := c.readEntry(ctx, topic)
	if err != nil {
		return err
	}

	kept := existing[:0]
	for _, e := range existing {
		if e.NodeUUID != nodeUUID {
			kept = append(kept, e)
		}
	}

	if len(kept) == 0 {
		return c.kv.Delete(ctx, topic)
	}
	return c.writeEntry(ctx, topic, kept)
}

func (c *client) Discover(ctx context.Context, topic string) error {
	_, err := c.readEntry(ctx, topic)
	return err
}

func (c *client) Publishers(ctx context.Context, topic string) (map[string][]discovery.MessagePublisher, error) {
	entries, err := c.readEntry(ctx, topic)
	if err != nil {
		return nil, err
	}

	byProcess := make(map[string][]discovery.MessagePublisher)
	for _, e := range entries {
		byProcess[e.ProcessUUID] = append(byProcess[e.ProcessUUID], e)
	}
	return byProcess, nil
}

func (c *client) Info() discovery.Info {
	return c
}

func (c *client) PublishersByNode(ctx context.Context, processUUID, nodeUUID string) ([]discovery.MessagePublisher, error) {
	keys, err := c.kv.Keys(ctx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, err
	}

	var out []discovery.MessagePublisher
	for _, key := range keys {
		entries, err := c.readEntry(ctx, key)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.ProcessUUID == processUUID && e.NodeUUID == nodeUUID {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (c *client) TopicList(ctx context.Context) ([]string, error) {
	keys, err := c.kv.Keys(ctx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, err
	}
	return keys, nil
}

func (c *client) WaitForInit(ctx context.Context) error {
	op := func() error {
		_, err := c.kv.Status(ctx)
		return err
	}

	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	return backoff.Retry(op, bo)
}

func (c *client) Close() error {
	c.conn.Close()
	return nil
}

func (c *client) readEntry(ctx context.Context, topic string) ([]discovery.MessagePublisher, error) {
	entry, err := c.kv.Get(ctx, topic)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var out []discovery.MessagePublisher
	if err := json.Unmarshal(entry.Value(), &out); err != nil {
		return nil, fmt.Errorf("decode discovery entry for %s: %w", topic, err)
	}
	return out, nil
}

func (c *client) writeEntry(ctx context.Context, topic string, entries []discovery.MessagePublisher) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	_, err = c.kv.Put(ctx, topic, data)
	return err
}
