// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"sync"

	"github.com/Voldivh/gz-transport/pkg/discovery"
	"github.com/Voldivh/gz-transport/pkg/wire"
)

// syncPool runs every submitted job inline, so publish-path tests observe
// dispatch effects without needing to synchronize on a goroutine.
type syncPool struct{}

func (syncPool) Submit(fn func()) error { fn(); return nil }
func (syncPool) Close() error           { return nil }

// fakeTransport is an in-memory wire.Transport that records every call for
// assertions, instead of talking to a real broker.
type fakeTransport struct {
	mu sync.Mutex

	published []publishedMsg
	filters   map[string]bool
	frames    []wire.ControlFrame

	dataAddr string
	ctrlAddr string
}

type publishedMsg struct {
	topic    string
	payload  []byte
	typeName string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		filters:  make(map[string]bool),
		dataAddr: "fake-data-addr",
		ctrlAddr: "fake-ctrl-addr",
	}
}

func (t *fakeTransport) Publish(_ context.Context, topic string, payload []byte, typeName string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.published = append(t.published, publishedMsg{topic: topic, payload: payload, typeName: typeName})
	return nil
}

func (t *fakeTransport) AddFilter(topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filters[topic] = true
	return nil
}

func (t *fakeTransport) RemoveFilter(topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.filters, topic)
	return nil
}

func (t *fakeTransport) DataAddress() string    { return t.dataAddr }
func (t *fakeTransport) ControlAddress() string { return t.ctrlAddr }

func (t *fakeTransport) SendControlFrame(_ context.Context, _ string, frame wire.ControlFrame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames = append(t.frames, frame)
	return nil
}

func (t *fakeTransport) Close() error { return nil }

func (t *fakeTransport) publishCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.published)
}

func (t *fakeTransport) hasFilter(topic string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filters[topic]
}

// fakeDiscovery is an in-memory discovery.Client recording Advertise and
// Unadvertise calls alongside the entries they produce.
type fakeDiscovery struct {
	mu sync.Mutex

	entries           map[string][]discovery.MessagePublisher
	advertiseCalls    int
	unadvertiseCalls  int
	lastUnadvertised  discovery.MessagePublisher
	lastUnadvertiseOK bool
}

func newFakeDiscovery() *fakeDiscovery {
	return &fakeDiscovery{entries: make(map[string][]discovery.MessagePublisher)}
}

var _ discovery.Client = (*fakeDiscovery)(nil)
var _ discovery.Info = (*fakeDiscovery)(nil)

func (d *fakeDiscovery) Advertise(_ context.Context, pub discovery.MessagePublisher) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.advertiseCalls++
	d.entries[pub.Topic] = append(d.entries[pub.Topic], pub)
	return nil
}

func (d *fakeDiscovery) Unadvertise(_ context.Context, topic, nodeUUID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unadvertiseCalls++
	kept := d.entries[topic][:0]
	for _, e := range d.entries[topic] {
		if e.NodeUUID == nodeUUID {
			d.lastUnadvertised = e
			d.lastUnadvertiseOK = true
			continue
		}
		kept = append(kept, e)
	}
	d.entries[topic] = kept
	return nil
}

func (d *fakeDiscovery) Discover(context.Context, string) error { return nil }

func (d *fakeDiscovery) Publishers(_ context.Context, topic string) (map[string][]discovery.MessagePublisher, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	byProcess := make(map[string][]discovery.MessagePublisher)
	for _, e := range d.entries[topic] {
		byProcess[e.ProcessUUID] = append(byProcess[e.ProcessUUID], e)
	}
	return byProcess, nil
}

func (d *fakeDiscovery) Info() discovery.Info { return d }

func (d *fakeDiscovery) PublishersByNode(_ context.Context, processUUID, nodeUUID string) ([]discovery.MessagePublisher, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []discovery.MessagePublisher
	for _, entries := range d.entries {
		for _, e := range entries {
			if e.ProcessUUID == processUUID && e.NodeUUID == nodeUUID {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (d *fakeDiscovery) TopicList(context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.entries))
	for topic, entries := range d.entries {
		if len(entries) > 0 {
			out = append(out, topic)
		}
	}
	return out, nil
}

func (d *fakeDiscovery) WaitForInit(context.Context) error { return nil }

func (d *fakeDiscovery) Close() error { return nil }

func (d *fakeDiscovery) unadvertiseCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.unadvertiseCalls
}

func (d *fakeDiscovery) advertiseCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.advertiseCalls
}

// testMessage is a minimal Message implementation for publisher/node tests.
type testMessage struct {
	Value string
}

func (testMessage) TypeName() string { return "test.Message" }

type otherMessage struct{}

func (otherMessage) TypeName() string { return "test.Other" }

func newTestContext(transport *fakeTransport, msgDiscovery, svcDiscovery *fakeDiscovery) *Context {
	return NewContext(ContextConfig{
		MessageDiscovery: msgDiscovery,
		ServiceDiscovery: svcDiscovery,
		Transport:        transport,
		Pool:             syncPool{},
		ProcessUUID:      "process-1",
	})
}
