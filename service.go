// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"

	"github.com/Voldivh/gz-transport/pkg/discovery"
)

// Service is the set of Node operations available for decoration by
// middleware (logging, metrics). *Node satisfies it.
type Service interface {
	UUID() string

	Advertise(topic, typeName string, opts AdvertiseOptions) Publisher
	Subscribe(topic, typeName string, newMessage NewMessage, handler Handler) bool
	Unsubscribe(topic string) bool

	AdvertiseService(service, typeName string, newMessage NewMessage, handler Handler) bool
	UnadvertiseService(service string) bool

	SubscribedTopics() []string
	AdvertisedTopics() []string
	AdvertisedServices() []string

	TopicList(ctx context.Context) ([]string, error)
	ServiceList(ctx context.Context) ([]string, error)
	TopicInfo(ctx context.Context, topic string) ([]discovery.MessagePublisher, error)
	ServiceInfo(ctx context.Context, service string) ([]discovery.MessagePublisher, error)

	Close() error
}

var _ Service = (*Node)(nil)
