// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"

	transport "github.com/Voldivh/gz-transport"
	"github.com/Voldivh/gz-transport/pkg/discovery"
)

var _ transport.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	service transport.Service
}

// MetricsMiddleware wraps svc so that every operation records a call
// counter and a latency observation tagged by method name.
func MetricsMiddleware(svc transport.Service, counter metrics.Counter, latency metrics.Histogram) transport.Service {
	return &metricsMiddleware{counter: counter, latency: latency, service: svc}
}

func (mm *metricsMiddleware) instrument(method string, begin time.Time) {
	mm.counter.With("method", method).Add(1)
	mm.latency.With("method", method).Observe(time.Since(begin).Seconds())
}

func (mm *metricsMiddleware) UUID() string {
	return mm.service.UUID()
}

func (mm *metricsMiddleware) Advertise(topic, typeName string, opts transport.AdvertiseOptions) transport.Publisher {
	defer mm.instrument("advertise", time.Now())
	return mm.service.Advertise(topic, typeName, opts)
}

func (mm *metricsMiddleware) Subscribe(topic, typeName string, newMessage transport.NewMessage, handler transport.Handler) bool {
	defer mm.instrument("subscribe", time.Now())
	return mm.service.Subscribe(topic, typeName, newMessage, handler)
}

func (mm *metricsMiddleware) Unsubscribe(topic string) bool {
	defer mm.instrument("unsubscribe", time.Now())
	return mm.service.Unsubscribe(topic)
}

func (mm *metricsMiddleware) AdvertiseService(service, typeName string, newMessage transport.NewMessage, handler transport.Handler) bool {
	defer mm.instrument("advertise_service", time.Now())
	return mm.service.AdvertiseService(service, typeName, newMessage, handler)
}

func (mm *metricsMiddleware) UnadvertiseService(service string) bool {
	defer mm.instrument("unadvertise_service", time.Now())
	return mm.service.UnadvertiseService(service)
}

func (mm *metricsMiddleware) SubscribedTopics() []string {
	return mm.service.SubscribedTopics()
}

func (mm *metricsMiddleware) AdvertisedTopics() []string {
	return mm.service.AdvertisedTopics()
}

func (mm *metricsMiddleware) AdvertisedServices() []string {
	return mm.service.AdvertisedServices()
}

func (mm *metricsMiddleware) TopicList(ctx context.Context) ([]string, error) {
	defer mm.instrument("topic_list", time.Now())
	return mm.service.TopicList(ctx)
}

func (mm *metricsMiddleware) ServiceList(ctx context.Context) ([]string, error) {
	defer mm.instrument("service_list", time.Now())
	return mm.service.ServiceList(ctx)
}

func (mm *metricsMiddleware) TopicInfo(ctx context.Context, topic string) ([]discovery.MessagePublisher, error) {
	defer mm.instrument("topic_info", time.Now())
	return mm.service.TopicInfo(ctx, topic)
}

func (mm *metricsMiddleware) ServiceInfo(ctx context.Context, service string) ([]discovery.MessagePublisher, error) {
	defer mm.instrument("service_info", time.Now())
	return mm.service.ServiceInfo(ctx, service)
}

func (mm *metricsMiddleware) Close() error {
	defer mm.instrument("close", time.Now())
	return mm.service.Close()
}
