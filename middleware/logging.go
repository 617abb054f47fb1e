// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"context"
	"log/slog"
	"time"

	transport "github.com/Voldivh/gz-transport"
	"github.com/Voldivh/gz-transport/pkg/discovery"
)

var _ transport.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger  *slog.Logger
	service transport.Service
}

// LoggingMiddleware wraps svc so that every operation logs its duration
// and outcome.
func LoggingMiddleware(svc transport.Service, logger *slog.Logger) transport.Service {
	return &loggingMiddleware{logger: logger, service: svc}
}

func (lm *loggingMiddleware) UUID() string {
	return lm.service.UUID()
}

func (lm *loggingMiddleware) Advertise(topic, typeName string, opts transport.AdvertiseOptions) (pub transport.Publisher) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("topic", topic),
			slog.String("type", typeName),
		}
		if !pub.Valid() {
			lm.logger.Warn("advertise failed", args...)
			return
		}
		lm.logger.Info("advertise completed", args...)
	}(time.Now())
	return lm.service.Advertise(topic, typeName, opts)
}

func (lm *loggingMiddleware) Subscribe(topic, typeName string, newMessage transport.NewMessage, handler transport.Handler) (ok bool) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("topic", topic),
			slog.String("type", typeName),
			slog.Bool("ok", ok),
		}
		if !ok {
			lm.logger.Warn("subscribe failed", args...)
			return
		}
		lm.logger.Info("subscribe completed", args...)
	}(time.Now())
	return lm.service.Subscribe(topic, typeName, newMessage, handler)
}

func (lm *loggingMiddleware) Unsubscribe(topic string) (ok bool) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("topic", topic),
			slog.Bool("ok", ok),
		}
		if !ok {
			lm.logger.Warn("unsubscribe failed", args...)
			return
		}
		lm.logger.Info("unsubscribe completed", args...)
	}(time.Now())
	return lm.service.Unsubscribe(topic)
}

func (lm *loggingMiddleware) AdvertiseService(service, typeName string, newMessage transport.NewMessage, handler transport.Handler) (ok bool) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("service", service),
			slog.String("type", typeName),
			slog.Bool("ok", ok),
		}
		if !ok {
			lm.logger.Warn("advertise service failed", args...)
			return
		}
		lm.logger.Info("advertise service completed", args...)
	}(time.Now())
	return lm.service.AdvertiseService(service, typeName, newMessage, handler)
}

func (lm *loggingMiddleware) UnadvertiseService(service string) (ok bool) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("service", service),
			slog.Bool("ok", ok),
		}
		if !ok {
			lm.logger.Warn("unadvertise service failed", args...)
			return
		}
		lm.logger.Info("unadvertise service completed", args...)
	}(time.Now())
	return lm.service.UnadvertiseService(service)
}

func (lm *loggingMiddleware) SubscribedTopics() []string {
	return lm.service.SubscribedTopics()
}

func (lm *loggingMiddleware) AdvertisedTopics() []string {
	return lm.service.AdvertisedTopics()
}

func (lm *loggingMiddleware) AdvertisedServices() []string {
	return lm.service.AdvertisedServices()
}

func (lm *loggingMiddleware) TopicList(ctx context.Context) ([]string, error) {
	return lm.service.TopicList(ctx)
}

func (lm *loggingMiddleware) ServiceList(ctx context.Context) ([]string, error) {
	return lm.service.ServiceList(ctx)
}

func (lm *loggingMiddleware) TopicInfo(ctx context.Context, topic string) ([]discovery.MessagePublisher, error) {
	return lm.service.TopicInfo(ctx, topic)
}

func (lm *loggingMiddleware) ServiceInfo(ctx context.Context, service string) ([]discovery.MessagePublisher, error) {
	return lm.service.ServiceInfo(ctx, service)
}

func (lm *loggingMiddleware) Close() (err error) {
	defer func(begin time.Time) {
		args := []any{slog.String("duration", time.Since(begin).String())}
		if err != nil {
			args = append(args, slog.String("error", err.Error()))
			lm.logger.Warn("node close failed", args...)
			return
		}
		lm.logger.Info("node close completed", args...)
	}(time.Now())
	return lm.service.Close()
}
