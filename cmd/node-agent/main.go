// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

// Package main contains node-agent's main function: it wires the shared
// transport context to a NATS broker and a local control socket, advertises
// a heartbeat topic, subscribes to it, and waits for shutdown.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cenkalti/backoff/v4"
	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	transport "github.com/Voldivh/gz-transport"
	"github.com/Voldivh/gz-transport/middleware"
	"github.com/Voldivh/gz-transport/pkg/discovery"
	"github.com/Voldivh/gz-transport/pkg/discovery/natsdiscovery"
	"github.com/Voldivh/gz-transport/pkg/logger"
	txmetrics "github.com/Voldivh/gz-transport/pkg/metrics"
	"github.com/Voldivh/gz-transport/pkg/shutdown"
	"github.com/Voldivh/gz-transport/pkg/uuid"
	"github.com/Voldivh/gz-transport/pkg/wire"
	"github.com/Voldivh/gz-transport/pkg/wire/controlsock"
	"github.com/Voldivh/gz-transport/pkg/wire/natswire"
	"github.com/Voldivh/gz-transport/pkg/workerpool"
)

const svcName = "node-agent"

type config struct {
	LogLevel        string        `env:"GZTP_LOG_LEVEL"         envDefault:"info"`
	Partition       string        `env:"GZTP_PARTITION"         envDefault:"default"`
	Namespace       string        `env:"GZTP_NAMESPACE"         envDefault:""`
	BrokerURL       string        `env:"GZTP_BROKER_URL"        envDefault:"nats://localhost:4222"`
	DataAddr        string        `env:"GZTP_DATA_ADDR"         envDefault:"node-agent:0"`
	CtrlBindAddr    string        `env:"GZTP_CTRL_BIND_ADDR"    envDefault:"127.0.0.1:0"`
	MetricsPort     string        `env:"GZTP_METRICS_PORT"      envDefault:"9090"`
	WorkerCount     int           `env:"GZTP_WORKER_COUNT"      envDefault:"8"`
	WorkerQueueSize int           `env:"GZTP_WORKER_QUEUE_SIZE" envDefault:"1024"`
	HeartbeatPeriod time.Duration `env:"GZTP_HEARTBEAT_PERIOD"  envDefault:"1s"`
}

// heartbeat is the demo message advertised and subscribed to below.
type heartbeat struct {
	Sequence int    `json:"sequence"`
	NodeUUID string `json:"node_uuid"`
}

func (*heartbeat) TypeName() string { return "node_agent.Heartbeat" }

const heartbeatType = "node_agent.Heartbeat"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load %s configuration: %s", svcName, err)
	}

	logg, err := logger.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %s", err)
	}

	banner := color.New(color.FgCyan, color.Bold)
	banner.Printf("%s starting (partition=%s)\n", svcName, cfg.Partition)

	processUUID, err := uuid.New().ID()
	if err != nil {
		logg.Error("failed to generate process uuid", "error", err)
		return 1
	}

	ctrlListener, err := controlsock.Listen(cfg.CtrlBindAddr)
	if err != nil {
		logg.Error("failed to bind control socket", "error", err)
		return 1
	}
	defer ctrlListener.Close()

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	g, gctx := errgroup.WithContext(bgCtx)

	// rootCtx is assigned once below; natswire's receive handler closes
	// over this variable rather than a constructor argument because the
	// handler must exist before the Context it delivers into does.
	var rootCtx *transport.Context

	wireTransport, err := natswire.New(cfg.BrokerURL, cfg.Partition, cfg.DataAddr, ctrlListener.Addr(),
		func(topic, typeName string, payload []byte) {
			if rootCtx != nil {
				rootCtx.Deliver(topic, typeName, payload)
			}
		})
	if err != nil {
		logg.Error("failed to connect transport", "broker", cfg.BrokerURL, "error", err)
		return 1
	}
	defer wireTransport.Close()

	g.Go(func() error {
		return ctrlListener.Serve(gctx, func(frame wire.ControlFrame) {
			logg.Debug("control frame received", "topic", frame.Topic, "from", frame.SenderNodeUUID)
		})
	})

	msgDiscovery, err := connectDiscovery(gctx, logg, cfg.BrokerURL, "gz_transport_messages")
	if err != nil {
		logg.Error("failed to connect message discovery", "error", err)
		return 1
	}
	defer msgDiscovery.Close()

	svcDiscovery, err := connectDiscovery(gctx, logg, cfg.BrokerURL, "gz_transport_services")
	if err != nil {
		logg.Error("failed to connect service discovery", "error", err)
		return 1
	}
	defer svcDiscovery.Close()

	pool := workerpool.New(cfg.WorkerCount, cfg.WorkerQueueSize)

	rootCtx = transport.NewContext(transport.ContextConfig{
		MessageDiscovery: msgDiscovery,
		ServiceDiscovery: svcDiscovery,
		Transport:        wireTransport,
		Pool:             pool,
		ProcessUUID:      processUUID,
		Logger:           logg,
	})
	defer rootCtx.Release()

	node, err := transport.NewNode(rootCtx, transport.Options{
		Partition: cfg.Partition,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		logg.Error("failed to create node", "error", err)
		return 1
	}
	defer node.Close()

	counter, latency := txmetrics.MakeMetrics(svcName, "node")
	svc := middleware.MetricsMiddleware(middleware.LoggingMiddleware(node, logg), counter, latency)

	http.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort}
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	svc.Subscribe("/heartbeat", heartbeatType, func() transport.Message { return &heartbeat{} },
		func(msg transport.Message, info transport.MessageInfo) {
			hb := msg.(*heartbeat)
			logg.Info("heartbeat received", "topic", info.Topic, "sequence", hb.Sequence, "from", hb.NodeUUID)
		})

	pub := svc.Advertise("/heartbeat", heartbeatType, transport.AdvertiseOptions{})
	if !pub.Valid() {
		logg.Error("failed to advertise heartbeat topic")
		return 1
	}
	defer pub.Close()

	coordinator := shutdown.New()
	coordinator.Arm()

	g.Go(func() error {
		seq := 0
		ticker := time.NewTicker(cfg.HeartbeatPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				seq++
				pub.Publish(&heartbeat{Sequence: seq, NodeUUID: node.UUID()})
			}
		}
	})

	coordinator.Wait()
	banner.Println("shutdown signal received, tearing down")
	stopBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	if err := g.Wait(); err != nil {
		logg.Error("background task failed", "error", err)
		return 1
	}

	return 0
}

// connectDiscovery opens a NATS JetStream key-value backed discovery
// client, retrying the initial connection with an exponential backoff so
// node-agent can start before the broker is fully up.
func connectDiscovery(ctx context.Context, logg *slog.Logger, brokerURL, bucket string) (discovery.Client, error) {
	var client discovery.Client
	op := func() error {
		c, err := natsdiscovery.New(ctx, brokerURL, bucket)
		if err != nil {
			return err
		}
		client = c
		return nil
	}

	notify := func(err error, next time.Duration) {
		logg.Info(fmt.Sprintf("discovery bucket %s not ready: %s, retrying in %s", bucket, err, next))
	}

	if err := backoff.RetryNotify(op, backoff.NewExponentialBackOff(), notify); err != nil {
		return nil, err
	}
	return client, nil
}
