// Package gateway wires every request-path component into one
// running process and owns its lifecycle: construction, the
// top-level HTTP handler, and graceful start/stop.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/neuragate/gateway/internal/breaker"
	"github.com/neuragate/gateway/internal/config"
	"github.com/neuragate/gateway/internal/correlation"
	"github.com/neuragate/gateway/internal/health"
	"github.com/neuragate/gateway/internal/logging"
	"github.com/neuragate/gateway/internal/proxy"
	"github.com/neuragate/gateway/internal/resolver"
	"github.com/neuragate/gateway/internal/route"
	"github.com/neuragate/gateway/internal/routecompiler"
	"github.com/neuragate/gateway/internal/routestore"
	"github.com/neuragate/gateway/internal/telemetry"
)

// Gateway owns every long-lived dependency in the request path:
// the route store and its compile/resolve pipeline, the shared
// breaker registry and transport pool the compiler wires into every
// CompiledRoute, the telemetry publisher, and the health probe.
type Gateway struct {
	cfg *config.Config

	store     *routestore.Store
	cluster   *routestore.ClusterNotifier
	compiler  *routecompiler.Compiler
	resolver  *resolver.Resolver
	pipeline  *resolver.Pipeline
	breakers  *breaker.Manager
	transport *proxy.TransportPool
	publisher *telemetry.Publisher
	probe     *health.Probe

	cancel context.CancelFunc
}

// New wires every component from cfg but starts nothing; call Run to
// begin serving the route store's change stream and Handler to obtain
// the request-path http.Handler.
func New(ctx context.Context, cfg *config.Config, fallbackSet []*route.Definition) (*Gateway, error) {
	correlation.SetupPropagation()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Store.Address})

	store := routestore.New(redisClient, fallbackSet)

	var cluster *routestore.ClusterNotifier
	if len(cfg.Cluster.EtcdEndpoints) > 0 {
		c, err := routestore.NewClusterNotifier(cfg.Cluster.EtcdEndpoints, store)
		if err != nil {
			logging.Warn("cluster notifier unavailable, running single-instance", zap.Error(err))
		} else {
			cluster = c
			store.SetClusterNotifier(cluster)
		}
	}

	breakers := breaker.NewManager()
	transport := proxy.NewTransportPool(proxy.TransportConfig{
		ConnectTimeout:      cfg.Proxy.ConnectTimeout,
		ReadTimeout:         cfg.Proxy.ReadTimeout,
		MaxIdleConns:        cfg.Proxy.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Proxy.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.Proxy.IdleConnTimeout,
	})

	var rateLimitRedis *redis.Client
	if cfg.RateLimit.RedisAddress != "" {
		rateLimitRedis = redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddress})
	}
	compiler := routecompiler.New(breakers, transport, rateLimitRedis, cfg.Proxy.ReadTimeout)

	res := resolver.New()
	pipeline := resolver.NewPipeline(store, compiler, res)

	publisher, err := telemetry.NewPublisher(ctx, telemetry.Config{
		BusURL:        cfg.Telemetry.BusURL,
		QueueCapacity: cfg.Telemetry.QueueCapacity,
		BatchSize:     cfg.Telemetry.BatchSize,
		BatchInterval: cfg.Telemetry.BatchInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: telemetry publisher: %w", err)
	}

	probe := health.New(store, breakers)

	return &Gateway{
		cfg:       cfg,
		store:     store,
		cluster:   cluster,
		compiler:  compiler,
		resolver:  res,
		pipeline:  pipeline,
		breakers:  breakers,
		transport: transport,
		publisher: publisher,
		probe:     probe,
	}, nil
}

// Run starts the store's change-notification pipeline (and, when
// configured, the cross-instance etcd watch) and blocks until ctx is
// done. Callers run it in its own goroutine; Handler() is usable
// immediately after New returns, it simply resolves to "no route"
// until the first Rebuild completes.
func (g *Gateway) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel

	if g.cluster != nil {
		go g.cluster.Run(runCtx)
	}
	go g.publishRouteChanges(runCtx)
	return g.pipeline.Run(runCtx)
}

// publishRouteChanges relays the store's route-changed events onto the
// compaction-friendly gateway-routes topic so downstream consumers see
// configuration churn alongside the request telemetry. Cluster-relayed
// events carry no id (the originating instance already published them)
// and are skipped.
func (g *Gateway) publishRouteChanges(ctx context.Context) {
	changes := g.store.Watch()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-changes:
			if ev.ID == "" {
				continue
			}
			if err := g.publisher.PublishRouteChanged(ctx, ev.ID); err != nil {
				logging.Warn("failed to publish route-changed event", zap.String("route", ev.ID), zap.Error(err))
			}
		}
	}
}

// Close releases every long-lived resource: the telemetry publisher,
// the etcd cluster notifier (if any), and idle upstream connections.
func (g *Gateway) Close(ctx context.Context) error {
	if g.cancel != nil {
		g.cancel()
	}
	g.transport.CloseIdleConnections()
	if g.cluster != nil {
		g.cluster.Close()
	}
	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return g.publisher.Close(closeCtx)
}

// Store, Resolver, Breakers, and Probe expose the wired singletons to
// the admin/health handlers built on top of this Gateway.
func (g *Gateway) Store() *routestore.Store { return g.store }

func (g *Gateway) Resolver() *resolver.Resolver { return g.resolver }

func (g *Gateway) Breakers() *breaker.Manager { return g.breakers }

func (g *Gateway) Probe() *health.Probe { return g.probe }

func (g *Gateway) Publisher() *telemetry.Publisher { return g.publisher }

// Rebuild recompiles and republishes the route snapshot immediately,
// used by the admin handler right after a Put/Delete so a caller
// doesn't have to wait for the store's asynchronous change-event fan
// out to observe its own write.
func (g *Gateway) Rebuild() {
	g.pipeline.Rebuild()
}
