package routestore

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/neuragate/gateway/internal/logging"
)

// clusterKey is the single etcd key bumped on every Put/Delete. Every
// process in the cluster watches it and re-reads Definitions() (from
// its own Redis connection) on change; the key's value carries no
// meaning beyond "something changed", which keeps route content out
// of etcd entirely and leaves Redis as the one source of truth for
// route bodies. This buys a much shorter convergence window than
// polling alone, while staying eventually consistent across
// instances.
const clusterKey = "/neuragate/routes/revision"

// ClusterNotifier broadcasts local Put/Delete events to every other
// gateway instance sharing an etcd cluster, and relays remote bumps
// into the same local Watch() channel Store already exposes. A nil
// *ClusterNotifier is a valid no-op, so a single-instance deployment
// never needs an etcd endpoint configured.
type ClusterNotifier struct {
	client *clientv3.Client
	store  *Store
}

// NewClusterNotifier dials etcd at endpoints and binds it to store.
// Connection errors surface immediately; callers that want live
// reload without a reachable etcd at startup should skip calling this
// and run a single-instance Store instead.
func NewClusterNotifier(endpoints []string, store *Store) (*ClusterNotifier, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return &ClusterNotifier{client: client, store: store}, nil
}

// Broadcast bumps the shared revision key so every other watching
// instance picks up the change. Called by Store after a successful
// local Put/Delete; failures are logged, not returned, since the
// local instance's own Watch() channel has already fired and a
// cluster-wide miss here is only a staleness window, not data loss.
func (c *ClusterNotifier) Broadcast(ctx context.Context) {
	if c == nil {
		return
	}
	putCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := c.client.Put(putCtx, clusterKey, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		logging.Warn("cluster notifier: broadcast failed", zap.Error(err))
	}
}

// Run watches the shared revision key until ctx is done, calling
// store's Watch() notification path (via store.notify) whenever a
// remote peer bumps it. A watch that drops (etcd unreachable) is
// retried with exponential backoff and never gives up, matching the
// reconnect-loop shape the cluster data-plane client uses for its own
// control stream.
func (c *ClusterNotifier) Run(ctx context.Context) {
	if c == nil {
		return
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.watchOnce(ctx); err != nil {
			wait := bo.NextBackOff()
			logging.Warn("cluster notifier: watch stream dropped, reconnecting", zap.Error(err), zap.Duration("wait", wait))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
			continue
		}
		bo.Reset()
	}
}

func (c *ClusterNotifier) watchOnce(ctx context.Context) error {
	watchCh := c.client.Watch(ctx, clusterKey)
	for {
		select {
		case <-ctx.Done():
			return nil
		case resp, ok := <-watchCh:
			if !ok {
				return nil
			}
			if err := resp.Err(); err != nil {
				return err
			}
			for range resp.Events {
				if err := c.store.Load(ctx); err != nil {
					logging.Warn("cluster notifier: reload after remote change failed", zap.Error(err))
				}
				c.store.notify(ChangeEvent{ID: ""})
			}
		}
	}
}

// Close releases the etcd client.
func (c *ClusterNotifier) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
