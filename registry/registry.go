// Package registry maintains the set of live links of a host process, one
// per remote peripheral endpoint. Entities sharing an endpoint share the
// same link; the registry creates it on first use and keeps it reconnecting
// until removed.
package registry

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/modelrail/go-trackside/link"
	"github.com/modelrail/go-trackside/logger"
)

// Registry is a concurrency-safe collection of links keyed by endpoint
// alias (lowercase "host:port").
type Registry struct {
	ctx     context.Context
	handler link.FrameHandler
	opts    []link.Option
	links   *xsync.MapOf[string, *link.Manager]
	logger  logger.Logger

	// mu serializes Acquire and Remove for the same alias so a racing
	// acquire never resurrects a link mid-removal.
	mu sync.Mutex
}

// New creates a registry. Every link it creates runs under ctx, delivers
// inbound frames to handler and is configured with opts on top of the
// active-role default.
func New(ctx context.Context, handler link.FrameHandler, l logger.Logger, opts ...link.Option) *Registry {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Registry{
		ctx:     ctx,
		handler: handler,
		opts:    opts,
		links:   xsync.NewMapOf[string, *link.Manager](),
		logger:  l,
	}
}

// Acquire returns the link for host:port, creating and opening it when
// absent. A freshly created link that has not finished connecting is still
// returned; sends fail fast until it goes active.
func (r *Registry) Acquire(host string, port int) (*link.Manager, error) {
	alias := strings.ToLower(host + ":" + strconv.Itoa(port))

	if m, ok := r.links.Load(alias); ok {
		return m, nil
	}

	r.mu.Lock()

	if m, ok := r.links.Load(alias); ok {
		r.mu.Unlock()
		return m, nil
	}

	opts := append([]link.Option{link.WithActive()}, r.opts...)
	cfg, err := link.NewConfig(host, port, opts...)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	m, err := link.NewManager(r.ctx, cfg, r.handler)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	if err := m.Open(false); err != nil {
		r.mu.Unlock()
		return nil, err
	}

	r.links.Store(alias, m)
	r.logger.Info("link added", "link", alias)
	r.mu.Unlock()

	// wait for the link outside the lock so one unreachable peripheral
	// cannot stall acquisition or removal of every other alias
	grace := cfg.ConnTimeout() * time.Duration(cfg.MaxHeartbeatFail()+1)
	if err := m.WaitActive(grace); err != nil {
		// the manager keeps retrying in the background
		r.logger.Warn("link not yet active", "link", alias, "error", err)
	}

	return m, nil
}

// Lookup returns the link for the alias, if present.
func (r *Registry) Lookup(alias string) (*link.Manager, bool) {
	return r.links.Load(strings.ToLower(alias))
}

// Remove stops and drops the link for the alias. Removing an absent alias
// is a no-op.
func (r *Registry) Remove(alias string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.links.LoadAndDelete(strings.ToLower(alias))
	if !ok {
		return
	}

	m.Stop()
	r.logger.Info("link removed", "link", m.Alias())
}

// Len returns the number of registered links.
func (r *Registry) Len() int {
	return r.links.Size()
}

// Shutdown stops every link in parallel and waits up to grace for them to
// finish closing.
func (r *Registry) Shutdown(grace time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var wg sync.WaitGroup

	r.links.Range(func(alias string, m *link.Manager) bool {
		r.links.Delete(alias)

		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Stop()
		}()

		return true
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		r.logger.Warn("shutdown grace period expired with links still closing")
	}
}
