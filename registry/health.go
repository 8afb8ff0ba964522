package registry

import (
	"context"
	"time"

	"github.com/mail-swarm/mail/logctx"
)

// StartHealth launches the background polling loop (§4.6, recommended 30s
// interval). It is idempotent: a call while a loop is already running
// returns without starting a second one.
func (r *Registry) StartHealth(ctx context.Context) {
	r.mu.Lock()
	if r.stopHealth != nil {
		r.mu.Unlock()
		return
	}
	r.stopHealth = make(chan struct{})
	stop := r.stopHealth
	r.mu.Unlock()

	r.healthWG.Add(1)
	go func() {
		defer r.healthWG.Done()
		ticker := time.NewTicker(r.cfg.HealthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				r.pollOnce(ctx)
			}
		}
	}()
}

// StopHealth stops the polling loop started by StartHealth and waits for it
// to exit.
func (r *Registry) StopHealth() {
	r.mu.Lock()
	stop := r.stopHealth
	r.stopHealth = nil
	r.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	r.healthWG.Wait()
}

func (r *Registry) pollOnce(ctx context.Context) {
	r.mu.RLock()
	names := make([]string, 0, len(r.endpoints))
	for name, e := range r.endpoints {
		if name != r.cfg.LocalSwarmName && e.HealthURL != "" {
			names = append(names, name)
		}
	}
	r.mu.RUnlock()

	for _, name := range names {
		r.checkOne(ctx, name)
	}
}

func (r *Registry) checkOne(ctx context.Context, name string) {
	r.mu.RLock()
	e, ok := r.endpoints[name]
	r.mu.RUnlock()
	if !ok {
		return
	}

	healthy := r.probe(ctx, e.HealthURL)

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok = r.endpoints[name]
	if !ok {
		return
	}
	if healthy {
		e.consecutiveFailures = 0
		e.LastSeen = time.Now().UTC()
		if !e.Active {
			r.log.Info("peer swarm recovered", logctx.F("peer", name))
		}
		e.Active = true
		return
	}
	e.consecutiveFailures++
	if e.consecutiveFailures >= r.cfg.FailureThreshold && e.Active {
		e.Active = false
		r.log.Warn("peer swarm marked inactive", logctx.F("peer", name), logctx.F("failures", e.consecutiveFailures))
	}
}

// probe performs a single liveness check via cfg.HTTPGet. With no HTTPGet
// configured, peers are optimistically assumed healthy — health polling is
// then a no-op, which is appropriate for embeddings that never wire in an
// HTTP client.
func (r *Registry) probe(ctx context.Context, healthURL string) bool {
	if r.cfg.HTTPGet == nil || healthURL == "" {
		return true
	}
	status, err := r.cfg.HTTPGet(ctx, healthURL)
	if err != nil {
		return false
	}
	return status == "" || status == "ok" || status == "200"
}
