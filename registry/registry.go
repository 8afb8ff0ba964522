// Package registry implements the swarm registry (§4.6): the local
// directory of known peer swarms, with persistence of non-volatile
// entries, liveness polling, and environment-resolved credentials.
//
// Persistence follows the teacher's memory.FileMemory
// (memory/persistent.go): an atomic temp-file-then-rename JSON write
// guarded by a dirty flag, repurposed here to store swarm endpoints
// instead of generic memory entries.
package registry

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mail-swarm/mail/logctx"
)

// Endpoint is a registry entry for one known peer swarm (§3).
type Endpoint struct {
	SwarmName   string            `json:"swarm_name"`
	BaseURL     string            `json:"base_url"`
	HealthURL   string            `json:"health_url"`
	AuthTokenRef string           `json:"auth_token_ref,omitempty"`
	LastSeen    time.Time         `json:"last_seen"`
	Active      bool              `json:"active"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Volatile    bool              `json:"-"` // never persisted; see persistence.go

	consecutiveFailures int
}

// document is the on-disk shape (§6.4): the non-volatile subset only.
type document struct {
	LocalSwarmName string              `json:"local_swarm_name"`
	LocalBaseURL   string              `json:"local_base_url"`
	Endpoints      map[string]Endpoint `json:"endpoints"`
}

// Config configures a Registry.
type Config struct {
	LocalSwarmName string
	LocalBaseURL   string
	FilePath       string // persistence file; "" disables load/save
	HealthInterval time.Duration // default 30s
	FailureThreshold int         // default 3
	Logger         logctx.Logger
	HTTPGet        func(ctx context.Context, url string) (status string, err error) // injected for testability
}

// Registry is the local directory of known swarms.
type Registry struct {
	cfg Config
	log logctx.Logger

	mu        sync.RWMutex
	endpoints map[string]*Endpoint
	dirty     bool

	stopHealth chan struct{}
	healthWG   sync.WaitGroup
}

// New constructs a Registry and loads persisted entries from cfg.FilePath,
// if set and present.
func New(cfg Config) (*Registry, error) {
	if cfg.LocalSwarmName == "" {
		return nil, fmt.Errorf("registry: LocalSwarmName is required")
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = 30 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logctx.New()
	}
	r := &Registry{
		cfg:       cfg,
		log:       logger.With(logctx.F("component", "registry"), logctx.F("swarm", cfg.LocalSwarmName)),
		endpoints: make(map[string]*Endpoint),
	}
	if cfg.FilePath != "" {
		if err := r.Load(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("registry: load %s: %w", cfg.FilePath, err)
		}
	}
	return r, nil
}

// RegisterLocal registers the local swarm itself as a non-volatile entry,
// so it appears alongside peers in GetAllEndpoints (grounded in the
// original implementation's SwarmRegistry.__init__ self-registration).
func (r *Registry) RegisterLocal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[r.cfg.LocalSwarmName] = &Endpoint{
		SwarmName: r.cfg.LocalSwarmName,
		BaseURL:   r.cfg.LocalBaseURL,
		Active:    true,
		LastSeen:  time.Now().UTC(),
		Volatile:  false,
	}
	r.dirty = true
}

// Register adds or replaces a peer entry. If volatile is false and token is
// a literal (non "${...}") string, Register generates the deterministic env
// var reference per §6.5 (SWARM_AUTH_TOKEN_<PEER_UPPER>) and stores only the
// reference, never the literal token, in the in-memory/persisted entry.
func (r *Registry) Register(name, baseURL, healthURL, token string, volatile bool, metadata map[string]string) error {
	ref := token
	if !volatile && token != "" && !isEnvRef(token) {
		envVar := fmt.Sprintf("SWARM_AUTH_TOKEN_%s", strings.ToUpper(name))
		ref = "${" + envVar + "}"
	}
	r.mu.Lock()
	r.endpoints[name] = &Endpoint{
		SwarmName:    name,
		BaseURL:      baseURL,
		HealthURL:    healthURL,
		AuthTokenRef: ref,
		Active:       true,
		LastSeen:     time.Now().UTC(),
		Metadata:     metadata,
		Volatile:     volatile,
	}
	if !volatile {
		r.dirty = true
	}
	r.mu.Unlock()

	if !volatile {
		return r.Save()
	}
	return nil
}

// Unregister removes a peer by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	_, existed := r.endpoints[name]
	delete(r.endpoints, name)
	if existed {
		r.dirty = true
	}
	r.mu.Unlock()
}

// Get returns a copy of the named endpoint.
func (r *Registry) Get(name string) (Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.endpoints[name]
	if !ok {
		return Endpoint{}, false
	}
	return *e, true
}

// BaseURLFor returns the base URL of a registered peer, satisfying
// interswarm.Router's Directory interface without that package needing to
// import registry.Endpoint.
func (r *Registry) BaseURLFor(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.endpoints[name]
	if !ok || e.BaseURL == "" {
		return "", false
	}
	return e.BaseURL, true
}

// Active reports whether a registered peer is currently routable — not
// marked inactive by consecutive health-check failures (§4.6). An
// unregistered peer reports false, satisfying interswarm.Router's Directory
// interface.
func (r *Registry) Active(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.endpoints[name]
	return ok && e.Active
}

// GetAllEndpoints returns every registered endpoint.
func (r *Registry) GetAllEndpoints() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Endpoint, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		out = append(out, *e)
	}
	return out
}

// GetActiveEndpoints returns only endpoints not marked inactive by health
// checks.
func (r *Registry) GetActiveEndpoints() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Endpoint, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		if e.Active {
			out = append(out, *e)
		}
	}
	return out
}

// GetPersistentEndpoints returns only the non-volatile subset — the same
// subset Save writes to disk.
func (r *Registry) GetPersistentEndpoints() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Endpoint, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		if !e.Volatile {
			out = append(out, *e)
		}
	}
	return out
}

// ResolveToken resolves an endpoint's auth_token_ref against the process
// environment (§4.6 Secret handling). A volatile entry's ref may be a
// literal token, returned as-is. Returns ok=false if a non-volatile ref
// names an environment variable that is unset.
func (r *Registry) ResolveToken(name string) (token string, ok bool) {
	r.mu.RLock()
	e, exists := r.endpoints[name]
	r.mu.RUnlock()
	if !exists || e.AuthTokenRef == "" {
		return "", true // no token configured is not an error
	}
	if !isEnvRef(e.AuthTokenRef) {
		return e.AuthTokenRef, true
	}
	envVar := e.AuthTokenRef[2 : len(e.AuthTokenRef)-1]
	val, present := os.LookupEnv(envVar)
	if !present || val == "" {
		return "", false
	}
	return val, true
}

func isEnvRef(s string) bool {
	return strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}")
}

// Discover sends a GET to each catalog URL through cfg.HTTPGet and logs any
// failure (§4.6). It does not parse the responses and registers no peers:
// the registry's entries are left unchanged.
func (r *Registry) Discover(ctx context.Context, urls []string) {
	for _, u := range urls {
		r.discoverOne(ctx, u)
	}
}

func (r *Registry) discoverOne(ctx context.Context, catalogURL string) {
	if r.cfg.HTTPGet == nil {
		r.log.Warn("discover_swarms called but no HTTP client is configured", logctx.F("url", catalogURL))
		return
	}
	// The catalog response shape is deliberately left to the embedding
	// program (it is outside the core per §1); a minimal embedding can
	// register the catalog's own base_url directly.
	if _, err := r.cfg.HTTPGet(ctx, catalogURL); err != nil {
		r.log.Warn("swarm discovery request failed", logctx.F("url", catalogURL), logctx.F("err", err))
		return
	}
}
