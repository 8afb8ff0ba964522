package interswarm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mail-swarm/mail/logctx"
	"github.com/mail-swarm/mail/protocol"
)

// Directory is the subset of registry.Registry a Router needs to resolve a
// peer's transport details, kept as a local interface so this package never
// imports registry directly (the same structural-typing trick used
// throughout for Router/Registry). registry.Registry satisfies this via
// BaseURLFor/ResolveToken/Active.
type Directory interface {
	BaseURLFor(name string) (baseURL string, ok bool)
	ResolveToken(name string) (token string, ok bool)
	// Active reports whether a registered peer is currently routable — not
	// marked inactive by consecutive health-check failures (§4.6). An
	// unregistered peer reports false.
	Active(name string) bool
}

// LocalRuntime is the inbound half: what a Router needs from the local
// runtime.Runtime to deliver a wrapped envelope it received over HTTP.
// runtime.Runtime satisfies this interface structurally.
type LocalRuntime interface {
	Submit(env protocol.Envelope)
	// SubmitForwarded is like Submit but seeds the new task's owner and
	// contributor set from a wire envelope's task_owner/task_contributors
	// instead of recomputing local ownership, so a task forwarded in from a
	// peer still knows who actually owns it (§4.7, §8 scenario 4).
	SubmitForwarded(env protocol.Envelope, owner string, contributors []string)
	HandleInterswarmResponse(env protocol.Envelope)
	LocalSwarm() string
}

// Router is the outbound+inbound HTTP federation layer (§4.7). It
// implements runtime.Router structurally via Send.
type Router struct {
	localSwarm string
	dir        Directory
	client     *http.Client
	log        logctx.Logger
	rt         LocalRuntime
	backoff    Backoff
	maxRetries int
	streaming  bool

	seenMu sync.Mutex
	seen   map[string]struct{}
	seenQ  []string
}

// Config configures a Router.
type Config struct {
	LocalSwarm string
	Directory  Directory
	Runtime    LocalRuntime // wired after construction via SetRuntime if not yet available
	Timeout    time.Duration
	Backoff    Backoff
	MaxRetries int  // total POST attempts per Send; default 3, and 0 or negative also means 3; 1 means a single attempt with no retry
	Streaming  bool // propagated into outbound routing_info.stream (§3)
	Logger     logctx.Logger
}

// New constructs a Router. Timeout defaults to DefaultTimeout, grounded in
// the teacher's HTTPTool's timeout-with-default idiom.
func New(cfg Config) *Router {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logctx.New()
	}
	backoff := cfg.Backoff
	if backoff.Initial <= 0 {
		backoff = DefaultBackoff
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Router{
		localSwarm: cfg.LocalSwarm,
		dir:        cfg.Directory,
		client:     &http.Client{Timeout: timeout},
		log:        logger.With(logctx.F("component", "interswarm")),
		rt:         cfg.Runtime,
		backoff:    backoff,
		maxRetries: maxRetries,
		streaming:  cfg.Streaming,
		seen:       make(map[string]struct{}),
	}
}

// SetRuntime wires the local runtime after construction, for the common
// bootstrap order where the router must exist before the runtime that
// references it does.
func (rt *Router) SetRuntime(r LocalRuntime) { rt.rt = r }

// Send wraps env for its remote recipient and POSTs it to the peer swarm
// named by env.Recipient's "@swarm" suffix, choosing /interswarm/forward or
// /interswarm/back per the decided dispatch rule (§9 design note): forward
// when the local swarm owns the task, back otherwise — including forwarding
// a non-owned task's completion up to its owner. A peer that is unknown,
// marked inactive by health polling, or whose non-volatile auth token is
// unset is rejected before any network I/O (§4.6). Transient transport
// failures are retried with exponential backoff (§7: transport errors never
// kill the local task, so a few retries absorb a blip before the caller
// falls back to a ::router_error:: response).
func (rt *Router) Send(ctx context.Context, env protocol.Envelope, ownerSwarm string, contributors []string) error {
	peer := env.Recipient.Swarm()
	if peer == "" && len(env.Recipients) > 0 {
		peer = env.Recipients[0].Swarm()
	}
	if peer == "" {
		return fmt.Errorf("interswarm: envelope %s has no remote swarm to route to", env.ID)
	}

	baseURL, ok := rt.dir.BaseURLFor(peer)
	if !ok {
		return fmt.Errorf("interswarm: unknown peer swarm %q", peer)
	}
	if !rt.dir.Active(peer) {
		return fmt.Errorf("interswarm: peer swarm %q is marked inactive", peer)
	}

	path := ForwardPath
	if rt.localSwarm != bareSwarm(ownerSwarm) {
		path = BackPath
	}

	// The sender address is rewritten to include the local swarm so the
	// receiving swarm (and anything it forwards on) can always address a
	// reply back at the true origin, not just the bare local name (§4.7).
	wireEnv := env
	wireEnv.Sender = env.Sender.WithSwarm(rt.localSwarm)
	wireEnv.Recipient = protocol.NewAddress(env.Recipient.Kind, env.Recipient.Local())
	wireEnv.SenderSwarm = rt.localSwarm
	wireEnv.RecipientSwarms = []string{peer}
	if rt.streaming {
		ri := make(map[string]string, len(env.RoutingInfo)+1)
		for k, v := range env.RoutingInfo {
			ri[k] = v
		}
		ri["stream"] = "true"
		wireEnv.RoutingInfo = ri
	}

	token, ok := rt.dir.ResolveToken(peer)
	if !ok {
		return fmt.Errorf("interswarm: auth token for peer %q is unset (set SWARM_AUTH_TOKEN_%s)", peer, strings.ToUpper(peer))
	}

	wire := WireEnvelope{
		MessageID:        uuid.NewString(),
		SourceSwarm:      rt.localSwarm,
		TargetSwarm:      peer,
		Timestamp:        time.Now().UTC(),
		Payload:          wireEnv,
		TaskOwner:        ownerSwarm,
		TaskContributors: contributors,
		AuthToken:        token,
		Metadata: Metadata{
			ExpectResponse: env.Kind == protocol.KindRequest,
			Stream:         rt.streaming,
		},
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("interswarm: marshal envelope: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < rt.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(rt.backoff.NextDelay(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lastErr = rt.post(ctx, baseURL+path, body, token)
		if lastErr == nil {
			rt.log.Debug("interswarm envelope delivered", logctx.F("peer", peer), logctx.F("path", path), logctx.F("task_id", env.TaskID), logctx.F("attempt", attempt+1))
			return nil
		}
	}
	return fmt.Errorf("interswarm: send to %s failed after %d attempts: %w", peer, rt.maxRetries, lastErr)
}

func (rt *Router) post(ctx context.Context, url string, body []byte, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := rt.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseBody))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("peer responded %s", resp.Status)
	}
	return nil
}

// Handler returns an http.ServeMux exposing /interswarm/forward,
// /interswarm/back, and /health, suitable for mounting under a prefix by
// the embedding HTTP server.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(ForwardPath, rt.serveForward)
	mux.HandleFunc(BackPath, rt.serveBack)
	mux.HandleFunc(HealthPath, rt.serveHealth)
	return mux
}

func (rt *Router) serveForward(w http.ResponseWriter, r *http.Request) {
	wire, dup, err := rt.decodeWire(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if dup {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	// A forwarded envelope is new local input: the receiving swarm becomes
	// a contributor, and the task it belongs to is seeded with the true
	// owner carried on the wire rather than a locally-recomputed one, so a
	// later non-owner completion still knows where to route back (§4.7).
	env := wire.Payload
	env.Recipient = protocol.NewAddress(env.Recipient.Kind, env.Recipient.Local())
	rt.rt.SubmitForwarded(env, wire.TaskOwner, wire.TaskContributors)
	w.WriteHeader(http.StatusAccepted)
}

func (rt *Router) serveBack(w http.ResponseWriter, r *http.Request) {
	wire, dup, err := rt.decodeWire(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if dup {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	// A "back" delivery is a reply/completion returning to the task's
	// owner; it never eagerly resolves the pending future (§9).
	env := wire.Payload
	env.Recipient = protocol.NewAddress(env.Recipient.Kind, env.Recipient.Local())
	rt.rt.HandleInterswarmResponse(env)
	w.WriteHeader(http.StatusAccepted)
}

func (rt *Router) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok","swarm_name":"` + rt.localSwarm + `"}`))
}

func (rt *Router) decodeWire(r *http.Request) (WireEnvelope, bool, error) {
	defer r.Body.Close()
	var wire WireEnvelope
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxResponseBody))
	if err := dec.Decode(&wire); err != nil {
		return WireEnvelope{}, false, fmt.Errorf("interswarm: decode envelope: %w", err)
	}
	if rt.rt == nil {
		return WireEnvelope{}, false, fmt.Errorf("interswarm: router has no local runtime wired")
	}
	return wire, rt.markSeen(wire.MessageID), nil
}

// bareSwarm extracts the swarm suffix from a task owner string, which is
// either a bare swarm name or the "role:id@swarm" composite stored on
// Task.Owner. Used to decide the forward/back path without requiring every
// caller to parse the composite itself.
func bareSwarm(owner string) string {
	if idx := strings.LastIndex(owner, "@"); idx >= 0 {
		return owner[idx+1:]
	}
	return owner
}

// markSeen reports whether messageID has already been processed and records
// it if not, implementing the "treat a repeated message_id as idempotent"
// recommendation (§9). The seen set is bounded to the most recent 4096 IDs;
// MAIL makes no durability promises across restarts, so an in-memory bound
// is consistent with the rest of the core's non-goals.
func (rt *Router) markSeen(messageID string) bool {
	if messageID == "" {
		return false
	}
	rt.seenMu.Lock()
	defer rt.seenMu.Unlock()
	if _, ok := rt.seen[messageID]; ok {
		return true
	}
	rt.seen[messageID] = struct{}{}
	rt.seenQ = append(rt.seenQ, messageID)
	const maxSeen = 4096
	if len(rt.seenQ) > maxSeen {
		drop := rt.seenQ[0]
		rt.seenQ = rt.seenQ[1:]
		delete(rt.seen, drop)
	}
	return false
}
