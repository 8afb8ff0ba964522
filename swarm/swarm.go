// Package swarm wires an agent/action template and an optional registry and
// router into a live runtime.Runtime (§4.5).
package swarm

import (
	"context"
	"fmt"
	"time"

	"github.com/mail-swarm/mail/action"
	"github.com/mail-swarm/mail/logctx"
	"github.com/mail-swarm/mail/protocol"
	"github.com/mail-swarm/mail/runtime"
)

// Registry is the subset of registry.Registry's surface a Container needs,
// kept as a local interface so this package never imports registry
// directly — the same structural-typing trick used for runtime.Router.
type Registry interface {
	Discover(ctx context.Context, urls []string)
	Save() error
	StartHealth(ctx context.Context)
	StopHealth()
}

// Config describes a swarm template: its agents, its non-MAIL actions, and
// its optional federation collaborators.
type Config struct {
	Name     string
	Agents   []runtime.AgentDescriptor
	Actions  *action.Registry
	Router   runtime.Router
	Registry Registry
	Logger   logctx.Logger
}

// Container is a live, runnable swarm instance.
type Container struct {
	name string
	rt   *runtime.Runtime
	reg  Registry
	log  logctx.Logger
}

// New validates and constructs a Container. Validation delegates to
// runtime.New for the entrypoint/supervisor/comm_targets checks §4.5
// requires at instantiation.
func New(cfg Config) (*Container, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("swarm: Name is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logctx.New()
	}

	rt, err := runtime.New(runtime.Config{
		LocalSwarm: cfg.Name,
		Agents:     cfg.Agents,
		Actions:    cfg.Actions,
		Router:     cfg.Router,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	c := &Container{name: cfg.Name, rt: rt, reg: cfg.Registry, log: logger.With(logctx.F("component", "swarm"), logctx.F("swarm", cfg.Name))}
	if cfg.Registry != nil {
		rt.SetDiscoverFunc(cfg.Registry.Discover)
	}
	return c, nil
}

// Runtime exposes the underlying runtime, for callers (e.g. an HTTP layer
// or the interswarm router) that need the full §6.1 surface.
func (c *Container) Runtime() *runtime.Runtime { return c.rt }

// PostMessage is the synchronous convenience over submit_and_wait using a
// fresh task_id (§4.5). target defaults to the swarm's entrypoint agent.
func (c *Container) PostMessage(ctx context.Context, subject, body string, target string, timeout time.Duration) (string, error) {
	if target == "" {
		target = c.rt.EntrypointAgent()
	}
	env, err := protocol.Construct(protocol.KindRequest, runtime.NewTaskID(), func(e *protocol.Envelope) {
		e.Sender = protocol.NewAddress(protocol.KindUser, "user")
		e.Recipient = protocol.NewAddress(protocol.KindAgent, target)
		e.Subject = subject
		e.Body = body
	})
	if err != nil {
		return "", err
	}
	return c.rt.SubmitAndWait(ctx, env, timeout)
}

// PostMessageStream is the streaming convenience over submit_and_stream.
func (c *Container) PostMessageStream(ctx context.Context, subject, body string, target string, timeout time.Duration) (<-chan runtime.Event, func(), error) {
	if target == "" {
		target = c.rt.EntrypointAgent()
	}
	env, err := protocol.Construct(protocol.KindRequest, runtime.NewTaskID(), func(e *protocol.Envelope) {
		e.Sender = protocol.NewAddress(protocol.KindUser, "user")
		e.Recipient = protocol.NewAddress(protocol.KindAgent, target)
		e.Subject = subject
		e.Body = body
	})
	if err != nil {
		return nil, nil, err
	}
	return c.rt.SubmitAndStream(ctx, env, timeout)
}

// RunContinuous processes submissions forever until ctx is cancelled or
// Shutdown is called — the long-running loop for server embedding (§4.5).
func (c *Container) RunContinuous(ctx context.Context) {
	if c.reg != nil {
		c.reg.StartHealth(ctx)
	}
	c.rt.Run(ctx)
}

// Shutdown drains pending tasks bounded by grace, stops the registry's
// health checks, persists it, and cancels the dispatch loop (§4.5).
func (c *Container) Shutdown(grace time.Duration) {
	c.log.Info("shutting down", logctx.F("grace", grace))
	c.rt.Shutdown(grace)
	if c.reg != nil {
		c.reg.StopHealth()
		if err := c.reg.Save(); err != nil {
			c.log.Error("failed to persist registry on shutdown", logctx.F("err", err))
		}
	}
}
