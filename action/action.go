// Package action implements the action executor (§4.3): the generic
// registry and invocation path for non-MAIL (third-party) tools an agent
// declares in its `actions` list, including breakpoint support.
//
// The generic Action[T] interface and its type-erased registry are grounded
// in armatrix-claude-agent-sdk-go's Tool[T]/ToolRegistry (tool.go), adapted
// from Anthropic content blocks to plain MAIL response bodies and extended
// with the breakpoint flag §4.3 requires.
package action

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/mail-swarm/mail/mailtool"
)

// Result is the output of a non-breakpoint action invocation.
type Result struct {
	Content  string
	IsError  bool
	Metadata map[string]interface{}
}

// TextResult is a convenience constructor for a successful text result.
func TextResult(text string) *Result {
	return &Result{Content: text}
}

// ErrorResult is a convenience constructor for a failed result.
func ErrorResult(text string) *Result {
	return &Result{Content: text, IsError: true}
}

// Action is the generic interface a non-MAIL tool implements. T is the
// input struct, auto-schema'd via github.com/invopop/jsonschema.
type Action[T any] interface {
	Name() string
	Description() string
	Execute(ctx context.Context, input T) (*Result, error)
}

// entry is the type-erased wrapper stored in the Registry.
type entry struct {
	name        string
	description string
	schema      *jsonschema.Schema
	breakpoint  bool
	execute     func(ctx context.Context, raw json.RawMessage) (*Result, error)
}

// Registry holds every action a swarm's agents may invoke. It is
// concurrent-safe for read access from multiple dispatched tasks; writes
// only happen during swarm construction.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]*entry
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]*entry)}
}

// Register adds a to the registry. breakpoint marks this action as a
// breakpoint per §4.3: invoking it never runs Execute; the runtime instead
// stashes queue state and pauses the task.
func Register[T any](r *Registry, a Action[T], breakpoint bool) {
	reflector := &jsonschema.Reflector{ExpandedStruct: true}
	if reflect.TypeOf((*T)(nil)).Elem().Name() == "" {
		// An unnamed argument type has no definition to expand; reflect it inline.
		reflector.ExpandedStruct = false
	}
	s := reflector.Reflect(new(T))
	e := &entry{
		name:        a.Name(),
		description: a.Description(),
		schema:      s,
		breakpoint:  breakpoint,
		execute: func(ctx context.Context, raw json.RawMessage) (*Result, error) {
			var input T
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &input); err != nil {
					return nil, fmt.Errorf("invalid argument shape: %w", err)
				}
			}
			return a.Execute(ctx, input)
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actions[e.name]; !exists {
		r.order = append(r.order, e.name)
	}
	r.actions[e.name] = e
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.actions[name]
	return ok
}

// IsBreakpoint reports whether the named action is declared as a
// breakpoint. Calling it with an unregistered name returns false.
func (r *Registry) IsBreakpoint(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.actions[name]
	return ok && e.breakpoint
}

// Names returns every registered action name in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Schema returns the JSON schema for a registered action's argument struct.
func (r *Registry) Schema(name string) (*jsonschema.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.actions[name]
	if !ok {
		return nil, false
	}
	return e.schema, true
}

func (r *Registry) get(name string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.actions[name]
	return e, ok
}

// Execute runs call against the registry. Breakpoint actions must never
// reach here — the runtime checks IsBreakpoint before calling Execute and
// takes the stash-and-pause path instead (§4.3).
func (r *Registry) Execute(ctx context.Context, call mailtool.Call) (*Result, error) {
	e, ok := r.get(call.Name)
	if !ok {
		return nil, fmt.Errorf("action %q is not registered", call.Name)
	}
	raw, err := json.Marshal(call.Args)
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}
	return e.execute(ctx, raw)
}
