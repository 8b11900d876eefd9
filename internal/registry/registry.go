// Package registry owns the set of tools available to the Agent Loop (the
// Tool Registry, spec component C5) and the confirmation gate dangerous
// tool calls must pass through before they run (the Confirmation Broker,
// component C10). The two live together because executeBatch is the only
// caller of the broker and their invariants are easiest to keep straight
// side by side.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelcode/tinyagent/internal/provider"
)

// Result is the outcome of one tool execution.
type Result struct {
	Success bool
	Output  string
	Error   string
}

// ExecuteFunc runs a tool with the given raw JSON arguments.
type ExecuteFunc func(ctx context.Context, args json.RawMessage) (Result, error)

// Tool is one entry in the registry. Dangerous classifies whether a call
// needs confirmation: nil or false means never; true means always with the
// default prompt; a string means always with that prompt; a DangerFunc is
// called with the call's arguments to decide per-call.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Dangerous   interface{} // nil | bool | string | DangerFunc
	Execute     ExecuteFunc
}

// DangerFunc computes whether a specific call is dangerous and, if so, the
// confirmation prompt to show.
type DangerFunc func(args json.RawMessage) (dangerous bool, prompt string)

// Call is one pending tool invocation from the model.
type Call struct {
	ID   string
	Name string
	Args json.RawMessage
}

// Registry owns name -> Tool and the current skill-imposed tool restriction.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	order  []string
	broker *Broker

	// allowed, when non-nil, restricts schema publication (List/SchemaFor)
	// to this set. nil means unrestricted.
	allowed map[string]struct{}
}

// New creates a Registry. broker may be nil, in which case dangerous calls
// are always denied (fail safe) until one is installed with SetBroker.
func New(broker *Broker) *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		broker: broker,
	}
}

// SetBroker installs or replaces the Confirmation Broker.
func (r *Registry) SetBroker(b *Broker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broker = b
}

// Register adds a tool, failing if the name is already taken.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Get returns a tool by name, unfiltered by any skill restriction —
// restrictions govern what the model is told about, not what can run.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every tool currently advertised to the model, honoring the
// active skill restriction if one is set.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		if r.allowed != nil {
			if _, ok := r.allowed[name]; !ok {
				continue
			}
		}
		out = append(out, r.tools[name])
	}
	return out
}

// SchemaFor returns the provider-facing schema for a tool, honoring the
// active skill restriction.
func (r *Registry) SchemaFor(name string) (provider.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.allowed != nil {
		if _, ok := r.allowed[name]; !ok {
			return provider.Tool{}, false
		}
	}
	t, ok := r.tools[name]
	if !ok {
		return provider.Tool{}, false
	}
	return provider.Tool{Name: t.Name, Description: t.Description, Parameters: t.Parameters}, true
}

// Schemas returns the provider-facing schema for every currently advertised
// tool, honoring the active skill restriction.
func (r *Registry) Schemas() []provider.Tool {
	tools := r.List()
	out := make([]provider.Tool, len(tools))
	for i, t := range tools {
		out[i] = provider.Tool{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
	}
	return out
}

// RestrictTo limits List/SchemaFor to the given tool names, as imposed by a
// loaded skill's allowedTools. An empty slice restricts to nothing.
func (r *Registry) RestrictTo(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	r.allowed = set
}

// ClearRestriction removes any skill-imposed tool restriction. The Agent
// Loop calls this at the start of every new user turn.
func (r *Registry) ClearRestriction() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allowed = nil
}

// Snapshot returns a new Registry sharing this one's broker but holding
// independent copies of the tool entries (all but those named in exclude),
// with no restriction set. Sub-agents get a snapshot rather than a pointer
// to the parent registry so their own RestrictTo/ClearRestriction calls
// can never race with or clobber the parent turn's tool advertisement.
func (r *Registry) Snapshot(exclude map[string]struct{}) *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := &Registry{
		tools:  make(map[string]Tool, len(r.tools)),
		broker: r.broker,
	}
	for _, name := range r.order {
		if _, skip := exclude[name]; skip {
			continue
		}
		out.tools[name] = r.tools[name]
		out.order = append(out.order, name)
	}
	return out
}

// IsDangerous evaluates a tool's Dangerous field against a specific call.
func (r *Registry) IsDangerous(name string, args json.RawMessage) bool {
	dangerous, _ := r.GetDangerLevel(name, args)
	return dangerous
}

// GetDangerLevel evaluates a tool's Dangerous field, returning whether the
// call needs confirmation and, if so, the prompt to show.
func (r *Registry) GetDangerLevel(name string, args json.RawMessage) (bool, string) {
	t, ok := r.Get(name)
	if !ok {
		return false, ""
	}
	switch d := t.Dangerous.(type) {
	case nil:
		return false, ""
	case bool:
		if !d {
			return false, ""
		}
		return true, "Execute " + name
	case string:
		return true, d
	case DangerFunc:
		return d(args)
	default:
		return false, ""
	}
}

// ExecuteBatch runs a set of tool calls per spec §4.5: dangerous calls are
// partitioned out and submitted to the Confirmation Broker as one request;
// denied calls and unknown tool names short-circuit their own slot; every
// approved/safe call runs concurrently, and results line up with the input
// order regardless of completion order.
func (r *Registry) ExecuteBatch(ctx context.Context, calls []Call) []Result {
	results := make([]Result, len(calls))

	type dangerousCall struct {
		index  int
		prompt string
	}
	var dangerousCalls []dangerousCall
	runnable := make([]bool, len(calls))

	for i, c := range calls {
		t, ok := r.Get(c.Name)
		if !ok {
			results[i] = Result{Success: false, Error: fmt.Sprintf(`Tool "%s" not found`, c.Name)}
			continue
		}
		isDangerous, prompt := r.evalDanger(t, c.Args)
		if isDangerous {
			dangerousCalls = append(dangerousCalls, dangerousCall{index: i, prompt: prompt})
			continue
		}
		runnable[i] = true
	}

	if len(dangerousCalls) > 0 {
		broker := r.currentBroker()
		req := ConfirmationRequest{Actions: make([]ConfirmationAction, len(dangerousCalls))}
		for j, dc := range dangerousCalls {
			c := calls[dc.index]
			req.Actions[j] = ConfirmationAction{Tool: c.Name, Args: c.Args, Description: dc.prompt}
		}
		result := broker.Confirm(req)
		for j, dc := range dangerousCalls {
			switch result.Type {
			case ConfirmApproveAll:
				runnable[dc.index] = true
			case ConfirmPartial:
				if j == result.SelectedIndex {
					runnable[dc.index] = true
				} else {
					results[dc.index] = Result{Success: false, Error: "User declined confirmation"}
				}
			default: // ConfirmDenyAll
				results[dc.index] = Result{Success: false, Error: "User declined confirmation"}
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range calls {
		if !runnable[i] {
			continue
		}
		i, c := i, c
		t, _ := r.Get(c.Name)
		g.Go(func() error {
			res, err := t.Execute(gctx, c.Args)
			if err != nil {
				results[i] = Result{Success: false, Error: err.Error()}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *Registry) evalDanger(t Tool, args json.RawMessage) (bool, string) {
	switch d := t.Dangerous.(type) {
	case nil:
		return false, ""
	case bool:
		if !d {
			return false, ""
		}
		return true, "Execute " + t.Name
	case string:
		return true, d
	case DangerFunc:
		return d(args)
	default:
		return false, ""
	}
}

func (r *Registry) currentBroker() *Broker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.broker == nil {
		return denyAllBroker
	}
	return r.broker
}

// denyAllBroker is used when no broker has been installed, so a miswired
// registry fails safe instead of silently running dangerous commands.
var denyAllBroker = &Broker{denyAll: true}
