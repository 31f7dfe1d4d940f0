package tool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	contractx "github.com/quayside/portagent/agent/contract"
	statex "github.com/quayside/portagent/agent/state"
	openrouterx "github.com/quayside/portagent/pkg/openrouter"
	portapix "github.com/quayside/portagent/pkg/portapi"
)

const (
	defaultCallTimeout   = 20 * time.Second
	defaultRetryAttempts = 2
	defaultRetryBackoff  = 500 * time.Millisecond
)

// Spec describes one registered tool: its schema for the model, the roles
// allowed to invoke it, and the executor that talks to the backend.
type Spec struct {
	Name        string
	Description string
	Parameters  map[string]any
	Roles       []statex.Role // empty = every role
	Mutating    bool          // mutating calls are never auto-retried
	Execute     func(ctx context.Context, args map[string]any, scope contractx.Scope) (any, error)
}

func (s Spec) Def() openrouterx.ToolDef {
	return openrouterx.ToolDef{
		Name:        s.Name,
		Description: s.Description,
		Parameters:  s.Parameters,
	}
}

func (s Spec) AllowedFor(role statex.Role) bool {
	if len(s.Roles) == 0 {
		return true
	}
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// DispatcherOption customizes Dispatcher.
type DispatcherOption func(*Dispatcher)

func WithCallTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func WithRetry(attempts int, backoff time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if attempts > 0 {
			d.retryAttempts = attempts
		}
		if backoff >= 0 {
			d.retryBackoff = backoff
		}
	}
}

// Dispatcher validates, authorizes, and executes tool calls, mapping every
// outcome into the closed failure taxonomy.
type Dispatcher struct {
	specs         map[string]Spec
	timeout       time.Duration
	retryAttempts int
	retryBackoff  time.Duration
}

func NewDispatcher(specs []Spec, opts ...DispatcherOption) (*Dispatcher, error) {
	d := &Dispatcher{
		specs:         make(map[string]Spec, len(specs)),
		timeout:       defaultCallTimeout,
		retryAttempts: defaultRetryAttempts,
		retryBackoff:  defaultRetryBackoff,
	}
	for _, s := range specs {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, errors.New("tool spec has empty name")
		}
		if s.Execute == nil {
			return nil, fmt.Errorf("tool %s has no executor", name)
		}
		if _, dup := d.specs[name]; dup {
			return nil, fmt.Errorf("tool %s registered twice", name)
		}
		d.specs[name] = s
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// DefsFor returns the model-facing definitions of the named tools that the
// given role may invoke. Unknown names are skipped.
func (d *Dispatcher) DefsFor(role statex.Role, names []string) []openrouterx.ToolDef {
	defs := make([]openrouterx.ToolDef, 0, len(names))
	for _, name := range names {
		spec, ok := d.specs[name]
		if !ok || !spec.AllowedFor(role) {
			continue
		}
		defs = append(defs, spec.Def())
	}
	return defs
}

func (d *Dispatcher) Call(ctx context.Context, call statex.ToolCall, role statex.Role, scope contractx.Scope) statex.ToolResult {
	spec, ok := d.specs[call.Tool]
	if !ok {
		return statex.ToolResult{
			Tool:    call.Tool,
			Failure: statex.NewFailure(statex.FailureValidation, call.Tool, "unknown tool"),
		}
	}
	if !spec.AllowedFor(role) {
		return statex.ToolResult{
			Tool:    call.Tool,
			Failure: statex.NewFailure(statex.FailureUnauthorized, call.Tool, fmt.Sprintf("role %s may not invoke this tool", role)),
		}
	}

	attempts := 1
	if !spec.Mutating {
		attempts = d.retryAttempts
	}

	var failure *statex.Failure
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return statex.ToolResult{Tool: call.Tool, Failure: statex.FailureFrom(ctx.Err(), call.Tool)}
			case <-time.After(d.retryBackoff << (attempt - 1)):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		result, err := spec.Execute(callCtx, call.Args, scope)
		cancel()
		if err == nil {
			return statex.ToolResult{Tool: call.Tool, Result: result}
		}

		failure = mapFailure(err, call.Tool)
		if !retryable(failure.Kind) {
			break
		}
	}
	return statex.ToolResult{Tool: call.Tool, Failure: failure}
}

// CallAll dispatches independent calls concurrently and merges results by
// tool identity in request order, never by completion order.
func (d *Dispatcher) CallAll(ctx context.Context, calls []statex.ToolCall, role statex.Role, scope contractx.Scope) []statex.ToolResult {
	if len(calls) == 0 {
		return nil
	}
	if len(calls) == 1 {
		return []statex.ToolResult{d.Call(ctx, calls[0], role, scope)}
	}

	results := make([]statex.ToolResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call statex.ToolCall) {
			defer wg.Done()
			results[i] = d.Call(ctx, call, role, scope)
		}(i, call)
	}
	wg.Wait()
	return results
}

func retryable(kind statex.FailureKind) bool {
	return kind == statex.FailureTimeout || kind == statex.FailureBackendUnavailable
}

// mapFailure folds transport and backend errors into the taxonomy.
func mapFailure(err error, tool string) *statex.Failure {
	var status *portapix.StatusError
	if errors.As(err, &status) {
		switch {
		case status.StatusCode == http.StatusUnauthorized || status.StatusCode == http.StatusForbidden:
			return statex.NewFailure(statex.FailureUnauthorized, tool, err.Error())
		case status.StatusCode == http.StatusNotFound:
			return statex.NewFailure(statex.FailureNotFound, tool, err.Error())
		case status.StatusCode == http.StatusBadRequest || status.StatusCode == http.StatusUnprocessableEntity:
			return statex.NewFailure(statex.FailureValidation, tool, err.Error())
		case status.StatusCode == http.StatusRequestTimeout:
			return statex.NewFailure(statex.FailureTimeout, tool, err.Error())
		case status.StatusCode >= http.StatusInternalServerError:
			return statex.NewFailure(statex.FailureBackendUnavailable, tool, err.Error())
		default:
			return statex.NewFailure(statex.FailureInternal, tool, err.Error())
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return statex.NewFailure(statex.FailureTimeout, tool, err.Error())
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return statex.NewFailure(statex.FailureBackendUnavailable, tool, err.Error())
	}
	return statex.FailureFrom(err, tool)
}
