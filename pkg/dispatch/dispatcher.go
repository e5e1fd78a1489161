// Package dispatch routes decoded requests through validation, session
// acquisition, and tool execution, producing exactly one response per request.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/oakmont/parcelscout/pkg/browser"
	"github.com/oakmont/parcelscout/pkg/logging"
	"github.com/oakmont/parcelscout/pkg/metrics"
	"github.com/oakmont/parcelscout/pkg/protocol"
	"github.com/oakmont/parcelscout/pkg/tools"
)

// SessionPool is the slice of the session manager the dispatcher needs:
// exclusive checkout of a session and its mandatory return.
type SessionPool interface {
	Acquire(ctx context.Context, sessionID string) (*browser.Session, error)
	Release(s *browser.Session, outcome browser.Outcome)
}

// Options configures a Dispatcher.
type Options struct {
	Registry *tools.Registry
	Manager  SessionPool

	// DefaultDeadline bounds tool execution when a request carries no
	// deadline of its own.
	DefaultDeadline time.Duration

	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

// Dispatcher executes tool calls. It is safe for concurrent use; each request
// is processed independently and session serialization is the manager's job.
type Dispatcher struct {
	registry *tools.Registry
	manager  SessionPool
	deadline time.Duration
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewDispatcher creates a dispatcher over a frozen registry and a session
// manager.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.DefaultDeadline <= 0 {
		opts.DefaultDeadline = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Dispatcher{
		registry: opts.Registry,
		manager:  opts.Manager,
		deadline: opts.DefaultDeadline,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Handle executes one request end to end and always returns a response
// carrying the request id: either a result or a classified error, never both.
func (d *Dispatcher) Handle(ctx context.Context, req *protocol.Request) *protocol.Response {
	start := time.Now()
	resp := d.dispatch(ctx, req)

	status := "ok"
	if resp.Error != nil {
		status = string(resp.Error.Kind)
	}
	d.metrics.ObserveRequest(req.Tool, status, time.Since(start))
	d.logger.Debug("request handled",
		zap.String("id", req.ID),
		zap.String("tool", req.Tool),
		zap.String("status", status),
		zap.Duration("elapsed", time.Since(start)))
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, req *protocol.Request) *protocol.Response {
	tool, err := d.registry.Resolve(req.Tool)
	if err != nil {
		return protocol.NewErrorResponse(req.ID, err)
	}

	// Validation precedes execution: invalid input never reaches a handler
	// and never consumes a session.
	if err := tools.ValidateArguments(req.Args, tool.Schema()); err != nil {
		return protocol.NewErrorResponse(req.ID, err)
	}

	deadline := d.deadline
	if req.DeadlineMs > 0 {
		deadline = time.Duration(req.DeadlineMs) * time.Millisecond
	}
	opCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	switch h := tool.(type) {
	case tools.SessionHandler:
		return d.runInSession(opCtx, req, h)
	case tools.Handler:
		result, err := d.run(opCtx, req, h)
		if err != nil {
			return protocol.NewErrorResponse(req.ID, err)
		}
		return protocol.NewResultResponse(req.ID, result)
	default:
		return protocol.NewErrorResponse(req.ID,
			fmt.Errorf("%w: tool %q has no executable handler", protocol.ErrEngineFault, req.Tool))
	}
}

// run executes a sessionless handler under the deadline.
func (d *Dispatcher) run(ctx context.Context, req *protocol.Request, h tools.Handler) (interface{}, error) {
	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := h.Execute(ctx, req.Args)
		done <- outcome{result, err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: tool %s exceeded its deadline", protocol.ErrOperationTimeout, req.Tool)
	}
}

// runInSession acquires a session, executes the handler, and releases the
// session exactly once with an outcome reflecting how execution ended. A
// deadline expiry mid-operation taints the session: the abandoned operation
// may still be mutating browser state.
func (d *Dispatcher) runInSession(ctx context.Context, req *protocol.Request, h tools.SessionHandler) *protocol.Response {
	session, err := d.manager.Acquire(ctx, req.SessionID)
	if err != nil {
		return protocol.NewErrorResponse(req.ID, err)
	}

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, execErr := h.ExecuteInSession(ctx, session, req.Args)
		done <- outcome{result, execErr}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if browser.IsEngineFault(out.err) {
				d.manager.Release(session, browser.OutcomeFault)
			} else {
				d.manager.Release(session, browser.OutcomeSuccess)
			}
			return protocol.NewErrorResponse(req.ID, out.err)
		}
		d.manager.Release(session, browser.OutcomeSuccess)
		return protocol.NewResultResponse(req.ID, out.result)
	case <-ctx.Done():
		d.manager.Release(session, browser.OutcomeTainted)
		d.logger.Warn("operation deadline expired, session tainted",
			zap.String("id", req.ID),
			zap.String("tool", req.Tool),
			zap.String("session_id", session.ID))
		return protocol.NewErrorResponse(req.ID,
			fmt.Errorf("%w: tool %s exceeded its deadline", protocol.ErrOperationTimeout, req.Tool))
	}
}
