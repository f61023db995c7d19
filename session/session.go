// Package session drives one job-application run: validate configuration,
// wait out the operator's manual login, compose the task, and hand
// control to the automation engine together with the action set. The
// driver holds no job-specific state beyond wiring; every side effect
// goes through the actions.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hazyhaar/easyapply/actions"
	"github.com/hazyhaar/easyapply/audit"
	"github.com/hazyhaar/easyapply/config"
	"github.com/hazyhaar/easyapply/ledger"
	"github.com/hazyhaar/easyapply/resume"
	"github.com/hazyhaar/easyapply/task"
)

// ErrAuthTimeout is returned when the operator does not complete the
// manual login within auth.max_wait.
var ErrAuthTimeout = errors.New("session: manual login timed out")

// ErrStorageDegraded is returned when the run ends with the ledger in a
// degraded state (a write failed mid-session). Entries recorded before
// the failure are preserved.
var ErrStorageDegraded = errors.New("session: ledger degraded during run")

// State is the driver's lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateAuthenticating
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthenticating:
		return "authenticating"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LoginWaiter blocks until the operator's manual sign-in completes. The
// browser package provides the production implementation (URL polling);
// tests inject a fake.
type LoginWaiter interface {
	Wait(ctx context.Context) error
}

// Deps are the driver's collaborators, passed explicitly so each can be
// replaced in tests.
type Deps struct {
	Ledger  *ledger.Ledger
	Resume  *resume.Profile
	Actions *actions.Set
	Tracker *actions.LedgerActions
	Waiter  LoginWaiter
	Engine  Engine
	Audit   *audit.Logger
	Logger  *slog.Logger
}

// Driver is the run driver.
type Driver struct {
	cfg   *config.Config
	deps  Deps
	state atomic.Int32
}

// New creates a Driver. Configuration is validated in Run, before the
// authentication wait begins.
func New(cfg *config.Config, deps Deps) *Driver {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Driver{cfg: cfg, deps: deps}
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	return State(d.state.Load())
}

// Run executes one session. Fatal errors terminate the run; ledger
// entries recorded before a failure are preserved.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	log := d.deps.Logger

	if err := d.cfg.Validate(); err != nil {
		d.state.Store(int32(StateFailed))
		return nil, err
	}
	if d.deps.Ledger == nil || d.deps.Resume == nil || d.deps.Actions == nil ||
		d.deps.Waiter == nil || d.deps.Engine == nil {
		d.state.Store(int32(StateFailed))
		return nil, fmt.Errorf("session: incomplete wiring")
	}

	d.deps.Audit.Record(ctx, audit.Event{Event: "session_started", Success: true})

	// Manual-login suspension point. The wait blocks progression but not
	// cancellation: ctx aborts it cleanly.
	d.state.Store(int32(StateAuthenticating))
	log.Info("waiting for manual login", "max_wait", d.cfg.Auth.MaxWait.Std())
	if err := d.waitForLogin(ctx); err != nil {
		return nil, d.fail(ctx, err)
	}
	log.Info("login completed")

	spec, err := task.Compose(task.Params{
		Role:            d.cfg.Search.Role,
		Location:        d.cfg.Search.Location,
		MaxApplications: d.cfg.Search.MaxApplications,
		ResumeExcerpt:   d.deps.Resume.Excerpt(4000),
		AppliedIDs:      d.deps.Ledger.JobIDs(),
	})
	if err != nil {
		return nil, d.fail(ctx, err)
	}

	d.state.Store(int32(StateRunning))
	log.Info("session running", "role", spec.Role, "max_applications", spec.MaxApplications,
		"already_applied", d.deps.Ledger.Len())

	res, err := d.deps.Engine.RunSession(ctx, spec, d.deps.Actions)
	if err != nil {
		return nil, d.fail(ctx, fmt.Errorf("session: engine: %w", err))
	}

	// A degraded ledger means duplicate tracking can no longer be
	// trusted; surface it as a failed run even though the engine
	// finished.
	if d.deps.Tracker != nil && d.deps.Tracker.Degraded() {
		return res, d.fail(ctx, ErrStorageDegraded)
	}

	d.state.Store(int32(StateCompleted))
	d.deps.Audit.Record(ctx, audit.Event{
		Event:   "session_completed",
		Detail:  fmt.Sprintf("applied=%d skipped=%d", res.Applied, res.Skipped),
		Success: true,
	})
	log.Info("session completed", "applied", res.Applied, "skipped", res.Skipped)
	return res, nil
}

func (d *Driver) waitForLogin(ctx context.Context) error {
	waitCtx := ctx
	if d.cfg.Auth.MaxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, d.cfg.Auth.MaxWait.Std())
		defer cancel()
	}

	if err := d.deps.Waiter.Wait(waitCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w after %s", ErrAuthTimeout, d.cfg.Auth.MaxWait.Std())
		}
		return fmt.Errorf("session: login wait: %w", err)
	}
	return nil
}

func (d *Driver) fail(ctx context.Context, err error) error {
	d.state.Store(int32(StateFailed))
	d.deps.Audit.Record(ctx, audit.Event{Event: "session_failed", Detail: err.Error()})
	d.deps.Logger.Error("session failed", "error", err)
	return err
}
