package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/easyapply/actions"
	"github.com/hazyhaar/easyapply/config"
	"github.com/hazyhaar/easyapply/ledger"
	"github.com/hazyhaar/easyapply/resume"
	"github.com/hazyhaar/easyapply/task"
)

type fakeWaiter struct {
	err    error
	block  bool
	called bool
}

func (w *fakeWaiter) Wait(ctx context.Context) error {
	w.called = true
	if w.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return w.err
}

type fakeEngine struct {
	spec   *task.Spec
	result *Result
	err    error
}

func (e *fakeEngine) RunSession(ctx context.Context, spec *task.Spec, acts *actions.Set) (*Result, error) {
	e.spec = spec
	if e.err != nil {
		return nil, e.err
	}
	if e.result != nil {
		return e.result, nil
	}
	return &Result{Applied: 1}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		LLM:    config.LLMConfig{APIKey: "test-key"},
		Search: config.SearchConfig{Role: "backend engineer", MaxApplications: 2},
		Resume: config.ResumeConfig{Path: "cv.txt"},
		Ledger: config.LedgerConfig{Path: filepath.Join(t.TempDir(), "applied.jsonl")},
	}
}

func testDeps(t *testing.T, cfg *config.Config) (Deps, *fakeWaiter, *fakeEngine) {
	t.Helper()
	l, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	set := actions.NewSet(nil)
	tracker := set.BindLedger(l, nil)
	prof := &resume.Profile{Path: "cv.txt", Text: "Jane Doe. Go, SQL."}
	set.BindResume(prof)

	w := &fakeWaiter{}
	e := &fakeEngine{}
	return Deps{
		Ledger:  l,
		Resume:  prof,
		Actions: set,
		Tracker: tracker,
		Waiter:  w,
		Engine:  e,
	}, w, e
}

func TestRunHappyPath(t *testing.T) {
	cfg := testConfig(t)
	deps, w, e := testDeps(t, cfg)
	d := New(cfg, deps)

	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Applied != 1 {
		t.Errorf("result: %+v", res)
	}
	if d.State() != StateCompleted {
		t.Errorf("state: %s", d.State())
	}
	if !w.called {
		t.Error("login waiter was never consulted")
	}
	if e.spec == nil || !strings.Contains(e.spec.Text, "backend engineer") {
		t.Error("engine did not receive the composed task")
	}
	if !strings.Contains(e.spec.Text, "Jane Doe. Go, SQL.") {
		t.Error("task missing resume context")
	}
}

func TestRunComposesAppliedIDsIntoTask(t *testing.T) {
	cfg := testConfig(t)
	deps, _, e := testDeps(t, cfg)
	if err := deps.Ledger.Record("job-old", "SWE", "Acme"); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	d := New(cfg, deps)

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(e.spec.Text, "job-old") {
		t.Error("previously applied job missing from task text")
	}
}

func TestMissingResumePathFailsBeforeAuthentication(t *testing.T) {
	// WHAT: Invalid configuration fails the run before the login wait.
	// WHY: No browser session may start on a broken configuration.
	cfg := testConfig(t)
	cfg.Resume.Path = ""
	deps, w, _ := testDeps(t, cfg)
	d := New(cfg, deps)

	_, err := d.Run(context.Background())
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected config.ErrInvalid, got %v", err)
	}
	if w.called {
		t.Error("login waiter must not run on invalid configuration")
	}
	if d.State() != StateFailed {
		t.Errorf("state: %s", d.State())
	}
}

func TestAuthTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.MaxWait = config.Duration(20 * time.Millisecond)
	deps, _, _ := testDeps(t, cfg)
	deps.Waiter = &fakeWaiter{block: true}
	d := New(cfg, deps)

	_, err := d.Run(context.Background())
	if !errors.Is(err, ErrAuthTimeout) {
		t.Fatalf("expected ErrAuthTimeout, got %v", err)
	}
	if d.State() != StateFailed {
		t.Errorf("state: %s", d.State())
	}
}

func TestOperatorCancelIsNotAuthTimeout(t *testing.T) {
	// WHAT: Cancelling the process during the login wait reports the
	// cancellation, not a timeout.
	// WHY: The two terminations mean different things to the operator.
	cfg := testConfig(t)
	cfg.Auth.MaxWait = config.Duration(time.Minute)
	deps, _, _ := testDeps(t, cfg)
	deps.Waiter = &fakeWaiter{block: true}
	d := New(cfg, deps)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := d.Run(ctx)
	if err == nil || errors.Is(err, ErrAuthTimeout) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
}

func TestEngineFailurePreservesLedger(t *testing.T) {
	// WHAT: An engine error fails the run but keeps recorded entries.
	// WHY: Partial progress is preserved; no rollback.
	cfg := testConfig(t)
	deps, _, e := testDeps(t, cfg)
	e.err = errors.New("browser crashed")
	if err := deps.Ledger.Record("job-1", "SWE", "Acme"); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	d := New(cfg, deps)

	_, err := d.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "browser crashed") {
		t.Fatalf("expected engine error, got %v", err)
	}
	if d.State() != StateFailed {
		t.Errorf("state: %s", d.State())
	}

	reloaded, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		t.Fatalf("reload ledger: %v", err)
	}
	if !reloaded.Contains("job-1") {
		t.Error("ledger entry lost after engine failure")
	}
}

type recordingEngine struct {
	jobID string
}

func (e *recordingEngine) RunSession(ctx context.Context, spec *task.Spec, acts *actions.Set) (*Result, error) {
	acts.Call(ctx, "record_application", []byte(`{"job_id":"`+e.jobID+`"}`))
	return &Result{Applied: 1}, nil
}

func TestDegradedLedgerFailsTheRun(t *testing.T) {
	// WHAT: A ledger write failure during the session fails the run even
	// though the engine finished normally.
	// WHY: Continuing a later run on unreliable duplicate tracking risks
	// double applications; failing loudly tells the operator to fix the
	// storage first.
	cfg := testConfig(t)
	dir := filepath.Dir(cfg.Ledger.Path)
	deps, _, _ := testDeps(t, cfg)
	deps.Engine = &recordingEngine{jobID: "job-x"}

	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	d := New(cfg, deps)
	_, err := d.Run(context.Background())
	if err == nil {
		t.Skip("running as root, cannot simulate unwritable path")
	}
	if !errors.Is(err, ErrStorageDegraded) {
		t.Fatalf("expected ErrStorageDegraded, got %v", err)
	}
	if d.State() != StateFailed {
		t.Errorf("state: %s", d.State())
	}
}

func TestIncompleteWiringFails(t *testing.T) {
	cfg := testConfig(t)
	deps, _, _ := testDeps(t, cfg)
	deps.Engine = nil
	d := New(cfg, deps)
	if _, err := d.Run(context.Background()); err == nil {
		t.Fatal("expected wiring error")
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateIdle:           "idle",
		StateAuthenticating: "authenticating",
		StateRunning:        "running",
		StateCompleted:      "completed",
		StateFailed:         "failed",
	}
	for s, want := range states {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
