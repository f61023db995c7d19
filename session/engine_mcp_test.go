package session

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/easyapply/actions"
	"github.com/hazyhaar/easyapply/resume"
	"github.com/hazyhaar/easyapply/task"
)

var testAgentImpl = &mcp.Implementation{Name: "easyapply-test-agent", Version: "0.1.0"}

type engineRun struct {
	res *Result
	err error
}

// startEngine runs e.RunSession over an in-memory transport and connects
// an in-process client playing the agent role.
func startEngine(t *testing.T, ctx context.Context, e *MCPEngine, spec *task.Spec) (<-chan engineRun, *mcp.ClientSession) {
	t.Helper()

	set := actions.NewSet(nil)
	set.BindResume(&resume.Profile{Path: "resume.txt", Text: "Go engineer, five years of backend work"})

	serverT, clientT := mcp.NewInMemoryTransports()
	e.Transport = serverT

	runCh := make(chan engineRun, 1)
	go func() {
		res, err := e.RunSession(ctx, spec, set)
		runCh <- engineRun{res, err}
	}()

	client := mcp.NewClient(testAgentImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return runCh, session
}

func agentCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

func waitRun(t *testing.T, runCh <-chan engineRun) engineRun {
	t.Helper()
	select {
	case run := <-runCh:
		return run
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not return")
		return engineRun{}
	}
}

func TestMCPEngineServesSessionToCompletion(t *testing.T) {
	var logBuf bytes.Buffer
	e := &MCPEngine{
		Model:   "openai/gpt-4o",
		BaseURL: "https://openrouter.ai/api/v1",
		Logger:  slog.New(slog.NewJSONHandler(&logBuf, nil)),
	}
	spec := &task.Spec{Text: "apply to Go roles", Role: "go developer", MaxApplications: 2}

	runCh, session := startEngine(t, context.Background(), e, spec)

	// The agent discovers the bound actions plus the session tools.
	tools, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	for _, want := range []string{"complete_run", "get_task", "read_resume"} {
		if i := sort.SearchStrings(names, want); i >= len(names) || names[i] != want {
			t.Errorf("tool %q not exposed, got %v", want, names)
		}
	}

	if text := agentCallTool(t, session, "get_task", map[string]any{}); text != spec.Text {
		t.Errorf("get_task = %q, want %q", text, spec.Text)
	}
	if text := agentCallTool(t, session, "read_resume", map[string]any{}); !strings.Contains(text, "Go engineer") {
		t.Errorf("read_resume = %q", text)
	}

	agentCallTool(t, session, "complete_run", map[string]any{
		"applied": 2, "skipped": 1, "summary": "two easy applies, one external form",
	})

	run := waitRun(t, runCh)
	if run.err != nil {
		t.Fatalf("RunSession: %v", run.err)
	}
	if run.res.Applied != 2 || run.res.Skipped != 1 {
		t.Errorf("Result = %+v", run.res)
	}
	if !strings.Contains(logBuf.String(), "openai/gpt-4o") {
		t.Error("configured model missing from session log")
	}
}

func TestMCPEngineCompleteRunRejectsBadArguments(t *testing.T) {
	e := &MCPEngine{Logger: slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))}
	spec := &task.Spec{Text: "t", Role: "r", MaxApplications: 1}

	runCh, session := startEngine(t, context.Background(), e, spec)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "complete_run",
		Arguments: json.RawMessage(`{"applied": "two"}`),
	})
	if err == nil && result.GetError() == nil {
		t.Fatal("expected an error for a non-integer applied count")
	}

	// The session is still live; a correct call ends it.
	agentCallTool(t, session, "complete_run", map[string]any{"applied": 0, "skipped": 0})
	if run := waitRun(t, runCh); run.err != nil {
		t.Fatalf("RunSession: %v", run.err)
	}
}

func TestMCPEngineAgentDisconnectsWithoutCompleting(t *testing.T) {
	e := &MCPEngine{Logger: slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))}
	spec := &task.Spec{Text: "t", Role: "r", MaxApplications: 1}

	runCh, session := startEngine(t, context.Background(), e, spec)

	agentCallTool(t, session, "read_resume", map[string]any{})
	session.Close()

	run := waitRun(t, runCh)
	if run.err == nil {
		t.Fatal("expected error when the agent leaves without complete_run")
	}
	if run.res != nil {
		t.Errorf("Result = %+v, want nil", run.res)
	}
	if !strings.Contains(run.err.Error(), "agent") {
		t.Errorf("error = %v", run.err)
	}
}

func TestMCPEngineCompletionSurvivesImmediateDisconnect(t *testing.T) {
	// complete_run followed at once by a disconnect must never be
	// reported as a failed run, whichever event the engine sees first.
	for i := 0; i < 20; i++ {
		e := &MCPEngine{Logger: slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))}
		spec := &task.Spec{Text: "t", Role: "r", MaxApplications: 1}

		runCh, session := startEngine(t, context.Background(), e, spec)
		agentCallTool(t, session, "complete_run", map[string]any{"applied": 1, "skipped": 0})
		session.Close()

		run := waitRun(t, runCh)
		if run.err != nil {
			t.Fatalf("iteration %d: RunSession: %v", i, run.err)
		}
		if run.res.Applied != 1 {
			t.Fatalf("iteration %d: Result = %+v", i, run.res)
		}
	}
}

func TestMCPEngineHonorsContextCancellation(t *testing.T) {
	e := &MCPEngine{Logger: slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))}
	spec := &task.Spec{Text: "t", Role: "r", MaxApplications: 1}

	ctx, cancel := context.WithCancel(context.Background())
	runCh, _ := startEngine(t, ctx, e, spec)
	cancel()

	run := waitRun(t, runCh)
	if run.err == nil {
		t.Fatal("expected error after cancellation")
	}
}
