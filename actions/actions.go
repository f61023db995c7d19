// Package actions exposes the custom operations the automation agent can
// invoke beyond its built-in browsing primitives: recording applications,
// checking the ledger, skipping jobs, reading the resume, and a small set
// of browser helpers. Each action declares a name, a JSON input schema and
// a description the agent uses to decide when to call it.
//
// Actions never raise uncaught faults to the caller. Handler errors and
// panics are converted into a structured failure Result so the driving
// agent can adapt its plan instead of crashing the session.
package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
)

// Result is the structured outcome of one action invocation.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(format string, args ...any) Result {
	return Result{Success: true, Message: fmt.Sprintf(format, args...)}
}

func failed(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Handler executes one action against its decoded raw arguments.
type Handler func(ctx context.Context, args json.RawMessage) Result

// Action is a named operation with its agent-facing declaration.
type Action struct {
	// Name is the identifier the agent calls.
	Name string

	// Description tells the agent when to invoke the action.
	Description string

	// InputSchema is the JSON schema of the expected arguments.
	InputSchema map[string]any

	handler Handler
}

// Set is the collection of actions exposed for one session.
type Set struct {
	logger  *slog.Logger
	actions map[string]*Action
}

// NewSet creates an empty action set. Use the Bind* methods or Register
// to populate it.
func NewSet(logger *slog.Logger) *Set {
	if logger == nil {
		logger = slog.Default()
	}
	return &Set{
		logger:  logger,
		actions: make(map[string]*Action),
	}
}

// Register adds an action. Registering a duplicate name panics: the set
// is assembled once at wiring time and a collision is a programming error.
func (s *Set) Register(a Action, h Handler) {
	if _, exists := s.actions[a.Name]; exists {
		panic(fmt.Sprintf("actions: duplicate action %q", a.Name))
	}
	a.handler = h
	s.actions[a.Name] = &a
}

// Names returns all registered action names, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.actions))
	for name := range s.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the declaration for name, or nil.
func (s *Set) Get(name string) *Action {
	return s.actions[name]
}

// Call invokes the named action. Unknown names, handler errors and
// handler panics all come back as failure Results, never as faults.
func (s *Set) Call(ctx context.Context, name string, args json.RawMessage) (res Result) {
	a, ok := s.actions[name]
	if !ok {
		return failed("unknown action %q", name)
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("action panicked", "action", name, "panic", r)
			res = failed("action %q failed internally", name)
		}
	}()

	res = a.handler(ctx, args)
	if !res.Success {
		s.logger.Warn("action failed", "action", name, "error", res.Error)
	}
	return res
}

// inputSchema builds a JSON object schema from properties and required
// field names.
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
