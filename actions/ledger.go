package actions

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/hazyhaar/easyapply/audit"
	"github.com/hazyhaar/easyapply/ledger"
)

// LedgerActions binds the duplicate-suppression actions to a ledger and
// an optional audit trail.
type LedgerActions struct {
	ledger *ledger.Ledger
	audit  *audit.Logger

	// degraded is set when a ledger write fails. The driver checks it
	// after the session: a run without reliable duplicate tracking must
	// not continue into another application.
	degraded atomic.Bool
}

// BindLedger registers record_application, check_applied and skip_job.
func (s *Set) BindLedger(l *ledger.Ledger, a *audit.Logger) *LedgerActions {
	la := &LedgerActions{ledger: l, audit: a}

	s.Register(Action{
		Name:        "record_application",
		Description: "Record a submitted application in the applied-job ledger. Call after every successful Easy Apply submission. Safe to call again for the same job.",
		InputSchema: inputSchema(map[string]any{
			"job_id":           map[string]any{"type": "string", "description": "Job URL or identifier"},
			"title":            map[string]any{"type": "string", "description": "Job title"},
			"company":          map[string]any{"type": "string", "description": "Company name"},
			"description_html": map[string]any{"type": "string", "description": "Optional job description HTML, kept in the audit trail"},
		}, []string{"job_id"}),
	}, la.recordApplication(s))

	s.Register(Action{
		Name:        "check_applied",
		Description: "Check whether a job was already applied to. Call before applying to any job.",
		InputSchema: inputSchema(map[string]any{
			"job_id": map[string]any{"type": "string", "description": "Job URL or identifier"},
		}, []string{"job_id"}),
	}, la.checkApplied(s))

	s.Register(Action{
		Name:        "skip_job",
		Description: "Record that a job was skipped and why, for example when Easy Apply is unavailable or the application requires a multi-step external process. Never mutates the applied-job ledger.",
		InputSchema: inputSchema(map[string]any{
			"job_id": map[string]any{"type": "string", "description": "Job URL or identifier"},
			"reason": map[string]any{"type": "string", "description": "Why the job was skipped"},
		}, []string{"job_id", "reason"}),
	}, la.skipJob(s))

	return la
}

// Degraded reports whether any ledger write failed during the session.
func (la *LedgerActions) Degraded() bool {
	return la.degraded.Load()
}

type recordReq struct {
	JobID           string `json:"job_id"`
	Title           string `json:"title"`
	Company         string `json:"company"`
	DescriptionHTML string `json:"description_html"`
}

func (la *LedgerActions) recordApplication(s *Set) Handler {
	return func(ctx context.Context, args json.RawMessage) Result {
		var p recordReq
		if err := json.Unmarshal(args, &p); err != nil {
			return failed("invalid arguments: %v", err)
		}
		if p.JobID == "" {
			return failed("job_id is required")
		}

		if la.ledger.Contains(p.JobID) {
			return ok("already recorded: %s", p.JobID)
		}

		if err := la.ledger.Record(p.JobID, p.Title, p.Company); err != nil {
			if errors.Is(err, ledger.ErrWrite) {
				la.degraded.Store(true)
			}
			la.audit.Record(ctx, audit.Event{
				Event: "action_failed", JobID: p.JobID, Detail: err.Error(),
			})
			return failed("could not record application for %s: %v", p.JobID, err)
		}

		detail := p.Title
		if p.Company != "" {
			detail += " at " + p.Company
		}
		if p.DescriptionHTML != "" {
			if md := htmlToMarkdown(p.DescriptionHTML); md != "" {
				detail += "\n\n" + md
			}
		}
		la.audit.Record(ctx, audit.Event{
			Event: "applied", JobID: p.JobID, Detail: detail, Success: true,
		})

		s.logger.Info("application recorded", "job_id", p.JobID, "title", p.Title, "company", p.Company)
		return ok("recorded application for %s", p.JobID)
	}
}

func (la *LedgerActions) checkApplied(s *Set) Handler {
	return func(ctx context.Context, args json.RawMessage) Result {
		var p struct {
			JobID string `json:"job_id"`
		}
		if err := json.Unmarshal(args, &p); err != nil {
			return failed("invalid arguments: %v", err)
		}
		if p.JobID == "" {
			return failed("job_id is required")
		}
		if la.ledger.Contains(p.JobID) {
			return ok("already applied to %s, skip it", p.JobID)
		}
		return ok("not yet applied to %s", p.JobID)
	}
}

func (la *LedgerActions) skipJob(s *Set) Handler {
	return func(ctx context.Context, args json.RawMessage) Result {
		var p struct {
			JobID  string `json:"job_id"`
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(args, &p); err != nil {
			return failed("invalid arguments: %v", err)
		}
		if p.JobID == "" {
			return failed("job_id is required")
		}

		s.logger.Info("job skipped", "job_id", p.JobID, "reason", p.Reason)
		la.audit.Record(ctx, audit.Event{
			Event: "skipped", JobID: p.JobID, Detail: p.Reason, Success: true,
		})
		return ok("skipped %s", p.JobID)
	}
}
