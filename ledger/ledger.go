// Package ledger persists the set of job identifiers already applied to,
// for duplicate suppression across runs.
//
// The backing store is a JSONL file: one JSON object per line, one line
// per applied job. The format is deliberately flat and human-inspectable
// so the operator can audit or prune it with a text editor. The file is
// loaded into an in-memory membership set at open and appended to on each
// successful Record.
package ledger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrRead is returned when the backing file cannot be read or contains a
// malformed entry. A corrupt ledger halts the run: continuing without a
// trustworthy membership set would silently break duplicate suppression.
var ErrRead = errors.New("ledger: storage read failed")

// ErrWrite is returned when an append cannot be made durable. The
// in-memory set is not updated on failure, so Contains never reports an
// entry the next run would not reload.
var ErrWrite = errors.New("ledger: storage write failed")

// Entry is one applied-job record.
type Entry struct {
	JobID     string    `json:"job_id"`
	Title     string    `json:"title,omitempty"`
	Company   string    `json:"company,omitempty"`
	AppliedAt time.Time `json:"applied_at"`
}

// Ledger is the applied-job record. Safe for concurrent use, although a
// run has a single writer.
type Ledger struct {
	path string

	mu      sync.RWMutex
	seen    map[string]struct{}
	entries []Entry

	// now is replaceable in tests for stable timestamps.
	now func() time.Time
}

// Open loads the ledger at path. A missing file is an empty ledger; the
// file is created on first Record. Parent directories are created.
func Open(path string) (*Ledger, error) {
	l := &Ledger{
		path: path,
		seen: make(map[string]struct{}),
		now:  time.Now,
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrRead, path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrRead, path, line, err)
		}
		if e.JobID == "" {
			return nil, fmt.Errorf("%w: %s line %d: missing job_id", ErrRead, path, line)
		}
		if _, dup := l.seen[e.JobID]; dup {
			// Older runs appended before the idempotence check existed.
			continue
		}
		l.seen[e.JobID] = struct{}{}
		l.entries = append(l.entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan %s: %v", ErrRead, path, err)
	}

	return l, nil
}

// Contains reports whether jobID has already been applied to.
func (l *Ledger) Contains(jobID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[jobID]
	return ok
}

// Record appends an applied-job entry and makes it durable. Recording an
// already-present jobID is a no-op and returns nil. On write failure the
// in-memory set is left untouched, so memory and disk never diverge.
func (l *Ledger) Record(jobID, title, company string) error {
	if jobID == "" {
		return fmt.Errorf("%w: empty job_id", ErrWrite)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[jobID]; ok {
		return nil
	}

	e := Entry{
		JobID:     jobID,
		Title:     title,
		Company:   company,
		AppliedAt: l.now().UTC(),
	}

	if err := l.append(e); err != nil {
		return err
	}

	l.seen[jobID] = struct{}{}
	l.entries = append(l.entries, e)
	return nil
}

// append writes one entry as a single line followed by fsync. The line is
// written in one Write call on an O_APPEND descriptor so an interrupted
// process leaves at worst a final partial line, never an interleaved one.
func (l *Ledger) append(e Entry) error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: mkdir %s: %v", ErrWrite, dir, err)
		}
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrWrite, err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrWrite, l.path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("%w: append %s: %v", ErrWrite, l.path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %v", ErrWrite, l.path, err)
	}
	return nil
}

// Len returns the number of recorded jobs.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of all recorded entries in append order.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// JobIDs returns all recorded job identifiers in append order.
func (l *Ledger) JobIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		ids = append(ids, e.JobID)
	}
	return ids
}
