// Package delegation implements the delegate/wait scheme: the AI
// functions that let an agent spawn, track, and aggregate concurrent
// helper agents.
package delegation

import "sync"

// Status is the lifecycle status of one logged task.
type Status string

const (
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusReassigned Status = "reassigned"
)

// Entry is one append-only record in the TaskLog: which agent is (or
// was) working on which task text, and its current status.
type Entry struct {
	AgentName string
	TaskText  string
	Status    Status
}

// TaskLog is the process-wide, append-only record of every delegated
// task, shared by every DelegationScheme in the tree. It backs the
// dedup check (spec.md's "exact string equality against a global
// append-only task log") and gives observers (tests, metrics, an
// eventual UI) a consistent view of in-flight work.
type TaskLog struct {
	mu      sync.Mutex
	entries []Entry
}

// NewTaskLog creates an empty log.
func NewTaskLog() *TaskLog {
	return &TaskLog{}
}

// Append records a new entry.
func (l *TaskLog) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// UpdateStatus sets the status of the most recent entry matching
// agentName and taskText. It is a no-op if no such entry exists.
func (l *TaskLog) UpdateStatus(agentName, taskText string, status Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].AgentName == agentName && l.entries[i].TaskText == taskText {
			l.entries[i].Status = status
			return
		}
	}
}

// ActiveEntryFor reports the most recent non-failed entry whose
// TaskText exactly equals taskText, if any. Used by the dedup guard:
// an identical task already running or completed should not be
// delegated again.
func (l *TaskLog) ActiveEntryFor(taskText string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].TaskText == taskText && l.entries[i].Status != StatusFailed {
			return l.entries[i], true
		}
	}
	return Entry{}, false
}

// Snapshot returns a copy of every entry recorded so far, in append order.
func (l *TaskLog) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
