package workflow

import (
	"time"

	"github.com/kailas-cloud/astrocat/internal/domain/processing"
)

// HistoryCap bounds the history kept per (name, type).
const HistoryCap = 100

// Action is a recorded registry operation.
type Action string

// Registry actions.
const (
	ActionRegister   Action = "register"
	ActionActivate   Action = "activate"
	ActionDeactivate Action = "deactivate"
	ActionPromote    Action = "promote"
	ActionRollback   Action = "rollback"
	ActionDuplicate  Action = "duplicate"
)

// HistoryEntry is one append-only activation history record.
// Seq increases strictly per (name, type) and breaks ties between equal timestamps.
type HistoryEntry struct {
	Seq         int64
	Name        string
	Version     string
	Type        processing.Type
	Action      Action
	PerformedAt time.Time
	PerformedBy string
	Reason      string
}

// History is the bounded, newest-first log of one (name, type).
type History struct {
	entries []HistoryEntry
	nextSeq int64
	cap     int
}

// NewHistory creates an empty history keeping at most capacity entries.
// A non-positive capacity means HistoryCap.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = HistoryCap
	}
	return &History{nextSeq: 1, cap: capacity}
}

// Append records an entry, assigning its sequence number, and evicts the oldest beyond the cap.
func (h *History) Append(e HistoryEntry) HistoryEntry {
	e.Seq = h.nextSeq
	h.nextSeq++
	e.PerformedAt = e.PerformedAt.UTC()
	h.entries = append([]HistoryEntry{e}, h.entries...)
	if len(h.entries) > h.cap {
		h.entries = h.entries[:h.cap]
	}
	return e
}

// Entries returns up to limit entries, newest first. limit <= 0 returns all.
func (h *History) Entries(limit int) []HistoryEntry {
	n := len(h.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]HistoryEntry, n)
	copy(out, h.entries[:n])
	return out
}

// Len returns the number of retained entries.
func (h *History) Len() int { return len(h.entries) }
