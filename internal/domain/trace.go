package domain

import (
	"time"

	"stratengine/internal/lang"
)

type TraceSeverity string

const (
	TraceInfo  TraceSeverity = "info"
	TraceWarn  TraceSeverity = "warn"
	TraceError TraceSeverity = "error"
)

// TraceEntry records a single evaluation step. Seq and At are assigned
// by the builder; Seq is 1:1 with evaluation order.
type TraceEntry struct {
	Seq         int           `json:"seq"`
	Pos         lang.Pos      `json:"pos"`
	Operator    string        `json:"operator,omitempty"`
	Inputs      []string      `json:"inputs,omitempty"`
	Result      string        `json:"result,omitempty"`
	BranchTaken string        `json:"branchTaken,omitempty"`
	Severity    TraceSeverity `json:"severity"`
	Err         string        `json:"err,omitempty"`
	At          time.Time     `json:"at"`
}

// Trace is the ordered, append-only audit log of one evaluation.
type Trace struct {
	Entries []TraceEntry `json:"entries"`
}

// TraceBuilder accumulates entries during one evaluation. Not safe for
// concurrent use; each evaluation owns its builder.
type TraceBuilder struct {
	entries []TraceEntry
	clock   func() time.Time
}

func NewTraceBuilder() *TraceBuilder {
	return &TraceBuilder{clock: time.Now}
}

// NewTraceBuilderWithClock lets tests pin entry timestamps.
func NewTraceBuilderWithClock(clock func() time.Time) *TraceBuilder {
	return &TraceBuilder{clock: clock}
}

// Append records an entry, assigning its sequence number and timestamp.
func (b *TraceBuilder) Append(e TraceEntry) {
	if e.Severity == "" {
		e.Severity = TraceInfo
	}
	e.Seq = len(b.entries) + 1
	e.At = b.clock().UTC()
	b.entries = append(b.entries, e)
}

func (b *TraceBuilder) Len() int {
	return len(b.entries)
}

// Build returns the accumulated trace. The builder may keep appending;
// the returned trace owns a copy.
func (b *TraceBuilder) Build() Trace {
	entries := make([]TraceEntry, len(b.entries))
	copy(entries, b.entries)
	return Trace{Entries: entries}
}
