package monitor

import (
	"sync"

	"github.com/zxz-qa/deskwatch/internal/tracker"
)

type DiffKind int

const (
	NoChange DiffKind = iota
	Increased
	ColumnMissing
)

func (k DiffKind) String() string {
	switch k {
	case Increased:
		return "increased"
	case ColumnMissing:
		return "column-missing"
	default:
		return "no-change"
	}
}

type DiffResult struct {
	Kind     DiffKind
	OldCount int
	NewCount int
	// NewTasks is the column's entire current membership, not a set
	// difference against the previous snapshot: the upstream API exposes
	// no per-issue change timestamps, so "new" is approximated by
	// membership. Known to over-list on every increase.
	NewTasks []tracker.Issue
}

// Differ compares the monitored column's task count between consecutive
// snapshots. The very first observation only records the count, so a
// process restart never re-alerts on tasks that were already sitting in
// the column.
type Differ struct {
	column string

	mu        sync.Mutex
	lastCount int
	seen      bool
}

func NewDiffer(column string) *Differ {
	return &Differ{column: column}
}

// Tick compares snap against the last observation. The stored count is
// updated exactly once per tick, and only when the column is found.
func (d *Differ) Tick(snap *tracker.Snapshot) DiffResult {
	col, ok := snap.Column(d.column)
	if !ok {
		return DiffResult{Kind: ColumnMissing}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	res := DiffResult{Kind: NoChange, OldCount: d.lastCount, NewCount: col.TaskCount}
	if d.seen && col.TaskCount > d.lastCount {
		res.Kind = Increased
		res.NewTasks = snap.MemberIssues(col)
	}

	d.lastCount = col.TaskCount
	d.seen = true
	return res
}

// LastCount returns the last recorded count and whether any observation
// has been made yet.
func (d *Differ) LastCount() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastCount, d.seen
}

// Column returns the monitored column name.
func (d *Differ) Column() string { return d.column }
