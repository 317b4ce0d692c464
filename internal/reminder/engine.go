// Package reminder owns the escalation lifecycle for batches of tasks
// surfaced by the column monitor: a reminder is created when new tasks
// appear, nags the work chat on a fixed interval, records who took which
// task, and goes quiet once every tracked task is taken or has left the
// monitored column.
package reminder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zxz-qa/deskwatch/internal/tracker"
)

// ErrInactive is returned when an operation targets a reminder that is
// unknown or already stopped.
var ErrInactive = errors.New("reminder is not active")

// Claim records who took a task and when.
type Claim struct {
	By string
	At time.Time
}

// ClaimStatus is the outcome of a claim attempt.
type ClaimStatus int

const (
	ClaimOK ClaimStatus = iota
	// ClaimAlreadyTaken: somebody claimed the task first. The original
	// claimant stays recorded; claims are never overwritten.
	ClaimAlreadyTaken
	// ClaimInactive: the reminder is unknown, stopped, or does not track
	// the task.
	ClaimInactive
)

type ClaimResult struct {
	Status ClaimStatus
	// Existing claimant when Status is ClaimAlreadyTaken.
	By string
	At time.Time
}

// View is the render-ready state of one reminder: what is still sitting
// in the monitored column and who took what. Safe to use without the
// engine lock; all fields are copies.
type View struct {
	ID        string
	StartedAt time.Time
	// Tracked issues still present in the monitored column, claimed or
	// not, in snapshot order.
	Waiting []tracker.Issue
	Claims  map[string]Claim
}

// Unclaimed returns the waiting issues nobody has taken yet.
func (v *View) Unclaimed() []tracker.Issue {
	var out []tracker.Issue
	for _, is := range v.Waiting {
		if _, ok := v.Claims[is.Key]; !ok {
			out = append(out, is)
		}
	}
	return out
}

type entry struct {
	id        string
	taskKeys  []string
	startedAt time.Time
	active    bool
	claims    map[string]Claim
	stop      chan struct{}
}

func (r *entry) tracks(key string) bool {
	for _, k := range r.taskKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Clock abstracts time for the escalation timers (allows fakes in tests).
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Engine owns the reminder table. A single mutex serializes every
// operation, including the snapshot fetch an escalation or claim needs:
// load is human-paced, and holding the lock across the fetch keeps the
// active/claims checks trivially race-free. Callers outside this package
// hold only reminder ids.
type Engine struct {
	fetcher  tracker.Fetcher
	column   string
	interval time.Duration
	clock    Clock
	log      *slog.Logger

	// OnEscalate is called with the lock held for each escalation that
	// still has waiting tasks. It must not call back into the engine.
	OnEscalate func(v View)

	mu        sync.Mutex
	ctx       context.Context
	reminders map[string]*entry
}

func NewEngine(fetcher tracker.Fetcher, column string, interval time.Duration, log *slog.Logger) *Engine {
	return &Engine{
		fetcher:   fetcher,
		column:    column,
		interval:  interval,
		clock:     realClock{},
		log:       log.With("component", "reminder"),
		ctx:       context.Background(),
		reminders: make(map[string]*entry),
	}
}

// SetClock overrides the engine clock (for testing).
func (e *Engine) SetClock(c Clock) { e.clock = c }

// Start records the context escalation fetches run under.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()
}

// Create registers a new active reminder for the given task keys and
// schedules its first escalation one interval from now. The same task key
// may be tracked by two overlapping reminders if two increases arrive in
// quick succession; claims are scoped per reminder, so the worst case is
// a duplicate button.
func (e *Engine) Create(taskKeys []string) string {
	id := uuid.NewString()[:8]

	keys := make([]string, len(taskKeys))
	copy(keys, taskKeys)

	r := &entry{
		id:        id,
		taskKeys:  keys,
		startedAt: e.clock.Now(),
		active:    true,
		claims:    make(map[string]Claim),
		stop:      make(chan struct{}),
	}

	e.mu.Lock()
	e.reminders[id] = r
	e.mu.Unlock()

	go e.run(id, r.stop)

	e.log.Info("reminder started", "id", id, "tasks", len(keys))
	return id
}

// run drives one reminder's escalations until it is deactivated.
func (e *Engine) run(id string, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-e.ctxDone():
			return
		case <-e.clock.After(e.interval):
			if !e.escalate(id) {
				return
			}
		}
	}
}

func (e *Engine) ctxDone() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx.Done()
}

// escalate fires one escalation tick. Returns false when no further
// escalations should run for this reminder.
func (e *Engine) escalate(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.reminders[id]
	if r == nil || !r.active {
		// A concurrent stop or claim completion won the race.
		return false
	}

	snap, err := e.fetcher.Fetch(e.ctx)
	if err != nil {
		e.log.Warn("escalation fetch failed, will retry next interval", "id", id, "err", err)
		return true
	}
	col, ok := snap.Column(e.column)
	if !ok {
		e.log.Warn("monitored column missing during escalation", "id", id, "column", e.column)
		return true
	}

	waiting := stillTracked(r, snap, col)
	if doneLocked(r, waiting) {
		e.deactivateLocked(r)
		e.log.Info("reminder resolved, stopping", "id", id)
		return false
	}

	if e.OnEscalate != nil {
		e.OnEscalate(viewLocked(r, waiting))
	}
	return true
}

// Claim records that claimant took taskKey. First claim wins; a later
// attempt gets ClaimAlreadyTaken with the original claimant. When the
// claim completes the reminder (every still-present tracked task taken),
// the reminder is deactivated in the same critical section.
//
// The returned View reflects the post-claim state for re-rendering the
// chat message. A non-nil error means the claim was recorded but the
// membership check could not run (fetch failure); completion will be
// re-checked on the next escalation.
func (e *Engine) Claim(id, taskKey, claimant string) (ClaimResult, *View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.reminders[id]
	if r == nil || !r.active || !r.tracks(taskKey) {
		return ClaimResult{Status: ClaimInactive}, nil, nil
	}
	if c, ok := r.claims[taskKey]; ok {
		return ClaimResult{Status: ClaimAlreadyTaken, By: c.By, At: c.At}, nil, nil
	}

	r.claims[taskKey] = Claim{By: claimant, At: e.clock.Now()}
	e.log.Info("task claimed", "id", id, "task", taskKey, "by", claimant)

	snap, err := e.fetcher.Fetch(e.ctx)
	if err != nil {
		return ClaimResult{Status: ClaimOK}, nil, err
	}
	col, ok := snap.Column(e.column)
	if !ok {
		return ClaimResult{Status: ClaimOK}, nil, errors.New("monitored column missing")
	}

	waiting := stillTracked(r, snap, col)
	if doneLocked(r, waiting) {
		e.deactivateLocked(r)
		e.log.Info("all tasks taken, reminder stopped", "id", id)
	}

	v := viewLocked(r, waiting)
	return ClaimResult{Status: ClaimOK}, &v, nil
}

// Stop deactivates a reminder. Idempotent: stopping an unknown or
// already-inactive id is a no-op, never an error.
func (e *Engine) Stop(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.reminders[id]
	if r == nil || !r.active {
		return
	}
	e.deactivateLocked(r)
	e.log.Info("reminder stopped", "id", id)
}

// View fetches the current membership and returns the render-ready state
// of an active reminder.
func (e *Engine) View(id string) (*View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.reminders[id]
	if r == nil || !r.active {
		return nil, ErrInactive
	}

	snap, err := e.fetcher.Fetch(e.ctx)
	if err != nil {
		return nil, err
	}
	col, ok := snap.Column(e.column)
	if !ok {
		return nil, errors.New("monitored column missing")
	}

	v := viewLocked(r, stillTracked(r, snap, col))
	return &v, nil
}

// Active reports whether the reminder exists and is still escalating.
func (e *Engine) Active(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.reminders[id]
	return r != nil && r.active
}

// ActiveCount returns the number of reminders still escalating.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, r := range e.reminders {
		if r.active {
			n++
		}
	}
	return n
}

// Shutdown deactivates every reminder. Used on process exit; reminder
// state does not survive a restart.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.reminders {
		if r.active {
			e.deactivateLocked(r)
		}
	}
}

func (e *Engine) deactivateLocked(r *entry) {
	r.active = false
	close(r.stop)
}

// stillTracked returns the tracked issues still present in the column's
// current membership, in snapshot order.
func stillTracked(r *entry, snap *tracker.Snapshot, col tracker.Column) []tracker.Issue {
	var out []tracker.Issue
	for _, is := range snap.MemberIssues(col) {
		if r.tracks(is.Key) {
			out = append(out, is)
		}
	}
	return out
}

// doneLocked reports whether nothing is left to escalate: every tracked
// task still in the column has a claim (vacated tasks need none).
func doneLocked(r *entry, waiting []tracker.Issue) bool {
	for _, is := range waiting {
		if _, ok := r.claims[is.Key]; !ok {
			return false
		}
	}
	return true
}

func viewLocked(r *entry, waiting []tracker.Issue) View {
	claims := make(map[string]Claim, len(r.claims))
	for k, c := range r.claims {
		claims[k] = c
	}
	return View{
		ID:        r.id,
		StartedAt: r.startedAt,
		Waiting:   waiting,
		Claims:    claims,
	}
}
