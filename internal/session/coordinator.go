// Package session keeps the in-memory edit session for one job in step
// with the gateway. Every write is a full replace of the action list,
// applied optimistically and rolled back if the gateway rejects it.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/heimdex/heimdex-editor/internal/edit"
)

// Gateway is the remote store that owns edit sessions.
type Gateway interface {
	GetEditSession(ctx context.Context, jobID string) (*edit.Session, error)
	ReplaceEditSession(ctx context.Context, jobID string, actions []edit.Action) (*edit.Session, error)
}

// Reason names the operation that produced a committed session.
type Reason string

const (
	ReasonLoad    Reason = "load"
	ReasonAdd     Reason = "add"
	ReasonUpdate  Reason = "update"
	ReasonRemove  Reason = "remove"
	ReasonReplace Reason = "replace"
	ReasonSave    Reason = "save"
	ReasonUndo    Reason = "undo"
)

const defaultQueueSize = 16

type Options struct {
	HistoryLimit int
	// QueueSize bounds how many writes may wait behind the one in flight.
	QueueSize int
	Logger    *slog.Logger
	// OnCommit is called from the write goroutine after the gateway
	// accepted a write or a load succeeded.
	OnCommit func(s edit.Session, reason Reason)
}

// State is a point-in-time copy of the coordinator's observable state.
type State struct {
	JobID   string
	Session *edit.Session
	Actions []edit.Action
	Loading bool
	Saving  bool
	Err     error
	CanUndo bool
}

// Coordinator serializes reads and writes of one job's edit session.
// Operations run one at a time in submission order, and each computes its
// next action list from the state left by the one before it.
type Coordinator struct {
	jobID    string
	gw       Gateway
	history  *History
	logger   *slog.Logger
	onCommit func(edit.Session, Reason)

	ops    chan *op
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.RWMutex
	session *edit.Session
	actions []edit.Action
	loading bool
	saving  bool
	err     error
}

type op struct {
	ctx    context.Context
	reason Reason
	run    func(ctx context.Context) (*edit.Session, error)
	result chan opResult
}

type opResult struct {
	session *edit.Session
	err     error
}

func NewCoordinator(jobID string, gw Gateway, opts Options) *Coordinator {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		jobID:    jobID,
		gw:       gw,
		history:  NewHistory(opts.HistoryLimit),
		logger:   logger.With("job_id", jobID),
		onCommit: opts.OnCommit,
		ops:      make(chan *op, opts.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go c.loop()
	return c
}

func (c *Coordinator) JobID() string { return c.jobID }

// History returns the undo stack owned by this coordinator.
func (c *Coordinator) History() *History { return c.history }

func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := State{
		JobID:   c.jobID,
		Actions: edit.CloneActions(c.actions),
		Loading: c.loading,
		Saving:  c.saving,
		Err:     c.err,
		CanUndo: c.history.CanUndo(),
	}
	if st.Actions == nil {
		st.Actions = []edit.Action{}
	}
	if c.session != nil {
		s := c.session.Clone()
		st.Session = &s
	}
	return st
}

// Close stops the write goroutine. Queued operations fail with ErrClosed
// and a gateway response arriving afterwards is discarded.
func (c *Coordinator) Close() {
	c.cancel()
	<-c.done
}

func (c *Coordinator) closed() bool {
	return c.ctx.Err() != nil
}

// Load fetches the session from the gateway. On success it replaces the
// canonical state and clears undo history; on failure the action list is
// left empty.
func (c *Coordinator) Load(ctx context.Context) (*edit.Session, error) {
	return c.submit(ctx, ReasonLoad, func(ctx context.Context) (*edit.Session, error) {
		c.mu.Lock()
		c.loading = true
		c.err = nil
		c.mu.Unlock()

		s, err := c.gw.GetEditSession(ctx, c.jobID)
		if c.closed() {
			return nil, ErrClosed
		}
		if err != nil {
			lerr := &LoadError{JobID: c.jobID, Err: err}
			c.mu.Lock()
			c.session = nil
			c.actions = nil
			c.loading = false
			c.err = lerr
			c.mu.Unlock()
			c.logger.Warn("edit session load failed", "error", err)
			return nil, lerr
		}

		c.history.Clear()
		out := c.commit(s, ReasonLoad)
		c.logger.Info("edit session loaded", "session_id", s.ID, "action_count", len(s.Actions))
		return out, nil
	})
}

// AddAction appends a to the action list. Any id on a is discarded; the
// gateway assigns one.
func (c *Coordinator) AddAction(ctx context.Context, a edit.Action) (*edit.Session, error) {
	if err := edit.Validate(a); err != nil {
		return nil, err
	}
	a.ID = ""
	a.CreatedAt = nil
	return c.mutate(ctx, ReasonAdd, func(current []edit.Action) ([]edit.Action, bool, error) {
		return append(current, a), true, nil
	})
}

// UpdateAction replaces the action with a.ID in place.
func (c *Coordinator) UpdateAction(ctx context.Context, a edit.Action) (*edit.Session, error) {
	if a.ID == "" {
		return nil, &ActionNotFoundError{}
	}
	if err := edit.Validate(a); err != nil {
		return nil, err
	}
	return c.mutate(ctx, ReasonUpdate, func(current []edit.Action) ([]edit.Action, bool, error) {
		idx := edit.IndexOf(current, a.ID)
		if idx < 0 {
			return nil, false, &ActionNotFoundError{ID: a.ID}
		}
		current[idx] = a
		return current, true, nil
	})
}

// RemoveAction deletes the action with the given id. Removing an id that
// is not present changes nothing and makes no gateway call.
func (c *Coordinator) RemoveAction(ctx context.Context, id string) (*edit.Session, error) {
	return c.mutate(ctx, ReasonRemove, func(current []edit.Action) ([]edit.Action, bool, error) {
		idx := edit.IndexOf(current, id)
		if idx < 0 {
			return current, false, nil
		}
		return append(current[:idx], current[idx+1:]...), true, nil
	})
}

// ReplaceActions swaps in a whole new action list.
func (c *Coordinator) ReplaceActions(ctx context.Context, actions []edit.Action) (*edit.Session, error) {
	if err := edit.ValidateAll(actions); err != nil {
		return nil, err
	}
	next := edit.CloneActions(actions)
	if next == nil {
		next = []edit.Action{}
	}
	return c.mutate(ctx, ReasonReplace, func([]edit.Action) ([]edit.Action, bool, error) {
		return edit.CloneActions(next), true, nil
	})
}

// Save resubmits the current action list unchanged.
func (c *Coordinator) Save(ctx context.Context) (*edit.Session, error) {
	return c.mutate(ctx, ReasonSave, func(current []edit.Action) ([]edit.Action, bool, error) {
		return current, true, nil
	})
}

// Undo restores the most recent snapshot. With nothing to undo it returns
// (nil, nil) without contacting the gateway. If the write fails the
// snapshot goes back on the stack.
func (c *Coordinator) Undo(ctx context.Context) (*edit.Session, error) {
	return c.submit(ctx, ReasonUndo, func(ctx context.Context) (*edit.Session, error) {
		snap, ok := c.history.Pop()
		if !ok {
			return nil, nil
		}
		c.mu.RLock()
		restored := revive(c.actions, snap)
		c.mu.RUnlock()
		s, err := c.write(ctx, ReasonUndo, restored)
		if err != nil {
			c.history.Push(snap)
			return nil, err
		}
		return s, nil
	})
}

// revive returns a copy of snap in which actions the gateway no longer
// holds lose their ids, so undoing a removal re-creates them instead of
// naming an id the gateway would reject.
func revive(current, snap []edit.Action) []edit.Action {
	held := make(map[string]bool, len(current))
	for _, a := range current {
		held[a.ID] = true
	}
	out := edit.CloneActions(snap)
	for i := range out {
		if out[i].ID != "" && !held[out[i].ID] {
			out[i].ID = ""
			out[i].CreatedAt = nil
		}
	}
	return out
}

// mutate runs a history-recording write. next receives a private copy of
// the canonical list and reports whether anything changed.
func (c *Coordinator) mutate(ctx context.Context, reason Reason, next func(current []edit.Action) ([]edit.Action, bool, error)) (*edit.Session, error) {
	return c.submit(ctx, reason, func(ctx context.Context) (*edit.Session, error) {
		c.mu.RLock()
		current := edit.CloneActions(c.actions)
		c.mu.RUnlock()
		if current == nil {
			current = []edit.Action{}
		}

		updated, changed, err := next(edit.CloneActions(current))
		if err != nil {
			return nil, err
		}
		if !changed {
			return c.currentSession(), nil
		}

		cp := c.history.checkpoint()
		c.history.Push(current)
		s, err := c.write(ctx, reason, updated)
		if err != nil {
			c.history.restore(cp)
			return nil, err
		}
		return s, nil
	})
}

func (c *Coordinator) write(ctx context.Context, reason Reason, actions []edit.Action) (*edit.Session, error) {
	c.mu.Lock()
	c.saving = true
	c.err = nil
	c.mu.Unlock()

	s, err := c.gw.ReplaceEditSession(ctx, c.jobID, edit.Inputs(actions))
	if c.closed() {
		return nil, ErrClosed
	}
	if err != nil {
		serr := &SaveError{JobID: c.jobID, Reason: reason, Err: err}
		c.mu.Lock()
		c.saving = false
		c.err = serr
		c.mu.Unlock()
		c.logger.Warn("edit session write failed", "reason", string(reason), "error", err)
		return nil, serr
	}

	out := c.commit(s, reason)
	c.logger.Info("edit session saved", "reason", string(reason), "action_count", len(s.Actions))
	return out, nil
}

// commit makes s canonical and returns a copy for the caller.
func (c *Coordinator) commit(s *edit.Session, reason Reason) *edit.Session {
	canonical := s.Clone()
	if canonical.Actions == nil {
		canonical.Actions = []edit.Action{}
	}

	c.mu.Lock()
	c.session = &canonical
	c.actions = edit.CloneActions(canonical.Actions)
	c.loading = false
	c.saving = false
	c.err = nil
	c.mu.Unlock()

	out := canonical.Clone()
	if c.onCommit != nil {
		c.onCommit(canonical.Clone(), reason)
	}
	return &out
}

func (c *Coordinator) currentSession() *edit.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := c.session.Clone()
	return &s
}

func (c *Coordinator) submit(ctx context.Context, reason Reason, run func(context.Context) (*edit.Session, error)) (*edit.Session, error) {
	if c.closed() {
		return nil, ErrClosed
	}

	o := &op{ctx: ctx, reason: reason, run: run, result: make(chan opResult, 1)}
	select {
	case c.ops <- o:
	default:
		c.logger.Warn("edit session write queue full", "reason", string(reason))
		return nil, ErrConcurrentWrite
	}

	select {
	case r := <-o.result:
		return r.session, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		select {
		case r := <-o.result:
			return r.session, r.err
		default:
			return nil, ErrClosed
		}
	}
}

func (c *Coordinator) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			for {
				select {
				case o := <-c.ops:
					o.result <- opResult{err: ErrClosed}
				default:
					return
				}
			}
		case o := <-c.ops:
			c.execute(o)
		}
	}
}

func (c *Coordinator) execute(o *op) {
	if c.closed() {
		o.result <- opResult{err: ErrClosed}
		return
	}
	if err := o.ctx.Err(); err != nil {
		o.result <- opResult{err: err}
		return
	}

	ctx, cancel := context.WithCancel(o.ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()
	defer cancel()

	s, err := o.run(ctx)
	o.result <- opResult{session: s, err: err}
}
