// Package export drives a job's server-side export: starting it, polling
// its status until it settles, and fetching the download link once.
package export

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/heimdex/heimdex-editor/internal/logging"
)

const (
	DefaultPollInterval = 2 * time.Second

	failedMessage     = "export failed"
	pollFailedMessage = "failed to fetch export status"
)

type Options struct {
	PollInterval time.Duration
	Logger       *slog.Logger
	// OnChange receives every state change. It runs on the goroutine that
	// caused the change and must not call Close.
	OnChange func(State)
}

// Coordinator owns the export lifecycle for one job. Polling runs only
// while an export is pending or processing.
type Coordinator struct {
	jobID    string
	gw       Gateway
	interval time.Duration
	logger   *slog.Logger
	onChange func(State)

	ctx    context.Context
	cancel context.CancelFunc

	inflight atomic.Bool
	startMu  sync.Mutex

	mu     sync.Mutex
	state  State
	task   *pollTask
	epoch  uint64
	gotURL bool
}

// pollTask is the handle for one running poll loop.
type pollTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewCoordinator(jobID string, gw Gateway, opts Options) *Coordinator {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		jobID:    jobID,
		gw:       gw,
		interval: interval,
		logger:   logger.With("job_id", jobID),
		onChange: opts.OnChange,
		ctx:      ctx,
		cancel:   cancel,
		state:    State{JobID: jobID, Status: StatusNone},
	}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	st.Polling = c.task != nil
	return st
}

// Mount fetches the current status once and, if an export is in progress,
// starts polling. A job with no export leaves the coordinator idle until
// Start is called.
func (c *Coordinator) Mount(ctx context.Context) {
	c.poll(ctx)
}

// Refresh polls once outside the regular schedule.
func (c *Coordinator) Refresh(ctx context.Context) {
	c.poll(ctx)
}

// Start requests a new export. On failure the previous status is kept and
// the error is recorded in the state.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	c.startMu.Lock()
	defer c.startMu.Unlock()

	// Results of polls already in flight are dropped from here on.
	c.mu.Lock()
	c.epoch++
	c.clearLocked()
	c.mu.Unlock()
	c.notify()

	res, err := c.gw.StartExport(ctx, c.jobID)
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	if err != nil {
		serr := &StartError{JobID: c.jobID, Err: err}
		c.mu.Lock()
		c.state.Err = serr
		c.state.ErrorMessage = userMessage(err)
		c.mu.Unlock()
		c.notify()
		c.logger.Warn("export start failed", "error", err)
		return serr
	}

	status := res.Status
	if status == "" {
		status = StatusPending
	}

	c.mu.Lock()
	c.epoch++
	c.clearLocked()
	c.state.ExportID = res.ExportID
	c.state.Status = status
	if status.Terminal() {
		c.stopTaskLocked()
	} else {
		c.startTaskLocked()
	}
	c.mu.Unlock()
	c.notify()

	logging.WithExportID(c.logger, res.ExportID).Info("export started", "status", string(status))
	return nil
}

// clearLocked resets everything that belongs to a previous export attempt.
func (c *Coordinator) clearLocked() {
	c.state.Err = nil
	c.state.ErrorMessage = ""
	c.state.Progress = 0
	c.state.DownloadURL = ""
	c.state.ExpiresAt = ""
	c.gotURL = false
}

// Retry starts a fresh export after a failure.
func (c *Coordinator) Retry(ctx context.Context) error {
	return c.Start(ctx)
}

// Close stops polling. Responses that arrive afterwards are dropped.
func (c *Coordinator) Close() {
	c.cancel()
	c.mu.Lock()
	t := c.task
	c.task = nil
	c.mu.Unlock()
	if t != nil {
		<-t.done
	}
}

func (c *Coordinator) poll(ctx context.Context) {
	if c.ctx.Err() != nil {
		return
	}
	if !c.inflight.CompareAndSwap(false, true) {
		c.logger.Debug("export status poll still in flight, skipping")
		return
	}
	defer c.inflight.Store(false)

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	res, err := c.gw.GetExportStatus(ctx, c.jobID)
	if c.ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	if err != nil {
		if isNotFound(err) {
			c.mu.Unlock()
			return
		}
		c.state.Err = &PollError{JobID: c.jobID, Err: err}
		c.state.ErrorMessage = pollFailedMessage
		c.mu.Unlock()
		c.notify()
		c.logger.Warn("export status poll failed", "error", err)
		return
	}

	prev := c.state.Status
	c.apply(res)
	fetch := res.Status == StatusCompleted && prev != StatusCompleted && !c.gotURL
	if fetch {
		c.gotURL = true
	}
	c.mu.Unlock()

	if prev != res.Status {
		c.logger.Info("export status changed", "from", string(prev), "to", string(res.Status))
	}
	c.notify()

	if fetch {
		c.fetchDownload()
	}
}

// apply folds a status response into the state. Caller holds c.mu.
func (c *Coordinator) apply(res *StatusResult) {
	if _, ok := c.state.Err.(*PollError); ok {
		c.state.Err = nil
		c.state.ErrorMessage = ""
	}

	status := res.Status
	if status == "" {
		status = StatusNone
	}
	c.state.Status = status
	c.state.Progress = clampProgress(res.Progress)
	if res.ExportID != nil {
		c.state.ExportID = *res.ExportID
	}

	if status == StatusFailed {
		msg := failedMessage
		if res.ErrorMessage != nil && *res.ErrorMessage != "" {
			msg = *res.ErrorMessage
		}
		c.state.ErrorMessage = msg
	}

	if status.Active() {
		c.startTaskLocked()
	} else {
		c.stopTaskLocked()
	}
}

func (c *Coordinator) fetchDownload() {
	dl, err := c.gw.GetExportDownload(c.ctx, c.jobID)
	if c.ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	if err != nil {
		c.state.Err = &DownloadError{JobID: c.jobID, Err: err}
		c.mu.Unlock()
		c.notify()
		c.logger.Warn("export download link fetch failed", "error", err)
		return
	}
	c.state.DownloadURL = dl.URL
	c.state.ExpiresAt = dl.ExpiresAt
	c.mu.Unlock()
	c.notify()
	c.logger.Info("export download link ready", "expires_at", dl.ExpiresAt)
}

func (c *Coordinator) startTaskLocked() {
	if c.task != nil || c.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	t := &pollTask{cancel: cancel, done: make(chan struct{})}
	c.task = t
	go c.run(ctx, t)
}

func (c *Coordinator) stopTaskLocked() {
	if c.task == nil {
		return
	}
	c.task.cancel()
	c.task = nil
}

func (c *Coordinator) run(ctx context.Context, t *pollTask) {
	defer close(t.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			c.poll(ctx)
		}
	}
}

func (c *Coordinator) notify() {
	if c.onChange == nil {
		return
	}
	c.onChange(c.State())
}

func clampProgress(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
