package ui

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/session"
)

//go:embed icon.png
var iconBytes []byte

// trayActionTimeout bounds a gateway call started from the menu.
const trayActionTimeout = 30 * time.Second

// Workspace is the part of the open-job binding the tray reads and drives.
type Workspace interface {
	JobID() string
	Session() (*session.Coordinator, error)
	Export() (*export.Coordinator, error)
}

type Tray struct {
	workspace Workspace
	logger    *slog.Logger
	changes   <-chan struct{}

	jobItem    *systray.MenuItem
	editsItem  *systray.MenuItem
	exportItem *systray.MenuItem
	undoItem   *systray.MenuItem
	startItem  *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	Workspace Workspace
	Logger    *slog.Logger
	// Changes signals that the open job's session or export changed.
	Changes <-chan struct{}
	OnQuit  func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		workspace: cfg.Workspace,
		logger:    cfg.Logger,
		changes:   cfg.Changes,
		onQuit:    cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Heimdex")
	systray.SetTooltip("Heimdex Editor")

	t.jobItem = systray.AddMenuItem("Job: none", "Open job")
	t.jobItem.Disable()

	t.editsItem = systray.AddMenuItem("Edits: 0", "Edit actions in the session")
	t.editsItem.Disable()

	t.exportItem = systray.AddMenuItem("Export: none", "Export status")
	t.exportItem.Disable()

	systray.AddSeparator()

	t.undoItem = systray.AddMenuItem("Undo Last Edit", "Restore the session before the last change")
	t.startItem = systray.AddMenuItem("Start Export", "Render the edited video")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Heimdex Editor")

	t.refresh()

	go func() {
		for {
			select {
			case <-t.changes:
				t.refresh()
			case <-t.undoItem.ClickedCh:
				go t.handleUndo()
			case <-t.startItem.ClickedCh:
				go t.handleStartExport()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) handleUndo() {
	sess, err := t.workspace.Session()
	if err != nil {
		t.logger.Warn("undo requested with no job open")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), trayActionTimeout)
	defer cancel()
	if _, err := sess.Undo(ctx); err != nil {
		t.logger.Error("undo from tray failed", "error", err)
	}
}

func (t *Tray) handleStartExport() {
	exp, err := t.workspace.Export()
	if err != nil {
		t.logger.Warn("export requested with no job open")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), trayActionTimeout)
	defer cancel()
	if err := exp.Start(ctx); err != nil {
		t.logger.Error("export from tray failed", "error", err)
	}
}

func (t *Tray) refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := describe(t.workspace)
	t.jobItem.SetTitle(v.job)
	t.editsItem.SetTitle(v.edits)
	t.exportItem.SetTitle(v.export)
	setEnabled(t.undoItem, v.canUndo)
	setEnabled(t.startItem, v.canExport)
}

func setEnabled(item *systray.MenuItem, enabled bool) {
	if enabled {
		item.Enable()
	} else {
		item.Disable()
	}
}

type menuView struct {
	job       string
	edits     string
	export    string
	canUndo   bool
	canExport bool
}

func describe(ws Workspace) menuView {
	v := menuView{job: "Job: none", edits: "Edits: 0", export: "Export: none"}
	sess, err := ws.Session()
	if err != nil {
		return v
	}
	v.job = "Job: " + sess.JobID()

	st := sess.State()
	v.edits = fmt.Sprintf("Edits: %d", len(st.Actions))
	switch {
	case st.Loading:
		v.edits += " (loading)"
	case st.Saving:
		v.edits += " (saving)"
	case st.Err != nil:
		v.edits += " (error)"
	}
	v.canUndo = st.CanUndo && !st.Saving

	exp, err := ws.Export()
	if err != nil {
		v.canExport = true
		return v
	}
	es := exp.State()
	v.export = exportTitle(es)
	v.canExport = !es.Status.Active()
	return v
}

func exportTitle(st export.State) string {
	switch {
	case st.Status.Active():
		return fmt.Sprintf("Export: %s %.0f%%", st.Status, st.Progress)
	case st.Status == export.StatusFailed && st.ErrorMessage != "":
		return "Export: failed (" + st.ErrorMessage + ")"
	case st.Status == export.StatusCompleted && st.DownloadURL != "":
		return "Export: ready"
	default:
		return "Export: " + string(st.Status)
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}
