package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/CrowderSoup/bizniz-quest/database"
	"github.com/CrowderSoup/bizniz-quest/quest"
)

// How long status strings stay visible.
const (
	statusOKDuration    = 1500 * time.Millisecond
	statusErrorDuration = 5 * time.Second
	statusResetDuration = 3 * time.Second
)

const storeTimeout = 10 * time.Second

// Op types accepted from a connected view.
const (
	OpToggle  = "toggle"
	OpAdd     = "add"
	OpDelete  = "delete"
	OpReorder = "reorder"
	OpSelect  = "select"
	OpUndo    = "undo"
	OpReload  = "reload"
	OpReset   = "reset"
	OpRename  = "rename"
)

// Op is one user action sent by a connected view.
type Op struct {
	Type     string             `json:"type"`
	Bucket   database.BucketKey `json:"bucket"`
	TaskID   string             `json:"taskId,omitempty"`
	TargetID string             `json:"targetId,omitempty"`
	Name     string             `json:"name,omitempty"` // task name, or bucket title for rename
}

// StateView is what a connected view renders.
type StateView struct {
	Lists    database.Snapshot  `json:"lists"`
	Selected database.BucketKey `json:"selected"`
	CanUndo  bool               `json:"canUndo"`
	Status   string             `json:"status,omitempty"`
}

// Sender delivers messages to the connected view.
type Sender interface {
	SendMessage(msg WebSocketMessage) bool
}

type SessionConfig struct {
	AccountID string
	Gateway   *quest.Gateway
	Scheduler *quest.ResetScheduler
	Out       Sender
	Debounce  time.Duration
	Legacy    quest.LegacyCache
	Logger    *log.Logger

	// OnSaved runs on the session goroutine after each successful save.
	OnSaved func()
}

// Session is one mounted view of an account's tasks. A single goroutine owns
// the holder; user ops, reset ticks, save results and status expiry are all
// delivered to it over channels.
type Session struct {
	cfg    SessionConfig
	holder *quest.Holder
	logger *log.Logger

	ops   chan Op
	saved chan error
	stop  chan struct{}
	done  chan struct{}

	// day is the UTC date this holder's recurring bucket was last known to
	// be current for. It is independent of the shared marker.
	day string

	status      string
	statusTimer *time.Timer
	statusC     <-chan time.Time

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = quest.DesktopDebounce
	}
	return &Session{
		cfg:    cfg,
		holder: quest.NewHolder(nil),
		logger: logger,
		ops:    make(chan Op, 16),
		saved:  make(chan error, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start loads the account's tasks, runs the first reset check, sends the
// initial state and starts the session goroutine.
func (s *Session) Start(ctx context.Context) error {
	res, err := s.cfg.Gateway.Load(ctx, s.cfg.AccountID, s.cfg.Legacy)
	if err != nil {
		return err
	}
	s.holder.Initialize(res.Snapshot)
	s.day = s.cfg.Scheduler.Today()

	if reset, err := s.cfg.Scheduler.Check(ctx, s.cfg.AccountID, s.holder); err != nil {
		s.logger.Printf("Reset check failed for %s: %v", s.cfg.AccountID, err)
	} else if reset {
		s.cfg.Gateway.SaveDebounced(s.cfg.AccountID, s.holder.Snapshot(), 0, s.onSaveDone)
	}

	s.sendState()
	s.startOnce.Do(func() { go s.loop() })
	return nil
}

// HandleMessage decodes a raw op from the view and queues it.
func (s *Session) HandleMessage(raw []byte) {
	var op Op
	if err := json.Unmarshal(raw, &op); err != nil {
		s.logger.Printf("Ignoring malformed op from %s: %v", s.cfg.AccountID, err)
		return
	}
	s.Submit(op)
}

// Submit queues an op. It reports false once the session has stopped.
func (s *Session) Submit(op Op) bool {
	select {
	case s.ops <- op:
		return true
	case <-s.done:
		return false
	}
}

// Close stops the session goroutine and writes any pending save.
func (s *Session) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.startOnce.Do(func() { close(s.done) })
		<-s.done

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := s.cfg.Gateway.Flush(ctx, s.cfg.AccountID); err != nil {
			s.logger.Printf("Failed to flush tasks for %s: %v", s.cfg.AccountID, err)
		}
	})
}

// Done is closed when the session goroutine exits.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) loop() {
	ticker := time.NewTicker(s.cfg.Scheduler.Interval())
	defer func() {
		ticker.Stop()
		if s.statusTimer != nil {
			s.statusTimer.Stop()
		}
		close(s.done)
	}()

	for {
		select {
		case <-s.stop:
			return
		case op := <-s.ops:
			if s.apply(op) {
				s.sendState()
			}
		case <-ticker.C:
			if s.tick() {
				s.cfg.Gateway.SaveDebounced(s.cfg.AccountID, s.holder.Snapshot(), 0, s.onSaveDone)
				s.sendState()
			}
		case err := <-s.saved:
			if err != nil {
				s.setStatus(fmt.Sprintf("Error saving tasks: %v", err), statusErrorDuration)
			} else {
				s.setStatus("Tasks saved", statusOKDuration)
				if s.cfg.OnSaved != nil {
					s.cfg.OnSaved()
				}
			}
		case <-s.statusC:
			s.status = ""
			s.statusC = nil
			s.sendStatus()
		}
	}
}

// tick runs the periodic reset check and reports whether the holder was
// cleared. When the shared marker already shows today because another view
// or the nightly job got there first, a holder that was loaded on an earlier
// day is still cleared so its stale completions are never saved back.
func (s *Session) tick() bool {
	today := s.cfg.Scheduler.Today()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	reset, err := s.cfg.Scheduler.Check(ctx, s.cfg.AccountID, s.holder)
	cancel()
	if err != nil {
		s.logger.Printf("Reset check failed for %s: %v", s.cfg.AccountID, err)
		return false
	}
	if !reset && today != s.day {
		reset = s.holder.ResetRecurring()
	}
	s.day = today
	return reset
}

// resetNow clears the recurring bucket on the user's request.
func (s *Session) resetNow() bool {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	changed, err := s.cfg.Scheduler.Reset(ctx, s.cfg.AccountID, s.holder)
	cancel()
	if err != nil {
		s.setStatus(fmt.Sprintf("Error resetting daily tasks: %v", err), statusErrorDuration)
		return false
	}
	s.day = s.cfg.Scheduler.Today()
	s.setStatus("Daily tasks have been reset!", statusResetDuration)
	if changed {
		s.cfg.Gateway.SaveDebounced(s.cfg.AccountID, s.holder.Snapshot(), s.cfg.Debounce, s.onSaveDone)
	}
	return changed
}

// apply runs op against the holder and reports whether the view changed.
func (s *Session) apply(op Op) bool {
	h := s.holder
	var changed bool

	switch op.Type {
	case OpToggle:
		changed = h.ToggleTask(op.Bucket, op.TaskID)
	case OpAdd:
		_, changed = h.AddTask(op.Bucket, op.Name)
	case OpDelete:
		changed = h.DeleteTask(op.Bucket, op.TaskID)
	case OpReorder:
		changed = h.ReorderTask(op.Bucket, op.TaskID, op.TargetID)
	case OpUndo:
		changed = h.Undo()
	case OpRename:
		changed = h.RenameBucket(op.Bucket, op.Name)
	case OpSelect:
		// Selection is display-only and never saved.
		return h.SelectBucket(op.Bucket)
	case OpReload:
		return s.reload()
	case OpReset:
		return s.resetNow()
	default:
		s.logger.Printf("Ignoring unknown op %q from %s", op.Type, s.cfg.AccountID)
		return false
	}

	if changed {
		s.cfg.Gateway.SaveDebounced(s.cfg.AccountID, h.Snapshot(), s.cfg.Debounce, s.onSaveDone)
	}
	return changed
}

// reload replaces local state with the stored snapshot, dropping any
// unsaved edits and history.
func (s *Session) reload() bool {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	s.cfg.Gateway.Cancel(s.cfg.AccountID)
	res, err := s.cfg.Gateway.Load(ctx, s.cfg.AccountID, nil)
	if err != nil {
		s.setStatus(fmt.Sprintf("Error loading tasks: %v", err), statusErrorDuration)
		return false
	}
	selected := s.holder.SelectedKey()
	s.holder.Initialize(res.Snapshot)
	s.holder.SelectBucket(selected)
	s.day = s.cfg.Scheduler.Today()
	return true
}

// onSaveDone runs on the gateway's timer goroutine.
func (s *Session) onSaveDone(err error) {
	select {
	case s.saved <- err:
	case <-s.done:
	}
}

func (s *Session) setStatus(status string, d time.Duration) {
	s.status = status
	if s.statusTimer != nil {
		s.statusTimer.Stop()
	}
	s.statusTimer = time.NewTimer(d)
	s.statusC = s.statusTimer.C
	s.sendStatus()
}

func (s *Session) sendStatus() {
	s.cfg.Out.SendMessage(WebSocketMessage{Type: "status", Data: map[string]string{"status": s.status}})
}

func (s *Session) sendState() {
	s.cfg.Out.SendMessage(WebSocketMessage{Type: "state", Data: s.View()})
}

// View returns the current state. It must only be called from the session
// goroutine or before Start returns.
func (s *Session) View() StateView {
	return StateView{
		Lists:    s.holder.Snapshot(),
		Selected: s.holder.SelectedKey(),
		CanUndo:  s.holder.CanUndo(),
		Status:   s.status,
	}
}
