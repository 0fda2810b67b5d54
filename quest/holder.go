package quest

import (
	"strings"

	"github.com/CrowderSoup/bizniz-quest/database"
	"github.com/google/uuid"
)

// maxHistory bounds the undo history.
const maxHistory = 10

// NewTaskID mints a time-ordered task id.
func NewTaskID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Holder is the in-memory task state of one mounted view: buckets, the
// selected bucket and the undo history. It is not safe for concurrent use;
// a Session owns it from a single goroutine.
type Holder struct {
	buckets  database.Snapshot
	selected database.BucketKey
	history  []database.Snapshot
	newID    func() string
}

// NewHolder returns an empty holder. newID mints task ids and defaults to
// NewTaskID when nil.
func NewHolder(newID func() string) *Holder {
	if newID == nil {
		newID = NewTaskID
	}
	return &Holder{newID: newID}
}

// Initialize adopts snap, or the default buckets when snap is empty. Tasks
// are ordered by position, bucket completion is recomputed, history is
// cleared and the first bucket is selected.
func (h *Holder) Initialize(snap database.Snapshot) {
	if len(snap) == 0 {
		snap = database.DefaultSnapshot()
	} else {
		snap = snap.Clone()
	}
	for i := range snap {
		if snap[i].Tasks == nil {
			snap[i].Tasks = []database.Task{}
		}
		snap[i].SortTasks()
		snap[i].RecomputeCompleted()
	}

	h.buckets = snap
	h.history = nil
	h.selected = snap[0].Key()
}

// Snapshot returns a deep copy of the current buckets.
func (h *Holder) Snapshot() database.Snapshot {
	return h.buckets.Clone()
}

// Selected returns the selected bucket.
func (h *Holder) Selected() (database.Bucket, bool) {
	i := h.buckets.Find(h.selected)
	if i < 0 {
		return database.Bucket{}, false
	}
	return h.buckets.Clone()[i], true
}

// SelectedKey returns the key of the selected bucket.
func (h *Holder) SelectedKey() database.BucketKey {
	return h.selected
}

// SelectBucket changes which bucket is displayed. Unknown keys are ignored.
func (h *Holder) SelectBucket(k database.BucketKey) bool {
	i := h.buckets.Find(k)
	if i < 0 {
		return false
	}
	h.selected = h.buckets[i].Key()
	return true
}

// ToggleTask flips a task's completion and recomputes its bucket.
func (h *Holder) ToggleTask(k database.BucketKey, taskID string) bool {
	bi, ti := h.locate(k, taskID)
	if ti < 0 {
		return false
	}

	h.pushHistory()
	b := &h.buckets[bi]
	b.Tasks[ti].Completed = !b.Tasks[ti].Completed
	b.RecomputeCompleted()
	return true
}

// AddTask appends an uncompleted task. Blank names are ignored.
func (h *Holder) AddTask(k database.BucketKey, name string) (database.Task, bool) {
	name = strings.TrimSpace(name)
	bi := h.buckets.Find(k)
	if name == "" || bi < 0 {
		return database.Task{}, false
	}

	b := &h.buckets[bi]
	pos := len(b.Tasks)
	for _, t := range b.Tasks {
		if t.Position >= pos {
			pos = t.Position + 1
		}
	}

	task := database.Task{ID: h.newID(), Name: name, Position: pos}
	h.pushHistory()
	b.Tasks = append(b.Tasks, task)
	b.RecomputeCompleted()
	return task, true
}

// DeleteTask removes a task. Remaining positions are left as they are.
func (h *Holder) DeleteTask(k database.BucketKey, taskID string) bool {
	bi, ti := h.locate(k, taskID)
	if ti < 0 {
		return false
	}

	h.pushHistory()
	b := &h.buckets[bi]
	b.Tasks = append(b.Tasks[:ti], b.Tasks[ti+1:]...)
	b.RecomputeCompleted()
	return true
}

// ReorderTask moves a task to sit immediately before target. The bucket's
// existing position values are reassigned in the new order, so positions stay
// a permutation of what they were.
func (h *Holder) ReorderTask(k database.BucketKey, movedID, targetID string) bool {
	if movedID == targetID {
		return false
	}
	bi, mi := h.locate(k, movedID)
	if mi < 0 {
		return false
	}
	if _, ti := h.locate(k, targetID); ti < 0 {
		return false
	}

	h.pushHistory()
	b := &h.buckets[bi]

	positions := make([]int, len(b.Tasks))
	for i, t := range b.Tasks {
		positions[i] = t.Position
	}

	moved := b.Tasks[mi]
	rest := make([]database.Task, 0, len(b.Tasks))
	rest = append(rest, b.Tasks[:mi]...)
	rest = append(rest, b.Tasks[mi+1:]...)

	at := 0
	for i, t := range rest {
		if t.ID == targetID {
			at = i
			break
		}
	}

	tasks := make([]database.Task, 0, len(b.Tasks))
	tasks = append(tasks, rest[:at]...)
	tasks = append(tasks, moved)
	tasks = append(tasks, rest[at:]...)
	for i := range tasks {
		tasks[i].Position = positions[i]
	}
	b.Tasks = tasks
	return true
}

// Undo restores the most recent history entry.
func (h *Holder) Undo() bool {
	if len(h.history) == 0 {
		return false
	}
	last := len(h.history) - 1
	h.buckets = h.history[last]
	h.history = h.history[:last]
	if h.buckets.Find(h.selected) < 0 && len(h.buckets) > 0 {
		h.selected = h.buckets[0].Key()
	}
	return true
}

// CanUndo reports whether Undo has anything to restore.
func (h *Holder) CanUndo() bool {
	return len(h.history) > 0
}

// HistoryLen returns the number of undo entries held.
func (h *Holder) HistoryLen() int {
	return len(h.history)
}

// RenameBucket retitles a non-recurring bucket. Blank titles and the
// recurring bucket's name are refused, as is renaming the recurring bucket.
func (h *Holder) RenameBucket(k database.BucketKey, title string) bool {
	title = strings.TrimSpace(title)
	bi := h.buckets.Find(k)
	if title == "" || title == database.RecurringBucketName || bi < 0 {
		return false
	}
	b := &h.buckets[bi]
	if b.IsRecurring() || b.Name == title {
		return false
	}

	wasSelected := b.Matches(h.selected)
	h.pushHistory()
	b.Name = title
	if wasSelected {
		h.selected = b.Key()
	}
	return true
}

// ResetRecurring clears completion in the recurring bucket and reports
// whether anything changed. It does not record history.
func (h *Holder) ResetRecurring() bool {
	return h.buckets.ResetRecurring()
}

func (h *Holder) pushHistory() {
	h.history = append(h.history, h.buckets.Clone())
	if len(h.history) > maxHistory {
		h.history = h.history[len(h.history)-maxHistory:]
	}
}

func (h *Holder) locate(k database.BucketKey, taskID string) (int, int) {
	bi := h.buckets.Find(k)
	if bi < 0 {
		return -1, -1
	}
	for ti, t := range h.buckets[bi].Tasks {
		if t.ID == taskID {
			return bi, ti
		}
	}
	return bi, -1
}
