package database

import (
	"sort"
	"time"
)

// RecurringBucketName is the natural key of the bucket whose tasks are
// cleared at the start of every UTC day.
const RecurringBucketName = "Daily Tasks"

// ExpectedBuckets is the number of buckets a well-formed snapshot holds.
const ExpectedBuckets = 4

// Snapshot is the full per-account task state, stored as one JSON document.
type Snapshot []Bucket

type Bucket struct {
	Number    int    `json:"id,omitempty"` // positional 1..4
	Name      string `json:"name"`
	Year      *int   `json:"year,omitempty"`
	Unlocked  bool   `json:"unlocked"`
	Completed bool   `json:"completed"`
	Tasks     []Task `json:"tasks"`
}

type Task struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
	Position  int    `json:"position"`
	Urgent    bool   `json:"urgent,omitempty"`
	Optional  bool   `json:"optional,omitempty"`
}

// BucketKey identifies a bucket by its number when set, otherwise by name and year.
type BucketKey struct {
	Number int    `json:"number,omitempty"`
	Name   string `json:"name,omitempty"`
	Year   int    `json:"year,omitempty"`
}

type Account struct {
	ID             string    `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	Username       string    `db:"username" json:"username"`
	SharingEnabled bool      `db:"sharing_enabled" json:"sharingEnabled"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

type ArchivedTask struct {
	ID          string    `db:"id" json:"id"`
	AccountID   string    `db:"account_id" json:"accountId"`
	TaskID      string    `db:"task_id" json:"taskId"`
	TaskName    string    `db:"task_name" json:"taskName"`
	BucketName  string    `db:"bucket_name" json:"bucketName"`
	BucketYear  *int      `db:"bucket_year" json:"bucketYear,omitempty"`
	CompletedAt time.Time `db:"completed_at" json:"completedAt"`
	Optional    bool      `db:"optional" json:"optional"`
	Urgent      bool      `db:"urgent" json:"urgent"`
}

// DefaultSnapshot returns the bucket set seeded for a brand-new account.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		{Number: 1, Name: "To Do 1", Unlocked: true, Tasks: []Task{}},
		{Number: 2, Name: "To Do 2", Unlocked: true, Tasks: []Task{}},
		{Number: 3, Name: "To Do 3", Unlocked: true, Tasks: []Task{}},
		{Number: 4, Name: RecurringBucketName, Unlocked: true, Tasks: []Task{}},
	}
}

// Key returns the key that selects this bucket.
func (b Bucket) Key() BucketKey {
	if b.Number > 0 {
		return BucketKey{Number: b.Number}
	}
	return BucketKey{Name: b.Name, Year: b.yearValue()}
}

// Matches reports whether k selects this bucket.
func (b Bucket) Matches(k BucketKey) bool {
	if k.Number > 0 {
		return b.Number == k.Number
	}
	return k.Name != "" && b.Name == k.Name && b.yearValue() == k.Year
}

func (b Bucket) IsRecurring() bool {
	return b.Name == RecurringBucketName
}

// RecomputeCompleted derives the completed flag: at least one task and all done.
func (b *Bucket) RecomputeCompleted() {
	b.Completed = len(b.Tasks) > 0
	for _, t := range b.Tasks {
		if !t.Completed {
			b.Completed = false
			return
		}
	}
}

// ClearCompletion marks every task uncompleted and reports whether anything changed.
func (b *Bucket) ClearCompletion() bool {
	changed := false
	for i := range b.Tasks {
		if b.Tasks[i].Completed {
			b.Tasks[i].Completed = false
			changed = true
		}
	}
	wasCompleted := b.Completed
	b.RecomputeCompleted()
	return changed || wasCompleted != b.Completed
}

// SortTasks orders tasks by position, keeping the current order for ties.
func (b *Bucket) SortTasks() {
	sort.SliceStable(b.Tasks, func(i, j int) bool {
		return b.Tasks[i].Position < b.Tasks[j].Position
	})
}

func (b Bucket) yearValue() int {
	if b.Year == nil {
		return 0
	}
	return *b.Year
}

// Clone returns a deep copy so callers can hand snapshots across goroutines.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for i, b := range s {
		if b.Year != nil {
			year := *b.Year
			b.Year = &year
		}
		tasks := make([]Task, len(b.Tasks))
		copy(tasks, b.Tasks)
		b.Tasks = tasks
		out[i] = b
	}
	return out
}

// Find returns the index of the bucket selected by k, or -1.
func (s Snapshot) Find(k BucketKey) int {
	for i, b := range s {
		if b.Matches(k) {
			return i
		}
	}
	return -1
}

// ResetRecurring clears the recurring bucket and reports whether it changed.
func (s Snapshot) ResetRecurring() bool {
	changed := false
	for i := range s {
		if s[i].IsRecurring() && s[i].ClearCompletion() {
			changed = true
		}
	}
	return changed
}

// TaskCount returns the number of tasks across all buckets.
func (s Snapshot) TaskCount() int {
	n := 0
	for _, b := range s {
		n += len(b.Tasks)
	}
	return n
}
