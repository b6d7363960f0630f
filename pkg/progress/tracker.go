// Package progress tracks hierarchical task progress for long-running graph
// computations. Tasks form a tree; workers log progress against the
// innermost open task from any goroutine.
package progress

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/graph-analysis/pkg/errors"
	"github.com/graph-analysis/pkg/utils"
)

// UnknownVolume marks a task whose total work is not known up front.
const UnknownVolume int64 = -1

// Status is the lifecycle state of a Task.
type Status int32

const (
	StatusPending Status = iota
	StatusRunning
	StatusFinished
	StatusFailed
	// StatusCancelled marks a task stopped through its termination flag.
	StatusCancelled
)

// String returns the lower-case status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ============================================================================
// Task
// ============================================================================

// Task is one node of the progress tree.
type Task struct {
	Name string

	volume      int64
	logged      atomic.Int64
	lastPercent atomic.Int64
	status      atomic.Int32

	parent *Task

	mu       sync.Mutex
	children []*Task
	start    time.Time
	finish   time.Time
	err      error
}

func newTask(name string, volume int64, parent *Task) *Task {
	return &Task{Name: name, volume: volume, parent: parent}
}

// Volume returns the expected amount of work, or UnknownVolume.
func (t *Task) Volume() int64 { return t.volume }

// Logged returns the amount of work logged so far.
func (t *Task) Logged() int64 { return t.logged.Load() }

// Status returns the current lifecycle state.
func (t *Task) Status() Status { return Status(t.status.Load()) }

// Parent returns the enclosing task, nil for the root.
func (t *Task) Parent() *Task { return t.parent }

// Children returns a copy of the subtasks started so far.
func (t *Task) Children() []*Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Task, len(t.children))
	copy(out, t.children)
	return out
}

// Err returns the failure recorded when the task ended with an error.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Duration returns the wall time between begin and end, zero if unfinished.
func (t *Task) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finish.IsZero() {
		return 0
	}
	return t.finish.Sub(t.start)
}

// Percent returns logged/volume in [0, 100], or -1 when the volume is unknown.
func (t *Task) Percent() float64 {
	if t.volume <= 0 {
		return -1
	}
	p := float64(t.Logged()) * 100 / float64(t.volume)
	if p > 100 {
		p = 100
	}
	return p
}

// Path returns the slash-separated names from the root to t.
func (t *Task) Path() string {
	if t.parent == nil {
		return t.Name
	}
	return t.parent.Path() + "/" + t.Name
}

// ============================================================================
// Tracker
// ============================================================================

// Tracker is the progress sink threaded through every computation.
// Begin and End calls must be balanced.
type Tracker interface {
	BeginSubtask(name string)
	BeginSubtaskWithVolume(name string, volume int64)
	LogProgress(n int64)
	EndSubtask()
	EndSubtaskWithFailure(err error)
	Root() *Task
}

// TaskTracker is the default Tracker. LogProgress is lock-free and may be
// called concurrently; Begin and End are serialized.
type TaskTracker struct {
	mu      sync.Mutex
	root    *Task
	current atomic.Pointer[Task]
	logger  utils.Logger
	clock   utils.Clock
}

// Option configures a TaskTracker.
type Option func(*TaskTracker)

// WithLogger sets the logger used for percent reporting.
func WithLogger(logger utils.Logger) Option {
	return func(tt *TaskTracker) {
		if logger != nil {
			tt.logger = logger
		}
	}
}

// WithClock sets the clock used for task timestamps.
func WithClock(clock utils.Clock) Option {
	return func(tt *TaskTracker) {
		if clock != nil {
			tt.clock = clock
		}
	}
}

// NewTaskTracker creates a tracker whose root task is already running.
func NewTaskTracker(name string, volume int64, opts ...Option) *TaskTracker {
	tt := &TaskTracker{
		logger: &utils.NullLogger{},
		clock:  utils.NewRealClock(),
	}
	for _, opt := range opts {
		opt(tt)
	}
	tt.root = newTask(name, volume, nil)
	tt.begin(tt.root)
	tt.current.Store(tt.root)
	return tt
}

func (tt *TaskTracker) begin(t *Task) {
	t.mu.Lock()
	t.start = tt.clock.Now()
	t.mu.Unlock()
	t.status.Store(int32(StatusRunning))
	tt.logger.Debug("%s :: start", t.Path())
}

// Root returns the root task.
func (tt *TaskTracker) Root() *Task {
	return tt.root
}

// Current returns the innermost open task, nil once the root has ended.
func (tt *TaskTracker) Current() *Task {
	return tt.current.Load()
}

// BeginSubtask opens a subtask with unknown volume.
func (tt *TaskTracker) BeginSubtask(name string) {
	tt.BeginSubtaskWithVolume(name, UnknownVolume)
}

// BeginSubtaskWithVolume opens a subtask under the current task.
func (tt *TaskTracker) BeginSubtaskWithVolume(name string, volume int64) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	parent := tt.current.Load()
	if parent == nil {
		panic(fmt.Sprintf("progress: BeginSubtask(%q) after root task ended", name))
	}
	child := newTask(name, volume, parent)
	parent.mu.Lock()
	parent.children = append(parent.children, child)
	parent.mu.Unlock()

	tt.begin(child)
	tt.current.Store(child)
}

// LogProgress adds n units of work to the current task and logs each new
// whole percent once.
func (tt *TaskTracker) LogProgress(n int64) {
	t := tt.current.Load()
	if t == nil {
		return
	}
	logged := t.logged.Add(n)
	if t.volume <= 0 {
		return
	}

	pct := logged * 100 / t.volume
	if pct > 100 {
		pct = 100
	}
	for {
		prev := t.lastPercent.Load()
		if pct <= prev {
			return
		}
		if t.lastPercent.CompareAndSwap(prev, pct) {
			tt.logger.Info("%s %d%%", t.Path(), pct)
			return
		}
	}
}

// EndSubtask closes the current task successfully.
func (tt *TaskTracker) EndSubtask() {
	tt.end(StatusFinished, nil)
}

// EndSubtaskWithFailure closes the current task and records err. A
// termination error ends the task as cancelled rather than failed.
func (tt *TaskTracker) EndSubtaskWithFailure(err error) {
	if apperrors.IsTerminated(err) {
		tt.end(StatusCancelled, err)
		return
	}
	tt.end(StatusFailed, err)
}

func (tt *TaskTracker) end(status Status, err error) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	t := tt.current.Load()
	if t == nil {
		panic("progress: EndSubtask without a matching BeginSubtask")
	}

	t.mu.Lock()
	t.finish = tt.clock.Now()
	t.err = err
	duration := t.finish.Sub(t.start)
	t.mu.Unlock()
	t.status.Store(int32(status))

	if err != nil {
		tt.logger.Warn("%s :: %s after %v: %v", t.Path(), status, duration, err)
	} else {
		tt.logger.Debug("%s :: finished in %v", t.Path(), duration)
	}
	tt.current.Store(t.parent)
}

// Summary renders the task tree with status, progress and duration.
func (tt *TaskTracker) Summary() string {
	var sb strings.Builder
	writeTask(&sb, tt.root, 0)
	return sb.String()
}

func writeTask(sb *strings.Builder, t *Task, depth int) {
	fmt.Fprintf(sb, "%s%s [%s]", strings.Repeat("  ", depth), t.Name, t.Status())
	if pct := t.Percent(); pct >= 0 {
		fmt.Fprintf(sb, " %.0f%%", pct)
	}
	if d := t.Duration(); d > 0 {
		fmt.Fprintf(sb, " %v", d)
	}
	sb.WriteByte('\n')
	for _, child := range t.Children() {
		writeTask(sb, child, depth+1)
	}
}

// ============================================================================
// EmptyTracker
// ============================================================================

// EmptyTracker discards all progress.
type EmptyTracker struct{}

func (EmptyTracker) BeginSubtask(string)                  {}
func (EmptyTracker) BeginSubtaskWithVolume(string, int64) {}
func (EmptyTracker) LogProgress(int64)                    {}
func (EmptyTracker) EndSubtask()                          {}
func (EmptyTracker) EndSubtaskWithFailure(error)          {}
func (EmptyTracker) Root() *Task                          { return nil }

// OrEmpty returns t, or an EmptyTracker when t is nil.
func OrEmpty(t Tracker) Tracker {
	if t == nil {
		return EmptyTracker{}
	}
	return t
}
