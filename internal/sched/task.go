package sched

// TaskID uniquely identifies a task for its whole lifetime. It doubles as
// the tie-break component of the run-queue key, so it must be stable.
type TaskID uint64

// TaskState reflects whether a task may compete for CPU time.
type TaskState int

const (
	TaskRunnable TaskState = iota
	TaskSleeping
	TaskStopped
)

func (s TaskState) String() string {
	switch s {
	case TaskRunnable:
		return "Runnable"
	case TaskSleeping:
		return "Sleeping"
	case TaskStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

const (
	// MinNice and MaxNice bound the accepted nice range; values outside are
	// clamped, never rejected.
	MinNice = -20
	MaxNice = 19

	// Nice0Load is the weight of a nice-0 task, the 1.0-share reference.
	// Vruntime advances 1:1 with wall time at this weight.
	Nice0Load uint64 = 1024

	// WeightStep is the per-nice-level weight decrement.
	WeightStep = 52

	// MinWeight is the floor for the nice-to-weight mapping. With the
	// constants above the mapping stays positive for the whole legal nice
	// range, so the floor only matters if those constants ever change.
	MinWeight uint64 = 1
)

// Task is one schedulable unit. Vruntime and the exec bookkeeping are
// mutated only by the CPU currently running the task or by
// enqueue/dequeue, always under the owning run queue's lock.
type Task struct {
	ID    TaskID
	Name  string
	State TaskState
	Nice  int

	Weight uint64 // derived from Nice, always > 0

	Vruntime       uint64 // ns, non-decreasing while the task executes
	ExecStart      uint64 // ns timestamp of the last dispatch or tick
	SumExecRuntime uint64 // ns of real execution accumulated so far
}

// NewTask creates a runnable task with its weight derived from nice.
// Vruntime starts at zero; the first enqueue seeds it from the target
// queue's min vruntime so the task cannot front-run existing work.
func NewTask(id TaskID, name string, nice int) *Task {
	if nice < MinNice {
		nice = MinNice
	} else if nice > MaxNice {
		nice = MaxNice
	}

	return &Task{
		ID:     id,
		Name:   name,
		State:  TaskRunnable,
		Nice:   nice,
		Weight: NiceToWeight(nice),
	}
}

// NiceToWeight maps a nice level to a strictly positive weight.
func NiceToWeight(nice int) uint64 {
	w := int64(Nice0Load) - int64(nice)*WeightStep
	if w < int64(MinWeight) {
		return MinWeight
	}
	return uint64(w)
}

// calcDeltaFair converts delta ns of real execution into vruntime ns for a
// task of the given weight. Identity at Nice0Load; lower weight inflates
// vruntime faster and shrinks the task's CPU share.
func calcDeltaFair(delta, weight uint64) uint64 {
	if weight == Nice0Load {
		return delta
	}
	return delta * Nice0Load / weight
}
