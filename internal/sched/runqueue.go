package sched

import (
	"sync"

	"github.com/emirpasic/gods/trees/redblacktree"
)

// runqKey orders the run-queue tree. The pair, not vruntime alone, is the
// comparison key: duplicate vruntimes are expected and the tree must stay a
// total order.
type runqKey struct {
	vruntime uint64
	id       TaskID
}

func cmpRunqKeys(a, b any) int {
	ka, kb := a.(runqKey), b.(runqKey)
	switch {
	case ka.vruntime < kb.vruntime:
		return -1
	case ka.vruntime > kb.vruntime:
		return 1
	case ka.id < kb.id:
		return -1
	case ka.id > kb.id:
		return 1
	default:
		return 0
	}
}

// RunQueue holds the runnable tasks of one CPU, ordered by (vruntime, id).
// The currently running task lives in current, never in the tree.
//
// All methods below except Lock/Unlock assume the caller holds mu; the
// multi-step transactions in Schedule and the balancer need several
// mutations under a single lock acquisition, so locking stays with the
// caller. Cross-queue callers must acquire locks through lockPair.
type RunQueue struct {
	mu sync.Mutex

	rbt         *redblacktree.Tree
	byID        map[TaskID]*Task // membership index for O(1) duplicate checks
	minVruntime uint64
	current     *Task
	nrRunning   int // tree entries only, excludes current
}

func newRunQueue() *RunQueue {
	return &RunQueue{
		rbt:  redblacktree.NewWith(cmpRunqKeys),
		byID: make(map[TaskID]*Task),
	}
}

// insert puts the task into the tree at its current (vruntime, id) key.
// Fails with ErrDuplicateTask if the id is already queued or running here.
func (rq *RunQueue) insert(t *Task) error {
	if _, dup := rq.byID[t.ID]; dup {
		return ErrDuplicateTask
	}
	if rq.current != nil && rq.current.ID == t.ID {
		return ErrDuplicateTask
	}

	rq.rbt.Put(runqKey{t.Vruntime, t.ID}, t)
	rq.byID[t.ID] = t
	rq.nrRunning++
	return nil
}

// remove takes the task with the given id out of the tree.
func (rq *RunQueue) remove(id TaskID) (*Task, error) {
	t, ok := rq.byID[id]
	if !ok {
		return nil, ErrNotFound
	}

	rq.rbt.Remove(runqKey{t.Vruntime, t.ID})
	delete(rq.byID, id)
	rq.nrRunning--
	return t, nil
}

// peekMin returns the leftmost task without removing it, or false if the
// tree is empty.
func (rq *RunQueue) peekMin() (*Task, bool) {
	node := rq.rbt.Left()
	if node == nil {
		return nil, false
	}
	return node.Value.(*Task), true
}

// extractMin removes and returns the leftmost task, or false if the tree
// is empty. An empty tree is the idle case, not an error.
func (rq *RunQueue) extractMin() (*Task, bool) {
	node := rq.rbt.Left()
	if node == nil {
		return nil, false
	}

	t := node.Value.(*Task)
	rq.rbt.Remove(node.Key)
	delete(rq.byID, t.ID)
	rq.nrRunning--
	return t, true
}

// updateMinVruntime refreshes the cached minimum from the leftmost entry.
// Must run under the same lock acquisition as the mutation it follows, so
// no reader ever observes a stale cache. An empty tree keeps the previous
// value; newly enqueued tasks are still seeded sanely from it.
func (rq *RunQueue) updateMinVruntime() {
	if node := rq.rbt.Left(); node != nil {
		rq.minVruntime = node.Key.(runqKey).vruntime
	}
}

// lockPair acquires both queue locks in CPU-id order, lowest first. Every
// dual-lock path (migration) must go through this helper so that two
// concurrent passes over the same pair can never deadlock.
func lockPair(a, b *CPU) {
	if a.id < b.id {
		a.rq.mu.Lock()
		b.rq.mu.Lock()
	} else {
		b.rq.mu.Lock()
		a.rq.mu.Lock()
	}
}

func unlockPair(a, b *CPU) {
	a.rq.mu.Unlock()
	b.rq.mu.Unlock()
}
