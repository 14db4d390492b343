package sched

import "errors"

var (
	// ErrDuplicateTask is returned by enqueue/insert when the task id is
	// already present on the target run queue. The task stays wherever it
	// already was.
	ErrDuplicateTask = errors.New("task already queued")

	// ErrNotFound is returned by dequeue/remove for an absent task id.
	ErrNotFound = errors.New("task not found")

	// ErrNoSuchCPU is returned for a CPU id outside the managed range.
	ErrNoSuchCPU = errors.New("no such cpu")

	// ErrCPUOffline is returned when the target CPU is marked offline.
	ErrCPUOffline = errors.New("cpu is offline")

	// ErrShutdown is returned for operations on a manager that has been
	// shut down.
	ErrShutdown = errors.New("scheduler is shut down")
)
