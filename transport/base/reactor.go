package base

import (
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport")

// Reactor is the single background execution context of a top-level channel.
// Socket operations are issued asynchronously; their completion callbacks are
// posted here and run strictly one at a time, in post order per producer.
// State touched only from reactor tasks therefore needs no locking.
//
// A server and all its accepted clients share one reactor; a standalone
// client owns its own.
type Reactor struct {
	name  string
	tasks *TaskQueue
	done  chan struct{}
}

// NewReactor creates the reactor and starts its loop goroutine.
func NewReactor(name string) *Reactor {
	r := &Reactor{
		name:  name,
		tasks: NewTaskQueue(),
		done:  make(chan struct{}),
	}

	go r.run()

	return r
}

// run drains the task queue until Stop. A panicking task is not recovered:
// reactor tasks are completion handlers whose failure means a programming
// error, not a runtime condition.
func (r *Reactor) run() {
	defer close(r.done)

	for task := range r.tasks.Recv() {
		task()
	}

	Logger.Debugf("reactor %s: loop terminated", r.name)
}

// Post schedules a task onto the reactor. Returns false if the reactor is
// already stopping (the task is dropped - after Stop, channel state is being
// torn down and late completions are meaningless).
//
// Thread-safety: callable from any goroutine, never blocks on I/O.
func (r *Reactor) Post(task func()) bool {
	return r.tasks.Push(task)
}

// Stop prevents further posts and lets the loop exit once queued tasks are
// drained. Safe to call from reactor tasks themselves and safe to call
// multiple times.
func (r *Reactor) Stop() {
	r.tasks.Close()
}

// Join blocks until the loop has exited. Must not be called from a reactor
// task (the loop cannot exit while it runs one); channel teardown triggered
// from completion callbacks skips the join for exactly this reason.
func (r *Reactor) Join() {
	<-r.done
}

// Done exposes the termination signal for select-based waiters.
func (r *Reactor) Done() <-chan struct{} {
	return r.done
}
