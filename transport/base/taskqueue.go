package base

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// tqNode represents a single element in the queue
type tqNode struct {
	task func()
	next atomic.Pointer[tqNode]
}

// TaskQueue is a lock-free multi-producer single-consumer queue of reactor
// tasks. Producers are the public channel operations and socket-completion
// goroutines; the single consumer is the owning reactor's loop. The queue is
// unbounded, so posting never blocks on the consumer.
//
// Under concurrent Push operations the ordering between producers is decided
// by whichever CAS lands first; tasks from one producer stay in order.
type TaskQueue struct {
	head     atomic.Pointer[tqNode]
	tail     atomic.Pointer[tqNode]
	out      chan func()
	consumer sync.WaitGroup
	closed   atomic.Bool

	// Condition variable for efficient waiting
	mu   sync.Mutex
	cond *sync.Cond
}

// NewTaskQueue creates the queue and starts its internal consumer, which
// feeds the Recv channel.
func NewTaskQueue() *TaskQueue {
	// Create a sentinel node (dummy node at the beginning)
	sentinel := &tqNode{}

	q := &TaskQueue{
		out: make(chan func()),
	}

	// Initialize condition variable
	q.cond = sync.NewCond(&q.mu)

	// Set the initial head and tail to the sentinel node
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.consumer.Add(1)
	go q.consume()

	return q
}

// Push adds a task to the queue.
// Returns true if the task was added, or false if the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *TaskQueue) Push(task func()) bool {
	if task == nil {
		return false
	}

	if q.closed.Load() {
		return false
	}

	newNode := &tqNode{task: task}

	var tailNode *tqNode
	var backoff uint8 = 0

	for {
		tailNode = q.tail.Load()

		// try to atomically append our node to the current tail
		next := tailNode.next.Load()
		if next == nil {
			// the tail has no next node yet, try to append our node
			if tailNode.next.CompareAndSwap(nil, newNode) {
				/*
				 Successfully appended, now try to update tail
				 Note: CAS may fail if another producer helps update tail,
				 but that's okay - tail will still be updated eventually
				*/
				q.tail.CompareAndSwap(tailNode, newNode)

				// Signal the consumer that new data is available. The lock
				// orders the signal against the consumer's double-check, so
				// it cannot land between the check and the Wait and get lost.
				q.mu.Lock()
				q.cond.Signal()
				q.mu.Unlock()

				return true
			}
		} else {
			// help update the tail pointer if another producer has already appended a node but hasn't updated the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		/*
		 Exponential backoff to handle contention:
		  - At low contention (<10 retries): CPU spinning to avoid thread scheduling overhead
		  - At higher contention: yield the processor so other goroutines make progress
		*/
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// consume continuously sends tasks from the linked list to the output channel and frees memory
func (q *TaskQueue) consume() {
	defer q.consumer.Done()
	defer close(q.out)

	for {
		// Process all available tasks in the queue
		hasItems := false

		// Try to process tasks
		for {
			head := q.head.Load()
			next := head.next.Load()

			if next == nil {
				break // No more tasks available
			}

			hasItems = true

			// Capture task before updating pointers
			task := next.task

			// move head pointer (free up memory)
			q.head.Store(next)

			// Send the task to the consumer
			q.out <- task

			// help go gc - safe to clear after sending
			next.task = nil
		}

		// Exit if closed and no more tasks
		if !hasItems && q.closed.Load() {
			return
		}

		// If no tasks were processed, wait for signal
		if !hasItems {
			q.mu.Lock()
			// Double-check condition after acquiring lock
			head := q.head.Load()
			if head.next.Load() == nil && !q.closed.Load() {
				// Wait for signal (releases lock while waiting)
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns a receive-only channel for consuming tasks.
// The channel is closed after Close once all queued tasks were delivered.
func (q *TaskQueue) Recv() <-chan func() {
	return q.out
}

// Close closes the queue, preventing further pushes.
// Tasks already in the queue are still delivered to the consumer.
func (q *TaskQueue) Close() {
	q.closed.Store(true)

	// Wake up the consumer if it's waiting. Must hold the lock: this is the
	// only signal after the closed flag flips, so losing it against the
	// consumer's double-check would park the consumer forever.
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// IsClosed returns true if the queue is closed.
func (q *TaskQueue) IsClosed() bool {
	return q.closed.Load()
}
