package session

import (
	"sync"
	"time"
)

type delayedTask struct {
	at   time.Time
	seq  uint64
	task func()
}

// DelayScheduler is the shared delayed-task facility. Tasks sit in a
// deadline-ordered min-heap and a single goroutine fires them, so the
// message-handling path never blocks on a timer. There is no cancel:
// stale tasks are expected to no-op via the callers' index checks.
type DelayScheduler struct {
	mu     sync.Mutex
	heap   []delayedTask
	seq    uint64
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

func NewDelayScheduler() *DelayScheduler {
	return &DelayScheduler{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (ds *DelayScheduler) Schedule(delay time.Duration, task func()) {
	ds.mu.Lock()
	ds.seq++
	ds.heap = append(ds.heap, delayedTask{at: time.Now().Add(delay), seq: ds.seq, task: task})
	ds.siftUp(len(ds.heap) - 1)
	ds.mu.Unlock()

	select {
	case ds.wake <- struct{}{}:
	default:
	}
}

// Run drains the heap until Stop is called. Fired tasks run on this
// goroutine; they are expected to be short room-handler re-entries.
func (ds *DelayScheduler) Run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		ds.mu.Lock()
		var wait time.Duration
		if len(ds.heap) == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(ds.heap[0].at)
		}
		ds.mu.Unlock()

		if wait > 0 {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(wait)

			select {
			case <-ds.done:
				return
			case <-ds.wake:
				continue
			case <-timer.C:
			}
		}

		for {
			ds.mu.Lock()
			if len(ds.heap) == 0 || ds.heap[0].at.After(time.Now()) {
				ds.mu.Unlock()
				break
			}
			due := ds.heap[0]
			ds.popLocked()
			ds.mu.Unlock()

			due.task()
		}
	}
}

func (ds *DelayScheduler) Stop() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if !ds.closed {
		ds.closed = true
		close(ds.done)
	}
}

func (ds *DelayScheduler) before(i, j int) bool {
	if ds.heap[i].at.Equal(ds.heap[j].at) {
		return ds.heap[i].seq < ds.heap[j].seq
	}
	return ds.heap[i].at.Before(ds.heap[j].at)
}

func (ds *DelayScheduler) siftUp(index int) {
	parent := (index - 1) / 2
	for index > 0 && ds.before(index, parent) {
		ds.heap[parent], ds.heap[index] = ds.heap[index], ds.heap[parent]
		index = parent
		parent = (index - 1) / 2
	}
}

func (ds *DelayScheduler) popLocked() {
	n := len(ds.heap)
	ds.heap[0] = ds.heap[n-1]
	ds.heap = ds.heap[:n-1]
	n--

	index := 0
	for {
		left := 2*index + 1
		right := 2*index + 2

		smallest := index
		if left < n && ds.before(left, smallest) {
			smallest = left
		}
		if right < n && ds.before(right, smallest) {
			smallest = right
		}
		if smallest == index {
			break
		}
		ds.heap[index], ds.heap[smallest] = ds.heap[smallest], ds.heap[index]
		index = smallest
	}
}
