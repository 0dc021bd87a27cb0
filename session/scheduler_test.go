package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayScheduler_FiresInDeadlineOrder(t *testing.T) {
	ds := NewDelayScheduler()
	go ds.Run()
	defer ds.Stop()

	var mu sync.Mutex
	var fired []string
	done := make(chan struct{})

	record := func(name string, last bool) func() {
		return func() {
			mu.Lock()
			fired = append(fired, name)
			mu.Unlock()
			if last {
				close(done)
			}
		}
	}

	ds.Schedule(60*time.Millisecond, record("c", true))
	ds.Schedule(20*time.Millisecond, record("a", false))
	ds.Schedule(40*time.Millisecond, record("b", false))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not fire")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, fired)
}

func TestDelayScheduler_ScheduleWhileRunning(t *testing.T) {
	ds := NewDelayScheduler()
	go ds.Run()
	defer ds.Stop()

	done := make(chan struct{})

	// The outer task schedules another; the wake channel must pick it up
	// even though the loop is already parked on a long wait.
	ds.Schedule(10*time.Millisecond, func() {
		ds.Schedule(10*time.Millisecond, func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("nested task did not fire")
	}
}

func TestDelayScheduler_SameDeadlineKeepsScheduleOrder(t *testing.T) {
	ds := NewDelayScheduler()

	at := time.Now().Add(time.Hour)
	for i := 0; i < 5; i++ {
		i := i
		ds.mu.Lock()
		ds.seq++
		ds.heap = append(ds.heap, delayedTask{at: at, seq: ds.seq, task: func() { _ = i }})
		ds.siftUp(len(ds.heap) - 1)
		ds.mu.Unlock()
	}

	var seqs []uint64
	ds.mu.Lock()
	for len(ds.heap) > 0 {
		seqs = append(seqs, ds.heap[0].seq)
		ds.popLocked()
	}
	ds.mu.Unlock()

	require.Len(t, seqs, 5)
	for i := 1; i < len(seqs); i++ {
		assert.Less(t, seqs[i-1], seqs[i])
	}
}

func TestDelayScheduler_StopIsIdempotent(t *testing.T) {
	ds := NewDelayScheduler()
	go ds.Run()

	ds.Stop()
	ds.Stop()
}
