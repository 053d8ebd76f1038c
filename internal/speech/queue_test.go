package speech

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesInFIFOOrder(t *testing.T) {
	var order []string
	var mu sync.Mutex
	q := NewQueue(func(r *request) {
		mu.Lock()
		order = append(order, r.agentName)
		mu.Unlock()
		if r.resultCh != nil {
			r.resultCh <- Result{Success: true}
		}
	})
	q.Start()
	defer q.Stop()

	for _, name := range []string{"a", "b", "c"} {
		q.enqueue(&request{agentName: name})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestQueueDrainCancelsPendingNotCurrent(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue(func(r *request) {
		<-release
		if r.resultCh != nil {
			r.resultCh <- Result{Success: true}
		}
	})
	q.Start()
	defer q.Stop()

	current := &request{agentName: "current", resultCh: make(chan Result, 1)}
	pending := &request{agentName: "pending", resultCh: make(chan Result, 1)}
	q.enqueue(current)
	require.Eventually(t, func() bool { return q.current != nil }, time.Second, 2*time.Millisecond)
	q.enqueue(pending)

	drained := q.Drain()
	assert.Equal(t, 1, drained)

	select {
	case r := <-pending.resultCh:
		assert.True(t, r.Cancelled)
	case <-time.After(time.Second):
		t.Fatal("pending request was not cancelled")
	}

	close(release)
	select {
	case r := <-current.resultCh:
		assert.True(t, r.Success)
	case <-time.After(time.Second):
		t.Fatal("current request never completed")
	}
}
