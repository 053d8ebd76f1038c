package speech

import "sync"

// request is one enqueued speak() call (§4.3's Speak request, plus the
// voice already resolved by the caller).
type request struct {
	agentName    string
	voiceID      string
	autoAssigned bool
	text         string
	speed        float64
	resultCh     chan Result // nil when block=false
}

// Queue is the single-producer, single-consumer serial FIFO of §4.3:
// one worker goroutine drains it in order, so playback start times are
// monotonic per process (§8).
type Queue struct {
	mu      sync.Mutex
	items   []*request
	current *request
	notify  chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup

	process func(*request)
}

func NewQueue(process func(*request)) *Queue {
	return &Queue{
		notify:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		process: process,
	}
}

// Start spawns the worker goroutine.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.run()
}

// Stop lets the worker finish its current request, then exits without
// draining what remains queued — callers that want the queue emptied
// first should call Drain before Stop.
func (q *Queue) Stop() {
	close(q.stopCh)
	q.wg.Wait()
}

func (q *Queue) enqueue(req *request) {
	q.mu.Lock()
	q.items = append(q.items, req)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			select {
			case <-q.stopCh:
				return
			case <-q.notify:
				continue
			}
		}
		req := q.items[0]
		q.items = q.items[1:]
		q.current = req
		q.mu.Unlock()

		q.process(req)

		q.mu.Lock()
		q.current = nil
		q.mu.Unlock()
	}
}

// Drain cancels every request still waiting behind the one in
// progress, delivering Cancelled to any blocked waiter — the §9 open
// question resolution (SUPPLEMENTED item 7): `stop` aborts
// queued-but-not-yet-playing speaks.
func (q *Queue) Drain() int {
	q.mu.Lock()
	pending := q.items
	q.items = nil
	q.mu.Unlock()

	for _, req := range pending {
		if req.resultCh != nil {
			req.resultCh <- Result{Cancelled: true}
		}
	}
	return len(pending)
}

// Depth reports the number of requests waiting behind the one in
// progress, for the `status` tool's queue_depth field.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
