package notification

import "sync"

// Dispatcher serializes work per key while keeping different keys parallel.
// Notifications for one mailbox must run in arrival order or two overlapping
// syncs would race on the same checkpoint; separate mailboxes share nothing
// and can proceed concurrently.
type Dispatcher struct {
	mu     sync.Mutex
	queues map[string][]func()
	active map[string]bool
	wg     sync.WaitGroup
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		queues: make(map[string][]func()),
		active: make(map[string]bool),
	}
}

// Submit enqueues fn behind any pending work for the same key and returns
// immediately. The returned channel closes when fn has run.
func (d *Dispatcher) Submit(key string, fn func()) <-chan struct{} {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}

	d.mu.Lock()
	d.queues[key] = append(d.queues[key], task)
	if !d.active[key] {
		d.active[key] = true
		d.wg.Add(1)
		go d.drain(key)
	}
	d.mu.Unlock()
	return done
}

func (d *Dispatcher) drain(key string) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.queues[key]
		if len(queue) == 0 {
			d.active[key] = false
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		fn := queue[0]
		d.queues[key] = queue[1:]
		d.mu.Unlock()

		fn()
	}
}

// Wait blocks until every queue is drained.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
