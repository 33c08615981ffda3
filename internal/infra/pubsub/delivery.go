package pubsub

import "sync"

// Delivery is the outcome of an asynchronous publish. It completes exactly
// once, when the producer reports success or failure for the message.
type Delivery struct {
	mu        sync.Mutex
	done      chan struct{}
	finished  bool
	err       error
	callbacks []func(error)
}

func newDelivery() *Delivery {
	return &Delivery{done: make(chan struct{})}
}

func completedDelivery(err error) *Delivery {
	d := newDelivery()
	d.finish(err)
	return d
}

func (d *Delivery) finish(err error) {
	d.mu.Lock()
	if d.finished {
		d.mu.Unlock()
		return
	}
	d.finished = true
	d.err = err
	callbacks := d.callbacks
	d.callbacks = nil
	close(d.done)
	d.mu.Unlock()

	for _, cb := range callbacks {
		cb(err)
	}
}

// Then registers cb to run once the delivery completes. If it already has,
// cb runs immediately on the calling goroutine.
func (d *Delivery) Then(cb func(error)) *Delivery {
	d.mu.Lock()
	if !d.finished {
		d.callbacks = append(d.callbacks, cb)
		d.mu.Unlock()
		return d
	}
	err := d.err
	d.mu.Unlock()

	cb(err)
	return d
}

func (d *Delivery) Done() <-chan struct{} {
	return d.done
}

// Err blocks until the delivery completes and returns its error.
func (d *Delivery) Err() error {
	<-d.done
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}
