package pipeline

import "sync"

// Execution tracks the goroutines of the stages it started. It is terminated
// once every stage has drained its input and returned.
type Execution struct {
	wg         sync.WaitGroup
	once       sync.Once
	terminated chan struct{}
}

func NewExecution() *Execution {
	return &Execution{terminated: make(chan struct{})}
}

func (e *Execution) spawn(stage func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		stage()
	}()
}

// Terminated is closed when all stages have finished. Stages must be started
// before the first call.
func (e *Execution) Terminated() <-chan struct{} {
	e.once.Do(func() {
		go func() {
			e.wg.Wait()
			close(e.terminated)
		}()
	})
	return e.terminated
}

func (e *Execution) Wait() {
	<-e.Terminated()
}
