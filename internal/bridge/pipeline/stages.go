package pipeline

import "log/slog"

// FlatMapper maps one element to zero or more elements. A failing element is
// dropped; the stage keeps running.
type FlatMapper[I, O any] func(I) ([]O, error)

// Consumer is the terminal stage of a pipeline.
type Consumer[T any] interface {
	Execute(T)
	// OnTerminating runs once, after the input pipe was closed and drained.
	OnTerminating()
}

// FlatMap starts a stage forwarding every output of mapper, in order, to the
// returned pipe. The pipe is closed once in is closed and drained.
func FlatMap[I, O any](exec *Execution, in <-chan I, capacity int, mapper FlatMapper[I, O]) <-chan O {
	if capacity < 1 {
		capacity = DefaultPipeCapacity
	}
	out := make(chan O, capacity)

	exec.spawn(func() {
		defer close(out)
		for element := range in {
			mapped, err := mapper(element)
			if err != nil {
				slog.Warn("dropping pipeline element", slog.Any("error", err))
				continue
			}
			for _, m := range mapped {
				out <- m
			}
		}
	})

	return out
}

// Sink starts a stage handing every element of in to consumer.
func Sink[T any](exec *Execution, in <-chan T, consumer Consumer[T]) {
	exec.spawn(func() {
		defer consumer.OnTerminating()
		for element := range in {
			consumer.Execute(element)
		}
	})
}

// ConsumerFunc adapts a function to a Consumer without termination work.
type ConsumerFunc[T any] func(T)

func (f ConsumerFunc[T]) Execute(element T) { f(element) }
func (f ConsumerFunc[T]) OnTerminating()    {}
