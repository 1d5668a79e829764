package session

import (
	"context"
	"sync"
)

type outcome[T any] struct {
	value T
	err   error
}

// completion is a single-producer single-consumer one-shot result.
// complete never blocks, so a producer may finish after the consumer left.
type completion[T any] struct {
	once sync.Once
	ch   chan outcome[T]
}

func newCompletion[T any]() *completion[T] {
	return &completion[T]{ch: make(chan outcome[T], 1)}
}

// complete stores the result. Only the first call has an effect.
func (c *completion[T]) complete(value T, err error) bool {
	stored := false
	c.once.Do(func() {
		c.ch <- outcome[T]{value: value, err: err}
		stored = true
	})
	return stored
}

func (c *completion[T]) wait(ctx context.Context) (T, error) {
	select {
	case o := <-c.ch:
		return o.value, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
