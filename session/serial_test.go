package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type SerialSuite struct {
	suite.Suite
}

func TestSerialSuite(t *testing.T) {
	suite.Run(t, new(SerialSuite))
}

func (s *SerialSuite) TestOrder() {
	q := newSerialQueue()
	defer q.close()

	var got []int
	for i := 0; i < 1000; i++ {
		s.Require().True(q.async(func() { got = append(got, i) }))
	}
	s.Require().True(q.sync(func() {}))

	s.Len(got, 1000)
	for i, v := range got {
		s.Equal(i, v)
	}
}

func (s *SerialSuite) TestOneAtATime() {
	q := newSerialQueue()
	defer q.close()

	var mu sync.Mutex
	running, maxRunning := 0, 0
	wg := &sync.WaitGroup{}
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				q.async(func() {
					mu.Lock()
					running++
					maxRunning = max(maxRunning, running)
					mu.Unlock()

					mu.Lock()
					running--
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()
	s.Require().True(q.sync(func() {}))
	s.Equal(1, maxRunning)
}

func (s *SerialSuite) TestCloseDrainsAndRejects() {
	q := newSerialQueue()

	block := make(chan struct{})
	ran := 0
	s.Require().True(q.async(func() { <-block }))
	for i := 0; i < 5; i++ {
		s.Require().True(q.async(func() { ran++ }))
	}
	q.close()
	s.False(q.async(func() { ran++ }))
	s.False(q.sync(func() {}))

	close(block)
	select {
	case <-q.done:
	case <-time.After(5 * time.Second):
		s.FailNow("queue did not stop")
	}
	s.Equal(5, ran)
}

type OneshotSuite struct {
	suite.Suite
}

func TestOneshotSuite(t *testing.T) {
	suite.Run(t, new(OneshotSuite))
}

func (s *OneshotSuite) TestCompleteOnce() {
	c := newCompletion[string]()
	s.True(c.complete("world", nil))
	s.False(c.complete("again", nil))

	v, err := c.wait(context.Background())
	s.Require().NoError(err)
	s.Equal("world", v)
}

func (s *OneshotSuite) TestWaiterGone() {
	c := newCompletion[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.wait(ctx)
	s.ErrorIs(err, context.Canceled)

	done := make(chan bool)
	go func() { done <- c.complete(42, nil) }()
	select {
	case stored := <-done:
		s.True(stored)
	case <-time.After(5 * time.Second):
		s.FailNow("late completion blocked")
	}
}
