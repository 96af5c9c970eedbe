package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetSetUpdate(t *testing.T) {
	s := New(1)
	assert.Equal(t, 1, s.Get())

	s.Set(2)
	assert.Equal(t, 2, s.Get())

	got := s.Update(func(v int) int { return v * 10 })
	assert.Equal(t, 20, got)
	assert.Equal(t, 20, s.Get())
}

func TestStore_SubscribeOrder(t *testing.T) {
	s := New(0)

	var seen []int
	unsub := s.Subscribe(func(v int) { seen = append(seen, v) })

	s.Set(1)
	s.Set(2)
	s.Update(func(v int) int { return v + 1 })
	unsub()
	s.Set(4)

	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestStore_ReentrantCommitsKeepOrder(t *testing.T) {
	s := New(0)

	var first, second []int
	s.Subscribe(func(v int) {
		first = append(first, v)
		if v == 1 {
			s.Set(2)
		}
	})
	s.Subscribe(func(v int) { second = append(second, v) })

	s.Set(1)

	// Both subscribers see 1 before 2, even though 2 was committed while
	// 1 was still being delivered.
	assert.Equal(t, []int{1, 2}, first)
	assert.Equal(t, []int{1, 2}, second)
	assert.Equal(t, 2, s.Get())
}

func TestStore_Batch(t *testing.T) {
	s := New(0)

	var seen []int
	s.Subscribe(func(v int) { seen = append(seen, v) })

	s.Batch(func() {
		s.Set(1)
		s.Batch(func() {
			s.Set(2)
		})
		s.Set(3)
	})

	assert.Equal(t, []int{3}, seen)

	s.Batch(func() {})
	assert.Equal(t, []int{3}, seen, "empty batch should not notify")
}

func TestStore_ConcurrentCommits(t *testing.T) {
	s := New(0)

	var mu sync.Mutex
	count := 0
	s.Subscribe(func(int) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(v int) int { return v + 1 })
		}()
	}
	wg.Wait()

	require.Equal(t, 50, s.Get())
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 50
	}, timeout, tick)
}

func TestStore_NilSubscriber(t *testing.T) {
	s := New("x")
	unsub := s.Subscribe(nil)
	unsub()
	s.Set("y")
}
