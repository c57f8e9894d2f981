package utils

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestWorkerPoolLimitsConcurrency(t *testing.T) {
	const maxWorkers = 3
	pool := NewWorkerPool(maxWorkers, 0)

	var active, peak int32
	var mu sync.Mutex

	for i := 0; i < 20; i++ {
		pool.Submit(func() {
			cur := atomic.AddInt32(&active, 1)
			mu.Lock()
			if cur > peak {
				peak = cur
			}
			mu.Unlock()
			atomic.AddInt32(&active, -1)
		})
	}
	pool.Wait()

	if peak > maxWorkers {
		t.Errorf("peak concurrency %d exceeded limit %d", peak, maxWorkers)
	}
}

func TestWorkerPoolRunsAllJobs(t *testing.T) {
	pool := NewWorkerPool(2, 0)

	var done int32
	for i := 0; i < 50; i++ {
		pool.Submit(func() { atomic.AddInt32(&done, 1) })
	}
	pool.Wait()

	if done != 50 {
		t.Errorf("ran %d jobs; want 50", done)
	}
}

func TestIDSetDeduplicates(t *testing.T) {
	s := NewIDSet()

	if !s.Add("1") {
		t.Error("first Add returned false")
	}
	if s.Add("1") {
		t.Error("duplicate Add returned true")
	}
	if !s.Contains("1") || s.Contains("2") {
		t.Error("Contains is wrong")
	}
	if s.Size() != 1 {
		t.Errorf("Size = %d; want 1", s.Size())
	}
}

func TestIDSetKeepsDiscoveryOrder(t *testing.T) {
	s := NewIDSet()
	for _, id := range []string{"3", "1", "2", "1", "3"} {
		s.Add(id)
	}

	want := []string{"3", "1", "2"}
	got := s.Values()
	if len(got) != len(want) {
		t.Fatalf("Values = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Values[%d] = %s; want %s", i, got[i], want[i])
		}
	}
}
