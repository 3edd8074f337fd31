package corehttp

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPooledSpawnerRunsAllTasks(t *testing.T) {
	p := &PooledSpawner{MaxWorkers: 4}
	defer p.Stop()

	var n int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		p.Spawn(func() {
			atomic.AddInt32(&n, 1)
			wg.Done()
		})
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("not all spawned tasks completed")
	}
	if got := atomic.LoadInt32(&n); got != 50 {
		t.Fatalf("ran %d tasks, want 50", got)
	}
}

func TestPooledSpawnerReusesIdleWorker(t *testing.T) {
	p := &PooledSpawner{MaxWorkers: 1}
	defer p.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	p.Spawn(func() { wg.Done() })
	wg.Wait()

	// Give the worker a moment to release itself back to the idle stack
	// before handing it a second task.
	time.Sleep(10 * time.Millisecond)

	p.mu.Lock()
	idle := p.ready.head
	p.mu.Unlock()
	if idle == nil {
		t.Fatal("worker did not return to the idle stack after its first task")
	}

	wg.Add(1)
	p.Spawn(func() { wg.Done() })

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second task on the reused worker never ran")
	}
}

func TestPooledSpawnerFallsBackToGoroutineWhenSaturated(t *testing.T) {
	p := &PooledSpawner{MaxWorkers: 1}
	defer p.Stop()

	block := make(chan struct{})
	started := make(chan struct{})
	p.Spawn(func() {
		close(started)
		<-block
	})
	<-started

	var ran int32
	var wg sync.WaitGroup
	wg.Add(1)
	p.Spawn(func() {
		atomic.AddInt32(&ran, 1)
		wg.Done()
	})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("overflow task never ran via the goroutine fallback")
	}
	if atomic.LoadInt32(&ran) != 1 {
		t.Fatalf("ran = %d, want 1", ran)
	}
	close(block)
}

func TestPooledSpawnerStopStopsAcceptingReuse(t *testing.T) {
	p := &PooledSpawner{MaxWorkers: 4, MaxIdleDuration: time.Millisecond}
	var wg sync.WaitGroup
	wg.Add(1)
	p.Spawn(func() { wg.Done() })
	wg.Wait()

	p.Stop()
	// Stop must be idempotent and safe to call again without panicking.
	p.Stop()
}
