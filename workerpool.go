package corehttp

import (
	"sync"
	"sync/atomic"
	"time"
)

// PooledSpawner is an alternate Spawn implementation that reuses a bounded
// set of goroutines across connections in FILO order, instead of starting
// one goroutine per connection. Keeping the most-recently-idle worker hot
// keeps CPU caches warm, in theory.
//
// Adapted from the teacher's workerPool (workerpool.go): the task queued
// through a workerChan is now an arbitrary func() rather than a fixed
// ServeHandler over a net.Conn, since Spawn's contract (spec.md §6) is
// "run this callback", not "serve this connection".
type PooledSpawner struct {
	// MaxWorkers bounds how many pooled goroutines may exist at once.
	// Beyond this, Spawn falls back to a bare goroutine so a caller is
	// never blocked waiting for a slot. Zero means unbounded.
	MaxWorkers int

	// MaxIdleDuration is how long an idle pooled goroutine is kept alive
	// before being retired. Defaults to 10s if zero or negative. Idle
	// goroutines are retired starting from the most recently used one, so
	// a goroutine is retired only once every goroutine that went idle
	// after it has also been idle this long.
	MaxIdleDuration time.Duration

	chanPool sync.Pool
	ready    workerChanStack
	mu       sync.Mutex

	workersCount int32
	stopCh       chan struct{}
	startOnce    sync.Once
	stopOnce     sync.Once
}

type workerChan struct {
	next        *workerChan
	ch          chan func()
	lastUseTime int64
}

type workerChanStack struct {
	head, tail *workerChan
}

func (s *workerChanStack) push(ch *workerChan) {
	ch.next = s.head
	s.head = ch
	if s.tail == nil {
		s.tail = ch
	}
}

func (s *workerChanStack) pop() *workerChan {
	head := s.head
	if head == nil {
		return nil
	}
	s.head = head.next
	if s.head == nil {
		s.tail = nil
	}
	return head
}

func (p *PooledSpawner) maxIdleDuration() time.Duration {
	if p.MaxIdleDuration <= 0 {
		return 10 * time.Second
	}
	return p.MaxIdleDuration
}

func (p *PooledSpawner) start() {
	p.startOnce.Do(func() {
		p.stopCh = make(chan struct{})
		p.chanPool.New = func() any {
			return &workerChan{ch: make(chan func(), 1)}
		}
		go func() {
			for {
				select {
				case <-p.stopCh:
					return
				default:
					time.Sleep(p.maxIdleDuration())
					p.clean()
				}
			}
		}()
	})
}

// Stop retires idle pooled goroutines. A goroutine that is busy at the
// time, or that a later Spawn starts, finishes its task and then exits
// instead of returning to the pool.
func (p *PooledSpawner) Stop() {
	if p.stopCh == nil {
		return
	}
	p.stopOnce.Do(func() {
		close(p.stopCh)

		p.mu.Lock()
		defer p.mu.Unlock()
		for {
			ch := p.ready.pop()
			if ch == nil {
				break
			}
			ch.ch <- nil
		}
	})
}

func (p *PooledSpawner) clean() {
	criticalTime := time.Now().Add(-p.maxIdleDuration()).UnixNano()

	p.mu.Lock()
	defer p.mu.Unlock()
	current := p.ready.head
	for current != nil && current.lastUseTime < criticalTime {
		next := current.next
		current.ch <- nil
		current = next
	}
	p.ready.head = current
	if current == nil {
		p.ready.tail = nil
	}
}

// Spawn satisfies the Spawn signature: it hands f to an idle pooled
// goroutine, or starts a new one (up to MaxWorkers), or, if the pool is
// saturated, falls back to a bare goroutine so the caller never blocks.
func (p *PooledSpawner) Spawn(f func()) {
	p.start()

	ch := p.getCh()
	if ch == nil {
		go f()
		return
	}
	ch.ch <- f
}

func (p *PooledSpawner) getCh() *workerChan {
	p.mu.Lock()
	ch := p.ready.pop()
	p.mu.Unlock()
	if ch != nil {
		return ch
	}

	if p.MaxWorkers > 0 && atomic.LoadInt32(&p.workersCount) >= int32(p.MaxWorkers) {
		return nil
	}
	atomic.AddInt32(&p.workersCount, 1)

	vch := p.chanPool.Get()
	nch := vch.(*workerChan)
	go p.workerLoop(nch, vch)
	return nch
}

func (p *PooledSpawner) release(ch *workerChan) bool {
	ch.lastUseTime = time.Now().UnixNano()
	select {
	case <-p.stopCh:
		return false
	default:
	}

	p.mu.Lock()
	p.ready.push(ch)
	p.mu.Unlock()
	return true
}

func (p *PooledSpawner) workerLoop(ch *workerChan, pooled any) {
	for f := range ch.ch {
		if f == nil {
			break
		}
		f()
		if !p.release(ch) {
			break
		}
	}
	atomic.AddInt32(&p.workersCount, -1)
	p.chanPool.Put(pooled)
}
