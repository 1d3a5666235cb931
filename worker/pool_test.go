package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	p := New(Config{MinWorkers: 2, MaxWorkers: 4, QueueSize: 16, IdleTimeout: time.Second}, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var count int64
	var wg sync.WaitGroup
	const n = 50
	wg.Add(n)
	for i := 0; i < n; i++ {
		if err := p.Submit(func(ctx context.Context) {
			atomic.AddInt64(&count, 1)
			wg.Done()
		}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for all tasks to run")
	}

	if got := atomic.LoadInt64(&count); got != n {
		t.Errorf("ran %d tasks, want %d", got, n)
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestPoolScalesUpUnderQueuePressure(t *testing.T) {
	p := New(Config{MinWorkers: 1, MaxWorkers: 8, QueueSize: 4, IdleTimeout: 200 * time.Millisecond}, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	block := make(chan struct{})
	var started int64
	for i := 0; i < 6; i++ {
		if err := p.Submit(func(ctx context.Context) {
			atomic.AddInt64(&started, 1)
			<-block
		}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && p.ActiveWorkers() <= 1 {
		time.Sleep(10 * time.Millisecond)
	}
	if p.ActiveWorkers() <= 1 {
		t.Errorf("ActiveWorkers() = %d, expected scale-up beyond MinWorkers", p.ActiveWorkers())
	}

	close(block)
}

func TestPoolStopWaitsForInFlightTasks(t *testing.T) {
	p := New(DefaultConfig(), nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var finished int32
	if err := p.Submit(func(ctx context.Context) {
		time.Sleep(100 * time.Millisecond)
		atomic.StoreInt32(&finished, 1)
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if atomic.LoadInt32(&finished) != 1 {
		t.Error("expected Stop to block until the in-flight task completed")
	}
}

func TestPoolPanicInTaskDoesNotKillWorker(t *testing.T) {
	p := New(Config{MinWorkers: 1, MaxWorkers: 1, QueueSize: 4, IdleTimeout: time.Second}, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	if err := p.Submit(func(ctx context.Context) { panic("boom") }); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	var ran int32
	done := make(chan struct{})
	if err := p.Submit(func(ctx context.Context) {
		atomic.StoreInt32(&ran, 1)
		close(done)
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not recover from a panic and process the next task")
	}
	if atomic.LoadInt32(&ran) != 1 {
		t.Error("expected the task after the panic to have run")
	}
}
