package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *capturePublisher) Publish(event string, _ any) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// waitForStatus polls until the job leaves StatusRunning.
func waitForStatus(t *testing.T, m *Manager, id string) Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := m.Get(id)
		if !ok {
			t.Fatalf("job %s disappeared", id)
		}
		if job.Status != StatusRunning {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s still running", id)
	return Job{}
}

func TestJobCompletesWithResult(t *testing.T) {
	pub := &capturePublisher{}
	m := NewManager(pub)

	id := m.Start(context.Background(), func(_ context.Context, report func(string, int, int)) (any, error) {
		report("fetch", 1, 2)
		report("fetch", 2, 2)
		return "payload", nil
	})
	if len(id) != 16 {
		t.Errorf("job id %q, want 16 hex chars", id)
	}

	job := waitForStatus(t, m, id)
	if job.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
	if job.Progress.Current != 2 || job.Progress.Total != 2 {
		t.Errorf("progress = %+v", job.Progress)
	}
	result, ok := m.Result(id)
	if !ok || result != "payload" {
		t.Errorf("Result = %v, %v", result, ok)
	}
	if pub.count() != 2 {
		t.Errorf("published %d progress events, want 2", pub.count())
	}
}

func TestJobFailure(t *testing.T) {
	m := NewManager(nil)
	id := m.Start(context.Background(), func(context.Context, func(string, int, int)) (any, error) {
		return nil, fmt.Errorf("upstream exploded")
	})

	job := waitForStatus(t, m, id)
	if job.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.Error != "upstream exploded" {
		t.Errorf("Error = %q", job.Error)
	}
	if _, ok := m.Result(id); ok {
		t.Error("failed job should expose no result")
	}
}

func TestJobCancel(t *testing.T) {
	m := NewManager(nil)
	started := make(chan struct{})
	id := m.Start(context.Background(), func(ctx context.Context, _ func(string, int, int)) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	<-started

	if !m.Cancel(id) {
		t.Fatal("Cancel returned false for a running job")
	}
	job := waitForStatus(t, m, id)
	if job.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", job.Status)
	}
	if m.Cancel(id) {
		t.Error("Cancel on a finished job should return false")
	}
}

func TestGetUnknownJob(t *testing.T) {
	m := NewManager(nil)
	if _, ok := m.Get("missing"); ok {
		t.Error("Get on unknown id should report missing")
	}
	if m.Cancel("missing") {
		t.Error("Cancel on unknown id should return false")
	}
}
