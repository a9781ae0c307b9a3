package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sheldongordon4/coherence-engine/internal/domain/model"
)

func testObs(signal string, offset int) model.Observation {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return model.Observation{
		Signal: signal,
		TS:     base.Add(time.Duration(offset) * time.Second),
		Value:  float64(offset),
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, testObs("session_alpha", 1)) {
		t.Error("expected enqueue to succeed")
	}

	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	obsChan := q.Dequeue(ctx)
	obs := <-obsChan
	if obs.Signal != "session_alpha" {
		t.Errorf("expected session_alpha, got %v", obs.Signal)
	}

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, testObs("s1", 1)) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, testObs("s2", 2)) {
		t.Error("expected enqueue to succeed")
	}

	// Try to enqueue when full
	if q.Enqueue(ctx, testObs("s3", 3)) {
		t.Error("expected enqueue to fail when full")
	}

	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CloseStopsEnqueue(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, testObs("s1", 1)) {
		t.Error("expected enqueue to succeed")
	}

	if err := q.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, testObs("s2", 2)) {
		t.Error("expected enqueue to fail after close")
	}

	// Close is idempotent.
	if err := q.Close(); err != nil {
		t.Errorf("unexpected error on second close: %v", err)
	}
}

func TestInMemoryQueue_DequeueDrainsAfterClose(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !q.Enqueue(ctx, testObs("s", i)) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	if err := q.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	// Buffered observations remain readable, then the channel closes.
	obsChan := q.Dequeue(ctx)
	count := 0
	for range obsChan {
		count++
	}
	if count != 3 {
		t.Errorf("expected 3 drained observations, got %d", count)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2000))
	ctx := context.Background()
	numGoroutines := 10
	numObservations := 100

	done := make(chan bool, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			for j := 0; j < numObservations; j++ {
				obs := testObs(fmt.Sprintf("signal_%d", id), id*numObservations+j)
				if !q.Enqueue(ctx, obs) {
					t.Errorf("enqueue failed for goroutine %d", id)
				}
			}
			done <- true
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for producers")
		}
	}

	if l := q.Len(ctx); l != numGoroutines*numObservations {
		t.Errorf("expected %d queued, got %d", numGoroutines*numObservations, l)
	}

	if err := q.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	drained := 0
	for range q.Dequeue(ctx) {
		drained++
	}
	if drained != numGoroutines*numObservations {
		t.Errorf("expected %d drained, got %d", numGoroutines*numObservations, drained)
	}
}
