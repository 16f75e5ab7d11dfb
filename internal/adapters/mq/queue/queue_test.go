package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/fheprop/internal/domain/model"
)

func walletEvent(id string, chainID uint64) model.WalletEvent {
	return model.WalletEvent{ID: id, Type: model.WalletChainChanged, ChainID: chainID}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if err := q.Publish(ctx, walletEvent("event1", 1)); err != nil {
		t.Fatalf("expected publish to succeed, got %v", err)
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	event := <-q.Dequeue(ctx)
	if event.ID != "event1" {
		t.Errorf("expected event1, got %v", event.ID)
	}
	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for _, id := range []string{"event1", "event2"} {
		if err := q.Publish(ctx, walletEvent(id, 1)); err != nil {
			t.Fatalf("expected publish to succeed, got %v", err)
		}
	}

	if err := q.Publish(ctx, walletEvent("event3", 1)); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if l := q.Len(); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_PreservesOrder(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(16))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := uint64(1); i <= 10; i++ {
		if err := q.Publish(ctx, walletEvent("e", i)); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	_ = q.Close()

	var got []uint64
	for e := range q.Dequeue(ctx) {
		got = append(got, e.ChainID)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 events, got %d", len(got))
	}
	for i, id := range got {
		if id != uint64(i+1) {
			t.Errorf("position %d: expected chain %d, got %d", i, i+1, id)
		}
	}
}

func TestInMemoryQueue_ConcurrentPublish(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1000))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if err := q.Publish(ctx, walletEvent("e", uint64(j))); err != nil {
					t.Errorf("publish: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if l := q.Len(); l != 500 {
		t.Errorf("expected length 500, got %d", l)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if err := q.Publish(ctx, walletEvent("event1", 1)); err != nil {
		t.Fatalf("expected publish to succeed, got %v", err)
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}

	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if err := q.Publish(ctx, walletEvent("event2", 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	eventChan := q.Dequeue(ctx)
	timeout := time.After(100 * time.Millisecond)
	drained := 0
	for {
		select {
		case _, ok := <-eventChan:
			if !ok {
				if drained != 1 {
					t.Errorf("expected the queued event before close, got %d", drained)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			drained++
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}
