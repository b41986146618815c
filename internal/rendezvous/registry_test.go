package rendezvous

import (
	"context"
	"testing"
	"time"
)

func TestDeliverWakesWaiter(t *testing.T) {
	r := New[string]()
	slot := r.Register("t1")

	go func() {
		r.Deliver("t1", ptr("hello"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, outcome := r.Wait(ctx, slot)
	if outcome != Delivered {
		t.Fatalf("expected Delivered, got %v", outcome)
	}
	if v == nil || *v != "hello" {
		t.Fatalf("unexpected payload: %v", v)
	}
}

func TestWaitTimesOut(t *testing.T) {
	r := New[string]()
	slot := r.Register("t1")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, outcome := r.Wait(ctx, slot)
	if outcome != TimedOut {
		t.Fatalf("expected TimedOut, got %v", outcome)
	}
}

func TestSecondDeliverIsNoOp(t *testing.T) {
	r := New[string]()
	slot := r.Register("t1")

	if !r.Deliver("t1", ptr("first")) {
		t.Fatal("expected first deliver to succeed")
	}
	if r.Deliver("t1", ptr("second")) {
		t.Fatal("expected second deliver to be a no-op")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, outcome := r.Wait(ctx, slot)
	if outcome != Delivered || v == nil || *v != "first" {
		t.Fatalf("expected first payload to win, got %v %v", v, outcome)
	}
}

func TestDeliverToUnknownIDIsNoOp(t *testing.T) {
	r := New[string]()
	if r.Deliver("ghost", ptr("x")) {
		t.Fatal("expected deliver to unknown id to be a no-op")
	}
}

func TestCancelWakesWaiterWithCancelled(t *testing.T) {
	r := New[string]()
	slot := r.Register("t1")

	go r.Cancel("t1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, outcome := r.Wait(ctx, slot)
	if outcome != Cancelled {
		t.Fatalf("expected Cancelled, got %v", outcome)
	}
}

func TestCancelAllWakesEveryWaiter(t *testing.T) {
	r := New[string]()
	slot1 := r.Register("t1")
	slot2 := r.Register("t2")

	go r.CancelAll()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, slot := range []Slot[string]{slot1, slot2} {
		_, outcome := r.Wait(ctx, slot)
		if outcome != Cancelled {
			t.Fatalf("expected Cancelled, got %v", outcome)
		}
	}
}

func ptr[T any](v T) *T { return &v }
