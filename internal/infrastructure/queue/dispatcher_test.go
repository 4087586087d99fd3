package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/energosales/portal/internal/core/domain"
)

// flakySink fails the first failures[name] calls for a lead, then accepts it.
type flakySink struct {
	mu        sync.Mutex
	delivered []domain.Lead
	calls     map[string]int
	failures  map[string]int
	err       error
	block     chan struct{}
}

func newFlakySink() *flakySink {
	return &flakySink{calls: map[string]int{}, failures: map[string]int{}, err: errors.New("webhook down")}
}

func (s *flakySink) Forward(ctx context.Context, lead domain.Lead) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[lead.FullName]++
	if s.calls[lead.FullName] <= s.failures[lead.FullName] {
		return s.err
	}
	s.delivered = append(s.delivered, lead)
	return nil
}

func (s *flakySink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.delivered))
	for i, l := range s.delivered {
		out[i] = l.FullName
	}
	return out
}

func newTestDispatcher(workers int, sink *flakySink) *Dispatcher {
	return NewDispatcher(workers, sink, zerolog.Nop(), WithRetry(3, time.Millisecond))
}

func TestDispatcher_PreservesPerOperatorOrder(t *testing.T) {
	sink := newFlakySink()
	d := newTestDispatcher(3, sink)
	d.Start()
	defer d.Close()

	names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for op := int64(1); op <= 3; op++ {
		wg.Add(1)
		go func(op int64) {
			defer wg.Done()
			for _, name := range names {
				lead := domain.Lead{FullName: fmt.Sprintf("%d-%s", op, name), OperatorID: op}
				if err := d.Deliver(context.Background(), lead); err != nil {
					errs <- err
					return
				}
			}
		}(op)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Deliver: %v", err)
	}

	perOperator := map[int64][]string{}
	sink.mu.Lock()
	for _, l := range sink.delivered {
		perOperator[l.OperatorID] = append(perOperator[l.OperatorID], l.FullName)
	}
	sink.mu.Unlock()
	for op, got := range perOperator {
		for i, name := range names {
			if want := fmt.Sprintf("%d-%s", op, name); got[i] != want {
				t.Fatalf("operator %d: order broken at %d: %v", op, i, got)
			}
		}
	}
}

func TestDispatcher_RetriesTransientFailure(t *testing.T) {
	sink := newFlakySink()
	sink.failures["A"] = 1
	d := newTestDispatcher(1, sink)
	d.Start()
	defer d.Close()

	for _, name := range []string{"A", "B"} {
		if err := d.Deliver(context.Background(), domain.Lead{FullName: name, OperatorID: 1}); err != nil {
			t.Fatalf("Deliver %s: %v", name, err)
		}
	}
	if got := sink.names(); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("expected A then B delivered, got %v", got)
	}
	if sink.calls["A"] != 2 {
		t.Fatalf("expected A to be tried twice, got %d", sink.calls["A"])
	}
}

func TestDispatcher_ReportsExhaustedRetries(t *testing.T) {
	sink := newFlakySink()
	sink.failures["bad"] = 10
	d := newTestDispatcher(1, sink)
	d.Start()
	defer d.Close()

	err := d.Deliver(context.Background(), domain.Lead{FullName: "bad", OperatorID: 1})
	if !errors.Is(err, domain.ErrLeadDelivery) {
		t.Fatalf("expected ErrLeadDelivery, got %v", err)
	}
	if sink.calls["bad"] != 3 {
		t.Fatalf("expected 3 attempts, got %d", sink.calls["bad"])
	}

	if err := d.Deliver(context.Background(), domain.Lead{FullName: "good", OperatorID: 1}); err != nil {
		t.Fatalf("worker should keep serving after a failure: %v", err)
	}
}

func TestDispatcher_NoRetryWhenRelayUnavailable(t *testing.T) {
	sink := newFlakySink()
	sink.failures["x"] = 10
	sink.err = fmt.Errorf("%w: breaker open", domain.ErrRelayUnavailable)
	d := newTestDispatcher(1, sink)
	d.Start()
	defer d.Close()

	err := d.Deliver(context.Background(), domain.Lead{FullName: "x", OperatorID: 1})
	if !errors.Is(err, domain.ErrRelayUnavailable) {
		t.Fatalf("expected ErrRelayUnavailable, got %v", err)
	}
	if sink.calls["x"] != 1 {
		t.Fatalf("expected a single attempt, got %d", sink.calls["x"])
	}
}

func TestDispatcher_CloseDrainsQueuedLeads(t *testing.T) {
	sink := newFlakySink()
	sink.block = make(chan struct{})
	d := newTestDispatcher(1, sink)
	d.Start()

	results := make(chan error, 3)
	for _, name := range []string{"A", "B", "C"} {
		go func(name string) {
			results <- d.Deliver(context.Background(), domain.Lead{FullName: name, OperatorID: 1})
		}(name)
	}
	// let all three reach the worker channel before shutting down
	deadline := time.Now().Add(2 * time.Second)
	for {
		d.mu.RLock()
		queued := len(d.workers[0])
		d.mu.RUnlock()
		if queued >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()
	close(sink.block)

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	for i := 0; i < 3; i++ {
		if err := <-results; err != nil {
			t.Fatalf("queued lead lost on shutdown: %v", err)
		}
	}
	if got := sink.names(); len(got) != 3 {
		t.Fatalf("expected 3 deliveries, got %v", got)
	}

	err := d.Deliver(context.Background(), domain.Lead{FullName: "late", OperatorID: 1})
	if !errors.Is(err, domain.ErrRelayUnavailable) {
		t.Fatalf("expected ErrRelayUnavailable after Close, got %v", err)
	}
}

func TestDispatcher_QueueFull(t *testing.T) {
	// workers never started: the channel fills up
	d := newTestDispatcher(1, newFlakySink())
	for i := 0; i < channelBuffer; i++ {
		if err := d.enqueue(job{ctx: context.Background(), lead: domain.Lead{OperatorID: 1}, done: make(chan error, 1)}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := d.Deliver(context.Background(), domain.Lead{OperatorID: 1}); !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestDispatcher_CancelledRequest(t *testing.T) {
	sink := newFlakySink()
	sink.block = make(chan struct{})
	defer close(sink.block)
	d := newTestDispatcher(1, sink)
	d.Start()
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Deliver(ctx, domain.Lead{FullName: "slow", OperatorID: 1}); !errors.Is(err, domain.ErrLeadDelivery) {
		t.Fatalf("expected ErrLeadDelivery, got %v", err)
	}
}

func TestDispatcher_ShardIndexIsStable(t *testing.T) {
	d := NewDispatcher(0, newFlakySink(), zerolog.Nop())
	if len(d.workers) != defaultWorkers {
		t.Fatalf("expected %d workers, got %d", defaultWorkers, len(d.workers))
	}
	for id := int64(1); id < 50; id++ {
		if d.shardIndex(id) != d.shardIndex(id) {
			t.Fatalf("shard index for %d not deterministic", id)
		}
	}
}

func TestDispatcher_DeliveryTimeout(t *testing.T) {
	sink := newFlakySink()
	sink.block = make(chan struct{})
	defer close(sink.block)
	d := NewDispatcher(1, sink, zerolog.Nop(), WithDeliveryTimeout(20*time.Millisecond))
	d.Start()
	defer d.Close()

	start := time.Now()
	err := d.Deliver(context.Background(), domain.Lead{FullName: "slow", OperatorID: 1})
	if !errors.Is(err, domain.ErrLeadDelivery) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected delivery deadline error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("Deliver ignored its timeout")
	}
}
