package queue

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/energosales/portal/internal/api/metrics"
	"github.com/energosales/portal/internal/core/domain"
	"github.com/energosales/portal/internal/core/ports"
)

const (
	defaultWorkers      = 4
	channelBuffer       = 64
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 250 * time.Millisecond
)

// job is one lead waiting for a worker. done receives exactly one result.
type job struct {
	ctx  context.Context
	lead domain.Lead
	done chan error
}

// Dispatcher routes leads to a fixed set of workers using consistent hashing
// on the operator id, so each operator's submissions are delivered in order.
// Deliver blocks until its lead has been forwarded or given up on.
type Dispatcher struct {
	workers []chan job
	sink    ports.LeadSink
	log     zerolog.Logger
	wg      sync.WaitGroup

	maxAttempts     int
	retryBackoff    time.Duration
	deliveryTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithRetry sets how many times a lead is offered to the sink and the delay
// before the first retry. The delay doubles on each further retry.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			d.retryBackoff = backoff
		}
	}
}

// WithDeliveryTimeout bounds how long Deliver waits, retries included.
func WithDeliveryTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.deliveryTimeout = timeout }
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sink ports.LeadSink, log zerolog.Logger, opts ...Option) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:      make([]chan job, numWorkers),
		sink:         sink,
		log:          log,
		maxAttempts:  defaultMaxAttempts,
		retryBackoff: defaultRetryBackoff,
	}
	for i := range d.workers {
		d.workers[i] = make(chan job, channelBuffer)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches all worker goroutines. They run until Close.
func (d *Dispatcher) Start() {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(i, ch)
	}
}

// Close stops accepting leads, lets the workers finish everything already
// queued and waits for them.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, ch := range d.workers {
			close(ch)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Deliver hands lead to the worker responsible for its operator and waits for
// the outcome. A saturated worker channel yields domain.ErrQueueFull without
// waiting. Failures wrap domain.ErrLeadDelivery or domain.ErrRelayUnavailable.
func (d *Dispatcher) Deliver(ctx context.Context, lead domain.Lead) error {
	if d.deliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.deliveryTimeout)
		defer cancel()
	}

	j := job{ctx: ctx, lead: lead, done: make(chan error, 1)}
	if err := d.enqueue(j); err != nil {
		return err
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		// The worker sees the same cancelled context and skips or aborts the job.
		return fmt.Errorf("%w: %w", domain.ErrLeadDelivery, ctx.Err())
	}
}

func (d *Dispatcher) enqueue(j job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return fmt.Errorf("%w: shutting down", domain.ErrRelayUnavailable)
	}

	idx := d.shardIndex(j.lead.OperatorID)
	select {
	case d.workers[idx] <- j:
		metrics.LeadsQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// shardIndex maps an operator id deterministically to a worker index.
func (d *Dispatcher) shardIndex(operatorID int64) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(operatorID, 10)))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(id int, ch <-chan job) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for j := range ch {
		metrics.LeadsQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
		j.done <- d.forward(id, j)
	}
}

// forward offers the lead to the sink up to maxAttempts times. An open
// breaker or a cancelled request ends the attempts early.
func (d *Dispatcher) forward(worker int, j job) error {
	log := d.log.With().Int64("operator_id", j.lead.OperatorID).Int("worker_id", worker).Logger()
	backoff := d.retryBackoff

	for attempt := 1; ; attempt++ {
		if err := j.ctx.Err(); err != nil {
			metrics.LeadsForwardedTotal.WithLabelValues("abandoned").Inc()
			return fmt.Errorf("%w: %w", domain.ErrLeadDelivery, err)
		}

		start := time.Now()
		err := d.sink.Forward(j.ctx, j.lead)
		metrics.LeadForwardDuration.Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.LeadsForwardedTotal.WithLabelValues("ok").Inc()
			log.Info().Int("attempt", attempt).Msg("lead forwarded")
			return nil
		}

		if errors.Is(err, domain.ErrRelayUnavailable) {
			metrics.LeadsForwardedTotal.WithLabelValues("unavailable").Inc()
			log.Error().Err(err).Msg("lead relay unavailable")
			return err
		}
		if attempt >= d.maxAttempts {
			metrics.LeadsForwardedTotal.WithLabelValues("error").Inc()
			log.Error().Err(err).Int("attempt", attempt).Msg("lead delivery failed")
			return fmt.Errorf("%w: %w", domain.ErrLeadDelivery, err)
		}

		log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", backoff).Msg("lead delivery failed, retrying")
		select {
		case <-time.After(backoff):
		case <-j.ctx.Done():
		}
		backoff *= 2
	}
}
