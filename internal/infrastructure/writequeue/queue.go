// Package writequeue is a durable retry buffer for outbound side-effect writes.
// Entries are delivered at least once within a bounded retry budget.
package writequeue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Zhima-Mochi/kitchen-ops/internal/observability"
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability/logctx"
)

const (
	DefaultMaxRetries    = 5
	DefaultDrainInterval = 60 * time.Second
	DefaultSendTimeout   = 30 * time.Second

	componentQueue = "write_queue"
)

var (
	ErrExhaustedRetries = errors.New("writequeue: retry budget exhausted")
	ErrNetworkFailure   = errors.New("writequeue: network failure")
	ErrUnknownTarget    = errors.New("writequeue: unknown target")
)

// Entry is one queued write.
type Entry struct {
	ID         string          `json:"id"`
	Target     string          `json:"target"`
	Method     string          `json:"method"`
	Body       json.RawMessage `json:"body"`
	Timestamp  time.Time       `json:"timestamp"`
	RetryCount int             `json:"retryCount"`
}

// Store is durable local storage for the full entry list.
type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
}

// Sender delivers one entry to its target.
type Sender interface {
	Send(ctx context.Context, e Entry) error
}

// NetworkBound is implemented by senders that know which targets need the network.
// Senders without it are treated as network-bound for every target.
type NetworkBound interface {
	RequiresNetwork(target string) bool
}

// Connectivity reports whether the network is usable and signals when it comes back.
type Connectivity interface {
	Online() bool
	Restored() <-chan struct{}
}

type IDGenerator interface {
	NewID() string
}

type Options struct {
	MaxRetries    int
	DrainInterval time.Duration
	SendTimeout   time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.DrainInterval <= 0 {
		o.DrainInterval = DefaultDrainInterval
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = DefaultSendTimeout
	}
	return o
}

// DrainResult summarises one ProcessQueue call.
type DrainResult struct {
	Skipped   bool `json:"skipped"`
	Delivered int  `json:"delivered"`
	Retried   int  `json:"retried"`
	Dropped   int  `json:"dropped"`
	Remaining int  `json:"remaining"`
}

type Queue struct {
	// mu guards entries. draining admits one drain cycle at a time.
	mu         sync.Mutex
	entries    []Entry
	draining   atomic.Bool
	again      atomic.Bool
	background sync.WaitGroup

	store  Store
	sender Sender
	conn   Connectivity
	ids    IDGenerator
	opts   Options
	now    func() time.Time

	log    observability.Logger
	events observability.Counter // write_queue_events_total{event,target}
}

func New(store Store, sender Sender, conn Connectivity, ids IDGenerator, tel observability.Observability, opts Options) *Queue {
	_, logger, metrics := observability.Resolve(tel)
	return &Queue{
		store:  store,
		sender: sender,
		conn:   conn,
		ids:    ids,
		opts:   opts.withDefaults(),
		now:    func() time.Time { return time.Now().UTC() },
		log:    logger.With(observability.F("component", componentQueue)),
		events: metrics.Counter(observability.MWriteQueueEvents),
	}
}

// Load restores entries persisted by a previous process.
func (q *Queue) Load(ctx context.Context) error {
	entries, err := q.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("writequeue: load: %w", err)
	}
	q.mu.Lock()
	q.entries = append(q.entries[:0], entries...)
	q.mu.Unlock()

	logctx.FromOr(ctx, q.log).Info("write_queue_loaded", observability.F("entries", len(entries)))
	return nil
}

// Enqueue appends a write and persists the queue. When online it starts a delivery
// attempt in the background; the caller never waits on the network.
// A persistence failure is logged; the entry stays queued in memory.
func (q *Queue) Enqueue(ctx context.Context, target, method string, payload any) (Entry, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("writequeue: encode payload: %w", err)
	}
	e := Entry{
		ID:        q.ids.NewID(),
		Target:    target,
		Method:    method,
		Body:      body,
		Timestamp: q.now(),
	}
	logger := logctx.FromOr(ctx, q.log).With(
		observability.F("entry_id", e.ID),
		observability.F("target", target),
	)

	q.mu.Lock()
	q.entries = append(q.entries, e)
	q.persistLocked(ctx, logger)
	q.mu.Unlock()

	q.count("enqueued", target)
	logger.Debug("write_queue_enqueued")

	if q.online() || !q.needsNetwork(target) {
		q.kickAsync(context.WithoutCancel(ctx))
	}
	return e, nil
}

// Flush waits for delivery attempts started by Enqueue.
func (q *Queue) Flush() {
	q.background.Wait()
}

// ProcessQueue delivers queued entries in FIFO order. It is a no-op while another
// drain runs or when nothing is deliverable. Entries for network targets wait while
// offline; entries for local targets are delivered regardless.
//
// Only one drain runs at a time. Sends happen outside q.mu, so Enqueue is never held
// up by a slow target; entries enqueued during the drain are kept behind the drained ones.
func (q *Queue) ProcessQueue(ctx context.Context) DrainResult {
	if !q.draining.CompareAndSwap(false, true) {
		return DrainResult{Skipped: true}
	}
	q.again.Store(false)
	res := q.drain(ctx)
	q.draining.Store(false)

	if q.again.Load() {
		q.kickAsync(context.WithoutCancel(ctx))
	}
	return res
}

func (q *Queue) kickAsync(ctx context.Context) {
	q.background.Add(1)
	go func() {
		defer q.background.Done()
		q.kick(ctx)
	}()
}

// kick drains, then drains again while entries keep arriving during a cycle. When a
// drain is already running it only flags the new entry for that drain's next cycle.
func (q *Queue) kick(ctx context.Context) {
	q.again.Store(true)
	for q.again.Load() && q.draining.CompareAndSwap(false, true) {
		q.again.Store(false)
		q.drain(ctx)
		q.draining.Store(false)
	}
}

// drain runs one cycle. The caller holds the draining flag.
func (q *Queue) drain(ctx context.Context) DrainResult {
	q.mu.Lock()
	batch := append([]Entry(nil), q.entries...)
	q.mu.Unlock()

	attempted := 0
	for _, e := range batch {
		if q.online() || !q.needsNetwork(e.Target) {
			attempted++
		}
	}
	if attempted == 0 {
		return DrainResult{Skipped: true}
	}

	logger := logctx.FromOr(ctx, q.log)
	var res DrainResult
	// outcome of each attempted entry: nil when done (delivered or dropped),
	// the updated entry when it stays for a later drain.
	outcome := make(map[string]*Entry, len(batch))

	for _, e := range batch {
		if ctx.Err() != nil {
			break
		}
		// Connectivity is checked per entry: a failure can take the network down mid-drain.
		if q.needsNetwork(e.Target) && !q.online() {
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, q.opts.SendTimeout)
		err := q.sender.Send(sendCtx, e)
		cancel()

		if err == nil {
			res.Delivered++
			q.count("delivered", e.Target)
			outcome[e.ID] = nil
			continue
		}

		e.RetryCount++
		if e.RetryCount >= q.opts.MaxRetries {
			res.Dropped++
			q.count("dropped", e.Target)
			outcome[e.ID] = nil
			logger.Error("write_queue_entry_dropped",
				observability.F("entry_id", e.ID),
				observability.F("target", e.Target),
				observability.F("retry_count", e.RetryCount),
				observability.F("error", fmt.Errorf("%w: %w", ErrExhaustedRetries, err)),
			)
			continue
		}

		res.Retried++
		q.count("retried", e.Target)
		logger.Warn("write_queue_send_failed",
			observability.F("entry_id", e.ID),
			observability.F("target", e.Target),
			observability.F("retry_count", e.RetryCount),
			observability.F("error", err),
		)
		retry := e
		outcome[e.ID] = &retry
	}

	q.mu.Lock()
	remaining := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		updated, done := outcome[e.ID]
		switch {
		case !done:
			remaining = append(remaining, e)
		case updated != nil:
			remaining = append(remaining, *updated)
		}
	}
	q.entries = remaining
	q.persistLocked(ctx, logger)
	res.Remaining = len(remaining)
	q.mu.Unlock()

	logger.Info("write_queue_drained",
		observability.F("delivered", res.Delivered),
		observability.F("retried", res.Retried),
		observability.F("dropped", res.Dropped),
		observability.F("remaining", res.Remaining),
	)
	return res
}

// Run drains on every connectivity-restored signal and on a periodic timer until ctx ends.
func (q *Queue) Run(ctx context.Context) error {
	ticker := time.NewTicker(q.opts.DrainInterval)
	defer ticker.Stop()

	var restored <-chan struct{}
	if q.conn != nil {
		restored = q.conn.Restored()
	}

	q.log.Info("write_queue_started", observability.F("drain_interval", q.opts.DrainInterval.String()))
	for {
		select {
		case <-ctx.Done():
			q.log.Info("write_queue_stopped")
			return nil
		case <-restored:
			q.ProcessQueue(ctx)
		case <-ticker.C:
			q.ProcessQueue(ctx)
		}
	}
}

// Entries returns a snapshot of queued entries.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Entry(nil), q.entries...)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) online() bool {
	return q.conn == nil || q.conn.Online()
}

func (q *Queue) needsNetwork(target string) bool {
	if nb, ok := q.sender.(NetworkBound); ok {
		return nb.RequiresNetwork(target)
	}
	return true
}

func (q *Queue) persistLocked(ctx context.Context, logger observability.Logger) {
	if q.store == nil {
		return
	}
	if err := q.store.Save(ctx, append([]Entry(nil), q.entries...)); err != nil {
		logger.Error("write_queue_persist_failed", observability.F("error", err))
	}
}

func (q *Queue) count(event, target string) {
	q.events.Add(1,
		observability.L("event", event),
		observability.L("target", target),
	)
}
