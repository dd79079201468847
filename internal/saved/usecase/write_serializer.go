package usecase

import (
	"context"
	"sync"
	"time"

	"placesync/internal/saved/domain/model"
	"placesync/internal/saved/domain/repository"
	"placesync/internal/shared/eventbus"
	"placesync/internal/shared/logger"
)

const defaultWriteQueueSize = 64

// WriteSerializer executes profile persistence calls strictly in schedule
// order with at most one write in flight. Each job captures the session
// active at schedule time; at execution time the serializer re-checks the
// bound account and silently drops jobs whose account no longer matches.
// That drop is expected during sign-out races, not an error.
type WriteSerializer struct {
	repo   repository.ProfileRepository
	log    logger.Logger
	bus    *eventbus.EventBus
	jobs   chan writeJob
	wg     sync.WaitGroup
	worker sync.WaitGroup

	mu           sync.Mutex
	bound        model.Session
	closed       bool
	droppedStale int64
	failed       int64

	persistTimeout time.Duration
}

type writeJob struct {
	session model.Session
	doc     model.AccountDocument
}

// SerializerOption configures a WriteSerializer.
type SerializerOption func(*WriteSerializer)

// WithQueueSize sets the job queue capacity.
func WithQueueSize(n int) SerializerOption {
	return func(ws *WriteSerializer) {
		if n > 0 {
			ws.jobs = make(chan writeJob, n)
		}
	}
}

// WithPersistTimeout bounds each remote write.
func WithPersistTimeout(d time.Duration) SerializerOption {
	return func(ws *WriteSerializer) {
		if d > 0 {
			ws.persistTimeout = d
		}
	}
}

// NewWriteSerializer creates a serializer draining jobs on a single worker
// goroutine. Call Close to stop it.
func NewWriteSerializer(repo repository.ProfileRepository, log logger.Logger, bus *eventbus.EventBus, opts ...SerializerOption) *WriteSerializer {
	if log == nil {
		log = logger.Noop()
	}
	ws := &WriteSerializer{
		repo:           repo,
		log:            log.WithComponent("write_serializer"),
		bus:            bus,
		jobs:           make(chan writeJob, defaultWriteQueueSize),
		persistTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(ws)
	}
	ws.worker.Add(1)
	go ws.run()
	return ws
}

// Bind sets the session whose account future jobs are checked against.
// Called on sign-in and sign-out (with an invalid session).
func (ws *WriteSerializer) Bind(session model.Session) {
	ws.mu.Lock()
	ws.bound = session
	ws.mu.Unlock()
	ws.log.Debugf("Serializer bound to account %q", session.AccountID)
}

// Schedule enqueues a full-document write for the session's account. The
// call never blocks on the remote round trip; ordering relative to other
// scheduled writes from the same serializer is FIFO.
func (ws *WriteSerializer) Schedule(session model.Session, doc model.AccountDocument) {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		ws.log.Warn("Schedule called on closed serializer, write dropped")
		return
	}
	ws.wg.Add(1)
	ws.mu.Unlock()

	ws.jobs <- writeJob{session: session, doc: doc}
}

func (ws *WriteSerializer) run() {
	defer ws.worker.Done()
	for job := range ws.jobs {
		ws.execute(job)
		ws.wg.Done()
	}
}

func (ws *WriteSerializer) execute(job writeJob) {
	ws.mu.Lock()
	bound := ws.bound
	ws.mu.Unlock()

	if !job.session.SameAccount(bound) {
		ws.mu.Lock()
		ws.droppedStale++
		ws.mu.Unlock()
		ws.log.Debugf("Dropping stale write scheduled for account %q, bound account is %q",
			job.session.AccountID, bound.AccountID)
		ws.publish(eventbus.EventTypeWriteDroppedStale, job.session.AccountID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ws.persistTimeout)
	err := ws.repo.Persist(ctx, job.session.AccountID, job.doc)
	cancel()
	if err != nil {
		// Local state stays authoritative. The next mutation re-sends the
		// full document, so a failed write heals on the next edit.
		ws.mu.Lock()
		ws.failed++
		ws.mu.Unlock()
		ws.log.WithFields(map[string]interface{}{
			"account_id": job.session.AccountID,
		}).Errorf("Remote write failed: %v", err)
		ws.publish(eventbus.EventTypeWriteFailed, job.session.AccountID)
		return
	}
}

func (ws *WriteSerializer) publish(eventType, accountID string) {
	if ws.bus == nil {
		return
	}
	ws.bus.PublishAndForget(context.Background(),
		eventbus.NewBasicEventWithSource(eventType, accountID, "write_serializer"))
}

// Flush blocks until every job scheduled so far has been executed or
// dropped. Intended for tests and shutdown paths.
func (ws *WriteSerializer) Flush() {
	ws.wg.Wait()
}

// DroppedStaleCount returns how many writes were dropped by the account
// re-check.
func (ws *WriteSerializer) DroppedStaleCount() int64 {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.droppedStale
}

// FailedCount returns how many writes failed remotely.
func (ws *WriteSerializer) FailedCount() int64 {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.failed
}

// Close drains pending jobs and stops the worker.
func (ws *WriteSerializer) Close() {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return
	}
	ws.closed = true
	ws.mu.Unlock()

	ws.wg.Wait()
	close(ws.jobs)
	ws.worker.Wait()
}
