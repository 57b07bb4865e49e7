package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/pithecene-io/desklink/log"
	"github.com/pithecene-io/desklink/metrics"
)

// DefaultQueueSize is the number of queries that may wait for the worker.
const DefaultQueueSize = 64

// Executor runs a single query against a record store.
// It returns the typed result for the query kind; an error is turned into an
// ErrorResult by the Service.
type Executor interface {
	Execute(ctx context.Context, q Query) (Result, error)
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// QueueSize bounds pending queries. Zero means DefaultQueueSize.
	QueueSize int
	// Logger receives query failures. Nil discards.
	Logger *log.Logger
	// Collector counts submitted, completed and rejected queries. Optional.
	Collector *metrics.Collector
}

// Service executes queries on a single worker goroutine and delivers every
// result to its query's listener on that goroutine.
type Service struct {
	exec      Executor
	logger    *log.Logger
	collector *metrics.Collector

	mu     sync.RWMutex
	queue  chan Query
	closed bool
	wg     sync.WaitGroup
}

// NewService creates a Service. Call Start to launch the worker.
func NewService(exec Executor, cfg ServiceConfig) *Service {
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Service{
		exec:      exec,
		logger:    log.OrNop(cfg.Logger).Named("db"),
		collector: cfg.Collector,
		queue:     make(chan Query, size),
	}
}

// Start launches the worker. It stops when ctx is cancelled or Close is called.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Submit enqueues q without blocking. It returns false when the queue is full
// or the service is closed; the listener is then never called.
func (s *Service) Submit(q Query) bool {
	if q == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.collector.IncQueryRejected()
		return false
	}
	select {
	case s.queue <- q:
		s.collector.IncQuerySubmitted()
		return true
	default:
		s.collector.IncQueryRejected()
		s.logger.Warn("query queue full", map[string]any{"query": q.Name()})
		return false
	}
}

// Close stops accepting queries, lets the worker drain pending ones and
// waits for it to exit.
func (s *Service) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Service) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case q, ok := <-s.queue:
			if !ok {
				return
			}
			s.execute(ctx, q)
		}
	}
}

func (s *Service) execute(ctx context.Context, q Query) {
	result, err := s.exec.Execute(ctx, q)
	if err != nil {
		s.logger.Error("query failed", map[string]any{
			"query": q.Name(),
			"type":  q.QueryType().String(),
			"error": err.Error(),
		})
		er := &ErrorResult{Err: err}
		er.SetRequest(q)
		result = er
	}
	if result == nil {
		er := &ErrorResult{Err: fmt.Errorf("executor returned no result for %s", q.Name())}
		er.SetRequest(q)
		result = er
	}
	if q.Listener() == nil {
		// Executed for effect only.
		s.collector.IncQueryCompleted()
		return
	}
	Handle(result)
	s.collector.IncQueryCompleted()
}
