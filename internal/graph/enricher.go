package graph

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/qforge-dev/qmemory/internal/metrics"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 128
)

type enrichJob struct {
	id       uuid.UUID
	entityID int64
	text     string
}

// enrichPool runs embedding enrichment as fire-and-forget background work: a
// bounded job channel consumed by a fixed set of workers. Failures are
// logged and counted, never surfaced to the write that triggered them, and
// never retried. Two jobs racing on the same entity may apply out of order;
// the vector then reflects whichever snapshot ran last. A job finishing
// after its entity was deleted re-inserts a vector for the dead id; reads
// stay correct because hydration drops unknown ids, but the orphan row keeps
// occupying a top-k slot until the vector is overwritten or deleted.
type enrichPool struct {
	producer Producer
	index    Index
	jobs     chan enrichJob

	mu      sync.RWMutex
	stopped bool

	workers  sync.WaitGroup
	inflight sync.WaitGroup
}

func newEnrichPool(producer Producer, index Index, opts Options) *enrichPool {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	p := &enrichPool{
		producer: producer,
		index:    index,
		jobs:     make(chan enrichJob, queueSize),
	}
	for i := 0; i < workers; i++ {
		p.workers.Add(1)
		go p.worker()
	}
	return p
}

// Enqueue schedules an enrichment job. It never blocks: when the queue is
// full or the pool is stopped the job is dropped, widening the accepted
// staleness window rather than stalling the write path.
func (p *enrichPool) Enqueue(entityID int64, text string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		metrics.Default().IncEnrichJob("dropped")
		return
	}

	job := enrichJob{id: uuid.New(), entityID: entityID, text: text}
	p.inflight.Add(1)
	select {
	case p.jobs <- job:
		metrics.Default().SetEnrichQueueDepth(len(p.jobs))
	default:
		p.inflight.Done()
		metrics.Default().IncEnrichJob("dropped")
		log.Printf("Warning: enrichment queue full, dropping job %s for entity id %d", job.id, job.entityID)
	}
}

// Flush waits for every job enqueued so far to finish.
func (p *enrichPool) Flush() {
	p.inflight.Wait()
}

// Stop closes intake and waits for workers to drain the queue.
func (p *enrichPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.jobs)
	p.workers.Wait()
}

func (p *enrichPool) worker() {
	defer p.workers.Done()
	for job := range p.jobs {
		p.run(job)
		metrics.Default().SetEnrichQueueDepth(len(p.jobs))
	}
}

// run executes one job. No cancellation or timeout is imposed here: a stuck
// model call holds only this worker, and the producer's own HTTP timeouts
// bound remote calls.
func (p *enrichPool) run(job enrichJob) {
	defer p.inflight.Done()

	ctx := context.Background()
	vecs, err := p.producer.Embed(ctx, []string{job.text})
	if err != nil {
		metrics.Default().IncEnrichJob("failed")
		log.Printf("Warning: enrichment job %s: embedding failed for entity id %d: %v", job.id, job.entityID, err)
		return
	}
	if len(vecs) != 1 {
		metrics.Default().IncEnrichJob("failed")
		log.Printf("Warning: enrichment job %s: producer returned %d vectors for entity id %d", job.id, len(vecs), job.entityID)
		return
	}

	if err := p.index.Upsert(ctx, job.entityID, vecs[0]); err != nil {
		metrics.Default().IncEnrichJob("failed")
		log.Printf("Warning: enrichment job %s: index upsert failed for entity id %d: %v", job.id, job.entityID, err)
		return
	}
	metrics.Default().IncEnrichJob("ok")
}
