package storage

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// runSaver is the part of DB the writer needs.
type runSaver interface {
	SaveRun(ctx context.Context, run *ArchivedRun) error
}

// RunWriter archives runs in the background so that queries never wait on
// the database.
type RunWriter struct {
	db      runSaver
	ch      chan *ArchivedRun
	wg      sync.WaitGroup
	done    chan struct{}
	backoff time.Duration
	dropped atomic.Int64
	failed  atomic.Int64
}

func NewRunWriter(db runSaver, bufferSize int) *RunWriter {
	if bufferSize < 1 {
		bufferSize = 10000
	}
	return &RunWriter{
		db:      db,
		ch:      make(chan *ArchivedRun, bufferSize),
		done:    make(chan struct{}),
		backoff: 100 * time.Millisecond,
	}
}

func (w *RunWriter) Start() {
	w.wg.Add(1)
	go w.processLoop()
}

// Log queues a run for archiving. It never blocks; a full buffer drops the run.
func (w *RunWriter) Log(run *ArchivedRun) {
	select {
	case w.ch <- run:
	default:
		w.dropped.Add(1)
		log.Warn().
			Str("task", run.TaskName).
			Str("correlation_id", run.CorrelationID).
			Msg("archive buffer full, dropping run")
	}
}

// Dropped returns how many runs were discarded because the buffer was full.
func (w *RunWriter) Dropped() int64 {
	return w.dropped.Load()
}

// Failed returns how many runs could not be written after all retries.
func (w *RunWriter) Failed() int64 {
	return w.failed.Load()
}

func (w *RunWriter) Flush(timeout time.Duration) {
	close(w.done)

	doneCh := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		log.Info().Msg("run writer flushed")
	case <-time.After(timeout):
		log.Warn().Msg("run writer flush timed out")
	}
}

func (w *RunWriter) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case run := <-w.ch:
			w.writeWithRetry(run)
		case <-w.done:
			for {
				select {
				case run := <-w.ch:
					w.writeWithRetry(run)
				default:
					return
				}
			}
		}
	}
}

func (w *RunWriter) writeWithRetry(run *ArchivedRun) {
	const maxRetries = 3

	for attempt := 0; attempt <= maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := w.db.SaveRun(ctx, run)
		cancel()

		if err == nil {
			return
		}

		if attempt < maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * w.backoff
			log.Warn().
				Err(err).
				Str("correlation_id", run.CorrelationID).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("archive write failed, retrying")
			time.Sleep(backoff)
		} else {
			w.failed.Add(1)
			log.Error().
				Err(err).
				Str("correlation_id", run.CorrelationID).
				Msg("archive write failed permanently after retries")
		}
	}
}
