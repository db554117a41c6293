package simulation

import (
	"context"
	"errors"
	"runtime"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	TASK_CHAN_SIZE = 100
)

var ErrNotStarted = errors.New("simulation not started")

type WorkerFunction = func(t *tomb.Tomb, task int) error
type WorkerPool struct {
	n     int      // number of workers
	tasks chan int // pending task indices
}

func NewWorkerPool(size uint) *WorkerPool {
	if size == 0 {
		size = uint(runtime.NumCPU())
	}
	return &WorkerPool{
		n:     int(size),
		tasks: make(chan int, TASK_CHAN_SIZE),
	}
}

// Setup starts the workers under t. They run until the task channel is closed
// or t starts dying.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	// Spawn from inside the tomb so it stays alive while workers start.
	t.Go(func() error {
		for id := range pool.n {
			t.Go(func() error {
				return pool.worker(t, id, work)
			})
		}
		return nil
	})
}

// Submit queues a task. It reports false once t is dying.
func (pool *WorkerPool) Submit(t *tomb.Tomb, task int) bool {
	select {
	case pool.tasks <- task:
		return true
	case <-t.Dying():
		return false
	}
}

// Close tells the workers that no more tasks are coming.
func (pool *WorkerPool) Close() {
	close(pool.tasks)
}

// Workers wait on tasks in the task channel and action them.
func (pool *WorkerPool) worker(t *tomb.Tomb, id int, work WorkerFunction) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task, ok := <-pool.tasks:
			if !ok {
				return nil
			}
			if err := work(t, task); err != nil {
				log.Error().Err(err).Int("id", id).Msg("worker exiting")
				return err
			}
		}
	}
}

// Result pairs a simulation with its outcome.
type Result struct {
	Simulation *Simulation
	Report     *Report
	Err        error
}

// RunAll runs independent simulations on a pool of workers. A failing
// simulation is recorded in its result and does not stop the others;
// cancelling ctx does, and its error is returned with the results gathered
// so far.
func RunAll(ctx context.Context, sims []*Simulation, workers uint) ([]Result, error) {
	results := make([]Result, len(sims))
	for i, sim := range sims {
		results[i].Simulation = sim
	}

	t, tctx := tomb.WithContext(ctx)
	pool := NewWorkerPool(workers)
	pool.Setup(t, func(t *tomb.Tomb, task int) error {
		report, err := sims[task].Run(tctx)
		results[task].Report, results[task].Err = report, err
		return nil
	})
	for i := range sims {
		if !pool.Submit(t, i) {
			break
		}
	}
	pool.Close()

	err := t.Wait()
	for i := range results {
		if results[i].Report == nil && results[i].Err == nil {
			// Never started: release its files.
			sims[i].close()
			results[i].Err = ErrNotStarted
		}
	}
	return results, err
}
