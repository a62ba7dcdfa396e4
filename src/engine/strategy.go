package engine

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
)

// Strategy distributes n independent work items. Run returns the error of
// the lowest failed item; items not started after a failure are skipped.
type Strategy interface {
	Run(n int, work func(i int) error) error
}

// Sequential runs all items on the calling goroutine, in order.
type Sequential struct{}

func (Sequential) Run(n int, work func(i int) error) error {
	for i := 0; i < n; i++ {
		if err := work(i); err != nil {
			return err
		}
	}
	return nil
}

// Pool runs items on a pool of Workers goroutines, GOMAXPROCS when zero.
type Pool struct {
	Workers int
}

func (p Pool) Run(n int, work func(i int) error) error {
	if n == 0 {
		return nil
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return errors.Wrap(err, "create worker pool")
	}
	defer pool.Release()

	wg := sync.WaitGroup{}
	errs := make([]error, n)
	var failed atomic.Bool
	for i := 0; i < n && !failed.Load(); i++ {
		i := i
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if failed.Load() {
				return
			}
			if errs[i] = work(i); errs[i] != nil {
				failed.Store(true)
			}
		})
		if err != nil {
			wg.Done()
			errs[i] = errors.Wrap(err, "submit work")
			break
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// NewStrategy returns Sequential for one worker and a Pool otherwise.
func NewStrategy(workers int) Strategy {
	if workers == 1 {
		return Sequential{}
	}
	return Pool{Workers: workers}
}
