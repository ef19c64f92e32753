// Package parallel runs independent, indexed jobs on a bounded worker pool.
package parallel

import (
	"runtime"
	"sync"

	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
)

// Workers returns the number of goroutines used for n jobs.
// limit <= 0 means runtime.GOMAXPROCS(0).
func Workers(n, limit int) int {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	if limit > n {
		limit = n
	}
	return limit
}

// Do calls fn(i) for every i in [0, n) using at most limit goroutines.
//
// Jobs are handed out from a shared counter, so uneven jobs (deep and
// shallow trees) still balance. A panic inside fn becomes a PanicError
// for that index. The error of the lowest failing index is returned so
// the result does not depend on scheduling.
func Do(n, limit int, op string, fn func(i int) error) error {
	if n <= 0 {
		return nil
	}
	workers := Workers(n, limit)
	errs := make([]error, n)

	if workers == 1 {
		for i := 0; i < n; i++ {
			errs[i] = errors.SafeExecute(op, func() error { return fn(i) })
		}
		return first(errs)
	}

	var (
		mu   sync.Mutex
		next int
		wg   sync.WaitGroup
	)
	take := func() (int, bool) {
		mu.Lock()
		defer mu.Unlock()
		if next >= n {
			return 0, false
		}
		i := next
		next++
		return i, true
	}

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				i, ok := take()
				if !ok {
					return
				}
				errs[i] = errors.SafeExecute(op, func() error { return fn(i) })
			}
		}()
	}
	wg.Wait()
	return first(errs)
}

func first(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
