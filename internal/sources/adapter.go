// internal/sources/adapter.go
package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mwiater/georaft/internal/logging"
	"github.com/mwiater/georaft/internal/selfmetrics"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

// Adapter fans queries out to the registered sources concurrently and isolates their failures.
type Adapter struct {
	sources     map[string]Source
	timeout     time.Duration
	concurrency int
}

// NewAdapter registers sources by name; timeout bounds each individual call.
func NewAdapter(timeout time.Duration, srcs ...Source) *Adapter {
	normalized := make(map[string]Source, len(srcs))
	for _, s := range srcs {
		if s == nil {
			continue
		}
		normalized[normalizeName(s.Name())] = s
	}
	return &Adapter{sources: normalized, timeout: timeout, concurrency: defaultConcurrency}
}

// Source returns the registered source with the given name.
func (a *Adapter) Source(name string) (Source, bool) {
	s, ok := a.sources[normalizeName(name)]
	return s, ok
}

// Fetch evaluates every query and returns one Result per query name. It never fails as a
// whole: an erroring, timed-out or unknown source produces an unavailable Result.
func (a *Adapter) Fetch(ctx context.Context, queries []Query) map[string]Result {
	results := make(map[string]Result, len(queries))
	var (
		mu   sync.Mutex
		errs *multierror.Error
	)

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for _, q := range queries {
		g.Go(func() error {
			res, err := a.fetchOne(ctx, q)
			mu.Lock()
			defer mu.Unlock()
			results[q.Name] = res
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", q.Name, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := errs.ErrorOrNil(); err != nil {
		logging.WithComponent("sources").
			WithField("unavailable", errs.Len()).
			WithField("total", len(queries)).
			Warn(strings.ReplaceAll(err.Error(), "\n", " "))
	}
	return results
}

func (a *Adapter) fetchOne(ctx context.Context, q Query) (Result, error) {
	src, ok := a.Source(q.Source)
	if !ok {
		err := fmt.Errorf("no source registered for %q: %w", q.Source, ErrSourceUnavailable)
		return Unavailable(q, err), err
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	payload, err := src.Query(callCtx, q.Expr)
	elapsed := time.Since(start)
	if err == nil && callCtx.Err() != nil {
		err = callCtx.Err()
	}
	if err != nil {
		if !errors.Is(err, ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		res := Unavailable(q, err)
		res.Duration = elapsed
		selfmetrics.RecordSourceQuery(src.Name(), false, elapsed)
		return res, err
	}
	selfmetrics.RecordSourceQuery(src.Name(), true, elapsed)
	return Result{Name: q.Name, Source: q.Source, Available: true, Payload: payload, Duration: elapsed}, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
