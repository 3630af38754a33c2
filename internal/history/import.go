// internal/history/import.go
package history

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/mwiater/georaft/internal/benchmark"
	"github.com/mwiater/georaft/internal/logging"
	"github.com/sirupsen/logrus"
)

// ErrInvalidRun is returned when an imported run cannot be folded into history.
var ErrInvalidRun = errors.New("invalid run")

// Import records a run produced outside the orchestrator. The run gets a fresh id and an end
// time of now; an empty status means completed. The stored copy is returned.
func (a *Aggregator) Import(run benchmark.Run, now time.Time) (benchmark.Run, error) {
	if run.Status == "" {
		run.Status = benchmark.StatusCompleted
	}
	if err := validateImport(run); err != nil {
		return benchmark.Run{}, err
	}

	run = run.Clone()
	run.ID = uuid.NewString()
	end := now.UTC()
	run.EndTime = &end
	if run.StartTime.IsZero() || run.StartTime.After(end) {
		run.StartTime = end
	}
	if run.Status == benchmark.StatusCompleted {
		run.Progress = 100
	}

	a.Ingest(run)
	logging.WithFields(logrus.Fields{"component": "history", "run": run.ID, "status": run.Status}).
		Info("imported benchmark run")
	return run.Clone(), nil
}

func validateImport(run benchmark.Run) error {
	var errs *multierror.Error
	if !run.Status.Terminal() {
		errs = multierror.Append(errs, fmt.Errorf("status %q is not terminal", run.Status))
	}
	if run.Results == nil {
		errs = multierror.Append(errs, errors.New("results are required"))
	} else {
		errs = checkAggregate(errs, "overall", run.Results.Overall)
		for region, agg := range run.Results.ByRegion {
			if region == "" {
				errs = multierror.Append(errs, errors.New("byRegion: empty region name"))
				continue
			}
			errs = checkAggregate(errs, "byRegion."+region, agg)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRun, err)
	}
	return nil
}

func checkAggregate(errs *multierror.Error, path string, agg benchmark.Aggregate) *multierror.Error {
	fields := []struct {
		name  string
		value float64
	}{
		{"transactions", agg.Transactions},
		{"avgTPS", agg.AvgTPS},
		{"peakTPS", agg.PeakTPS},
		{"avgLatency", agg.AvgLatency},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 {
			errs = multierror.Append(errs, fmt.Errorf("%s.%s must be a non-negative number", path, f.name))
		}
	}
	if r := agg.ErrorRate; r != nil && (math.IsNaN(*r) || *r < 0 || *r > 1) {
		errs = multierror.Append(errs, fmt.Errorf("%s.errorRate must be within [0,1]", path))
	}
	return errs
}
