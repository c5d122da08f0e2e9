// Package saga records the progress of a two-step money operation whose steps
// land on different store paths. The store only offers a compare-and-swap on a
// single path, so when the second step fails after the first committed, the
// first is undone with one corrective write. A crash between the two steps
// leaves the first effect in place until an operator reconciles it.
package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/logging"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/metrics"
	"github.com/sirupsen/logrus"
)

type Stage string

const (
	Pending             Stage = "pending"
	FirstStepCommitted  Stage = "first_step_committed"
	SecondStepCommitted Stage = "second_step_committed"
	Compensated         Stage = "compensated"
	Aborted             Stage = "aborted"
)

var ErrCompensationFailed = errors.New("compensation failed, manual reconciliation required")

// Step performs one write and reports whether it committed. A false result
// with a nil error is an expected decline such as insufficient funds.
type Step func(ctx context.Context) (bool, error)

// Compensation undoes a committed first step. It is attempted exactly once.
type Compensation func(ctx context.Context) error

type Definition struct {
	First      Step
	Second     Step
	Compensate Compensation
}

// Run is the state-tagged record of one multi-step operation.
type Run struct {
	Operation string
	EntityID  string

	stage   Stage
	history []Stage
	logger  *logging.Logger
}

func New(operation, entityID string, logger *logging.Logger) *Run {
	return &Run{
		Operation: operation,
		EntityID:  entityID,
		stage:     Pending,
		history:   []Stage{Pending},
		logger:    logger,
	}
}

func (r *Run) Stage() Stage { return r.stage }

// History lists every stage the run has been in, oldest first.
func (r *Run) History() []Stage {
	out := make([]Stage, len(r.history))
	copy(out, r.history)
	return out
}

func (r *Run) fields() logrus.Fields {
	return logrus.Fields{"operation": r.Operation, "entity": r.EntityID, "stage": r.stage}
}

func (r *Run) transition(to Stage) {
	r.stage = to
	r.history = append(r.history, to)
	metrics.RecordSagaStage(r.Operation, string(to))
	r.logger.WithFields(r.fields()).Debug("saga transition")
}

// Execute drives the definition from Pending to a terminal stage. It returns
// true only when both steps committed. When the second step declines or fails
// the first is compensated; a decline then yields false with a nil error and a
// failure yields the step's error. A compensation failure yields an error
// wrapping ErrCompensationFailed.
func (r *Run) Execute(ctx context.Context, def Definition) (bool, error) {
	if r.stage != Pending {
		return false, fmt.Errorf("saga %s for %s already ran (stage %s)", r.Operation, r.EntityID, r.stage)
	}

	ok, err := def.First(ctx)
	if err != nil || !ok {
		r.transition(Aborted)
		return false, err
	}
	r.transition(FirstStepCommitted)

	ok, stepErr := def.Second(ctx)
	if stepErr == nil && ok {
		r.transition(SecondStepCommitted)
		return true, nil
	}

	if stepErr != nil {
		r.logger.WithFields(r.fields()).WithError(stepErr).Warn("second step failed, compensating")
	} else {
		r.logger.WithFields(r.fields()).Info("second step declined, compensating")
	}

	// the caller may have given up, but the first step still has to be undone
	if err := def.Compensate(context.WithoutCancel(ctx)); err != nil {
		r.logger.WithFields(r.fields()).WithFields(logrus.Fields{
			"step_error":         stepErr,
			"compensation_error": err,
		}).Error("compensation failed, records are inconsistent")
		return false, fmt.Errorf("%w: %s %s: %w", ErrCompensationFailed, r.Operation, r.EntityID, errors.Join(err, stepErr))
	}
	r.transition(Compensated)

	return false, stepErr
}
