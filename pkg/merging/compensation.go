package merging

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/hashicorp/go-multierror"
)

// compensation is one rollback action, named after the step it undoes.
type compensation struct {
	step string
	undo func(ctx context.Context) error
}

// compensationStack accumulates rollback actions as merge steps commit.
// On failure the stack unwinds in LIFO order; on success it is discarded.
type compensationStack struct {
	logger        ectologger.Logger
	compensations []compensation
}

func newCompensationStack(logger ectologger.Logger) *compensationStack {
	return &compensationStack{logger: logger}
}

// Push records the compensation for a step that just committed.
func (s *compensationStack) Push(step string, undo func(ctx context.Context) error) {
	s.compensations = append(s.compensations, compensation{step: step, undo: undo})
}

// Unwind runs compensations newest-first. Failures are collected and logged
// rather than aborting the unwind; rollback is best-effort.
func (s *compensationStack) Unwind(ctx context.Context) error {
	var result *multierror.Error

	for i := len(s.compensations) - 1; i >= 0; i-- {
		c := s.compensations[i]
		if err := c.undo(ctx); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"step": c.step,
			}).Error("Merge compensation failed")
			result = multierror.Append(result, err)
		}
	}

	s.compensations = nil
	return result.ErrorOrNil()
}
