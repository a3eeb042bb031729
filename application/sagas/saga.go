package sagas

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Step is a single unit of work in a saga. Compensate undoes the step's
// remote effects and is only invoked for steps that already completed.
type Step struct {
	Name       string
	Execute    func(ctx context.Context, data interface{}) (interface{}, error)
	Compensate func(ctx context.Context, data interface{}) error
}

// State represents the current state of a saga execution
type State string

const (
	StatePending     State = "PENDING"
	StateRunning     State = "RUNNING"
	StateCompleted   State = "COMPLETED"
	StateFailed      State = "FAILED"
	StateCompensated State = "COMPENSATED"
)

// Saga orchestrates a series of steps with compensation logic. When a
// step fails, the compensations of every completed step run in reverse
// order, so the net effect is all-or-nothing.
type Saga struct {
	id            string
	name          string
	steps         []Step
	compensations []func(ctx context.Context) error
	state         State
	logger        *zap.Logger
}

// New creates a new saga instance
func New(name string, logger *zap.Logger) *Saga {
	return &Saga{
		id:     fmt.Sprintf("saga_%d", time.Now().UnixNano()),
		name:   name,
		state:  StatePending,
		logger: logger,
	}
}

// AddStep appends a step to the saga
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Execute runs the saga. The output of each step is the input of the
// next. On failure the error carries the failing step's name; the caller
// receives it only after compensation finished.
func (s *Saga) Execute(ctx context.Context, initialData interface{}) (interface{}, error) {
	s.state = StateRunning
	s.logger.Debug("starting saga",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.Int("total_steps", len(s.steps)),
	)

	data := initialData

	for i, step := range s.steps {
		result, err := step.Execute(ctx, data)
		if err != nil {
			s.state = StateFailed
			s.logger.Warn("saga step failed, compensating",
				zap.String("saga_id", s.id),
				zap.String("step_name", step.Name),
				zap.Int("completed_steps", i),
				zap.Error(err),
			)

			s.compensate(ctx)
			s.state = StateCompensated
			return nil, fmt.Errorf("saga %s failed at step %s: %w", s.name, step.Name, err)
		}

		data = result

		if step.Compensate != nil {
			stepData := data // capture the step's own output for compensation
			s.compensations = append(s.compensations, func(ctx context.Context) error {
				return step.Compensate(ctx, stepData)
			})
		}
	}

	s.state = StateCompleted
	s.logger.Debug("saga completed",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
	)

	return data, nil
}

// compensate runs registered compensations in reverse order. A failing
// compensation is logged but does not stop the remaining ones.
func (s *Saga) compensate(ctx context.Context) {
	for i := len(s.compensations) - 1; i >= 0; i-- {
		if err := s.compensations[i](ctx); err != nil {
			s.logger.Error("saga compensation failed",
				zap.String("saga_id", s.id),
				zap.String("saga_name", s.name),
				zap.Int("compensation_index", i),
				zap.Error(err),
			)
		}
	}
}

// GetState returns the current state of the saga
func (s *Saga) GetState() State {
	return s.state
}

// GetID returns the saga ID
func (s *Saga) GetID() string {
	return s.id
}
