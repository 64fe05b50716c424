package task

import "errors"

// Error taxonomy for the job subsystem. Validation and infrastructure
// errors surface synchronously at enqueue time; everything that happens
// after a task is accepted becomes a terminal FAILURE state instead.
var (
	ErrValidation     = errors.New("validation error")
	ErrInfrastructure = errors.New("infrastructure error")
)
