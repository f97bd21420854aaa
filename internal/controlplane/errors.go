package controlplane

import "errors"

// Sentinel errors for control plane operations.
var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTask       = errors.New("invalid task")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrInvalidWindow     = errors.New("invalid time window")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrNoPlan            = errors.New("no plan to refine")
)
