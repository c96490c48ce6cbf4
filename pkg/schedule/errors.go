package schedule

import "errors"

var (
	// ErrJobAlreadyRegistered is returned when a job name is reused.
	ErrJobAlreadyRegistered = errors.New("schedule: job already registered")
	// ErrNoJobs is returned when Start is called with nothing to run.
	ErrNoJobs = errors.New("schedule: no jobs registered")
	// ErrNilJob is returned when a job function is nil.
	ErrNilJob = errors.New("schedule: job function cannot be nil")
	// ErrNilSchedule is returned when a job schedule is nil.
	ErrNilSchedule = errors.New("schedule: job schedule cannot be nil")
)
