package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// ListFilter narrows Repository.List. The zero value matches every job.
type ListFilter struct {
	// Statuses keeps only jobs in one of these states.
	Statuses []Status
}

// Match reports whether j passes the filter.
func (f ListFilter) Match(j *Job) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	status := j.GetStatus()
	for _, s := range f.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Repository is the persistence port for slicing jobs.
// Implementations store and return copies, so callers may mutate what
// they get back without affecting stored state.
type Repository interface {
	// Save inserts or replaces a job.
	Save(ctx context.Context, job *Job) error

	// FindByID returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// List returns the jobs matching filter, oldest first.
	List(ctx context.Context, filter ListFilter) ([]*Job, error)

	// Delete returns ErrJobNotFound if the job does not exist.
	Delete(ctx context.Context, id string) error
}
