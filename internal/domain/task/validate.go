package task

import (
	"fmt"
	"strings"

	"github.com/taskgrid/taskgrid/internal/domain"
)

// validStatuses enumerates all valid task statuses.
var validStatuses = map[Status]bool{
	StatusPending:         true,
	StatusPendingPlanning: true,
	StatusPlanningFailed:  true,
	StatusPlanned:         true,
	StatusRunning:         true,
	StatusPaused:          true,
	StatusCompleted:       true,
	StatusFailed:          true,
}

// ValidStatus reports whether s is a known status value.
func ValidStatus(s Status) bool { return validStatuses[s] }

// ValidProgress reports whether p is inside the closed [0, 1] range.
func ValidProgress(p float64) bool { return p >= 0.0 && p <= 1.0 }

// Validate checks a CreateRequest. Returns a domain.ErrValidation-wrapped
// error on the first violation.
func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if r.Status != "" && !ValidStatus(r.Status) {
		return fmt.Errorf("%w: invalid status %q", domain.ErrValidation, r.Status)
	}
	if !ValidProgress(r.Progress) {
		return fmt.Errorf("%w: progress must be between 0.0 and 1.0", domain.ErrValidation)
	}
	return nil
}

// Validate checks an UpdateRequest.
func (r *UpdateRequest) Validate() error {
	if r.Name != nil && *r.Name == "" {
		return fmt.Errorf("%w: name must not be empty", domain.ErrValidation)
	}
	if r.Status != nil && !ValidStatus(*r.Status) {
		return fmt.Errorf("%w: invalid status %q", domain.ErrValidation, *r.Status)
	}
	if r.Progress != nil && !ValidProgress(*r.Progress) {
		return fmt.Errorf("%w: progress must be between 0.0 and 1.0", domain.ErrValidation)
	}
	return nil
}

// Validate checks a PlanRequest.
func (r *PlanRequest) Validate() error {
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("%w: description is required", domain.ErrValidation)
	}
	return nil
}

// Validate checks invariants on a fully populated Task, used before
// persisting server-side mutations.
func (t *Task) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if !ValidStatus(t.Status) {
		return fmt.Errorf("%w: invalid status %q", domain.ErrValidation, t.Status)
	}
	if !ValidProgress(t.Progress) {
		return fmt.Errorf("%w: progress must be between 0.0 and 1.0", domain.ErrValidation)
	}
	if t.EndTime != nil && *t.EndTime < t.StartTime {
		return fmt.Errorf("%w: endTime must not precede startTime", domain.ErrValidation)
	}
	return nil
}
