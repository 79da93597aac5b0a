package domain

import "time"

// InstanceStatus is the persisted lifecycle state of an instance. The
// enumerated values cover commanded transitions; reconciliation may also
// store any status string the runtime reports.
type InstanceStatus string

const (
	StatusCreated    InstanceStatus = "created"
	StatusRunning    InstanceStatus = "running"
	StatusExited     InstanceStatus = "exited"
	StatusPaused     InstanceStatus = "paused"
	StatusTerminated InstanceStatus = "terminated"
)

// Terminal reports whether the status is absorbing. A terminated
// instance no longer corresponds to a runtime resource.
func (s InstanceStatus) Terminal() bool {
	return s == StatusTerminated
}

// Instance is the persisted view of a runtime container owned by a user.
type Instance struct {
	ID          string         `json:"id"`
	ContainerID string         `json:"container_id"`
	Name        string         `json:"name"`
	Image       string         `json:"image"`
	Status      InstanceStatus `json:"status"`
	UserID      string         `json:"user_id"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ContainerSummary merges a persisted instance with the live runtime view
// for listing. Status falls back to "Stopped (or Missing)" when the
// runtime no longer knows the container.
type ContainerSummary struct {
	ID          string    `json:"id"`
	ContainerID string    `json:"container_id"`
	Name        string    `json:"name"`
	Image       string    `json:"image"`
	Status      string    `json:"status"`
	State       string    `json:"state"`
	Created     time.Time `json:"created"`
}
