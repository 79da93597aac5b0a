package domain

import (
	"encoding/json"
	"time"
)

// RuntimeContainer is one entry of the runtime's container listing.
type RuntimeContainer struct {
	ID      string    `json:"id"`
	Names   []string  `json:"names"`
	Image   string    `json:"image"`
	Status  string    `json:"status"`
	State   string    `json:"state"`
	Created time.Time `json:"created"`
}

// RuntimeState is a point-in-time status snapshot of one container.
type RuntimeState struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
}

// CreateSpec is the runtime-side container creation request. Image, name
// and command pass through verbatim.
type CreateSpec struct {
	Image string   `json:"image"`
	Name  string   `json:"name,omitempty"`
	Cmd   []string `json:"cmd,omitempty"`
}

// CreatedResource identifies a freshly created runtime container.
type CreatedResource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StatsSnapshot is the runtime's resource usage report, passed through
// unmodified.
type StatsSnapshot = json.RawMessage
